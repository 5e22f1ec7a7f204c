package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat <channel> <question...>",
	Short: "Ask the AI provider about a saved channel",
	Long: `Ask a question about a saved channel. The channel's videos and statistics
are sent as context together with the earlier questions and answers.`,
	Example: `  ytdash chat @mkbhd "What video lengths perform best?"
  ytdash chat @mkbhd --provider openai "Summarize the last month"
  ytdash chat @mkbhd --clear`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		if clear, _ := cmd.Flags().GetBool("clear"); clear {
			if err := app.ClearChat(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.UI().Println("Chat history cleared")
			return nil
		}
		if len(args) < 2 {
			return cmd.Usage()
		}
		if err := internal.HandleProviderFlags(cmd, app); err != nil {
			return err
		}
		if err := internal.HandlePromptFlag(cmd, app, internal.PromptChat); err != nil {
			return err
		}

		answer, err := app.Chat(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		rendered, err := internal.RenderMarkdown(answer)
		if err != nil {
			rendered = answer
		}
		app.UI().Printf("%s", rendered)
		return nil
	},
}

func init() {
	internal.AddProviderFlags(chatCmd)
	chatCmd.Flags().Bool("clear", false, "Clear the channel's chat history")
	rootCmd.AddCommand(chatCmd)
}
