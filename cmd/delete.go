package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:     "delete <channel>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved channel",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		session, err := app.FindSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !internal.AskUser(fmt.Sprintf("Delete %s and its chat history?", session.Channel.Title)) {
			return fmt.Errorf("deletion declined by user")
		}
		if _, err := app.DeleteSession(cmd.Context(), session.ID); err != nil {
			return err
		}
		app.UI().Printf("Deleted %s\n", session.Channel.Title)
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(deleteCmd)
}
