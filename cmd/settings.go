package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change stored settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		stored := app.StoredSettings(cmd.Context())
		effective := app.Settings(cmd.Context())

		w := tabwriter.NewWriter(app.UI().Out(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "theme\t%s\n", stored.Theme)
		fmt.Fprintf(w, "provider\t%s\n", stored.Provider)
		fmt.Fprintf(w, "model\t%s\n", stored.Model)
		fmt.Fprintf(w, "youtube keys\t%s\n", describeKeys(stored.YouTubeKeys, effective.YouTubeKeys))
		fmt.Fprintf(w, "gemini keys\t%s\n", describeKeys(stored.GeminiKeys, effective.GeminiKeys))
		fmt.Fprintf(w, "openai keys\t%s\n", describeKeys(stored.OpenAIKeys, effective.OpenAIKeys))
		return w.Flush()
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change stored settings",
	Long: `Change stored settings. Key flags replace the whole key list; pass several
keys separated by commas to rotate through them when one fails.`,
	Example: `  ytdash settings set --provider openai --model gpt-4o
  ytdash settings set --youtube-key KEY1,KEY2
  ytdash settings set --gemini-key ""`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.NFlag() == 0 {
			return cmd.Usage()
		}

		_, err = app.UpdateSettings(cmd.Context(), func(s *internal.Settings) error {
			if flags.Changed("theme") {
				theme, _ := flags.GetString("theme")
				switch t := internal.Theme(theme); t {
				case internal.ThemeLight, internal.ThemeDark, internal.ThemeSystem:
					s.Theme = t
				default:
					return fmt.Errorf("unsupported theme: %s (supported: light, dark, system)", theme)
				}
			}
			if flags.Changed("provider") {
				provider, _ := flags.GetString("provider")
				switch p := internal.ProviderName(provider); p {
				case internal.ProviderGemini, internal.ProviderOpenAI:
					if p != s.Provider && !flags.Changed("model") {
						s.Model = ""
					}
					s.Provider = p
				default:
					return fmt.Errorf("unsupported provider: %s (supported: gemini, openai)", provider)
				}
			}
			if flags.Changed("model") {
				s.Model, _ = flags.GetString("model")
			}
			if flags.Changed("youtube-key") {
				s.YouTubeKeys, _ = flags.GetString("youtube-key")
			}
			if flags.Changed("gemini-key") {
				s.GeminiKeys, _ = flags.GetString("gemini-key")
			}
			if flags.Changed("openai-key") {
				s.OpenAIKeys, _ = flags.GetString("openai-key")
			}
			return nil
		})
		if err != nil {
			return err
		}
		app.UI().Println("Settings saved")
		return nil
	},
}

// describeKeys never prints key material
func describeKeys(stored, effective string) string {
	if n := len(internal.ParseKeys(stored)); n > 0 {
		return fmt.Sprintf("%d stored", n)
	}
	if n := len(internal.ParseKeys(effective)); n > 0 {
		return fmt.Sprintf("%d from environment", n)
	}
	return "none"
}

func init() {
	settingsSetCmd.Flags().String("theme", "", "UI theme: light, dark or system")
	settingsSetCmd.Flags().String("provider", "", "AI provider: gemini or openai")
	settingsSetCmd.Flags().String("model", "", "AI model (empty for the provider default)")
	settingsSetCmd.Flags().String("youtube-key", "", "YouTube Data API keys, comma separated")
	settingsSetCmd.Flags().String("gemini-key", "", "Gemini API keys, comma separated")
	settingsSetCmd.Flags().String("openai-key", "", "OpenAI API keys, comma separated")
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
