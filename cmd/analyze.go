package cmd

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <video>",
	Short: "Analyze one video of a saved channel",
	Long: `Ask the AI provider to watch a video and describe its content, visual style
and tone. The reply also says whether the provider saw the expected video.
The video must belong to a saved channel.`,
	Example: `  ytdash analyze dQw4w9WgXcQ
  ytdash analyze "https://www.youtube.com/watch?v=dQw4w9WgXcQ" --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		if err := internal.HandleProviderFlags(cmd, app); err != nil {
			return err
		}
		if err := internal.HandlePromptFlag(cmd, app, internal.PromptAnalyze); err != nil {
			return err
		}

		analysis, video, err := app.AnalyzeVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := json.MarshalIndent(analysis, "", "  ")
			if err != nil {
				return err
			}
			app.UI().Printf("%s\n", data)
			return nil
		}
		if !analysis.Verification.IsMatch {
			app.UI().Warnf("the provider analyzed %q by %q instead of the requested video\n",
				analysis.Verification.FoundTitle, analysis.Verification.FoundChannel)
		}

		rendered, err := internal.RenderMarkdown(analysisMarkdown(video, analysis))
		if err != nil {
			return err
		}
		app.UI().Printf("%s", rendered)
		return nil
	},
}

func analysisMarkdown(v internal.Video, a *internal.VideoAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", v.Title)
	fmt.Fprintf(&b, "%s · %s views · %s\n\n", internal.FormatDuration(v.Duration), internal.FormatCount(v.ViewCount), v.URL())
	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", a.Analysis.Summary)
	fmt.Fprintf(&b, "## Visual style\n\n%s\n\n", a.Analysis.VisualStyle)
	fmt.Fprintf(&b, "## Tone\n\n%s\n\n", a.Analysis.ContentTone)
	if a.Analysis.Transcript != "" {
		fmt.Fprintf(&b, "## Transcript\n\n%s\n", a.Analysis.Transcript)
	}
	return b.String()
}

func init() {
	internal.AddProviderFlags(analyzeCmd)
	analyzeCmd.Flags().Bool("json", false, "Print the raw analysis as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
