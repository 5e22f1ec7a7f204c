package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report [channel...]",
	Short: "Write a competitive report comparing saved channels",
	Long: `Compare saved channels, all of them when none are given, and write a
competitive report. The last report is kept and shown again with --last.`,
	Example: `  ytdash report
  ytdash report @mkbhd @linustechtips --copy
  ytdash report --last
  ytdash report --reset`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if reset, _ := cmd.Flags().GetBool("reset"); reset {
			if err := app.ResetAnalysis(ctx); err != nil {
				return err
			}
			app.UI().Println("Competitive analysis reset")
			return nil
		}

		var run internal.AnalysisState
		if last, _ := cmd.Flags().GetBool("last"); last {
			run = app.Analysis(ctx)
			if run.Idle() {
				return fmt.Errorf("no competitive analysis yet, run `ytdash report`")
			}
		} else {
			if err := internal.HandleProviderFlags(cmd, app); err != nil {
				return err
			}
			if err := internal.HandlePromptFlag(cmd, app, internal.PromptReport); err != nil {
				return err
			}
			run, err = app.CompetitiveReport(ctx, args)
			if err != nil {
				return err
			}
		}

		if run.Error != "" {
			return fmt.Errorf("last analysis failed: %s", run.Error)
		}
		if copyOut, _ := cmd.Flags().GetBool("copy"); copyOut {
			if err := clipboard.WriteAll(run.Result); err != nil {
				app.UI().Warnf("copying to clipboard: %v\n", err)
			} else {
				app.UI().Verbose("Report copied to clipboard\n")
			}
		}
		rendered, err := internal.RenderMarkdown(run.Result)
		if err != nil {
			rendered = run.Result
		}
		app.UI().Printf("%s", rendered)
		return nil
	},
}

func init() {
	internal.AddProviderFlags(reportCmd)
	reportCmd.Flags().Bool("reset", false, "Clear the stored analysis")
	reportCmd.Flags().Bool("last", false, "Show the stored analysis instead of running a new one")
	reportCmd.Flags().Bool("copy", false, "Copy the report to the clipboard")
	rootCmd.AddCommand(reportCmd)
}
