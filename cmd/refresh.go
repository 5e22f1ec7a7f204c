package cmd

import (
	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh [channel...]",
	Short: "Refetch saved channels",
	Long: `Refetch saved channels with as many uploads as they currently hold.
Without arguments every saved channel is refreshed. A channel that fails
does not stop the others; failures are listed at the end.`,
	Example: `  ytdash refresh
  ytdash refresh @mkbhd @veritasium`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		refreshed, err := app.RefreshSessions(cmd.Context(), args)
		for _, s := range refreshed {
			printSessionLine(app.UI(), s)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
