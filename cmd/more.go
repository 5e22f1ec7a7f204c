package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// moreCmd represents the more command
var moreCmd = &cobra.Command{
	Use:   "more <channel>",
	Short: "Load more uploads of a saved channel",
	Example: `  ytdash more @mkbhd
  ytdash more @mkbhd --pages 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		session, added, err := app.LoadMore(cmd.Context(), args[0], internal.PagesFlag(cmd, config))
		if errors.Is(err, internal.ErrNoMorePages) {
			app.UI().Println(err.Error())
			return nil
		}
		if err != nil {
			return err
		}
		app.UI().Printf("Added %d videos\n", added)
		printSessionLine(app.UI(), session)
		return nil
	},
}

func init() {
	internal.AddPagesFlag(moreCmd)
	rootCmd.AddCommand(moreCmd)
}
