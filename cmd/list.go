package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved channels",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		sessions := app.Sessions(cmd.Context())
		if len(sessions) == 0 {
			app.UI().Println("No saved channels. Fetch one with `ytdash fetch <channel>`.")
			return nil
		}

		w := tabwriter.NewWriter(app.UI().Out(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tHANDLE\tSUBSCRIBERS\tVIDEOS\tAVG VIEWS\tCHAT\tSAVED")
		for _, s := range sessions {
			st := internal.ComputeStats(s.Videos, 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
				internal.Truncate(s.Channel.Title, 32),
				s.Channel.Handle,
				internal.FormatCount(s.Channel.SubscriberCount),
				len(s.Videos),
				internal.FormatCount(uint64(st.AvgViews)),
				len(s.ChatHistory)/2,
				s.SavedAt.Local().Format(time.DateTime),
			)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
