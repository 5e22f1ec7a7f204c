package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch <channel>",
	Short: "Fetch a channel and save it as a session",
	Long: `Fetch a channel's metadata and latest uploads from the YouTube Data API.

The channel can be given as a channel id (UC...), an @handle or a channel URL.
Fetching a channel that is already saved replaces its videos and keeps its chat history.`,
	Example: `  ytdash fetch @mkbhd
  ytdash fetch UCBJycsmduvYEL83R_U4JriQ --pages 4
  ytdash fetch https://www.youtube.com/@mkbhd`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		session, err := app.FetchChannel(cmd.Context(), args[0], internal.PagesFlag(cmd, config))
		if err != nil {
			return err
		}
		printSessionLine(app.UI(), session)
		return nil
	},
}

func printSessionLine(ui internal.UIManager, s internal.Session) {
	more := ""
	if s.NextPageToken != "" {
		more = " (more available, run `ytdash more`)"
	}
	ui.Printf("Saved %s: %d videos%s\n", s.Channel.Title, len(s.Videos), more)
}

func init() {
	internal.AddPagesFlag(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}
