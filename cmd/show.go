package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <channel>",
	Short: "Show statistics and videos of a saved channel",
	Example: `  ytdash show @mkbhd
  ytdash show @mkbhd --videos 50 --chat`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		session, err := app.FindSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("videos")
		top, _ := cmd.Flags().GetInt("top")
		withChat, _ := cmd.Flags().GetBool("chat")

		rendered, err := internal.RenderMarkdown(sessionMarkdown(session, limit, top, withChat))
		if err != nil {
			return err
		}
		app.UI().Printf("%s", rendered)
		return nil
	},
}

func sessionMarkdown(s internal.Session, limit, top int, withChat bool) string {
	st := internal.ComputeStats(s.Videos, top)
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", s.Channel.Title)
	if s.Channel.Handle != "" {
		fmt.Fprintf(&b, "%s · ", s.Channel.Handle)
	}
	fmt.Fprintf(&b, "%s subscribers · %s videos · %s views\n\n",
		internal.FormatCount(s.Channel.SubscriberCount),
		internal.FormatCount(s.Channel.VideoCount),
		internal.FormatCount(s.Channel.ViewCount))

	b.WriteString("## Statistics\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Videos fetched | %d |\n", st.Videos)
	fmt.Fprintf(&b, "| Average views | %s |\n", internal.FormatCount(uint64(st.AvgViews)))
	fmt.Fprintf(&b, "| Median views | %s |\n", internal.FormatCount(uint64(st.MedianViews)))
	fmt.Fprintf(&b, "| Engagement rate | %.2f%% |\n", st.EngagementRate*100)
	fmt.Fprintf(&b, "| Average duration | %s |\n", st.AvgDuration)
	fmt.Fprintf(&b, "| Uploads per week | %.1f |\n\n", st.UploadsPerWeek)

	if len(st.TopKeywords) > 0 {
		words := make([]string, len(st.TopKeywords))
		for i, k := range st.TopKeywords {
			words[i] = fmt.Sprintf("%s (%d)", k.Word, k.Count)
		}
		fmt.Fprintf(&b, "**Top keywords:** %s\n\n", strings.Join(words, ", "))
	}

	b.WriteString("## Videos\n\n| Published | Title | Duration | Views | Likes |\n|---|---|---|---|---|\n")
	for i, v := range s.Videos {
		if limit > 0 && i >= limit {
			fmt.Fprintf(&b, "\n…and %d more\n", len(s.Videos)-limit)
			break
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			v.PublishedAt.Format("2006-01-02"),
			strings.ReplaceAll(internal.Truncate(v.Title, 60), "|", "/"),
			internal.FormatDuration(v.Duration),
			internal.FormatCount(v.ViewCount),
			internal.FormatCount(v.LikeCount))
	}

	if withChat && len(s.ChatHistory) > 0 {
		b.WriteString("\n## Chat\n\n")
		for _, m := range s.ChatHistory {
			if m.Role == internal.RoleUser {
				fmt.Fprintf(&b, "**You:** %s\n\n", m.Content)
			} else {
				fmt.Fprintf(&b, "%s\n\n", m.Content)
			}
		}
	}
	return b.String()
}

func init() {
	showCmd.Flags().Int("videos", 20, "Number of videos to list (0 for all)")
	showCmd.Flags().Int("top", 10, "Number of top keywords to show")
	showCmd.Flags().Bool("chat", false, "Include the chat history")
	rootCmd.AddCommand(showCmd)
}
