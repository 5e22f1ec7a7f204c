package internal

import (
	"fmt"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testSession(id string, savedAt time.Time, videos ...Video) Session {
	return Session{
		ID:      id,
		SavedAt: savedAt,
		Channel: ChannelInfo{
			ID:                id,
			Title:             "Channel " + id,
			Handle:            "@" + id,
			UploadsPlaylistID: "UU" + id,
		},
		Videos: videos,
	}
}

func testVideo(n int, views uint64) Video {
	return Video{
		ID:          fmt.Sprintf("vid%08d", n),
		Title:       fmt.Sprintf("Video number %d", n),
		PublishedAt: t0.Add(-time.Duration(n) * 24 * time.Hour),
		Duration:    "PT4M10S",
		ViewCount:   views,
		LikeCount:   views / 10,
	}
}

func sessionIDs(sessions []Session) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}
