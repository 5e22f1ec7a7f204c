package internal

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const testChannelID = "UCBJycsmduvYEL83R_U4JriQ"

// keyTransport adds the API key the way the production client does
type keyTransport struct {
	key string
}

func (k keyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	q := req.URL.Query()
	q.Set("key", k.key)
	req.URL.RawQuery = q.Encode()
	return http.DefaultTransport.RoundTrip(req)
}

type fakeYouTube struct {
	mu       sync.Mutex
	requests map[string]int
	// failPage makes playlistItems fail for this page token
	failPage string
	noItems  bool
}

func (f *fakeYouTube) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeYouTube) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if f.requests == nil {
		f.requests = map[string]int{}
	}
	f.requests[r.URL.Path]++
	f.mu.Unlock()

	q := r.URL.Query()
	if q.Get("key") != "good" {
		writeAPIError(w, http.StatusForbidden, "quotaExceeded")
		return
	}

	switch r.URL.Path {
	case "/channels":
		if f.noItems || (q.Get("id") != testChannelID && q.Get("forHandle") != "@mkbhd") {
			writeJSON(w, map[string]any{"items": []any{}})
			return
		}
		writeJSON(w, map[string]any{"items": []any{map[string]any{
			"id": testChannelID,
			"snippet": map[string]any{
				"title":      "Marques Brownlee",
				"customUrl":  "@mkbhd",
				"thumbnails": map[string]any{"high": map[string]any{"url": "https://img/high.jpg"}},
			},
			"statistics":     map[string]any{"subscriberCount": "19000000", "videoCount": "1700", "viewCount": "4000000000"},
			"contentDetails": map[string]any{"relatedPlaylists": map[string]any{"uploads": "UUBJycsmduvYEL83R_U4JriQ"}},
		}}})
	case "/playlistItems":
		token := q.Get("pageToken")
		if f.failPage != "" && token == f.failPage {
			writeAPIError(w, http.StatusBadRequest, "badRequest")
			return
		}
		if token == "" {
			writeJSON(w, playlistPage("p2", "vidaaaaaaa1", "vidaaaaaaa2"))
		} else {
			writeJSON(w, playlistPage("", "vidaaaaaaa3"))
		}
	case "/videos":
		var ids []string
		for _, v := range q["id"] {
			ids = append(ids, strings.Split(v, ",")...)
		}
		items := []any{}
		// reversed to check that playlist order is kept
		for i := len(ids) - 1; i >= 0; i-- {
			items = append(items, map[string]any{
				"id": ids[i],
				"snippet": map[string]any{
					"title":       "Title " + ids[i],
					"publishedAt": "2025-02-01T10:00:00Z",
					"tags":        []string{"tech"},
				},
				"statistics":     map[string]any{"viewCount": "1000", "likeCount": "100", "commentCount": "10"},
				"contentDetails": map[string]any{"duration": "PT8M3S"},
			})
		}
		writeJSON(w, map[string]any{"items": items})
	default:
		http.NotFound(w, r)
	}
}

func playlistPage(next string, ids ...string) map[string]any {
	items := make([]any, len(ids))
	for i, id := range ids {
		items[i] = map[string]any{"contentDetails": map[string]any{"videoId": id}}
	}
	return map[string]any{"items": items, "nextPageToken": next}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
		"code":    status,
		"message": reason,
		"errors":  []any{map[string]any{"reason": reason, "message": reason}},
	}})
}

func newTestYouTube(t *testing.T, fake *fakeYouTube, opts ...YouTubeOption) *YouTubeClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	factory := func(ctx context.Context, key string) (*youtube.Service, error) {
		return youtube.NewService(ctx,
			option.WithEndpoint(srv.URL+"/"),
			option.WithHTTPClient(&http.Client{Transport: keyTransport{key: key}}),
		)
	}
	opts = append([]YouTubeOption{WithServiceFactory(factory), WithRateLimit(0)}, opts...)
	return NewYouTubeClient(opts...)
}

func TestYouTubeClient_ResolveChannel(t *testing.T) {
	fake := &fakeYouTube{}
	c := newTestYouTube(t, fake)

	for _, input := range []string{"@mkbhd", testChannelID, "https://www.youtube.com/@mkbhd"} {
		info, err := c.ResolveChannel(context.Background(), "good", input)
		require.NoError(t, err, input)
		assert.Equal(t, testChannelID, info.ID)
		assert.Equal(t, "Marques Brownlee", info.Title)
		assert.Equal(t, "@mkbhd", info.Handle)
		assert.Equal(t, uint64(19000000), info.SubscriberCount)
		assert.Equal(t, "UUBJycsmduvYEL83R_U4JriQ", info.UploadsPlaylistID)
		assert.Equal(t, "https://img/high.jpg", info.Thumbnail)
	}
}

func TestYouTubeClient_RotatesKeys(t *testing.T) {
	fake := &fakeYouTube{}
	m := NewPromMetrics()
	c := newTestYouTube(t, fake, WithYouTubeMetrics(m))

	info, err := c.ResolveChannel(context.Background(), "bad1\nbad2\ngood", "@mkbhd")
	require.NoError(t, err)
	assert.Equal(t, testChannelID, info.ID)
	assert.Equal(t, 3, fake.count("/channels"))
	assert.Equal(t, 2.0, counterValue(t, m.Registry(), "ytdash_api_key_attempts_total", "service", "youtube", "result", "failed"))
	assert.Equal(t, 1.0, counterValue(t, m.Registry(), "ytdash_api_key_attempts_total", "service", "youtube", "result", "ok"))
}

func TestYouTubeClient_AllKeysFail(t *testing.T) {
	c := newTestYouTube(t, &fakeYouTube{})

	_, err := c.ResolveChannel(context.Background(), "bad1,bad2", "@mkbhd")
	var exhausted *KeysExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
}

func TestYouTubeClient_MissingKeys(t *testing.T) {
	c := newTestYouTube(t, &fakeYouTube{})

	_, err := c.ResolveChannel(context.Background(), "  ", "@mkbhd")
	var missing *MissingCredentialError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "YouTube", missing.Service)
	assert.True(t, errors.Is(err, ErrNoKeys))
}

func TestYouTubeClient_ChannelNotFound(t *testing.T) {
	c := newTestYouTube(t, &fakeYouTube{noItems: true})

	_, err := c.ResolveChannel(context.Background(), "good", "@nobody")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestYouTubeClient_InvalidReference(t *testing.T) {
	fake := &fakeYouTube{}
	c := newTestYouTube(t, fake)

	_, err := c.ResolveChannel(context.Background(), "good", "not a channel")
	assert.Error(t, err)
	assert.Zero(t, fake.count("/channels"))
}

func TestYouTubeClient_CachesChannels(t *testing.T) {
	fake := &fakeYouTube{}
	c := newTestYouTube(t, fake, WithYouTubeCache(NewCache(1, nil)))

	_, err := c.ResolveChannel(context.Background(), "good", "@mkbhd")
	require.NoError(t, err)
	_, err = c.ResolveChannel(context.Background(), "good", "@mkbhd")
	require.NoError(t, err)
	_, err = c.ResolveChannel(context.Background(), "good", testChannelID)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.count("/channels"))
}

func TestYouTubeClient_ListVideoPages(t *testing.T) {
	fake := &fakeYouTube{}
	c := newTestYouTube(t, fake)

	var progress []int
	page, err := c.ListVideoPages(context.Background(), "good", "UUBJycsmduvYEL83R_U4JriQ", "", 5, func(n int) {
		progress = append(progress, n)
	})
	require.NoError(t, err)
	require.Len(t, page.Videos, 3)
	assert.Equal(t, []string{"vidaaaaaaa1", "vidaaaaaaa2", "vidaaaaaaa3"},
		[]string{page.Videos[0].ID, page.Videos[1].ID, page.Videos[2].ID})
	assert.Empty(t, page.NextPageToken)
	assert.Equal(t, []int{2, 3}, progress)

	v := page.Videos[0]
	assert.Equal(t, "PT8M3S", v.Duration)
	assert.Equal(t, uint64(1000), v.ViewCount)
	assert.Equal(t, []string{"tech"}, v.Tags)
	assert.Equal(t, 2025, v.PublishedAt.Year())
}

func TestYouTubeClient_ListVideoPagesStopsAtLimit(t *testing.T) {
	c := newTestYouTube(t, &fakeYouTube{})

	page, err := c.ListVideoPages(context.Background(), "good", "UUx", "", 1, nil)
	require.NoError(t, err)
	assert.Len(t, page.Videos, 2)
	assert.Equal(t, "p2", page.NextPageToken)
}

func TestYouTubeClient_ListVideoPagesKeepsPartialResults(t *testing.T) {
	c := newTestYouTube(t, &fakeYouTube{failPage: "p2"})

	page, err := c.ListVideoPages(context.Background(), "good", "UUx", "", 3, nil)
	assert.Error(t, err)
	assert.Len(t, page.Videos, 2)
	assert.Equal(t, "p2", page.NextPageToken, "the failed page can be retried")
}

func TestYouTubeClient_LogsRotatedKeys(t *testing.T) {
	var buf bytes.Buffer
	c := newTestYouTube(t, &fakeYouTube{}, WithYouTubeLogger(zerolog.New(&buf)))

	_, err := c.ResolveChannel(context.Background(), "bad1,good", "@mkbhd")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "API key failed, trying next")
	assert.Contains(t, buf.String(), `"component":"youtube"`)
}
