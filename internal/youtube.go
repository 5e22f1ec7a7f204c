package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	pageSize        = 50
	channelCacheTTL = time.Hour
)

// ErrChannelNotFound is returned when a channel reference matches nothing
var ErrChannelNotFound = errors.New("channel not found")

// ServiceFactory builds a YouTube Data API service for one API key
type ServiceFactory func(ctx context.Context, apiKey string) (*youtube.Service, error)

func defaultServiceFactory(ctx context.Context, apiKey string) (*youtube.Service, error) {
	return youtube.NewService(ctx, option.WithAPIKey(apiKey))
}

// VideoPage is one page of a channel's uploads
type VideoPage struct {
	Videos        []Video
	NextPageToken string
}

// YouTubeOption configures a YouTubeClient
type YouTubeOption func(*YouTubeClient)

// WithServiceFactory replaces how API services are created
func WithServiceFactory(f ServiceFactory) YouTubeOption {
	return func(c *YouTubeClient) { c.newService = f }
}

// WithRateLimit bounds API requests per second. Zero disables limiting.
func WithRateLimit(rps float64) YouTubeOption {
	return func(c *YouTubeClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithYouTubeCache sets the channel resolution cache
func WithYouTubeCache(cache Cache) YouTubeOption {
	return func(c *YouTubeClient) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithYouTubeMetrics sets the metrics sink
func WithYouTubeMetrics(m Metrics) YouTubeOption {
	return func(c *YouTubeClient) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithYouTubeLogger sets the client logger
func WithYouTubeLogger(l zerolog.Logger) YouTubeOption {
	return func(c *YouTubeClient) { c.logger = componentLogger(l, ComponentYouTube) }
}

// YouTubeClient reads channel metadata and uploads from the YouTube Data API.
// Every call rotates through the given key blob.
type YouTubeClient struct {
	newService ServiceFactory
	limiter    *rate.Limiter
	cache      Cache
	metrics    Metrics
	logger     zerolog.Logger
}

// NewYouTubeClient creates a client with default options
func NewYouTubeClient(opts ...YouTubeOption) *YouTubeClient {
	c := &YouTubeClient{
		newService: defaultServiceFactory,
		limiter:    rate.NewLimiter(rate.Limit(5), 1),
		cache:      noopCache{},
		metrics:    noopMetrics{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveChannel looks up a channel by id, @handle or URL
func (c *YouTubeClient) ResolveChannel(ctx context.Context, keys, input string) (ChannelInfo, error) {
	ref := ParseChannelRef(input)
	if !ref.IsValid() {
		return ChannelInfo{}, ref.Error
	}

	cacheKey := "channel:" + ref.Value
	if data, ok := c.cache.Get(cacheKey); ok {
		var info ChannelInfo
		if err := json.Unmarshal(data, &info); err == nil {
			c.logger.Debug().Str("channel", ref.Value).Msg("channel cache hit")
			return info, nil
		}
	}

	if len(ParseKeys(keys)) == 0 {
		return ChannelInfo{}, &MissingCredentialError{Service: "YouTube"}
	}

	info, err := WithKeys(c.logger.WithContext(ctx), keys, func(ctx context.Context, key string) (ChannelInfo, error) {
		svc, err := c.newService(ctx, key)
		if err != nil {
			return ChannelInfo{}, fmt.Errorf("creating youtube service: %w", err)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return ChannelInfo{}, err
		}
		call := svc.Channels.List([]string{"snippet", "statistics", "contentDetails"})
		if ref.Kind == ChannelRefID {
			call = call.Id(ref.Value)
		} else {
			call = call.ForHandle(ref.Value)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return ChannelInfo{}, fmt.Errorf("listing channel: %w", err)
		}
		if len(resp.Items) == 0 {
			return ChannelInfo{}, fmt.Errorf("%w: %s", ErrChannelNotFound, ref.Value)
		}
		return channelFromAPI(resp.Items[0]), nil
	}, keyObserver(c.metrics, "youtube"))
	if err != nil {
		return ChannelInfo{}, err
	}

	if data, err := json.Marshal(info); err == nil {
		c.cache.Set(cacheKey, data, channelCacheTTL)
		c.cache.Set("channel:"+info.ID, data, channelCacheTTL)
	}
	return info, nil
}

// ListVideos fetches one page of the uploads playlist with statistics and durations
func (c *YouTubeClient) ListVideos(ctx context.Context, keys, playlistID, pageToken string) (VideoPage, error) {
	if playlistID == "" {
		return VideoPage{}, errors.New("channel has no uploads playlist")
	}
	if len(ParseKeys(keys)) == 0 {
		return VideoPage{}, &MissingCredentialError{Service: "YouTube"}
	}

	page, err := WithKeys(c.logger.WithContext(ctx), keys, func(ctx context.Context, key string) (VideoPage, error) {
		svc, err := c.newService(ctx, key)
		if err != nil {
			return VideoPage{}, fmt.Errorf("creating youtube service: %w", err)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return VideoPage{}, err
		}
		call := svc.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(pageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		items, err := call.Context(ctx).Do()
		if err != nil {
			return VideoPage{}, fmt.Errorf("listing playlist items: %w", err)
		}

		ids := make([]string, 0, len(items.Items))
		for _, it := range items.Items {
			if it.ContentDetails != nil && it.ContentDetails.VideoId != "" {
				ids = append(ids, it.ContentDetails.VideoId)
			}
		}
		page := VideoPage{NextPageToken: items.NextPageToken}
		if len(ids) == 0 {
			return page, nil
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return VideoPage{}, err
		}
		details, err := svc.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
			Id(ids...).
			Context(ctx).
			Do()
		if err != nil {
			return VideoPage{}, fmt.Errorf("listing videos: %w", err)
		}
		byID := make(map[string]*youtube.Video, len(details.Items))
		for _, v := range details.Items {
			byID[v.Id] = v
		}
		// keep playlist order, which is newest first
		for _, id := range ids {
			if v, ok := byID[id]; ok {
				page.Videos = append(page.Videos, videoFromAPI(v))
			}
		}
		return page, nil
	}, keyObserver(c.metrics, "youtube"))
	if err != nil {
		return VideoPage{}, err
	}

	c.metrics.IncYouTubePages()
	c.logger.Debug().
		Str("playlist", playlistID).
		Int("videos", len(page.Videos)).
		Bool("more", page.NextPageToken != "").
		Msg("fetched video page")
	return page, nil
}

// ListVideoPages fetches up to pages pages starting at pageToken.
// onPage is called after each page with the running video count.
func (c *YouTubeClient) ListVideoPages(ctx context.Context, keys, playlistID, pageToken string, pages int, onPage func(int)) (VideoPage, error) {
	var out VideoPage
	token := pageToken
	for i := 0; i < max(pages, 1); i++ {
		page, err := c.ListVideos(ctx, keys, playlistID, token)
		if err != nil {
			if len(out.Videos) > 0 {
				out.NextPageToken = token
				return out, fmt.Errorf("fetching page %d: %w", i+1, err)
			}
			return VideoPage{}, err
		}
		out.Videos = append(out.Videos, page.Videos...)
		out.NextPageToken = page.NextPageToken
		token = page.NextPageToken
		if onPage != nil {
			onPage(len(out.Videos))
		}
		if token == "" {
			break
		}
	}
	return out, nil
}

func channelFromAPI(ch *youtube.Channel) ChannelInfo {
	info := ChannelInfo{ID: ch.Id}
	if sn := ch.Snippet; sn != nil {
		info.Title = sn.Title
		info.Handle = sn.CustomUrl
		info.Description = sn.Description
		info.Thumbnail = thumbnailURL(sn.Thumbnails)
	}
	if st := ch.Statistics; st != nil {
		info.SubscriberCount = st.SubscriberCount
		info.VideoCount = st.VideoCount
		info.ViewCount = st.ViewCount
	}
	if cd := ch.ContentDetails; cd != nil && cd.RelatedPlaylists != nil {
		info.UploadsPlaylistID = cd.RelatedPlaylists.Uploads
	}
	return info
}

func videoFromAPI(v *youtube.Video) Video {
	out := Video{ID: v.Id}
	if sn := v.Snippet; sn != nil {
		out.Title = sn.Title
		out.Description = sn.Description
		out.Thumbnail = thumbnailURL(sn.Thumbnails)
		out.Tags = sn.Tags
		if t, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
			out.PublishedAt = t
		}
	}
	if st := v.Statistics; st != nil {
		out.ViewCount = st.ViewCount
		out.LikeCount = st.LikeCount
		out.CommentCount = st.CommentCount
	}
	if cd := v.ContentDetails; cd != nil {
		out.Duration = cd.Duration
	}
	return out
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
