package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrSessionNotFound is returned when no saved session matches a reference
	ErrSessionNotFound = errors.New("no saved session matches")
	// ErrNoMorePages is returned by LoadMore once a channel is fully fetched
	ErrNoMorePages = errors.New("all videos of this channel are already loaded")
)

// Sessions returns the saved library, newest first
func (app *App) Sessions(ctx context.Context) []Session {
	return sortedSessions(app.sync.Read(ctx).Sessions)
}

// FindSession resolves a channel id, @handle or title to a saved session
func (app *App) FindSession(ctx context.Context, ref string) (Session, error) {
	return findSession(app.sync.Read(ctx).Sessions, ref)
}

func findSession(sessions []Session, ref string) (Session, error) {
	ref = strings.TrimSpace(ref)
	if parsed := ParseChannelRef(ref); parsed.IsValid() {
		ref = parsed.Value
	}
	for _, s := range sessions {
		if s.ID == ref {
			return s, nil
		}
	}
	var matches []Session
	for _, s := range sessions {
		if strings.EqualFold(s.Channel.Handle, ref) || strings.EqualFold(s.Channel.Title, ref) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return Session{}, fmt.Errorf("%w %q", ErrSessionNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return Session{}, fmt.Errorf("%q matches %d sessions, use the channel id", ref, len(matches))
	}
}

// updateSessions replaces the library with what edit builds from the stored one
func (app *App) updateSessions(ctx context.Context, edit func([]Session) ([]Session, error)) error {
	return app.sync.Update(ctx, func(st State) (Patch, error) {
		sessions, err := edit(st.Sessions)
		if err != nil {
			return Patch{}, err
		}
		return SessionsPatch(sessions), nil
	})
}

func (app *App) fetchPages(ctx context.Context, keys string, info ChannelInfo, token string, pages int) (VideoPage, error) {
	bar := app.ui.NewProgressBar(-1, "Fetching "+Truncate(info.Title, 30))
	defer bar.Finish()
	return app.videos.ListVideoPages(ctx, keys, info.UploadsPlaylistID, token, pages, func(n int) {
		bar.Describe(fmt.Sprintf("Fetching %s (%d videos)", Truncate(info.Title, 30), n))
	})
}

// FetchChannel fetches a channel and its latest uploads and saves it as a session.
// An existing session of the channel is replaced in place, keeping its chat history.
func (app *App) FetchChannel(ctx context.Context, input string, pages int) (Session, error) {
	if pages <= 0 {
		pages = app.config.Pages
	}
	settings := app.Settings(ctx)

	info, err := app.videos.ResolveChannel(ctx, settings.YouTubeKeys, input)
	if err != nil {
		return Session{}, fmt.Errorf("resolving channel: %w", err)
	}
	app.ui.Verbose("Resolved %s to %s (%s)\n", input, info.Title, info.ID)

	page, err := app.fetchPages(ctx, settings.YouTubeKeys, info, "", pages)
	if err != nil && len(page.Videos) == 0 {
		return Session{}, fmt.Errorf("fetching videos: %w", err)
	}
	if err != nil {
		app.ui.Warnf("stopped early: %v\n", err)
	}

	session := Session{
		ID:            info.ID,
		SavedAt:       app.now().UTC(),
		Channel:       info,
		Videos:        page.Videos,
		NextPageToken: page.NextPageToken,
	}
	err = app.updateSessions(ctx, func(sessions []Session) ([]Session, error) {
		if prev, ok := sessionByID(sessions, info.ID); ok {
			session.ChatHistory = prev.ChatHistory
		}
		return UpsertSession(sessions, session), nil
	})
	if err != nil {
		return Session{}, err
	}
	app.logger.Info().Str("channel", info.ID).Int("videos", len(session.Videos)).Msg("fetched channel")
	return session, nil
}

// LoadMore appends further pages of uploads to a saved session
func (app *App) LoadMore(ctx context.Context, ref string, pages int) (Session, int, error) {
	if pages <= 0 {
		pages = app.config.Pages
	}
	session, err := app.FindSession(ctx, ref)
	if err != nil {
		return Session{}, 0, err
	}
	if session.NextPageToken == "" {
		return session, 0, ErrNoMorePages
	}
	settings := app.Settings(ctx)

	page, err := app.fetchPages(ctx, settings.YouTubeKeys, session.Channel, session.NextPageToken, pages)
	if err != nil && len(page.Videos) == 0 {
		return Session{}, 0, fmt.Errorf("fetching videos: %w", err)
	}
	if err != nil {
		app.ui.Warnf("stopped early: %v\n", err)
	}

	var added int
	err = app.updateSessions(ctx, func(sessions []Session) ([]Session, error) {
		current, ok := sessionByID(sessions, session.ID)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrSessionNotFound, ref)
		}
		added = current.AppendVideos(page.Videos)
		current.NextPageToken = page.NextPageToken
		current.SavedAt = app.now().UTC()
		session = current
		return UpsertSession(sessions, current), nil
	})
	if err != nil {
		return Session{}, 0, err
	}
	return session, added, nil
}

// RefreshSessions refetches the given sessions, or all of them when refs is empty.
// Failures are collected per channel and the remaining channels are still refreshed.
func (app *App) RefreshSessions(ctx context.Context, refs []string) ([]Session, error) {
	library := app.sync.Read(ctx).Sessions
	var targets []Session
	if len(refs) == 0 {
		targets = sortedSessions(library)
	} else {
		for _, ref := range refs {
			s, err := findSession(library, ref)
			if err != nil {
				return nil, err
			}
			targets = append(targets, s)
		}
	}

	settings := app.Settings(ctx)
	bar := app.ui.NewProgressBar(len(targets), "Refreshing channels")
	defer bar.Finish()

	var refreshed []Session
	var failures ItemErrors
	for i, old := range targets {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		bar.Describe("Refreshing " + Truncate(old.Channel.Title, 30))

		s, err := app.refreshOne(ctx, settings.YouTubeKeys, old)
		if err != nil {
			failures = append(failures, ItemError{ID: old.Channel.Title, Err: err})
			app.logger.Warn().Err(err).Str("channel", old.ID).Msg("refresh failed")
		} else {
			refreshed = append(refreshed, s)
		}
		bar.Set(i + 1)
	}

	if len(refreshed) > 0 {
		err := app.updateSessions(ctx, func(sessions []Session) ([]Session, error) {
			for i, s := range refreshed {
				// sessions deleted during the refresh stay deleted
				current, ok := sessionByID(sessions, s.ID)
				if !ok {
					continue
				}
				refreshed[i].ChatHistory = current.ChatHistory
				sessions = UpsertSession(sessions, refreshed[i])
			}
			return sessions, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return refreshed, failures.ErrOrNil()
}

func (app *App) refreshOne(ctx context.Context, keys string, old Session) (Session, error) {
	info, err := app.videos.ResolveChannel(ctx, keys, old.ID)
	if err != nil {
		return Session{}, err
	}
	pages := (len(old.Videos) + pageSize - 1) / pageSize
	page, err := app.videos.ListVideoPages(ctx, keys, info.UploadsPlaylistID, "", max(pages, 1), nil)
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:            info.ID,
		SavedAt:       app.now().UTC(),
		Channel:       info,
		Videos:        page.Videos,
		NextPageToken: page.NextPageToken,
		ChatHistory:   old.ChatHistory,
	}, nil
}

// DeleteSession removes a session from the library
func (app *App) DeleteSession(ctx context.Context, ref string) (Session, error) {
	var deleted Session
	err := app.updateSessions(ctx, func(sessions []Session) ([]Session, error) {
		s, err := findSession(sessions, ref)
		if err != nil {
			return nil, err
		}
		deleted = s
		rest, _ := RemoveSession(sessions, s.ID)
		return rest, nil
	})
	if err != nil {
		return Session{}, err
	}
	return deleted, nil
}

// ExportJSON writes the library as a JSON document
func (app *App) ExportJSON(ctx context.Context, w io.Writer) error {
	return ExportJSON(w, app.Sessions(ctx), app.now())
}

// ExportXLSX writes the library as a workbook
func (app *App) ExportXLSX(ctx context.Context, w io.Writer) error {
	return ExportXLSX(w, app.Sessions(ctx))
}

// ImportResult counts what an import changed
type ImportResult struct {
	Added    int
	Replaced int
}

// Import merges sessions from a JSON export. Imported sessions replace saved ones with the same id.
func (app *App) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	incoming, err := ImportJSON(r)
	if err != nil {
		return ImportResult{}, err
	}
	var res ImportResult
	err = app.updateSessions(ctx, func(existing []Session) ([]Session, error) {
		res = ImportResult{}
		seen := make(map[string]struct{}, len(existing))
		for _, s := range existing {
			seen[s.ID] = struct{}{}
		}
		for _, s := range incoming {
			if _, ok := seen[s.ID]; ok {
				res.Replaced++
			} else {
				res.Added++
				seen[s.ID] = struct{}{}
			}
		}
		return MergeImport(existing, incoming), nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}
