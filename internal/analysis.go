package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrAnalysisRunning is returned when a competitive report is already being generated
var ErrAnalysisRunning = errors.New("a competitive analysis is already running")

// Chat asks a question about a saved channel and stores both turns in its history
func (app *App) Chat(ctx context.Context, ref, question string) (string, error) {
	session, err := app.FindSession(ctx, ref)
	if err != nil {
		return "", err
	}
	bar := app.ui.NewProgressBar(-1, "Thinking")
	answer, err := app.assistant.Chat(ctx, app.Settings(ctx), session, question)
	bar.Finish()
	if err != nil {
		return "", err
	}

	// append to the stored session so edits made while waiting are kept
	err = app.updateSessions(ctx, func(sessions []Session) ([]Session, error) {
		current, ok := sessionByID(sessions, session.ID)
		if !ok {
			return sessions, nil
		}
		current.ChatHistory = append(current.ChatHistory,
			ChatMessage{Role: RoleUser, Content: question},
			ChatMessage{Role: RoleAssistant, Content: answer},
		)
		current.SavedAt = app.now().UTC()
		return UpsertSession(sessions, current), nil
	})
	return answer, err
}

// ClearChat drops the chat history of a saved channel
func (app *App) ClearChat(ctx context.Context, ref string) error {
	return app.updateSessions(ctx, func(sessions []Session) ([]Session, error) {
		session, err := findSession(sessions, ref)
		if err != nil {
			return nil, err
		}
		session.ChatHistory = nil
		session.SavedAt = app.now().UTC()
		return UpsertSession(sessions, session), nil
	})
}

// AnalyzeVideo analyzes a video of a saved channel
func (app *App) AnalyzeVideo(ctx context.Context, videoArg string) (*VideoAnalysis, Video, error) {
	id, err := ParseVideoID(videoArg)
	if err != nil {
		return nil, Video{}, err
	}
	var (
		video   Video
		channel ChannelInfo
		found   bool
	)
	for _, s := range app.sync.Read(ctx).Sessions {
		for _, v := range s.Videos {
			if v.ID == id {
				video, channel, found = v, s.Channel, true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		return nil, Video{}, fmt.Errorf("video %s is not in a saved session, fetch its channel first", id)
	}

	bar := app.ui.NewProgressBar(-1, "Analyzing "+Truncate(video.Title, 30))
	analysis, err := app.assistant.AnalyzeVideo(ctx, app.Settings(ctx), channel, video)
	bar.Finish()
	if err != nil {
		return nil, video, err
	}
	return analysis, video, nil
}

// Analysis returns the current competitive analysis run
func (app *App) Analysis(ctx context.Context) AnalysisState {
	return app.sync.Read(ctx).Analysis
}

// ResetAnalysis returns the competitive analysis to idle
func (app *App) ResetAnalysis(ctx context.Context) error {
	return app.sync.Write(ctx, AnalysisPatch(AnalysisState{}))
}

// CompetitiveReport compares saved channels, all of them when refs is empty.
// The run is persisted while loading and its result is applied only if no
// newer run replaced it in the meantime.
func (app *App) CompetitiveReport(ctx context.Context, refs []string) (AnalysisState, error) {
	runID := uuid.NewString()
	var (
		previous AnalysisState
		sessions []Session
		ids      []string
	)
	// checking for a running analysis and starting this one is a single update
	err := app.sync.Update(ctx, func(st State) (Patch, error) {
		previous = st.Analysis
		if st.Analysis.IsLoading {
			return Patch{}, ErrAnalysisRunning
		}
		sessions = nil
		if len(refs) == 0 {
			sessions = sortedSessions(st.Sessions)
		} else {
			for _, ref := range refs {
				s, err := findSession(st.Sessions, ref)
				if err != nil {
					return Patch{}, err
				}
				sessions = append(sessions, s)
			}
		}
		if len(sessions) == 0 {
			return Patch{}, errors.New("no saved channels to compare, fetch some first")
		}
		ids = make([]string, len(sessions))
		for i, s := range sessions {
			ids[i] = s.ID
		}
		return AnalysisPatch(st.Analysis.Start(runID, ids, app.now().UTC())), nil
	})
	if err != nil {
		return previous, err
	}
	app.logger.Info().Str("run", runID).Int("channels", len(ids)).Msg("competitive analysis started")

	bar := app.ui.NewProgressBar(-1, fmt.Sprintf("Comparing %d channels", len(ids)))
	report, genErr := app.assistant.CompetitiveReport(ctx, app.Settings(ctx), sessions)
	bar.Finish()

	// record the outcome even when ctx was cancelled during generation
	ctx = context.WithoutCancel(ctx)
	var next AnalysisState
	err = app.sync.Update(ctx, func(st State) (Patch, error) {
		var applied bool
		if genErr != nil {
			next, applied = st.Analysis.Fail(runID, genErr.Error(), app.now().UTC())
		} else {
			next, applied = st.Analysis.Succeed(runID, report, app.now().UTC())
		}
		if !applied {
			app.logger.Info().Str("run", runID).Msg("discarding result of superseded analysis")
			return Patch{}, nil
		}
		return AnalysisPatch(next), nil
	})
	if err != nil {
		return next, err
	}
	return next, genErr
}
