package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	chanA = "UCaaaaaaaaaaaaaaaaaaaaaa"
	chanB = "UCbbbbbbbbbbbbbbbbbbbbbb"
)

// fakeVideoSource serves fixed channels. Each channel has two pages.
type fakeVideoSource struct {
	mu       sync.Mutex
	channels map[string]ChannelInfo
	videos   map[string][]Video
	fail     map[string]error
	resolves int
}

func newFakeVideoSource() *fakeVideoSource {
	f := &fakeVideoSource{
		channels: map[string]ChannelInfo{},
		videos:   map[string][]Video{},
		fail:     map[string]error{},
	}
	for i, id := range []string{chanA, chanB} {
		info := ChannelInfo{ID: id, Title: "Channel " + id[2:3], Handle: "@chan" + id[2:3], UploadsPlaylistID: "UU" + id[2:]}
		f.channels[id] = info
		f.channels[info.Handle] = info
		f.videos[info.UploadsPlaylistID] = []Video{testVideo(i*10+1, 100), testVideo(i*10+2, 200), testVideo(i*10+3, 300)}
	}
	return f
}

func (f *fakeVideoSource) ResolveChannel(_ context.Context, _, input string) (ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	if err, ok := f.fail[input]; ok {
		return ChannelInfo{}, err
	}
	info, ok := f.channels[input]
	if !ok {
		return ChannelInfo{}, ErrChannelNotFound
	}
	return info, nil
}

// ListVideoPages serves two videos on the first page and the rest on the second
func (f *fakeVideoSource) ListVideoPages(_ context.Context, _, playlistID, pageToken string, pages int, onPage func(int)) (VideoPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.videos[playlistID]
	var out VideoPage
	if pageToken == "" {
		out.Videos = append(out.Videos, all[:2]...)
		out.NextPageToken = "page2"
		pages--
	}
	if pages > 0 {
		out.Videos = append(out.Videos, all[2:]...)
		out.NextPageToken = ""
	}
	if onPage != nil {
		onPage(len(out.Videos))
	}
	return out, nil
}

type testApp struct {
	*App
	videos *fakeVideoSource
	gens   *fakeGenerators
	remote *fakeRemote
	clock  *fakeClock
}

type testAppOptions struct {
	remote     *fakeRemote
	local      LocalStore
	configure  func(*Config)
	generators *fakeGenerators
}

func newTestApp(t *testing.T, o testAppOptions) *testApp {
	t.Helper()
	d := newTestDirs(t)
	config, err := d.load()
	require.NoError(t, err)
	config.YouTubeAPIKey = "env-youtube"
	if o.configure != nil {
		o.configure(config)
	}
	if o.generators == nil {
		o.generators = &fakeGenerators{replies: map[string]string{}}
	}

	ta := &testApp{videos: newFakeVideoSource(), gens: o.generators, remote: o.remote, clock: &fakeClock{}}
	now := t0
	opts := []AppOption{
		WithUI(NewUIManagerWithWriters(io.Discard, io.Discard, false, true, false)),
		WithLogger(zerolog.Nop()),
		WithVideoSource(ta.videos),
		WithAssistant(NewAssistant(NewPromptManager(config.ConfigDir), WithGeneratorFactory(ta.gens.factory))),
		WithSyncOptions(WithTimer(ta.clock.AfterFunc)),
		WithClock(func() time.Time {
			now = now.Add(time.Minute)
			return now
		}),
	}
	if o.remote != nil {
		opts = append(opts, WithRemoteStore(o.remote))
	}
	if o.local != nil {
		opts = append(opts, WithLocalStore(o.local))
	}
	app, err := NewApp(context.Background(), config, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	ta.App = app
	return ta
}

func TestApp_FirstRunSeedsSettingsFromConfig(t *testing.T) {
	a := newTestApp(t, testAppOptions{configure: func(c *Config) {
		c.DefaultProvider = "openai"
		c.DefaultModel = "gpt-4o"
	}})
	ctx := context.Background()

	stored := a.StoredSettings(ctx)
	assert.Equal(t, ProviderOpenAI, stored.Provider)
	assert.Equal(t, "gpt-4o", stored.Model)
	assert.Empty(t, stored.YouTubeKeys)
	assert.Equal(t, "env-youtube", a.Settings(ctx).YouTubeKeys, "environment keys fill unset key blobs")

	_, err := a.UpdateSettings(ctx, func(s *Settings) error {
		s.YouTubeKeys = "stored-key"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stored-key", a.Settings(ctx).YouTubeKeys)
}

func TestApp_ProviderOverrideIsNotPersisted(t *testing.T) {
	a := newTestApp(t, testAppOptions{})
	ctx := context.Background()

	a.OverrideProvider(ProviderOpenAI, "")
	assert.Equal(t, ProviderOpenAI, a.Settings(ctx).Provider)
	assert.Equal(t, DefaultModel(ProviderOpenAI), a.Settings(ctx).Model)
	assert.Equal(t, ProviderGemini, a.StoredSettings(ctx).Provider)
}

func TestApp_FetchChannelKeepsChatHistory(t *testing.T) {
	a := newTestApp(t, testAppOptions{})
	ctx := context.Background()

	s, err := a.FetchChannel(ctx, "@chana", 1)
	require.NoError(t, err)
	assert.Equal(t, chanA, s.ID)
	assert.Len(t, s.Videos, 2)
	assert.Equal(t, "page2", s.NextPageToken)

	s.ChatHistory = []ChatMessage{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}}
	require.NoError(t, a.updateSessions(ctx, func(sessions []Session) ([]Session, error) {
		return UpsertSession(sessions, s), nil
	}))

	again, err := a.FetchChannel(ctx, chanA, 2)
	require.NoError(t, err)
	assert.Len(t, again.Videos, 3)
	assert.Len(t, again.ChatHistory, 2)
	assert.Len(t, a.Sessions(ctx), 1)
}

func TestApp_FetchChannelNotFound(t *testing.T) {
	a := newTestApp(t, testAppOptions{})
	_, err := a.FetchChannel(context.Background(), "@nobody", 1)
	assert.ErrorIs(t, err, ErrChannelNotFound)
	assert.Empty(t, a.Sessions(context.Background()))
}

func TestApp_LoadMore(t *testing.T) {
	a := newTestApp(t, testAppOptions{})
	ctx := context.Background()
	_, err := a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)

	s, added, err := a.LoadMore(ctx, "@chana", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Len(t, s.Videos, 3)
	assert.Empty(t, s.NextPageToken)

	_, _, err = a.LoadMore(ctx, chanA, 1)
	assert.ErrorIs(t, err, ErrNoMorePages)
}

func TestApp_FindSession(t *testing.T) {
	a := newTestApp(t, testAppOptions{})
	ctx := context.Background()
	_, err := a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)

	for _, ref := range []string{chanA, "@chana", "@CHANA", "channel a", "https://www.youtube.com/channel/" + chanA} {
		s, err := a.FindSession(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, chanA, s.ID)
	}
	_, err = a.FindSession(ctx, "@chanb")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestApp_RefreshCollectsFailures(t *testing.T) {
	a := newTestApp(t, testAppOptions{})
	ctx := context.Background()
	_, err := a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)
	_, err = a.FetchChannel(ctx, chanB, 1)
	require.NoError(t, err)

	a.videos.fail[chanA] = errors.New("quota exceeded")
	refreshed, err := a.RefreshSessions(ctx, nil)

	var failures ItemErrors
	require.ErrorAs(t, err, &failures)
	require.Len(t, failures, 1)
	assert.Equal(t, "Channel a", failures[0].ID)
	require.Len(t, refreshed, 1)
	assert.Equal(t, chanB, refreshed[0].ID)
	assert.Len(t, a.Sessions(ctx), 2)
}

func TestApp_DeleteSession(t *testing.T) {
	a := newTestApp(t, testAppOptions{})
	ctx := context.Background()
	_, err := a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)

	deleted, err := a.DeleteSession(ctx, "@chana")
	require.NoError(t, err)
	assert.Equal(t, chanA, deleted.ID)
	assert.Empty(t, a.Sessions(ctx))

	_, err = a.DeleteSession(ctx, "@chana")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestApp_ExportImport(t *testing.T) {
	src := newTestApp(t, testAppOptions{})
	ctx := context.Background()
	_, err := src.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)
	_, err = src.FetchChannel(ctx, chanB, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.ExportJSON(ctx, &buf))

	dst := newTestApp(t, testAppOptions{})
	_, err = dst.FetchChannel(ctx, chanA, 2)
	require.NoError(t, err)

	res, err := dst.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Added: 1, Replaced: 1}, res)

	a, err := dst.FindSession(ctx, chanA)
	require.NoError(t, err)
	assert.Len(t, a.Videos, 2, "the imported copy replaces the newer local one")

	_, err = dst.Import(ctx, strings.NewReader("nope"))
	assert.Error(t, err)
	assert.Len(t, dst.Sessions(ctx), 2)
}

func TestApp_ChatStoresBothTurns(t *testing.T) {
	gens := &fakeGenerators{replies: map[string]string{"gk": "Shorter titles."}}
	a := newTestApp(t, testAppOptions{generators: gens, configure: func(c *Config) { c.GeminiAPIKey = "gk" }})
	ctx := context.Background()
	fetched, err := a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)

	answer, err := a.Chat(ctx, "@chana", "What should I change?")
	require.NoError(t, err)
	assert.Equal(t, "Shorter titles.", answer)

	s, err := a.FindSession(ctx, chanA)
	require.NoError(t, err)
	assert.Equal(t, []ChatMessage{
		{Role: RoleUser, Content: "What should I change?"},
		{Role: RoleAssistant, Content: "Shorter titles."},
	}, s.ChatHistory)
	assert.True(t, s.SavedAt.After(fetched.SavedAt))

	require.NoError(t, a.ClearChat(ctx, chanA))
	s, err = a.FindSession(ctx, chanA)
	require.NoError(t, err)
	assert.Empty(t, s.ChatHistory)
}

func TestApp_AnalyzeVideoRequiresSavedVideo(t *testing.T) {
	gens := &fakeGenerators{replies: map[string]string{"gk": validAnalysis}}
	a := newTestApp(t, testAppOptions{generators: gens, configure: func(c *Config) { c.GeminiAPIKey = "gk" }})
	ctx := context.Background()

	_, _, err := a.AnalyzeVideo(ctx, "vid00000001")
	assert.Error(t, err)

	_, err = a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)
	analysis, video, err := a.AnalyzeVideo(ctx, "https://www.youtube.com/watch?v=vid00000001")
	require.NoError(t, err)
	assert.Equal(t, "vid00000001", video.ID)
	assert.True(t, analysis.Verification.IsMatch)
}

// hookGenerators runs hook before answering
type hookGenerators struct {
	reply string
	err   error
	hook  func()
}

func (h *hookGenerators) factory(ProviderName, string) TextGenerator { return h }

func (h *hookGenerators) Generate(context.Context, GenerateRequest) (string, error) {
	if h.hook != nil {
		h.hook()
	}
	return h.reply, h.err
}

func newReportApp(t *testing.T, gen *hookGenerators) *testApp {
	t.Helper()
	a := newTestApp(t, testAppOptions{configure: func(c *Config) { c.GeminiAPIKey = "gk" }})
	a.assistant = NewAssistant(a.Prompts(), WithGeneratorFactory(gen.factory))
	ctx := context.Background()
	_, err := a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)
	_, err = a.FetchChannel(ctx, chanB, 1)
	require.NoError(t, err)
	return a
}

func TestApp_CompetitiveReport(t *testing.T) {
	gen := &hookGenerators{reply: "# Report"}
	a := newReportApp(t, gen)
	ctx := context.Background()

	var during AnalysisState
	gen.hook = func() { during = a.Analysis(ctx) }

	run, err := a.CompetitiveReport(ctx, nil)
	require.NoError(t, err)
	assert.True(t, during.IsLoading, "the run is persisted as loading while generating")
	assert.ElementsMatch(t, []string{chanA, chanB}, during.ChannelIDs)
	assert.True(t, run.IsComplete)
	assert.Equal(t, "# Report", run.Result)
	stored := a.Analysis(ctx)
	assert.Equal(t, run.RunID, stored.RunID)
	assert.Equal(t, "# Report", stored.Result)

	require.NoError(t, a.ResetAnalysis(ctx))
	assert.True(t, a.Analysis(ctx).Idle())
}

func TestApp_CompetitiveReportFailureIsRecorded(t *testing.T) {
	gen := &hookGenerators{err: errors.New("model overloaded")}
	a := newReportApp(t, gen)
	ctx := context.Background()

	run, err := a.CompetitiveReport(ctx, []string{"@chana"})
	assert.Error(t, err)
	assert.True(t, run.IsComplete)
	assert.Contains(t, a.Analysis(ctx).Error, "model overloaded")
	assert.Equal(t, []string{chanA}, a.Analysis(ctx).ChannelIDs)
}

func TestApp_CompetitiveReportDiscardsSupersededResult(t *testing.T) {
	gen := &hookGenerators{reply: "late report"}
	a := newReportApp(t, gen)
	ctx := context.Background()
	gen.hook = func() { require.NoError(t, a.ResetAnalysis(ctx)) }

	_, err := a.CompetitiveReport(ctx, nil)
	require.NoError(t, err)
	assert.True(t, a.Analysis(ctx).Idle(), "a reset during generation wins")
}

func TestApp_CompetitiveReportRejectsConcurrentRun(t *testing.T) {
	gen := &hookGenerators{reply: "r"}
	a := newReportApp(t, gen)
	ctx := context.Background()

	var nested error
	gen.hook = func() {
		gen.hook = nil
		_, nested = a.CompetitiveReport(ctx, nil)
	}
	_, err := a.CompetitiveReport(ctx, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrAnalysisRunning)
}

func TestApp_LoginWithoutRemote(t *testing.T) {
	a := newTestApp(t, testAppOptions{})
	_, err := a.Login(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, ErrRemoteDisabled)
	assert.False(t, a.SyncStatus().Authenticated)
}

func TestApp_LoginSyncAndLogout(t *testing.T) {
	remote := newFakeRemote()
	a := newTestApp(t, testAppOptions{remote: remote})
	ctx := context.Background()
	_, err := a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)

	id, err := a.Login(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", id.Email)
	st := a.SyncStatus()
	assert.True(t, st.Authenticated)
	assert.True(t, st.Reconciled)
	require.Equal(t, 1, remote.saveCount(), "new account is seeded from the device")

	_, err = a.FetchChannel(ctx, chanB, 1)
	require.NoError(t, err)
	assert.True(t, a.SyncStatus().Pending)

	st, err = a.SyncNow(ctx)
	require.NoError(t, err)
	assert.False(t, st.Pending)
	require.Equal(t, 2, remote.saveCount())
	assert.Len(t, remote.saves[1].Sessions, 2)

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.SyncStatus().Authenticated)
	assert.Equal(t, []string{chanA}, sessionIDs(a.Sessions(ctx)), "device data is back after logout")
}

func TestApp_RestoresIdentityOnStart(t *testing.T) {
	remote := newFakeRemote()
	d := newTestDirs(t)
	config, err := d.load()
	require.NoError(t, err)

	_, err = NewIdentityFile(config.IdentityFile, zerolog.Nop()).SignIn("bob@example.com", t0)
	require.NoError(t, err)
	remote.records[UserIDForEmail("bob@example.com")] = State{
		Settings: DefaultSettings(),
		Sessions: []Session{testSession("remote", t0)},
	}

	app, err := NewApp(context.Background(), config,
		WithUI(NewUIManagerWithWriters(io.Discard, io.Discard, false, true, false)),
		WithLogger(zerolog.Nop()),
		WithRemoteStore(remote),
		WithVideoSource(newFakeVideoSource()),
	)
	require.NoError(t, err)
	defer app.Close(context.Background())

	assert.Equal(t, "bob@example.com", app.SyncStatus().Email)
	assert.Equal(t, []string{"remote"}, sessionIDs(app.Sessions(context.Background())))
}

func TestApp_FailedLoadDoesNotWipeLibrary(t *testing.T) {
	local := newMemLocal(DefaultState())
	a := newTestApp(t, testAppOptions{local: local})
	ctx := context.Background()
	_, err := a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)

	// the settings read and the library update both hit a failing store
	local.failLoads = 2
	_, err = a.FetchChannel(ctx, chanB, 1)
	assert.Error(t, err)
	assert.Equal(t, []string{chanA}, sessionIDs(a.Sessions(ctx)))

	local.failLoads = 1
	_, err = a.DeleteSession(ctx, chanA)
	assert.Error(t, err)
	assert.Len(t, a.Sessions(ctx), 1)
}

func TestApp_FailedLoadKeepsStoredKeys(t *testing.T) {
	local := newMemLocal(DefaultState())
	a := newTestApp(t, testAppOptions{local: local})
	ctx := context.Background()
	_, err := a.UpdateSettings(ctx, func(s *Settings) error {
		s.GeminiKeys = "g1,g2"
		return nil
	})
	require.NoError(t, err)

	local.failLoads = 1
	_, err = a.UpdateSettings(ctx, func(s *Settings) error {
		s.Theme = ThemeDark
		return nil
	})
	assert.Error(t, err)
	stored := a.StoredSettings(ctx)
	assert.Equal(t, "g1,g2", stored.GeminiKeys)
	assert.Equal(t, ThemeSystem, stored.Theme)
}

func TestApp_ConcurrentFetchesKeepBothSessions(t *testing.T) {
	a := newTestApp(t, testAppOptions{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{chanA, chanB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.FetchChannel(ctx, id, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.ElementsMatch(t, []string{chanA, chanB}, sessionIDs(a.Sessions(ctx)))
}

func TestApp_ConcurrentChatsKeepEveryTurn(t *testing.T) {
	gens := &fakeGenerators{replies: map[string]string{"gk": "answer"}}
	a := newTestApp(t, testAppOptions{generators: gens, configure: func(c *Config) { c.GeminiAPIKey = "gk" }})
	ctx := context.Background()
	_, err := a.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, q := range []string{"first?", "second?", "third?"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Chat(ctx, chanA, q)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := a.FindSession(ctx, chanA)
	require.NoError(t, err)
	assert.Len(t, s.ChatHistory, 6)
}

func TestApp_CloseWarnsAboutUnsentChanges(t *testing.T) {
	remote := newFakeRemote()
	remote.loadErr = errors.New("database unavailable")
	local := newMemLocal(DefaultState())
	d := newTestDirs(t)
	config, err := d.load()
	require.NoError(t, err)
	app, err := NewApp(context.Background(), config,
		WithUI(NewUIManagerWithWriters(io.Discard, io.Discard, false, true, false)),
		WithLogger(zerolog.Nop()),
		WithLocalStore(local),
		WithRemoteStore(remote),
		WithVideoSource(newFakeVideoSource()),
		WithSyncOptions(WithTimer((&fakeClock{}).AfterFunc)),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = app.Login(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, app.SyncStatus().Reconciled)
	_, err = app.FetchChannel(ctx, chanA, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, app.Close(ctx), ErrUnsentChanges)
}
