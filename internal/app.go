package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ErrRemoteDisabled is returned by sign-in when no remote store is configured
var ErrRemoteDisabled = errors.New("remote sync is not configured, set remote_dsn or DATABASE_URL")

// VideoSource reads channels and their uploads
type VideoSource interface {
	ResolveChannel(ctx context.Context, keys, input string) (ChannelInfo, error)
	ListVideoPages(ctx context.Context, keys, playlistID, pageToken string, pages int, onPage func(int)) (VideoPage, error)
}

// App holds the application state and dependencies
type App struct {
	config    *Config
	ui        UIManager
	logger    zerolog.Logger
	loggerSet bool
	logCloser io.Closer
	metrics   *PromMetrics
	cache     Cache

	videos    VideoSource
	assistant *Assistant
	prompts   *PromptManager

	local    LocalStore
	remote   RemoteStore
	sync     *SyncCoordinator
	identity *IdentityFile

	syncOpts []SyncOption
	now      func() time.Time

	// per-invocation provider selection, never persisted
	providerOverride ProviderName
	modelOverride    string
}

// AppOption customizes App creation
type AppOption func(*App)

// WithUI sets the user interface
func WithUI(ui UIManager) AppOption {
	return func(a *App) { a.ui = ui }
}

// WithLogger sets the logger instead of creating one from the configuration
func WithLogger(l zerolog.Logger) AppOption {
	return func(a *App) {
		a.logger = l
		a.loggerSet = true
	}
}

// WithLocalStore sets the on-device store instead of opening local_db
func WithLocalStore(s LocalStore) AppOption {
	return func(a *App) { a.local = s }
}

// WithRemoteStore sets the remote store instead of connecting to remote_dsn
func WithRemoteStore(s RemoteStore) AppOption {
	return func(a *App) { a.remote = s }
}

// WithVideoSource sets the YouTube client
func WithVideoSource(v VideoSource) AppOption {
	return func(a *App) { a.videos = v }
}

// WithAssistant sets the AI assistant
func WithAssistant(as *Assistant) AppOption {
	return func(a *App) { a.assistant = as }
}

// WithSyncOptions passes options to the sync coordinator
func WithSyncOptions(opts ...SyncOption) AppOption {
	return func(a *App) { a.syncOpts = append(a.syncOpts, opts...) }
}

// WithClock sets the time source
func WithClock(now func() time.Time) AppOption {
	return func(a *App) { a.now = now }
}

// NewApp initializes the application and restores the signed-in identity
func NewApp(ctx context.Context, config *Config, options ...AppOption) (*App, error) {
	app := &App{
		config:    config,
		logCloser: nopCloser{},
		metrics:   NewPromMetrics(),
		prompts:   NewPromptManager(config.ConfigDir),
		now:       time.Now,
	}
	app.logger = zerolog.Nop()
	for _, option := range options {
		option(app)
	}

	if app.ui == nil {
		app.ui = NewUIManager(config.Verbose, false)
	}
	if !app.loggerSet {
		logger, closer, err := NewLogger(config.LogLevel, config.LogFile, config.Verbose)
		if err != nil {
			app.ui.Warnf("%v\n", err)
		} else {
			app.logger, app.logCloser = logger, closer
		}
	}
	app.cache = NewCache(config.CacheSizeMB, app.metrics)

	if app.videos == nil {
		app.videos = NewYouTubeClient(
			WithRateLimit(config.YouTubeRPS),
			WithYouTubeCache(app.cache),
			WithYouTubeMetrics(app.metrics),
			WithYouTubeLogger(app.logger),
		)
	}
	if app.assistant == nil {
		app.assistant = NewAssistant(app.prompts,
			WithRequestTimeout(config.RequestTimeout),
			WithAssistantLogger(app.logger),
			WithAssistantMetrics(app.metrics),
		)
	}

	if app.local == nil {
		local, err := OpenSQLiteStore(config.LocalDB, app.logger)
		if err != nil {
			app.logCloser.Close()
			return nil, err
		}
		app.local = local
	}
	if app.remote == nil && config.RemoteDSN != "" {
		remote, err := ConnectPostgresStore(ctx, config.RemoteDSN, app.logger)
		if err != nil {
			// sync stays local until the database is reachable again
			app.ui.Warnf("remote sync unavailable: %v\n", err)
			app.logger.Warn().Err(err).Msg("connecting remote store")
		} else {
			app.remote = remote
		}
	}

	syncOpts := append([]SyncOption{
		WithSyncDelay(config.SyncDelay),
		WithMergeOnLogin(config.MergeOnLogin),
		WithSyncLogger(app.logger),
		WithSyncMetrics(app.metrics),
	}, app.syncOpts...)
	app.sync = NewSyncCoordinator(app.local, app.remote, syncOpts...)
	app.identity = NewIdentityFile(config.IdentityFile, app.logger)

	app.seedSettings(ctx)

	if ev, err := app.identity.Restore(); err != nil {
		app.ui.Warnf("%v\n", err)
	} else {
		app.sync.HandleIdentity(ctx, ev)
	}
	return app, nil
}

type entryChecker interface {
	HasEntry(ctx context.Context, key string) (bool, error)
}

// seedSettings writes the configured defaults on first run
func (app *App) seedSettings(ctx context.Context) {
	checker, ok := app.local.(entryChecker)
	if !ok {
		return
	}
	if has, err := checker.HasEntry(ctx, KeySettings); err != nil || has {
		return
	}
	if err := app.local.Save(ctx, SettingsPatch(app.config.SeedSettings())); err != nil {
		app.logger.Warn().Err(err).Msg("seeding settings")
	}
}

// Close flushes pending remote writes and releases every store
func (app *App) Close(ctx context.Context) error {
	var errs []error
	if err := app.sync.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := app.local.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing local store: %w", err))
	}
	if app.remote != nil {
		if err := app.remote.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing remote store: %w", err))
		}
	}
	if err := app.logCloser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Config returns the loaded configuration
func (app *App) Config() *Config { return app.config }

// UI returns the user interface
func (app *App) UI() UIManager { return app.ui }

// Metrics returns the metrics registry
func (app *App) Metrics() *PromMetrics { return app.metrics }

// Prompts returns the prompt manager
func (app *App) Prompts() *PromptManager { return app.prompts }

// Logger returns the application logger
func (app *App) Logger() zerolog.Logger { return app.logger }

// Settings returns the stored settings with unset key blobs filled from the environment
func (app *App) Settings(ctx context.Context) Settings {
	return app.effectiveSettings(app.sync.Read(ctx).Settings)
}

// StoredSettings returns the settings exactly as persisted
func (app *App) StoredSettings(ctx context.Context) Settings {
	return app.sync.Read(ctx).Settings
}

func (app *App) effectiveSettings(s Settings) Settings {
	if s.YouTubeKeys == "" {
		s.YouTubeKeys = app.config.YouTubeAPIKey
	}
	if s.GeminiKeys == "" {
		s.GeminiKeys = app.config.GeminiAPIKey
	}
	if s.OpenAIKeys == "" {
		s.OpenAIKeys = app.config.OpenAIAPIKey
	}
	if app.providerOverride != "" && app.providerOverride != s.Provider {
		s.Provider = app.providerOverride
		s.Model = ""
	}
	if app.modelOverride != "" {
		s.Model = app.modelOverride
	}
	return s.Normalize()
}

// OverrideProvider selects a provider and model for this process only
func (app *App) OverrideProvider(provider ProviderName, model string) {
	app.providerOverride = provider
	app.modelOverride = model
}

// UpdateSettings applies edit to the stored settings
func (app *App) UpdateSettings(ctx context.Context, edit func(*Settings) error) (Settings, error) {
	var s Settings
	err := app.sync.Update(ctx, func(st State) (Patch, error) {
		s = st.Settings
		if err := edit(&s); err != nil {
			return Patch{}, err
		}
		s = s.Normalize()
		return SettingsPatch(s), nil
	})
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Login signs in as email and reconciles with its remote record
func (app *App) Login(ctx context.Context, email string) (*Identity, error) {
	if app.remote == nil {
		return nil, ErrRemoteDisabled
	}
	ev, err := app.identity.SignIn(email, app.now())
	if err != nil {
		return nil, err
	}
	app.sync.HandleIdentity(ctx, ev)
	return ev.Identity, nil
}

// Logout flushes pending edits, forgets the identity and returns to on-device data
func (app *App) Logout(ctx context.Context) error {
	if err := app.sync.Flush(ctx); err != nil {
		app.ui.Warnf("last changes may not have reached the remote record: %v\n", err)
	}
	ev, err := app.identity.SignOut()
	if err != nil {
		return err
	}
	app.sync.HandleIdentity(ctx, ev)
	return nil
}

// SyncStatus reports the coordinator state
func (app *App) SyncStatus() SyncStatus {
	return app.sync.Status()
}

// SyncNow retries a failed reconciliation and sends pending edits
func (app *App) SyncNow(ctx context.Context) (SyncStatus, error) {
	app.sync.Reconcile(ctx)
	err := app.sync.Flush(ctx)
	return app.sync.Status(), err
}

// WatchIdentity forwards sign-in and sign-out from other processes to the coordinator
func (app *App) WatchIdentity(ctx context.Context) error {
	events := make(chan IdentityEvent)
	if err := app.identity.Watch(ctx, events); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				app.logger.Info().Str("event", ev.Kind.String()).Msg("identity changed")
				if ev.Kind == SignedOut {
					// the other process already flushed before signing out
					app.sync.HandleIdentity(ctx, ev)
					continue
				}
				if err := app.sync.Flush(ctx); err != nil {
					app.logger.Warn().Err(err).Msg("flushing before identity change")
				}
				app.sync.HandleIdentity(ctx, ev)
			}
		}
	}()
	return nil
}
