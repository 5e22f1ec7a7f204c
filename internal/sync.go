package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultSyncDelay is the trailing debounce before a remote flush
	DefaultSyncDelay   = 2 * time.Second
	defaultPushTimeout = 15 * time.Second
)

// Backing is one physical home of the application state
type Backing interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, p Patch) error
}

// LocalStore is the on-device Backing
type LocalStore interface {
	Backing
	Close() error
}

var (
	// ErrRecordNotFound is returned by a RemoteStore when the user has no record yet
	ErrRecordNotFound = errors.New("remote record not found")
	// ErrUnsentChanges is returned by Close when edits were made while the
	// remote record could not be read, so they were never sent anywhere
	ErrUnsentChanges = errors.New("edits made while the remote record could not be read were not saved anywhere, run `ytdash sync` once it is reachable")
)

// RemoteStore persists one whole State per user
type RemoteStore interface {
	Load(ctx context.Context, userID string) (State, error)
	Save(ctx context.Context, userID string, st State) error
	Close() error
}

// AfterFunc schedules f after d and returns a function that cancels it
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func stdAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// mirror is the in-memory Backing used while signed in
type mirror struct {
	state  State
	onSave func()
}

func (m *mirror) Load(context.Context) (State, error) {
	return m.state.Clone(), nil
}

func (m *mirror) Save(_ context.Context, p Patch) error {
	m.state = p.Apply(m.state)
	if m.onSave != nil {
		m.onSave()
	}
	return nil
}

// SyncStatus describes the coordinator for display
type SyncStatus struct {
	Authenticated bool
	UserID        string
	Email         string
	Reconciled    bool
	Pending       bool
	Unsent        bool
	RemoteEnabled bool
}

// SyncOption configures a SyncCoordinator
type SyncOption func(*SyncCoordinator)

// WithSyncDelay sets the debounce window of remote flushes
func WithSyncDelay(d time.Duration) SyncOption {
	return func(c *SyncCoordinator) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithMergeOnLogin merges sessions by newest savedAt on login instead of taking the remote record
func WithMergeOnLogin(enabled bool) SyncOption {
	return func(c *SyncCoordinator) { c.mergeOnLogin = enabled }
}

// WithTimer replaces the timer used for debouncing
func WithTimer(f AfterFunc) SyncOption {
	return func(c *SyncCoordinator) { c.afterFunc = f }
}

// WithSyncLogger sets the coordinator logger
func WithSyncLogger(l zerolog.Logger) SyncOption {
	return func(c *SyncCoordinator) { c.logger = componentLogger(l, ComponentSync) }
}

// WithSyncMetrics sets the metrics sink
func WithSyncMetrics(m Metrics) SyncOption {
	return func(c *SyncCoordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// SyncCoordinator routes reads and writes to the on-device store while
// anonymous and to an in-memory mirror of the remote record while signed in.
// Mirror writes are flushed to the remote store after a trailing debounce.
type SyncCoordinator struct {
	local        LocalStore
	remote       RemoteStore
	delay        time.Duration
	pushTimeout  time.Duration
	mergeOnLogin bool
	afterFunc    AfterFunc
	logger       zerolog.Logger
	metrics      Metrics

	mu         sync.Mutex
	user       *Identity
	mirror     *mirror
	reconciled bool
	pending    bool
	unsent     bool
	edits      uint64
	stop       func() bool
	gen        uint64
	epoch      uint64
}

// NewSyncCoordinator creates a coordinator. remote may be nil, in which case
// identity events are ignored and all state stays on the device.
func NewSyncCoordinator(local LocalStore, remote RemoteStore, opts ...SyncOption) *SyncCoordinator {
	c := &SyncCoordinator{
		local:       local,
		remote:      remote,
		delay:       DefaultSyncDelay,
		pushTimeout: defaultPushTimeout,
		afterFunc:   stdAfterFunc,
		logger:      zerolog.Nop(),
		metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated reports whether reads and writes go to the remote mirror
func (c *SyncCoordinator) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user != nil
}

// Status returns a snapshot of the coordinator state
func (c *SyncCoordinator) Status() SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := SyncStatus{
		Authenticated: c.user != nil,
		Reconciled:    c.reconciled,
		Pending:       c.pending,
		Unsent:        c.unsent,
		RemoteEnabled: c.remote != nil,
	}
	if c.user != nil {
		st.UserID = c.user.UserID
		st.Email = c.user.Email
	}
	return st
}

func (c *SyncCoordinator) backing() Backing {
	if c.mirror != nil {
		return c.mirror
	}
	return c.local
}

// Read returns the current state for display. Storage failures are logged
// and the defaults are returned in their place, so callers that write back
// what they read must use Update instead.
func (c *SyncCoordinator) Read(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.backing().Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("reading state failed, using defaults")
		return DefaultState()
	}
	return st
}

// Write applies p. Anonymous writes hit the on-device store immediately and
// return its error. Signed-in writes update the mirror and schedule a flush.
func (c *SyncCoordinator) Write(ctx context.Context, p Patch) error {
	if p.Empty() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backing().Save(ctx, p); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// Update loads the current state, passes it to edit and writes the patch
// edit returns. Load and write happen under one lock, so concurrent updates
// never overwrite each other. A failed load cancels the write.
func (c *SyncCoordinator) Update(ctx context.Context, edit func(State) (Patch, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.backing().Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("reading state failed, update cancelled")
		return fmt.Errorf("loading state: %w", err)
	}
	p, err := edit(st)
	if err != nil || p.Empty() {
		return err
	}
	if err := c.backing().Save(ctx, p); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// scheduleLocked restarts the debounce timer. c.mu must be held.
func (c *SyncCoordinator) scheduleLocked() {
	c.edits++
	if !c.reconciled {
		c.unsent = true
		return
	}
	c.cancelLocked()
	c.gen++
	gen := c.gen
	c.pending = true
	c.stop = c.afterFunc(c.delay, func() { c.fire(gen) })
}

// cancelLocked stops the pending timer without flushing. c.mu must be held.
func (c *SyncCoordinator) cancelLocked() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.pending = false
}

func (c *SyncCoordinator) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.pending || c.user == nil {
		c.mu.Unlock()
		return
	}
	userID, snapshot := c.takeLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.pushTimeout)
	defer cancel()
	_ = c.push(ctx, userID, snapshot)
}

// takeLocked clears the pending flush and returns what it would have sent
func (c *SyncCoordinator) takeLocked() (string, State) {
	c.stop = nil
	c.pending = false
	c.gen++
	return c.user.UserID, c.mirror.state.Clone()
}

func (c *SyncCoordinator) push(ctx context.Context, userID string, st State) error {
	err := c.remote.Save(ctx, userID, st)
	c.metrics.IncFlush(err == nil)
	if err != nil {
		c.logger.Error().Err(err).Str("user", userID).Msg("remote flush failed")
		return fmt.Errorf("flushing remote state: %w", err)
	}
	c.logger.Debug().Str("user", userID).Int("sessions", len(st.Sessions)).Msg("remote flush")
	return nil
}

// Flush sends a pending remote write now instead of waiting for the timer
func (c *SyncCoordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	if !c.pending || c.user == nil {
		c.mu.Unlock()
		return nil
	}
	if c.stop != nil {
		c.stop()
	}
	userID, snapshot := c.takeLocked()
	c.mu.Unlock()
	return c.push(ctx, userID, snapshot)
}

// Close flushes pending work and stops the timer. It reports ErrUnsentChanges
// when the account never reconciled and the mirror holds edits.
func (c *SyncCoordinator) Close(ctx context.Context) error {
	err := c.Flush(ctx)
	c.mu.Lock()
	c.cancelLocked()
	if c.user != nil && !c.reconciled && c.unsent {
		c.logger.Warn().Str("user", c.user.UserID).Msg("closing with unsent changes")
		err = errors.Join(err, ErrUnsentChanges)
	}
	c.mu.Unlock()
	return err
}

// HandleIdentity reacts to a sign-in, restore or sign-out signal
func (c *SyncCoordinator) HandleIdentity(ctx context.Context, ev IdentityEvent) {
	if c.remote == nil {
		if ev.Identity != nil {
			c.logger.Debug().Str("event", ev.Kind.String()).Msg("remote sync disabled, ignoring identity")
		}
		return
	}

	switch ev.Kind {
	case SignedOut:
		c.signOut()
	case SignedIn, Restored:
		if ev.Identity == nil {
			c.signOut()
			return
		}
		c.mu.Lock()
		same := c.user != nil && c.user.UserID == ev.Identity.UserID
		c.mu.Unlock()
		if same {
			return
		}
		c.signOut()
		c.reconcile(ctx, *ev.Identity)
	}
}

// Reconcile retries the login reconciliation for the current user if it has not succeeded yet
func (c *SyncCoordinator) Reconcile(ctx context.Context) {
	c.mu.Lock()
	if c.user == nil || c.reconciled {
		c.mu.Unlock()
		return
	}
	user := *c.user
	c.mu.Unlock()
	c.reconcile(ctx, user)
}

func (c *SyncCoordinator) signOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user != nil {
		c.logger.Info().Str("user", c.user.UserID).Msg("signed out, discarding mirror")
	}
	c.cancelLocked()
	c.gen++
	c.epoch++
	c.user = nil
	c.mirror = nil
	c.reconciled = false
	c.unsent = false
}

func (c *SyncCoordinator) reconcile(ctx context.Context, user Identity) {
	c.mu.Lock()
	if c.user == nil {
		localState, err := c.local.Load(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("reading on-device state failed, using defaults")
			localState = DefaultState()
		}
		c.user = &user
		c.mirror = &mirror{state: localState, onSave: c.scheduleLocked}
		c.reconciled = false
	}
	localState := c.mirror.state.Clone()
	epoch, edits := c.epoch, c.edits
	c.mu.Unlock()

	log := c.logger.With().Str("user", user.UserID).Logger()

	remoteState, err := c.remote.Load(ctx, user.UserID)
	if errors.Is(err, ErrRecordNotFound) {
		seedErr := c.remote.Save(ctx, user.UserID, localState)
		if seedErr != nil {
			log.Error().Err(seedErr).Msg("seeding remote record failed")
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if epoch != c.epoch {
			return
		}
		c.reconciled = true
		c.unsent = false
		c.metrics.IncReconcile(ReconcileSeeded)
		log.Info().Msg("seeded remote record from device")
		if c.edits != edits {
			// edits that arrived while the seed was in flight
			c.scheduleLocked()
		}
		return
	}
	if err != nil {
		c.metrics.IncReconcile(ReconcileFailed)
		log.Error().Err(err).Msg("loading remote record failed, staying unreconciled")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	next := remoteState
	outcome := ReconcileRemote
	if c.mergeOnLogin {
		next.Sessions = MergeNewest(localState.Sessions, remoteState.Sessions)
		outcome = ReconcileMerged
	}
	c.mirror.state = next
	c.reconciled = true
	c.unsent = false
	c.metrics.IncReconcile(outcome)
	log.Info().Str("outcome", outcome).Int("sessions", len(next.Sessions)).Msg("reconciled with remote record")
	if c.mergeOnLogin {
		c.scheduleLocked()
	}
}
