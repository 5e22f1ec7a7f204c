package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// accountNamespace derives stable user ids from account emails
var accountNamespace = uuid.MustParse("6f1b7d2e-4c5a-4e8b-9a0d-3f2c1b0a9e8d")

// Identity is the signed-in account
type Identity struct {
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	SignedInAt time.Time `json:"signedInAt"`
}

// IdentityEventKind is the kind of identity change
type IdentityEventKind int

const (
	SignedIn IdentityEventKind = iota
	SignedOut
	Restored
)

func (k IdentityEventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case Restored:
		return "restored"
	default:
		return "unknown"
	}
}

// IdentityEvent is an identity change. Identity is nil when nobody is signed in.
type IdentityEvent struct {
	Kind     IdentityEventKind
	Identity *Identity
}

// IdentityFile keeps the signed-in identity as a small JSON file
type IdentityFile struct {
	path   string
	logger zerolog.Logger
}

// NewIdentityFile returns an identity record stored at path
func NewIdentityFile(path string, logger zerolog.Logger) *IdentityFile {
	return &IdentityFile{path: path, logger: componentLogger(logger, ComponentApp)}
}

// Path returns the location of the identity record
func (f *IdentityFile) Path() string {
	return f.path
}

// Load returns the stored identity, or nil when signed out
func (f *IdentityFile) Load() (*Identity, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("decoding identity: %w", err)
	}
	if id.UserID == "" {
		return nil, nil
	}
	return &id, nil
}

// Restore emits the identity found at startup
func (f *IdentityFile) Restore() (IdentityEvent, error) {
	id, err := f.Load()
	if err != nil {
		return IdentityEvent{Kind: Restored}, err
	}
	return IdentityEvent{Kind: Restored, Identity: id}, nil
}

// SignIn records email as the signed-in account
func (f *IdentityFile) SignIn(email string, now time.Time) (IdentityEvent, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return IdentityEvent{}, fmt.Errorf("invalid email %q", email)
	}
	id := Identity{
		UserID:     UserIDForEmail(email),
		Email:      email,
		SignedInAt: now.UTC(),
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return IdentityEvent{}, fmt.Errorf("encoding identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return IdentityEvent{}, fmt.Errorf("creating identity directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return IdentityEvent{}, fmt.Errorf("writing identity: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return IdentityEvent{}, fmt.Errorf("writing identity: %w", err)
	}
	return IdentityEvent{Kind: SignedIn, Identity: &id}, nil
}

// SignOut removes the identity record
func (f *IdentityFile) SignOut() (IdentityEvent, error) {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return IdentityEvent{}, fmt.Errorf("removing identity: %w", err)
	}
	return IdentityEvent{Kind: SignedOut}, nil
}

// UserIDForEmail maps an account email to its remote record id
func UserIDForEmail(email string) string {
	return uuid.NewSHA1(accountNamespace, []byte(strings.ToLower(strings.TrimSpace(email)))).String()
}

// Watch emits identity changes made by other processes until ctx is done
func (f *IdentityFile) Watch(ctx context.Context, events chan<- IdentityEvent) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating identity watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
					continue
				}
				out, ok := f.translate(ev)
				if !ok {
					continue
				}
				select {
				case events <- out:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.logger.Warn().Err(err).Msg("identity watcher error")
			}
		}
	}()
	return nil
}

func (f *IdentityFile) translate(ev fsnotify.Event) (IdentityEvent, bool) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		f.logger.Debug().Str("op", ev.Op.String()).Msg("identity removed")
		return IdentityEvent{Kind: SignedOut}, true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		id, err := f.Load()
		if err != nil {
			f.logger.Warn().Err(err).Msg("reading changed identity")
			return IdentityEvent{}, false
		}
		if id == nil {
			return IdentityEvent{Kind: SignedOut}, true
		}
		return IdentityEvent{Kind: SignedIn, Identity: id}, true
	}
	return IdentityEvent{}, false
}
