package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Storage keys of the on-device entries
const (
	KeySettings = "ytdash_settings_v1"
	KeySessions = "ytdash_sessions_v1"
	KeyAnalysis = "ytdash_analysis_v1"
)

// SQLiteStore is the on-device LocalStore, one row per entry key
type SQLiteStore struct {
	db     *sql.DB
	codec  *zstdCodec
	logger zerolog.Logger
}

// OpenSQLiteStore opens or creates the entry database at path
func OpenSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing local store: %w", err)
	}
	codec, err := newZstdCodec()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, codec: codec, logger: componentLogger(logger, ComponentStore)}, nil
}

func (s *SQLiteStore) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Load reads all entries. A missing or undecodable entry yields its default
// and only database errors are returned.
func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	st := DefaultState()

	raw, err := s.get(ctx, KeySettings)
	if err != nil {
		return st, err
	}
	if raw != nil {
		var settings Settings
		if err := json.Unmarshal(raw, &settings); err != nil {
			s.logger.Warn().Err(err).Str("key", KeySettings).Msg("corrupt entry, using defaults")
		} else {
			st.Settings = settings.Normalize()
		}
	}

	raw, err = s.get(ctx, KeySessions)
	if err != nil {
		return st, err
	}
	if raw != nil {
		var sessions []Session
		if err := s.codec.unmarshal(raw, &sessions); err != nil {
			s.logger.Warn().Err(err).Str("key", KeySessions).Msg("corrupt entry, using defaults")
		} else {
			st.Sessions = sessions
		}
	}

	raw, err = s.get(ctx, KeyAnalysis)
	if err != nil {
		return st, err
	}
	if raw != nil {
		var analysis AnalysisState
		if err := json.Unmarshal(raw, &analysis); err != nil {
			s.logger.Warn().Err(err).Str("key", KeyAnalysis).Msg("corrupt entry, using defaults")
		} else {
			st.Analysis = analysis.restored()
		}
	}
	return st, nil
}

// Save writes only the entries present in p, in one transaction
func (s *SQLiteStore) Save(ctx context.Context, p Patch) error {
	type entry struct {
		key   string
		value []byte
	}
	var entries []entry

	if p.Settings != nil {
		raw, err := json.Marshal(p.Settings.Normalize())
		if err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		entries = append(entries, entry{KeySettings, raw})
	}
	if p.Sessions != nil {
		sessions := *p.Sessions
		if sessions == nil {
			sessions = []Session{}
		}
		raw, err := s.codec.marshal(sessions)
		if err != nil {
			return fmt.Errorf("encoding sessions: %w", err)
		}
		entries = append(entries, entry{KeySessions, raw})
	}
	if p.Analysis != nil {
		raw, err := json.Marshal(p.Analysis)
		if err != nil {
			return fmt.Errorf("encoding analysis: %w", err)
		}
		entries = append(entries, entry{KeyAnalysis, raw})
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO entries (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			e.key, e.value, now); err != nil {
			return fmt.Errorf("writing %s: %w", e.key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing local store: %w", err)
	}
	s.logger.Debug().Int("entries", len(entries)).Msg("saved local state")
	return nil
}

// HasEntry reports whether key has been written
func (s *SQLiteStore) HasEntry(ctx context.Context, key string) (bool, error) {
	raw, err := s.get(ctx, key)
	return raw != nil, err
}

// Close releases the database
func (s *SQLiteStore) Close() error {
	s.codec.close()
	return s.db.Close()
}
