package internal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// PostgresStore is the RemoteStore holding one user_data row per account
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// ConnectPostgresStore creates a pgx pool and runs the embedded migrations
func ConnectPostgresStore(ctx context.Context, dsn string, logger zerolog.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("remote_dsn is required")
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing remote_dsn: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: componentLogger(logger, ComponentStore)}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	s.logger.Debug().Str("host", config.ConnConfig.Host).Msg("remote store connected")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("reading schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("executing %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// remoteRow is the JSONB column payload of a user_data row
type remoteRow struct {
	settings []byte
	sessions []byte
	analysis []byte
}

func encodeRemoteRow(st State) (remoteRow, error) {
	var row remoteRow
	var err error
	if row.settings, err = json.Marshal(st.Settings.Normalize()); err != nil {
		return row, fmt.Errorf("encoding settings: %w", err)
	}
	sessions := st.Sessions
	if sessions == nil {
		sessions = []Session{}
	}
	if row.sessions, err = json.Marshal(sessions); err != nil {
		return row, fmt.Errorf("encoding sessions: %w", err)
	}
	if row.analysis, err = json.Marshal(st.Analysis); err != nil {
		return row, fmt.Errorf("encoding analysis: %w", err)
	}
	return row, nil
}

func decodeRemoteRow(row remoteRow) (State, error) {
	st := DefaultState()
	if len(row.settings) > 0 {
		var settings Settings
		if err := json.Unmarshal(row.settings, &settings); err != nil {
			return st, fmt.Errorf("decoding settings: %w", err)
		}
		st.Settings = settings.Normalize()
	}
	if len(row.sessions) > 0 {
		if err := json.Unmarshal(row.sessions, &st.Sessions); err != nil {
			return st, fmt.Errorf("decoding sessions: %w", err)
		}
	}
	if len(row.analysis) > 0 {
		var analysis AnalysisState
		if err := json.Unmarshal(row.analysis, &analysis); err != nil {
			return st, fmt.Errorf("decoding analysis: %w", err)
		}
		st.Analysis = analysis.restored()
	}
	return st, nil
}

// Load returns the user's record or ErrRecordNotFound
func (s *PostgresStore) Load(ctx context.Context, userID string) (State, error) {
	var row remoteRow
	err := s.pool.QueryRow(ctx,
		`SELECT app_settings, library_sessions, analysis_state FROM user_data WHERE user_id = $1`,
		userID,
	).Scan(&row.settings, &row.sessions, &row.analysis)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, ErrRecordNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("loading user data: %w", err)
	}
	return decodeRemoteRow(row)
}

// Save overwrites the user's record with st
func (s *PostgresStore) Save(ctx context.Context, userID string, st State) error {
	row, err := encodeRemoteRow(st)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_data (user_id, app_settings, library_sessions, analysis_state, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			app_settings = EXCLUDED.app_settings,
			library_sessions = EXCLUDED.library_sessions,
			analysis_state = EXCLUDED.analysis_state,
			updated_at = now()`,
		userID, string(row.settings), string(row.sessions), string(row.analysis),
	)
	if err != nil {
		return fmt.Errorf("saving user data: %w", err)
	}
	return nil
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
