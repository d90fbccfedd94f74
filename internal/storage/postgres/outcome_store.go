// Package postgres persists outcomes to Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

const defaultTable = "outcomes"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for outcome rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// OutcomeStore writes one row per finished job. It implements harvest.Sink.
type OutcomeStore struct {
	pool  execCloser
	table string
	newID func() (uuid.UUID, error)
}

// NewOutcomeStore connects to Postgres using cfg.
func NewOutcomeStore(ctx context.Context, cfg Config) (*OutcomeStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewOutcomeStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewOutcomeStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewOutcomeStoreWithPool(pool execCloser, table string) (*OutcomeStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &OutcomeStore{pool: pool, table: table, newID: uuid.NewV7}, nil
}

// Close releases the underlying pool resources.
func (s *OutcomeStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the outcome table when it does not exist.
func (s *OutcomeStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	project TEXT NOT NULL,
	engine TEXT NOT NULL,
	domain TEXT NOT NULL,
	modifier TEXT,
	result_limit INTEGER NOT NULL,
	greedy BOOLEAN NOT NULL,
	fuzzy BOOLEAN NOT NULL,
	status TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	duration_seconds BIGINT NOT NULL,
	processed INTEGER NOT NULL,
	emails JSONB NOT NULL,
	error_text TEXT
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create outcome table: %w", err)
	}
	return nil
}

// Persist inserts an outcome row.
func (s *OutcomeStore) Persist(ctx context.Context, outcome harvest.Outcome) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("outcome store is not configured")
	}
	id, err := s.newID()
	if err != nil {
		return fmt.Errorf("generate row id: %w", err)
	}
	emails := outcome.Results.Emails
	if emails == nil {
		emails = []string{}
	}
	emailsJSON, err := json.Marshal(emails)
	if err != nil {
		return fmt.Errorf("marshal emails: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	project,
	engine,
	domain,
	modifier,
	result_limit,
	greedy,
	fuzzy,
	status,
	start_time,
	end_time,
	duration_seconds,
	processed,
	emails,
	error_text
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)`, s.table)

	args := []any{
		id.String(),
		outcome.Project,
		outcome.Engine,
		outcome.Domain,
		outcome.Modifier,
		outcome.Limit,
		outcome.Greedy,
		outcome.Fuzzy,
		string(outcome.Status),
		outcome.StartTime,
		outcome.EndTime,
		int64(outcome.Duration() / time.Second),
		outcome.Results.Processed,
		emailsJSON,
		outcome.ErrorText(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}
