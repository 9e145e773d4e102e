package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlCreateTable = `
        CREATE TABLE IF NOT EXISTS kv_state (
            key        TEXT PRIMARY KEY,
            value      JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
    `
	sqlSelectValue = `SELECT value FROM kv_state WHERE key = $1`
	sqlUpsertValue = `
        INSERT INTO kv_state (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = EXCLUDED.updated_at;
    `
)

// Postgres stores documents in a single kv_state table, for agents that share a database.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgres verifies the connection and makes sure the table exists.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, sqlCreateTable); err != nil {
		return nil, fmt.Errorf("failed to create kv_state table: %w", err)
	}
	return &Postgres{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, sqlSelectValue, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, nil
}

func (s *Postgres) Set(ctx context.Context, key string, value []byte) error {
	tag, err := s.pool.Exec(ctx, sqlUpsertValue, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	s.log.Debug("Stored document", zap.String("key", key), zap.Int64("rows", tag.RowsAffected()))
	return nil
}
