package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolInterface defines the database operations needed by PostgresStore.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists options as one row per key in the options table:
//
//	CREATE TABLE options (
//	    key   TEXT PRIMARY KEY,
//	    value JSONB NOT NULL DEFAULT 'null'::jsonb
//	);
type PostgresStore struct {
	pool PoolInterface
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPostgresStoreWithPool creates a PostgresStore with a custom pool
// interface. This is primarily used for testing.
func NewPostgresStoreWithPool(pool PoolInterface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the value stored under key, with found=false when no row exists.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT value FROM options WHERE key = $1`

	var value []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get option %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value stored under key.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO options (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`

	_, err := s.pool.Exec(ctx, query, key, value)
	if err != nil {
		return fmt.Errorf("set option %s: %w", key, err)
	}
	return nil
}

// Declare inserts an empty slot for key if none exists. Safe to call on every
// startup.
func (s *PostgresStore) Declare(ctx context.Context, key string) error {
	query := `INSERT INTO options (key, value) VALUES ($1, 'null'::jsonb)
		ON CONFLICT (key) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("declare option %s: %w", key, err)
	}
	return nil
}
