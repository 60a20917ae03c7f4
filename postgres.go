package mapty

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `CREATE TABLE IF NOT EXISTS mapty_storage (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStorage keeps values in a single postgres table
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates the storage table if needed
func NewPostgresStorage(ctx context.Context, pool *pgxpool.Pool) (*PostgresStorage, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var val string
	row := s.pool.QueryRow(ctx, `SELECT value FROM mapty_storage WHERE key=$1`, key)
	if err := row.Scan(&val); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return []byte(val), nil
}

func (s *PostgresStorage) Set(ctx context.Context, key string, value []byte) error {
	const stmt = `INSERT INTO mapty_storage (key, value, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`
	if _, err := s.pool.Exec(ctx, stmt, key, string(value)); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStorage) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM mapty_storage WHERE key=$1`, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}
