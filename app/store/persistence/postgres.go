package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements persistence using PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database, verifies the connection and makes sure the schema exists
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id BIGSERIAL PRIMARY KEY,
			key TEXT NOT NULL,
			data BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_key ON snapshots(key)`,
	}
	for _, q := range queries {
		if _, err := pool.Exec(ctx, q); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return &PostgresStore{pool: pool}, nil
}

// Get returns the value stored under the key, ErrNotFound if there is none
func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

// Put overwrites the value stored under the key
func (p *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO kv (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}
	return nil
}

// AddSnapshot stores a copy of data as a new snapshot of the key
func (p *PostgresStore) AddSnapshot(ctx context.Context, key string, data []byte) (Snapshot, error) {
	res := Snapshot{Key: key, Data: data}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO snapshots (key, data) VALUES ($1, $2) RETURNING id, created_at`,
		key, data,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to add snapshot of %q: %w", key, err)
	}
	return res, nil
}

// Snapshots lists snapshots of the key, newest first
func (p *PostgresStore) Snapshots(ctx context.Context, key string) ([]Snapshot, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, key, data, created_at FROM snapshots WHERE key = $1 ORDER BY id DESC`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots of %q: %w", key, err)
	}
	defer rows.Close()

	res := []Snapshot{}
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.Key, &s.Data, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return res, nil
}

// Snapshot returns a single snapshot by id
func (p *PostgresStore) Snapshot(ctx context.Context, id int64) (Snapshot, error) {
	var s Snapshot
	err := p.pool.QueryRow(ctx, `SELECT id, key, data, created_at FROM snapshots WHERE id = $1`, id).
		Scan(&s.ID, &s.Key, &s.Data, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get snapshot %d: %w", id, err)
	}
	return s, nil
}

// CleanupSnapshots keeps the newest keep snapshots of the key and deletes the rest
func (p *PostgresStore) CleanupSnapshots(ctx context.Context, key string, keep int) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM snapshots WHERE key = $1 AND id NOT IN
		(SELECT id FROM snapshots WHERE key = $1 ORDER BY id DESC LIMIT $2)`, key, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots of %q: %w", key, err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the connection pool
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
