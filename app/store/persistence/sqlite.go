package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStore implements persistence using SQLite
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates the database and makes sure the schema exists
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer, sqlite serializes writes anyway
	db.SetMaxOpenConns(1)

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("[DEBUG] sqlite store opened at %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_key ON snapshots(key)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Get returns the value stored under the key, ErrNotFound if there is none
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

// Put overwrites the value stored under the key
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}
	return nil
}

// AddSnapshot stores a copy of data as a new snapshot of the key
func (s *SQLiteStore) AddSnapshot(ctx context.Context, key string, data []byte) (Snapshot, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO snapshots (key, data, created_at) VALUES (?, ?, ?)`,
		key, data, now.UnixNano())
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to add snapshot of %q: %w", key, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get snapshot id: %w", err)
	}
	return Snapshot{ID: id, Key: key, Data: data, CreatedAt: time.Unix(0, now.UnixNano())}, nil
}

// Snapshots lists snapshots of the key, newest first
func (s *SQLiteStore) Snapshots(ctx context.Context, key string) ([]Snapshot, error) {
	rows := []snapshotRow{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, key, data, created_at FROM snapshots WHERE key = ? ORDER BY id DESC`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots of %q: %w", key, err)
	}
	res := make([]Snapshot, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.snapshot())
	}
	return res, nil
}

// Snapshot returns a single snapshot by id
func (s *SQLiteStore) Snapshot(ctx context.Context, id int64) (Snapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, `SELECT id, key, data, created_at FROM snapshots WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get snapshot %d: %w", id, err)
	}
	return row.snapshot(), nil
}

// CleanupSnapshots keeps the newest keep snapshots of the key and deletes the rest
func (s *SQLiteStore) CleanupSnapshots(ctx context.Context, key string, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ? AND id NOT IN
		(SELECT id FROM snapshots WHERE key = ? ORDER BY id DESC LIMIT ?)`, key, key, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots of %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
