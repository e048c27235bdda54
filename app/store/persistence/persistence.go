package persistence

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a key or snapshot doesn't exist
var ErrNotFound = errors.New("not found")

// Snapshot is a saved copy of a persisted value
type Snapshot struct {
	ID        int64
	Key       string
	Data      []byte
	CreatedAt time.Time
}

// snapshotRow is the database shape of Snapshot, timestamps stored as unix nanoseconds
type snapshotRow struct {
	ID        int64  `db:"id"`
	Key       string `db:"key"`
	Data      []byte `db:"data"`
	CreatedAt int64  `db:"created_at"`
}

func (r snapshotRow) snapshot() Snapshot {
	return Snapshot{ID: r.ID, Key: r.Key, Data: r.Data, CreatedAt: time.Unix(0, r.CreatedAt)}
}
