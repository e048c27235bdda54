// Package persistence provides storage backends for the resume editor.
// Each backend keeps a key-value slot for the current resume document and a snapshot
// history table. SQLite (with WAL mode) is the default, PostgreSQL is used for shared deployments.
package persistence
