// Package sqlite implements repository.SignupRepository on an embedded
// SQLite file, for local development and single-host deployments that do
// not want a Google Sheet.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C compiler
// is needed to build the server.
//
// The table mirrors the sheet layout: one TEXT column per sheet column,
// holding the same envelopes the sheets backend would write. Rows come
// back in insertion order via an AUTOINCREMENT sequence.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/postcards.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database, lost on Close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each pooled connection to ":memory:" would get its own empty
	// database, so everything goes through a single connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the signups table. CREATE ... IF NOT EXISTS keeps it
// safe to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS signups (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			ref        TEXT NOT NULL UNIQUE,
			timestamp  TEXT NOT NULL DEFAULT '',
			name       TEXT NOT NULL DEFAULT '',
			address    TEXT NOT NULL DEFAULT '',
			theme      TEXT NOT NULL DEFAULT '',
			contact    TEXT NOT NULL DEFAULT '',
			song       TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating signups table: %w", err)
	}
	return nil
}
