// Package store implements C5: the SQLite-backed entity store, its FTS
// index, and the single connection pool the rest of obbywatch shares.
//
// Grounded on the teacher's internal/memory/sqlite.go (modernc.org/sqlite
// driver, database/sql pool, schema-on-open, google/uuid for generated
// ids), generalized from TaskWing's knowledge-graph schema to the
// FileVersion/ContentDiff/FileState/FileChange/Event/SemanticEntry schema
// spec.md §3 defines.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store owns the single *sql.DB connection pool for the process. Every
// other component mutates persisted state exclusively through its methods
// (spec.md §3 "ownership summary").
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates (if needed) the database file at path, applies every
// pending migration, and returns a ready Store.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite only permits one writer at a time; WAL lets readers proceed
	// concurrently with that writer, and a busy_timeout avoids SQLITE_BUSY
	// surfacing as a hard error under the pool's normal contention.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, log: slog.With("component", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool for components (e.g. insights) that need
// read-only ad-hoc queries beyond the named contracts below.
func (s *Store) DB() *sql.DB {
	return s.db
}
