package store

import "fmt"

// migration is one forward-only schema step. Migrations never rewrite
// history; a new requirement always adds a new migration, per spec.md §4.4
// ("All schema migrations are applied at startup from a forward-only
// versioned list").
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS schema_migrations (
				version INTEGER PRIMARY KEY
			)`,
			`CREATE TABLE IF NOT EXISTS file_versions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				file_path TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				content TEXT NOT NULL,
				line_count INTEGER NOT NULL,
				timestamp TEXT NOT NULL,
				change_description TEXT,
				UNIQUE(file_path, content_hash)
			)`,
			`CREATE TABLE IF NOT EXISTS content_diffs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				file_path TEXT NOT NULL,
				old_version_id INTEGER REFERENCES file_versions(id),
				new_version_id INTEGER NOT NULL REFERENCES file_versions(id),
				change_type TEXT NOT NULL CHECK (change_type IN ('created','modified','deleted','moved')),
				diff_content TEXT NOT NULL,
				lines_added INTEGER NOT NULL,
				lines_removed INTEGER NOT NULL,
				timestamp TEXT NOT NULL,
				CHECK (lines_added > 0 OR lines_removed > 0)
			)`,
			`CREATE TABLE IF NOT EXISTS file_states (
				file_path TEXT PRIMARY KEY,
				content_hash TEXT NOT NULL,
				line_count INTEGER NOT NULL,
				file_size INTEGER NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS file_changes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				file_path TEXT NOT NULL,
				change_type TEXT NOT NULL CHECK (change_type IN ('created','modified','deleted','moved')),
				old_content_hash TEXT,
				new_content_hash TEXT,
				timestamp TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				type TEXT NOT NULL CHECK (type IN ('created','modified','deleted','moved')),
				path TEXT NOT NULL,
				size INTEGER NOT NULL DEFAULT 0,
				timestamp TEXT NOT NULL,
				processed INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS semantic_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp TEXT NOT NULL,
				date TEXT NOT NULL,
				time TEXT NOT NULL,
				type TEXT NOT NULL,
				summary TEXT NOT NULL,
				impact TEXT NOT NULL CHECK (impact IN ('brief','moderate','significant')),
				file_path TEXT,
				searchable_text TEXT NOT NULL,
				markdown_file_path TEXT,
				source_type TEXT NOT NULL,
				version_id INTEGER REFERENCES file_versions(id)
			)`,
			`CREATE TABLE IF NOT EXISTS semantic_topics (
				entry_id INTEGER NOT NULL REFERENCES semantic_entries(id) ON DELETE CASCADE,
				topic TEXT NOT NULL,
				UNIQUE(entry_id, topic)
			)`,
			`CREATE TABLE IF NOT EXISTS semantic_keywords (
				entry_id INTEGER NOT NULL REFERENCES semantic_entries(id) ON DELETE CASCADE,
				keyword TEXT NOT NULL,
				UNIQUE(entry_id, keyword)
			)`,
			`CREATE VIRTUAL TABLE IF NOT EXISTS semantic_search USING fts5(
				entry_id UNINDEXED,
				searchable_text
			)`,
			`CREATE TABLE IF NOT EXISTS config_kv (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				description TEXT,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS agent_sessions (
				id TEXT PRIMARY KEY,
				created_at TEXT NOT NULL,
				title TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS agent_action_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL REFERENCES agent_sessions(id),
				event_type TEXT NOT NULL,
				message TEXT NOT NULL,
				data TEXT,
				timestamp TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS insights_layout_config (
				id TEXT PRIMARY KEY,
				layout TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_content_diffs_timestamp ON content_diffs(timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_content_diffs_path_timestamp ON content_diffs(file_path, timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_file_versions_path_timestamp ON file_versions(file_path, timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_file_changes_path_timestamp ON file_changes(file_path, timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_semantic_entries_timestamp ON semantic_entries(timestamp)`,
		},
	},
}

// migrate applies every migration whose version hasn't been recorded yet,
// in order, each inside its own transaction.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("bootstrap schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("apply migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
		s.log.Info("applied migration", "version", m.version)
	}
	return nil
}
