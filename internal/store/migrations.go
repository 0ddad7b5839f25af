package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// schemaVersion is bumped whenever the DDL below changes shape.
const schemaVersion = 1

// migrate creates all tables if they don't exist and records the schema
// version.
func (s *SQLiteStore) migrate() error {
	current, err := s.currentSchemaVersion()
	if err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("database schema v%d is newer than this binary (v%d)", current, schemaVersion)
	}
	if current == schemaVersion {
		return nil
	}
	if err := s.runBootstrapDDL(); err != nil {
		return err
	}
	if _, err := s.db.Exec(
		`INSERT INTO meta(key, value) VALUES('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(schemaVersion),
	); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) currentSchemaVersion() (int, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var value string
	err = s.db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid schema_version %q", value)
	}
	return v, nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// One row per cleaning run
		`CREATE TABLE IF NOT EXISTS runs (
			id                  TEXT PRIMARY KEY,
			generated_at        DATETIME NOT NULL,
			total_raw_entries   INTEGER NOT NULL,
			cleaned_entries     INTEGER NOT NULL,
			duplicates_removed  INTEGER NOT NULL,
			cleaning_efficiency TEXT NOT NULL,
			average_confidence  REAL NOT NULL,
			report_json         TEXT NOT NULL
		)`,

		// Category records per run
		`CREATE TABLE IF NOT EXISTS records (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			category       TEXT NOT NULL,
			name           TEXT NOT NULL,
			classification TEXT NOT NULL DEFAULT '',
			mentions       INTEGER NOT NULL,
			avg_confidence REAL NOT NULL,
			best_context   TEXT NOT NULL DEFAULT '',
			sources        TEXT NOT NULL DEFAULT '[]',
			data_json      TEXT NOT NULL,
			UNIQUE(run_id, category, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_run_category ON records(run_id, category)`,

		// Context snippets, in mention order
		`CREATE TABLE IF NOT EXISTS contexts (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id    INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
			position     INTEGER NOT NULL,
			content      TEXT NOT NULL,
			confidence   REAL NOT NULL,
			content_hash TEXT NOT NULL,
			UNIQUE(record_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contexts_hash ON contexts(content_hash)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS contexts_fts USING fts5(
			content,
			content=contexts,
			content_rowid=id,
			tokenize='porter unicode61'
		)`,

		`CREATE TRIGGER IF NOT EXISTS contexts_ai AFTER INSERT ON contexts BEGIN
			INSERT INTO contexts_fts(rowid, content) VALUES (new.id, new.content);
		END`,

		`CREATE TRIGGER IF NOT EXISTS contexts_ad AFTER DELETE ON contexts BEGIN
			INSERT INTO contexts_fts(contexts_fts, rowid, content) VALUES('delete', old.id, old.content);
		END`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning bootstrap: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w\nStatement: %s", err, stmt)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bootstrap: %w", err)
	}
	return nil
}
