package db

import (
	"fmt"
)

// Migrate runs all database migrations.
func (db *DB) Migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001},
		{2, migration002},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

const migration001 = `
CREATE TABLE scan_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	root TEXT NOT NULL,
	recursive INTEGER NOT NULL DEFAULT 1,
	scheduled_job_id INTEGER,
	status TEXT NOT NULL DEFAULT 'running',
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	files_scanned INTEGER NOT NULL DEFAULT 0,
	bytes_scanned INTEGER NOT NULL DEFAULT 0,
	duplicate_groups INTEGER NOT NULL DEFAULT 0,
	name_conflict_groups INTEGER NOT NULL DEFAULT 0,
	similar_name_pairs INTEGER NOT NULL DEFAULT 0,
	wasted_bytes INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
);

CREATE INDEX idx_scan_runs_started_at ON scan_runs(started_at);

CREATE TABLE scheduled_jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	root TEXT NOT NULL,
	recursive INTEGER NOT NULL DEFAULT 1,
	cron_expression TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	last_run_at DATETIME,
	next_run_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migration002 = `
CREATE TABLE settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
