package sqlite

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      string
}

// migrations is the ordered list of all schema changes of the archive index
var migrations = []migration{
	{
		version: 1,
		name:    "create_archived_images_table",
		up: `
			CREATE TABLE IF NOT EXISTS archived_images (
				identifier TEXT PRIMARY KEY,
				caption TEXT NOT NULL,
				image TEXT NOT NULL,
				version TEXT NOT NULL,
				captured_at TEXT NOT NULL,
				captured_on TEXT NOT NULL,
				path TEXT NOT NULL UNIQUE,
				size INTEGER NOT NULL,
				run_id TEXT NOT NULL,
				stored_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_archived_images_captured_on
			ON archived_images(captured_on, captured_at);
		`,
	},
	{
		version: 2,
		name:    "index_archived_images_run_id",
		up: `
			CREATE INDEX IF NOT EXISTS idx_archived_images_run_id
			ON archived_images(run_id);
		`,
	},
}

// runMigrations applies every migration newer than the recorded schema version, each in its own transaction
func runMigrations(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
		}

		_, err = tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
