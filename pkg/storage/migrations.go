package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS goals (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		category_id    TEXT NOT NULL,
		target_amount  TEXT NOT NULL,
		current_amount TEXT NOT NULL DEFAULT '0',
		start_at       INTEGER NOT NULL,
		deadline       INTEGER NOT NULL,
		note           TEXT NOT NULL DEFAULT '',
		state          TEXT NOT NULL DEFAULT 'active' CHECK(state IN ('active', 'completed', 'cancelled', 'failed')),
		created_at     INTEGER NOT NULL,
		updated_at     INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_state_deadline ON goals(state, deadline);

	CREATE TABLE IF NOT EXISTS transactions (
		id          TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		amount      TEXT NOT NULL,
		kind        TEXT NOT NULL CHECK(kind IN ('expense', 'income')),
		note        TEXT NOT NULL DEFAULT '',
		occurred_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_occurred ON transactions(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id, occurred_at);

	CREATE TABLE IF NOT EXISTS activity (
		id      INTEGER PRIMARY KEY CHECK(id = 1),
		last_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dedup_markers (
		key       TEXT PRIMARY KEY,
		subject   TEXT NOT NULL,
		scope     TEXT NOT NULL,
		condition TEXT NOT NULL,
		marked_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dedup_subject ON dedup_markers(subject, scope);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
