package db

import (
	"database/sql"
)

func init() {
	RegisterMigration(Migration{
		Version:     1,
		Description: "Initial schema - proposals, seen messages, user settings, rate limits",
		Up:          migration001_initial,
	})
}

func migration001_initial(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	statements := []string{
		// Proposals, newest first by seq
		`CREATE TABLE proposals (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id TEXT NOT NULL,
			proposal_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			UNIQUE(entity_id, proposal_id)
		)`,
		`CREATE INDEX idx_proposals_entity ON proposals(entity_id, seq DESC)`,
		`CREATE INDEX idx_proposals_expires ON proposals(expires_at)`,

		// Deduplication markers
		`CREATE TABLE seen_messages (
			hash TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL
		)`,

		// Per-entity settings
		`CREATE TABLE user_settings (
			entity_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (entity_id, key)
		)`,

		// Fixed-window rate limit counters
		`CREATE TABLE rate_limits (
			entity_id TEXT PRIMARY KEY,
			count INTEGER NOT NULL,
			window_expires_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return tx.Commit()
}
