package db

import (
	"database/sql"
)

func init() {
	RegisterMigration(Migration{
		Version:     2,
		Description: "Track search index state of proposals",
		Up:          migration002_searchIndex,
	})
}

func migration002_searchIndex(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	statements := []string{
		// NULL until the proposal has been pushed to Meilisearch
		`ALTER TABLE proposals ADD COLUMN indexed_at INTEGER`,
		`CREATE INDEX idx_proposals_unindexed ON proposals(seq) WHERE indexed_at IS NULL`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return tx.Commit()
}
