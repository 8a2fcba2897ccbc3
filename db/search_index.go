package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xiaoyuanzhu-com/hound/models"
)

// PendingProposal is a stored proposal not yet pushed to the search index
type PendingProposal struct {
	EntityID string
	Proposal models.TaskProposal
}

// ListUnindexedProposals returns up to limit unexpired proposals that have
// not been indexed, oldest first
func (d *DB) ListUnindexedProposals(limit int) ([]PendingProposal, error) {
	if limit <= 0 {
		limit = DefaultProposalLimit
	}

	return Select(d, `
		SELECT entity_id, payload FROM proposals
		WHERE indexed_at IS NULL AND expires_at > ?
		ORDER BY seq ASC
		LIMIT ?
	`, []QueryParam{d.nowMs(), limit}, func(rows *sql.Rows) (PendingProposal, error) {
		var pending PendingProposal
		var payload string
		if err := rows.Scan(&pending.EntityID, &payload); err != nil {
			return pending, err
		}
		if err := json.Unmarshal([]byte(payload), &pending.Proposal); err != nil {
			return pending, fmt.Errorf("failed to decode proposal: %w", err)
		}
		return pending, nil
	})
}

// MarkProposalIndexed records that a proposal is searchable
func (d *DB) MarkProposalIndexed(entityID, proposalID string) error {
	_, err := d.Run(
		"UPDATE proposals SET indexed_at = ? WHERE entity_id = ? AND proposal_id = ?",
		d.nowMs(), entityID, proposalID,
	)
	return err
}

// ResetProposalIndex marks every proposal as unindexed so the next sync
// pushes them all again. Returns the number of proposals reset.
func (d *DB) ResetProposalIndex() (int64, error) {
	result, err := d.Run("UPDATE proposals SET indexed_at = NULL WHERE indexed_at IS NOT NULL")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountUnindexedProposals returns how many unexpired proposals await indexing
func (d *DB) CountUnindexedProposals() (int, error) {
	n, err := d.Count(
		"SELECT COUNT(*) FROM proposals WHERE indexed_at IS NULL AND expires_at > ?",
		d.nowMs(),
	)
	return int(n), err
}
