package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xiaoyuanzhu-com/hound/models"
)

// AddProposal stores a proposal for an entity. Proposals expire after the
// configured proposal TTL. Re-adding an existing id replaces it and moves it
// to the front.
func (d *DB) AddProposal(entityID string, p models.TaskProposal) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode proposal: %w", err)
	}

	now := d.nowMs()
	expiresAt := now + d.cfg.ProposalTTL.Milliseconds()

	return d.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"DELETE FROM proposals WHERE entity_id = ? AND proposal_id = ?",
			entityID, p.ProposalID,
		); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO proposals (entity_id, proposal_id, payload, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?)
		`, entityID, p.ProposalID, string(payload), now, expiresAt)
		return err
	})
}

// ListProposals returns up to limit unexpired proposals, newest first.
// limit <= 0 uses DefaultProposalLimit.
func (d *DB) ListProposals(entityID string, limit int) ([]models.TaskProposal, error) {
	if limit <= 0 {
		limit = DefaultProposalLimit
	}

	proposals, err := Select(d, `
		SELECT payload FROM proposals
		WHERE entity_id = ? AND expires_at > ?
		ORDER BY seq DESC
		LIMIT ?
	`, []QueryParam{entityID, d.nowMs(), limit}, scanProposal)
	if err != nil {
		return nil, err
	}
	if proposals == nil {
		proposals = []models.TaskProposal{}
	}
	return proposals, nil
}

// GetProposal returns one unexpired proposal, or nil if absent
func (d *DB) GetProposal(entityID, proposalID string) (*models.TaskProposal, error) {
	return SelectOne(d, `
		SELECT payload FROM proposals
		WHERE entity_id = ? AND proposal_id = ? AND expires_at > ?
	`, []QueryParam{entityID, proposalID, d.nowMs()}, func(row *sql.Row) (models.TaskProposal, error) {
		var payload string
		if err := row.Scan(&payload); err != nil {
			return models.TaskProposal{}, err
		}
		var p models.TaskProposal
		err := json.Unmarshal([]byte(payload), &p)
		return p, err
	})
}

// RemoveProposal deletes a proposal, reporting whether it existed
func (d *DB) RemoveProposal(entityID, proposalID string) (bool, error) {
	result, err := d.Run(
		"DELETE FROM proposals WHERE entity_id = ? AND proposal_id = ? AND expires_at > ?",
		entityID, proposalID, d.nowMs(),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountProposals returns the number of unexpired proposals for an entity
func (d *DB) CountProposals(entityID string) (int, error) {
	n, err := d.Count(
		"SELECT COUNT(*) FROM proposals WHERE entity_id = ? AND expires_at > ?",
		entityID, d.nowMs(),
	)
	return int(n), err
}

// PurgeExpired removes expired proposals and seen-message markers, returning
// how many rows were deleted
func (d *DB) PurgeExpired() (int64, error) {
	now := d.nowMs()
	var total int64

	for _, query := range []string{
		"DELETE FROM proposals WHERE expires_at <= ?",
		"DELETE FROM seen_messages WHERE expires_at <= ?",
		"DELETE FROM rate_limits WHERE window_expires_at <= ?",
	} {
		result, err := d.Run(query, now)
		if err != nil {
			return total, err
		}
		n, _ := result.RowsAffected()
		total += n
	}

	return total, nil
}

func scanProposal(rows *sql.Rows) (models.TaskProposal, error) {
	var payload string
	if err := rows.Scan(&payload); err != nil {
		return models.TaskProposal{}, err
	}
	var p models.TaskProposal
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return models.TaskProposal{}, fmt.Errorf("failed to decode proposal: %w", err)
	}
	return p, nil
}
