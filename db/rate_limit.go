package db

import (
	"database/sql"
	"time"
)

// CheckRateLimit counts one request against a fixed window for the entity.
// The window starts at the first request and lasts for window.
func (d *DB) CheckRateLimit(entityID string, maxRequests int, window time.Duration) (RateLimitResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.nowMs()
	var count int

	err := d.Transaction(func(tx *sql.Tx) error {
		var expiresAt int64
		err := tx.QueryRow(
			"SELECT count, window_expires_at FROM rate_limits WHERE entity_id = ?",
			entityID,
		).Scan(&count, &expiresAt)

		switch {
		case err == sql.ErrNoRows || (err == nil && expiresAt <= now):
			count = 1
			_, err = tx.Exec(`
				INSERT INTO rate_limits (entity_id, count, window_expires_at)
				VALUES (?, 1, ?)
				ON CONFLICT(entity_id) DO UPDATE SET
					count = 1,
					window_expires_at = excluded.window_expires_at
			`, entityID, now+window.Milliseconds())
			return err
		case err != nil:
			return err
		default:
			count++
			_, err = tx.Exec("UPDATE rate_limits SET count = ? WHERE entity_id = ?", count, entityID)
			return err
		}
	})
	if err != nil {
		return RateLimitResult{}, err
	}

	return RateLimitResult{
		Allowed:   count <= maxRequests,
		Remaining: max(0, maxRequests-count),
	}, nil
}
