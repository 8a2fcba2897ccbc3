package db

// HasSeenMessage reports whether a message hash was marked within the seen-message TTL
func (d *DB) HasSeenMessage(hash string) (bool, error) {
	return d.Exists("SELECT 1 FROM seen_messages WHERE hash = ? AND expires_at > ?", hash, d.nowMs())
}

// MarkMessageSeen records a message hash for the seen-message TTL
func (d *DB) MarkMessageSeen(hash string) error {
	expiresAt := d.nowMs() + d.cfg.SeenMessageTTL.Milliseconds()
	_, err := d.Run(`
		INSERT INTO seen_messages (hash, expires_at)
		VALUES (?, ?)
		ON CONFLICT(hash) DO UPDATE SET expires_at = excluded.expires_at
	`, hash, expiresAt)
	return err
}
