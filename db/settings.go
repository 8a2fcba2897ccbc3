package db

import (
	"database/sql"
)

// GetUserSetting retrieves a setting for an entity. ok is false when unset.
func (d *DB) GetUserSetting(entityID, key string) (value string, ok bool, err error) {
	err = d.conn.QueryRow(
		"SELECT value FROM user_settings WHERE entity_id = ? AND key = ?",
		entityID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetUserSetting updates or creates a setting
func (d *DB) SetUserSetting(entityID, key, value string) error {
	_, err := d.Run(`
		INSERT INTO user_settings (entity_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, entityID, key, value, d.nowMs())
	return err
}

// DeleteUserSetting removes a setting
func (d *DB) DeleteUserSetting(entityID, key string) error {
	_, err := d.Run("DELETE FROM user_settings WHERE entity_id = ? AND key = ?", entityID, key)
	return err
}

// ListUserSettings retrieves all settings of an entity
func (d *DB) ListUserSettings(entityID string) ([]Setting, error) {
	settings, err := Select(d,
		"SELECT entity_id, key, value, updated_at FROM user_settings WHERE entity_id = ? ORDER BY key",
		[]QueryParam{entityID},
		func(rows *sql.Rows) (Setting, error) {
			var s Setting
			err := rows.Scan(&s.EntityID, &s.Key, &s.Value, &s.UpdatedAt)
			return s, err
		},
	)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = []Setting{}
	}
	return settings, nil
}
