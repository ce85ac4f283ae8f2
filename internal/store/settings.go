// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/airwaveio/airwave/internal/model"
)

// GetSetting returns a persisted override for category/key.
func (s *Store) GetSetting(category, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE category = ? AND key = ?`, category, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: setting %s.%s", ErrNotFound, category, key)
	}
	if err != nil {
		return "", fmt.Errorf("store: get setting: %w", err)
	}
	return value, nil
}

// SetSetting persists an override for category/key.
func (s *Store) SetSetting(category, key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (category, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(category, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		category, key, value, fmtTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store: set setting: %w", err)
	}
	return nil
}

// AllSettings returns every persisted override.
func (s *Store) AllSettings() ([]model.Setting, error) {
	rows, err := s.db.Query(`SELECT category, key, value, updated_at FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("store: list settings: %w", err)
	}
	defer rows.Close()

	var out []model.Setting
	for rows.Next() {
		var st model.Setting
		var at string
		if err := rows.Scan(&st.Category, &st.Key, &st.Value, &at); err != nil {
			return nil, fmt.Errorf("store: scan setting: %w", err)
		}
		st.UpdatedAt = parseTime(at)
		out = append(out, st)
	}
	return out, rows.Err()
}
