// SPDX-License-Identifier: MIT

package store

import (
	"fmt"
	"time"
)

// CleanupPolicy controls retention for the periodic cleanup pass.
type CleanupPolicy struct {
	MessageRetentionDays int
	AircraftStaleHours   int
	PhotoRetentionDays   int
}

// DefaultCleanupPolicy matches the documented retention defaults.
func DefaultCleanupPolicy() CleanupPolicy {
	return CleanupPolicy{
		MessageRetentionDays: 30,
		AircraftStaleHours:   24,
		PhotoRetentionDays:   90,
	}
}

// Cleanup deletes expired rows, prunes orphaned statistics days and
// compacts the WAL. Each delete runs in its own transaction so a failure
// in one table does not hold back the others.
func (s *Store) Cleanup(policy CleanupPolicy) error {
	now := time.Now()

	msgCutoff := fmtTime(now.AddDate(0, 0, -policy.MessageRetentionDays))
	if res, err := s.db.Exec(`DELETE FROM messages WHERE timestamp < ?`, msgCutoff); err != nil {
		return fmt.Errorf("store: cleanup messages: %w", err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info().Int64("deleted", n).Str("table", "messages").Msg("retention cleanup")
	}

	acCutoff := fmtTime(now.Add(-time.Duration(policy.AircraftStaleHours) * time.Hour))
	if _, err := s.db.Exec(`DELETE FROM aircraft_tracking WHERE last_seen < ?`, acCutoff); err != nil {
		return fmt.Errorf("store: cleanup aircraft: %w", err)
	}

	photoCutoff := fmtTime(now.AddDate(0, 0, -policy.PhotoRetentionDays))
	if _, err := s.db.Exec(`DELETE FROM aircraft_photos WHERE fetched_at < ?`, photoCutoff); err != nil {
		return fmt.Errorf("store: cleanup photos: %w", err)
	}

	// Recordings age out with messages; transcriptions cascade.
	if _, err := s.db.Exec(`DELETE FROM atc_recordings WHERE start_time < ?`, msgCutoff); err != nil {
		return fmt.Errorf("store: cleanup recordings: %w", err)
	}

	statsCutoff := now.AddDate(0, 0, -policy.MessageRetentionDays).Format("2006-01-02")
	if _, err := s.db.Exec(`DELETE FROM statistics WHERE day < ?`, statsCutoff); err != nil {
		return fmt.Errorf("store: cleanup statistics: %w", err)
	}

	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("store: checkpoint: %w", err)
	}
	return nil
}

// DailyStats returns the aggregate counters for one UTC day.
func (s *Store) DailyStats(day string) (map[string]int64, error) {
	rows, err := s.db.Query(
		`SELECT source_type || '/' || category, count FROM statistics WHERE day = ?`, day)
	if err != nil {
		return nil, fmt.Errorf("store: query statistics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("store: scan statistics: %w", err)
		}
		out[key] = count
	}
	return out, rows.Err()
}
