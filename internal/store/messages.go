// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/model"
)

// SaveMessage inserts a message exactly once. A duplicate id is a no-op and
// returns false. The insert, FTS sync (via trigger), daily statistics bump
// and aircraft_tracking last-seen update share one transaction.
func (s *Store) SaveMessage(msg *model.Message) (bool, error) {
	if msg.ID == "" || msg.Timestamp.IsZero() || !model.ValidSourceType(msg.Type) {
		return false, errors.New("store: message missing id, timestamp or source_type")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("store: encode message: %w", err)
	}
	srcJSON, err := json.Marshal(msg.Source)
	if err != nil {
		return false, fmt.Errorf("store: encode source: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO messages
			(id, timestamp, source_type, source_json, flight, tail, hex, airline, text, label, category, flight_phase, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, fmtTime(msg.Timestamp), string(msg.Type), string(srcJSON),
		msg.Flight, msg.Tail, msg.Hex, msg.Airline,
		msg.Text, msg.Label, string(msg.Category), string(msg.FlightPhase), string(payload))
	if err != nil {
		metrics.StoreWritesTotal.WithLabelValues("messages", "error").Inc()
		return false, fmt.Errorf("store: insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		// Duplicate id: leave the store untouched.
		metrics.StoreWritesTotal.WithLabelValues("messages", "duplicate").Inc()
		return false, nil
	}

	day := msg.Timestamp.UTC().Format("2006-01-02")
	category := string(msg.Category)
	if category == "" {
		category = "uncategorized"
	}
	if _, err := tx.Exec(`
		INSERT INTO statistics (day, source_type, category, count) VALUES (?, ?, ?, 1)
		ON CONFLICT(day, source_type, category) DO UPDATE SET count = count + 1`,
		day, string(msg.Type), category); err != nil {
		return false, fmt.Errorf("store: update statistics: %w", err)
	}

	if ident := msg.Identifier(); ident != "" {
		if _, err := tx.Exec(`
			INSERT INTO aircraft_tracking (identifier, hex, tail, flight, last_seen, message_count)
			VALUES (?, ?, ?, ?, ?, 1)
			ON CONFLICT(identifier) DO UPDATE SET
				last_seen = excluded.last_seen,
				message_count = message_count + 1,
				hex = CASE WHEN excluded.hex != '' THEN excluded.hex ELSE hex END,
				tail = CASE WHEN excluded.tail != '' THEN excluded.tail ELSE tail END,
				flight = CASE WHEN excluded.flight != '' THEN excluded.flight ELSE flight END`,
			ident, msg.Hex, msg.Tail, msg.Flight, fmtTime(msg.Timestamp)); err != nil {
			return false, fmt.Errorf("store: update aircraft last-seen: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit: %w", err)
	}
	metrics.StoreWritesTotal.WithLabelValues("messages", "ok").Inc()
	return true, nil
}

// GetMessagesRecent returns the newest messages in descending timestamp order.
func (s *Store) GetMessagesRecent(limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT payload FROM messages ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// SearchMessages runs a full-text query over text/flight/tail/airline.
func (s *Store) SearchMessages(query string, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	q := ftsQuote(query)
	if q == "" {
		return nil, nil
	}
	rows, err := s.db.Query(`
		SELECT m.payload FROM messages m
		JOIN messages_fts f ON f.rowid = m.rowid
		WHERE messages_fts MATCH ?
		ORDER BY m.timestamp DESC LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fts query: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetMessagesByFlight returns messages matching the identifier as either
// flight or tail, newest first.
func (s *Store) GetMessagesByFlight(identifier string, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT payload FROM messages
		WHERE flight = ?1 OR tail = ?1 OR hex = ?1
		ORDER BY timestamp DESC LIMIT ?2`, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query by flight: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*model.Message, error) {
	var out []*model.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msg := &model.Message{}
		if err := json.Unmarshal([]byte(payload), msg); err != nil {
			return nil, fmt.Errorf("store: decode message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ftsQuote turns free text into a safe FTS5 match expression: each token is
// double-quoted so user input cannot inject match syntax.
func ftsQuote(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}
