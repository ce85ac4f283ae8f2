// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// AircraftTrack is the durable view of one aircraft's history.
type AircraftTrack struct {
	Identifier     string              `json:"identifier"`
	TrackPoints    []model.TrackPoint  `json:"track_points"`
	LastPosition   *model.Position     `json:"last_position,omitempty"`
	Metadata       map[string]string   `json:"metadata"`
	MessageHistory []*model.Message    `json:"message_history"`
}

// UpsertAircraftState persists the live tracker state for one aircraft,
// including its bounded track ring.
func (s *Store) UpsertAircraftState(a *model.Aircraft) error {
	ident := a.Identifier()
	if ident == "" {
		return errors.New("store: aircraft has no identifier")
	}
	trackJSON, err := json.Marshal(a.Track)
	if err != nil {
		return fmt.Errorf("store: encode track: %w", err)
	}
	var posJSON []byte
	if a.Position != nil {
		if posJSON, err = json.Marshal(a.Position); err != nil {
			return fmt.Errorf("store: encode position: %w", err)
		}
	}

	_, err = s.db.Exec(`
		INSERT INTO aircraft_tracking
			(identifier, hex, tail, flight, registration, type_code, last_seen, message_count, last_position, track)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			hex = excluded.hex,
			tail = excluded.tail,
			flight = excluded.flight,
			registration = CASE WHEN excluded.registration != '' THEN excluded.registration ELSE registration END,
			type_code = CASE WHEN excluded.type_code != '' THEN excluded.type_code ELSE type_code END,
			last_seen = excluded.last_seen,
			message_count = excluded.message_count,
			last_position = excluded.last_position,
			track = excluded.track`,
		ident, a.Hex, a.Tail, a.Flight, a.Registration, a.TypeCode,
		fmtTime(a.LastSeen), a.MessageCount, nullableString(posJSON), string(trackJSON))
	if err != nil {
		metrics.StoreWritesTotal.WithLabelValues("aircraft_tracking", "error").Inc()
		return fmt.Errorf("store: upsert aircraft: %w", err)
	}
	metrics.StoreWritesTotal.WithLabelValues("aircraft_tracking", "ok").Inc()
	return nil
}

// GetActiveAircraft returns aircraft seen within the last hour, most recent
// first.
func (s *Store) GetActiveAircraft(limit int) ([]*model.Aircraft, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := fmtTime(time.Now().Add(-1 * time.Hour))
	rows, err := s.db.Query(`
		SELECT identifier, hex, tail, flight, registration, type_code, last_seen, message_count, last_position, track
		FROM aircraft_tracking
		WHERE last_seen >= ?
		ORDER BY last_seen DESC LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query active aircraft: %w", err)
	}
	defer rows.Close()

	var out []*model.Aircraft
	for rows.Next() {
		a, err := scanAircraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAircraftTrack resolves an identifier across identifier/flight/tail/hex
// and returns track points, last position, metadata and message history.
func (s *Store) GetAircraftTrack(identifier string) (*AircraftTrack, error) {
	row := s.db.QueryRow(`
		SELECT identifier, hex, tail, flight, registration, type_code, last_seen, message_count, last_position, track
		FROM aircraft_tracking
		WHERE identifier = ?1 OR flight = ?1 OR tail = ?1 OR hex = ?1
		ORDER BY last_seen DESC LIMIT 1`, identifier)

	a, err := scanAircraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: aircraft %q", ErrNotFound, identifier)
	}
	if err != nil {
		return nil, err
	}

	history, err := s.GetMessagesByFlight(identifier, 50)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{
		"hex":          a.Hex,
		"tail":         a.Tail,
		"flight":       a.Flight,
		"registration": a.Registration,
		"type":         a.TypeCode,
		"last_seen":    fmtTime(a.LastSeen),
	}
	return &AircraftTrack{
		Identifier:     a.Identifier(),
		TrackPoints:    a.Track,
		LastPosition:   a.Position,
		Metadata:       meta,
		MessageHistory: history,
	}, nil
}

// SaveRegistration records a hex -> registration mapping.
func (s *Store) SaveRegistration(hex, registration, typeCode string) error {
	_, err := s.db.Exec(`
		INSERT INTO hex_to_registration (hex, registration, type_code) VALUES (?, ?, ?)
		ON CONFLICT(hex) DO UPDATE SET registration = excluded.registration,
			type_code = CASE WHEN excluded.type_code != '' THEN excluded.type_code ELSE type_code END`,
		hex, registration, typeCode)
	if err != nil {
		return fmt.Errorf("store: save registration: %w", err)
	}
	return nil
}

// LookupRegistration resolves an ICAO hex to a registration and type code.
func (s *Store) LookupRegistration(hex string) (registration, typeCode string, err error) {
	var tc sql.NullString
	err = s.db.QueryRow(
		`SELECT registration, type_code FROM hex_to_registration WHERE hex = ?`, hex).
		Scan(&registration, &tc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("%w: hex %q", ErrNotFound, hex)
	}
	if err != nil {
		return "", "", fmt.Errorf("store: lookup registration: %w", err)
	}
	return registration, tc.String, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAircraft(row rowScanner) (*model.Aircraft, error) {
	var (
		a                         model.Aircraft
		ident, lastSeen           string
		reg, tc, posJSON, trackJS sql.NullString
	)
	if err := row.Scan(&ident, &a.Hex, &a.Tail, &a.Flight, &reg, &tc, &lastSeen, &a.MessageCount, &posJSON, &trackJS); err != nil {
		return nil, err
	}
	a.Registration = reg.String
	a.TypeCode = tc.String
	a.LastSeen = parseTime(lastSeen)
	if posJSON.Valid && posJSON.String != "" {
		pos := &model.Position{}
		if err := json.Unmarshal([]byte(posJSON.String), pos); err == nil {
			a.Position = pos
		}
	}
	if trackJS.Valid && trackJS.String != "" {
		_ = json.Unmarshal([]byte(trackJS.String), &a.Track)
	}
	return &a, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
