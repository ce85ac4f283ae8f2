// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/airwaveio/airwave/internal/model"
)

// SaveAircraftPhoto records a fetched photo for a registration.
func (s *Store) SaveAircraftPhoto(p *model.AircraftPhoto) error {
	if p.Registration == "" || p.PhotoID == "" {
		return errors.New("store: photo missing registration or photo_id")
	}
	_, err := s.db.Exec(`
		INSERT INTO aircraft_photos (registration, photo_id, filepath, source_url, photographer, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(registration, photo_id) DO UPDATE SET
			filepath = excluded.filepath,
			source_url = excluded.source_url,
			photographer = excluded.photographer,
			fetched_at = excluded.fetched_at`,
		p.Registration, p.PhotoID, p.Filepath, p.SourceURL, p.Photographer, fmtTime(p.FetchedAt))
	if err != nil {
		return fmt.Errorf("store: save photo: %w", err)
	}
	return nil
}

// GetAircraftPhoto returns the newest photo for a registration.
func (s *Store) GetAircraftPhoto(registration string) (*model.AircraftPhoto, error) {
	row := s.db.QueryRow(`
		SELECT registration, photo_id, filepath, source_url, photographer, fetched_at
		FROM aircraft_photos WHERE registration = ?
		ORDER BY fetched_at DESC LIMIT 1`, registration)

	var (
		p          model.AircraftPhoto
		srcURL, ph sql.NullString
		at         string
	)
	err := row.Scan(&p.Registration, &p.PhotoID, &p.Filepath, &srcURL, &ph, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: photo for %q", ErrNotFound, registration)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get photo: %w", err)
	}
	p.SourceURL = srcURL.String
	p.Photographer = ph.String
	p.FetchedAt = parseTime(at)
	return &p, nil
}
