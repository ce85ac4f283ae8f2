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

// SaveRecording persists a closed VOX segment.
func (s *Store) SaveRecording(seg *model.RecordingSegment) error {
	if seg.SegmentID == "" || seg.FeedID == "" {
		return errors.New("store: recording missing segment_id or feed_id")
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO atc_recordings
			(segment_id, feed_id, start_time, duration_ms, filepath, filesize, transcribed)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		seg.SegmentID, seg.FeedID, fmtTime(seg.StartTime), seg.DurationMS, seg.Filepath, seg.Filesize)
	if err != nil {
		metrics.StoreWritesTotal.WithLabelValues("atc_recordings", "error").Inc()
		return fmt.Errorf("store: save recording: %w", err)
	}
	metrics.StoreWritesTotal.WithLabelValues("atc_recordings", "ok").Inc()
	return nil
}

// SetTranscription fills the transcription fields of a segment exactly once.
func (s *Store) SetTranscription(segmentID, text string, spans []model.TranscriptionSpan, at time.Time) error {
	spansJSON, err := json.Marshal(spans)
	if err != nil {
		return fmt.Errorf("store: encode spans: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO atc_transcriptions (segment_id, text, segments_json, transcribed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(segment_id) DO NOTHING`,
		segmentID, text, string(spansJSON), fmtTime(at)); err != nil {
		return fmt.Errorf("store: save transcription: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE atc_recordings SET transcribed = 1 WHERE segment_id = ?`, segmentID); err != nil {
		return fmt.Errorf("store: mark transcribed: %w", err)
	}
	return tx.Commit()
}

// GetRecordingsInTimeWindow returns segments of a feed whose start_time lies
// in [t-window, t+window], transcriptions joined in, ascending by start.
func (s *Store) GetRecordingsInTimeWindow(feedID string, t time.Time, window time.Duration) ([]*model.RecordingSegment, error) {
	lo := fmtTime(t.Add(-window))
	hi := fmtTime(t.Add(window))
	rows, err := s.db.Query(`
		SELECT r.segment_id, r.feed_id, r.start_time, r.duration_ms, r.filepath, r.filesize, r.transcribed,
		       t.text, t.segments_json, t.transcribed_at
		FROM atc_recordings r
		LEFT JOIN atc_transcriptions t ON t.segment_id = r.segment_id
		WHERE r.feed_id = ? AND r.start_time >= ? AND r.start_time <= ?
		ORDER BY r.start_time ASC`, feedID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("store: query recordings: %w", err)
	}
	defer rows.Close()

	var out []*model.RecordingSegment
	for rows.Next() {
		seg, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// GetRecording returns one segment by id.
func (s *Store) GetRecording(segmentID string) (*model.RecordingSegment, error) {
	row := s.db.QueryRow(`
		SELECT r.segment_id, r.feed_id, r.start_time, r.duration_ms, r.filepath, r.filesize, r.transcribed,
		       t.text, t.segments_json, t.transcribed_at
		FROM atc_recordings r
		LEFT JOIN atc_transcriptions t ON t.segment_id = r.segment_id
		WHERE r.segment_id = ?`, segmentID)
	seg, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: segment %q", ErrNotFound, segmentID)
	}
	return seg, err
}

func scanRecording(row rowScanner) (*model.RecordingSegment, error) {
	var (
		seg        model.RecordingSegment
		start      string
		transcribed int
		text, spansJSON, at sql.NullString
	)
	if err := row.Scan(&seg.SegmentID, &seg.FeedID, &start, &seg.DurationMS,
		&seg.Filepath, &seg.Filesize, &transcribed, &text, &spansJSON, &at); err != nil {
		return nil, err
	}
	seg.StartTime = parseTime(start)
	seg.Transcribed = transcribed == 1
	seg.TranscriptionText = text.String
	if spansJSON.Valid && spansJSON.String != "" {
		_ = json.Unmarshal([]byte(spansJSON.String), &seg.TranscriptionSegments)
	}
	if at.Valid && at.String != "" {
		ts := parseTime(at.String)
		seg.TranscribedAt = &ts
	}
	return &seg, nil
}
