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

// eamDedupWindow is how far back an identical (feed, body, header) triple
// counts as a repeat of the same broadcast rather than a new EAM.
const eamDedupWindow = 5 * time.Minute

// SaveEAMMessage upserts an EAM. A matching (feed_id, message_body, header)
// within the dedup window bumps last_detected and the repeat counter and
// returns the existing id with created=false.
func (s *Store) SaveEAMMessage(eam *model.EAMMessage) (id string, created bool, err error) {
	if eam.MessageBody == "" || eam.FeedID == "" {
		return "", false, errors.New("store: eam missing feed_id or message_body")
	}
	if eam.LastDetected.Before(eam.FirstDetected) {
		return "", false, errors.New("store: eam last_detected before first_detected")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", false, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := fmtTime(eam.LastDetected.Add(-eamDedupWindow))
	var existing string
	err = tx.QueryRow(`
		SELECT id FROM eam_messages
		WHERE feed_id = ? AND message_body = ? AND IFNULL(header, '') = ? AND last_detected >= ?
		ORDER BY last_detected DESC LIMIT 1`,
		eam.FeedID, eam.MessageBody, eam.Header, cutoff).Scan(&existing)
	switch {
	case err == nil:
		if _, err := tx.Exec(`
			UPDATE eam_messages SET last_detected = ?, repeat_count = repeat_count + 1 WHERE id = ?`,
			fmtTime(eam.LastDetected), existing); err != nil {
			return "", false, fmt.Errorf("store: bump eam repeat: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", false, fmt.Errorf("store: commit: %w", err)
		}
		metrics.StoreWritesTotal.WithLabelValues("eam_messages", "repeat").Inc()
		return existing, false, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return "", false, fmt.Errorf("store: eam dedup query: %w", err)
	}

	segJSON, err := json.Marshal(eam.SegmentIDs)
	if err != nil {
		return "", false, fmt.Errorf("store: encode segment ids: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO eam_messages
			(id, feed_id, type, header, message_body, message_length, confidence,
			 first_detected, last_detected, segment_ids, multi_segment,
			 raw_transcription, codeword, time_code, authentication, repeat_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		eam.ID, eam.FeedID, string(eam.Type), eam.Header, eam.MessageBody,
		eam.MessageLength, eam.Confidence, fmtTime(eam.FirstDetected),
		fmtTime(eam.LastDetected), string(segJSON), boolToInt(eam.MultiSegment),
		eam.RawTranscription, eam.Codeword, eam.TimeCode, eam.Authentication); err != nil {
		metrics.StoreWritesTotal.WithLabelValues("eam_messages", "error").Inc()
		return "", false, fmt.Errorf("store: insert eam: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("store: commit: %w", err)
	}
	metrics.StoreWritesTotal.WithLabelValues("eam_messages", "ok").Inc()
	return eam.ID, true, nil
}

// GetRecentEAMs returns the newest EAMs, most recent detection first.
func (s *Store) GetRecentEAMs(limit int) ([]*model.EAMMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, feed_id, type, header, message_body, message_length, confidence,
		       first_detected, last_detected, segment_ids, multi_segment,
		       raw_transcription, codeword, time_code, authentication, repeat_count
		FROM eam_messages ORDER BY last_detected DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query eams: %w", err)
	}
	defer rows.Close()

	var out []*model.EAMMessage
	for rows.Next() {
		var (
			e              model.EAMMessage
			first, last    string
			segJSON        string
			multi          int
			header, cw, tc, auth sql.NullString
			msgLen         sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.FeedID, &e.Type, &header, &e.MessageBody,
			&msgLen, &e.Confidence, &first, &last, &segJSON, &multi,
			&e.RawTranscription, &cw, &tc, &auth, &e.RepeatCount); err != nil {
			return nil, fmt.Errorf("store: scan eam: %w", err)
		}
		e.Header = header.String
		e.MessageLength = int(msgLen.Int64)
		e.FirstDetected = parseTime(first)
		e.LastDetected = parseTime(last)
		e.MultiSegment = multi == 1
		e.Codeword = cw.String
		e.TimeCode = tc.String
		e.Authentication = auth.String
		_ = json.Unmarshal([]byte(segJSON), &e.SegmentIDs)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
