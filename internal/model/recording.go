// SPDX-License-Identifier: MIT

package model

import "time"

// RecordingSegment is one VOX-gated WAV file. Created when speech ends;
// immutable except for the transcription fields which are filled once.
type RecordingSegment struct {
	SegmentID  string    `json:"segment_id"`
	FeedID     string    `json:"feed_id"`
	StartTime  time.Time `json:"start_time"`
	DurationMS int64     `json:"duration_ms"`
	Filepath   string    `json:"filepath"`
	Filesize   int64     `json:"filesize"`

	Transcribed           bool                  `json:"transcribed"`
	TranscriptionText     string                `json:"transcription_text,omitempty"`
	TranscriptionSegments []TranscriptionSpan   `json:"transcription_segments,omitempty"`
	TranscribedAt         *time.Time            `json:"transcribed_at,omitempty"`
}

// TranscriptionSpan is one timed span returned by the transcription server.
type TranscriptionSpan struct {
	T0   float64 `json:"t0"`
	T1   float64 `json:"t1"`
	Text string  `json:"text"`
}

// EAMType distinguishes standard EAMs from SKYKING priority broadcasts.
type EAMType string

const (
	EAMTypeEAM     EAMType = "EAM"
	EAMTypeSkyking EAMType = "SKYKING"
)

// EAMMessage is a detected Emergency Action Message. MultiSegment implies
// len(SegmentIDs) >= 2 and FirstDetected <= LastDetected always holds.
type EAMMessage struct {
	ID             string    `json:"id"`
	FeedID         string    `json:"feed_id"`
	Type           EAMType   `json:"type"`
	Header         string    `json:"header,omitempty"`
	MessageBody    string    `json:"message_body"`
	MessageLength  int       `json:"message_length,omitempty"`
	Confidence     int       `json:"confidence"`
	FirstDetected  time.Time `json:"first_detected"`
	LastDetected   time.Time `json:"last_detected"`
	SegmentIDs     []string  `json:"segment_ids"`
	MultiSegment   bool      `json:"multi_segment"`
	RawTranscription string  `json:"raw_transcription"`
	Codeword       string    `json:"codeword,omitempty"`
	TimeCode       string    `json:"time_code,omitempty"`
	Authentication string    `json:"authentication,omitempty"`
	RepeatCount    int       `json:"repeat_count,omitempty"`
}

// Setting is one key/value configuration override persisted in the store.
type Setting struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AircraftPhoto is a cached photo reference for a registration.
type AircraftPhoto struct {
	Registration string    `json:"registration"`
	PhotoID      string    `json:"photo_id"`
	Filepath     string    `json:"filepath"`
	SourceURL    string    `json:"source_url,omitempty"`
	Photographer string    `json:"photographer,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}
