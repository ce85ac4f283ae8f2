// SPDX-License-Identifier: MIT

// Package audio turns continuous PCM streams into speech segments. A
// per-feed VOX state machine gates on amplitude, writes WAV files and
// hands finished segments to the recorder for persistence and
// transcription.
package audio

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/model"
)

// VOXConfig tunes the amplitude gate. All durations are milliseconds.
type VOXConfig struct {
	SampleRate   int
	Threshold    int16 // int16 peak amplitude
	SpeechOnset  int64
	SilenceHang  int64
	MaxSegment   int64
	Dir          string
}

// DefaultVOXConfig returns the tuning that works for HFGCS voice traffic.
func DefaultVOXConfig(dir string) VOXConfig {
	return VOXConfig{
		SampleRate:  16000,
		Threshold:   500,
		SpeechOnset: 1000,
		SilenceHang: 500,
		MaxSegment:  30000,
		Dir:         dir,
	}
}

type voxState int

const (
	stateIdle voxState = iota
	stateSpeaking
)

// segmentDone is called when a segment closes. reason is one of
// "silence" or "max_duration".
type segmentDone func(seg model.RecordingSegment, reason string)

// machine is the VOX state machine for one feed (or one stereo half).
// Time advances by sample count, not wall clock, so replayed audio
// segments identically.
type machine struct {
	feedID string
	cfg    VOXConfig
	onDone segmentDone
	logger zerolog.Logger

	epoch   time.Time // wall time at feed start; segment starts derive from it
	clockMS float64   // total audio time consumed, advanced by sample count

	state    voxState
	loudMS   float64 // consecutive loud time while Idle
	quietMS  float64 // consecutive quiet time while Speaking
	onset    []int16 // audio buffered during onset counting
	segMS    float64 // elapsed time in the open segment
	segStart time.Time

	writer  *wavWriter
	segPath string
}

func newMachine(feedID string, cfg VOXConfig, onDone segmentDone, logger zerolog.Logger) *machine {
	return &machine{
		feedID: feedID,
		cfg:    cfg,
		onDone: onDone,
		epoch:  time.Now().UTC(),
		logger: logger.With().Str("feed", feedID).Logger(),
	}
}

// process consumes one chunk of mono PCM.
func (m *machine) process(samples []int16) {
	if len(samples) == 0 {
		return
	}
	chunkMS := float64(len(samples)) / float64(m.cfg.SampleRate) * 1000
	m.clockMS += chunkMS
	loud := peak(samples) >= m.cfg.Threshold

	switch m.state {
	case stateIdle:
		if !loud {
			m.loudMS = 0
			m.onset = m.onset[:0]
			return
		}
		m.loudMS += chunkMS
		m.onset = append(m.onset, samples...)
		if m.loudMS >= float64(m.cfg.SpeechOnset) {
			m.open()
		}

	case stateSpeaking:
		m.write(samples)
		m.segMS += chunkMS
		if loud {
			m.quietMS = 0
		} else {
			m.quietMS += chunkMS
		}
		switch {
		case m.quietMS >= float64(m.cfg.SilenceHang):
			m.closeSegment("silence")
		case m.segMS >= float64(m.cfg.MaxSegment):
			m.closeSegment("max_duration")
		}
	}
}

// open starts a new segment, replaying the onset audio into it. The
// segment start backdates to where the onset buffer began.
func (m *machine) open() {
	onsetMS := float64(len(m.onset)) / float64(m.cfg.SampleRate) * 1000
	m.segStart = m.epoch.Add(time.Duration((m.clockMS - onsetMS) * float64(time.Millisecond)))
	name := fmt.Sprintf("%s_%d.wav", m.feedID, m.segStart.UnixMilli())
	m.segPath = filepath.Join(m.cfg.Dir, name)

	w, err := newWAVWriter(m.segPath, m.cfg.SampleRate)
	if err != nil {
		m.logger.Error().Err(err).Msg("open segment failed")
		m.reset()
		return
	}
	m.writer = w
	m.state = stateSpeaking
	m.segMS = onsetMS
	m.quietMS = 0
	m.write(m.onset)
	m.onset = m.onset[:0]
	m.logger.Debug().Str("path", m.segPath).Msg("segment opened")
}

func (m *machine) write(samples []int16) {
	if m.writer == nil {
		return
	}
	if err := m.writer.writeSamples(samples); err != nil {
		m.logger.Error().Err(err).Msg("segment write failed, abandoning segment")
		_, _ = m.writer.close()
		m.reset()
	}
}

func (m *machine) closeSegment(reason string) {
	if m.writer == nil {
		m.reset()
		return
	}
	size, err := m.writer.close()
	path := m.segPath
	durMS := int64(m.segMS)
	start := m.segStart
	m.reset()

	if err != nil {
		m.logger.Error().Err(err).Msg("segment close failed")
		return
	}

	seg := model.RecordingSegment{
		SegmentID:  fmt.Sprintf("%s_%d", m.feedID, start.UnixMilli()),
		FeedID:     m.feedID,
		StartTime:  start,
		DurationMS: durMS,
		Filepath:   path,
		Filesize:   size,
	}
	m.logger.Info().
		Str("segment", seg.SegmentID).
		Int64("duration_ms", durMS).
		Str("reason", reason).
		Msg("segment closed")
	m.onDone(seg, reason)
}

// flush closes any open segment, used at shutdown.
func (m *machine) flush() {
	if m.state == stateSpeaking {
		m.closeSegment("silence")
	}
}

func (m *machine) reset() {
	m.state = stateIdle
	m.loudMS = 0
	m.quietMS = 0
	m.segMS = 0
	m.writer = nil
	m.segPath = ""
}

// peak returns the max absolute sample amplitude in the chunk.
func peak(samples []int16) int16 {
	var p int16
	for _, s := range samples {
		if s < 0 {
			if s == -32768 {
				return 32767
			}
			s = -s
		}
		if s > p {
			p = s
		}
	}
	return p
}
