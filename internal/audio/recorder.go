// SPDX-License-Identifier: MIT

package audio

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/model"
)

// RecordingStore is the slice of the store the recorder writes to.
type RecordingStore interface {
	SaveRecording(seg *model.RecordingSegment) error
	SetTranscription(segmentID, text string, spans []model.TranscriptionSpan, at time.Time) error
}

// Transcriber is implemented by the whisper client.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, []model.TranscriptionSpan, error)
}

// Recorder owns one VOX machine per feed, persists closed segments and
// dispatches them for transcription. Stereo feeds split into independent
// _L and _R machines.
type Recorder struct {
	cfg         VOXConfig
	store       RecordingStore
	transcriber Transcriber
	bus         *bus.Bus
	logger      zerolog.Logger

	mu       sync.Mutex
	machines map[string]*machine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRecorder builds the recorder. The recordings directory is created
// eagerly so the first segment open cannot fail on a missing path.
func NewRecorder(cfg VOXConfig, store RecordingStore, transcriber Transcriber, b *bus.Bus) (*Recorder, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Recorder{
		cfg:         cfg,
		store:       store,
		transcriber: transcriber,
		bus:         b,
		logger:      log.WithComponent("recorder"),
		machines:    make(map[string]*machine),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// WritePCM implements the PCM sink the audio sources feed. Interleaved
// stereo input is deinterleaved into left and right machines.
func (r *Recorder) WritePCM(feedID string, channels int, samples []int16) {
	if channels <= 1 {
		r.machineFor(feedID).process(samples)
		return
	}

	n := len(samples) / 2
	left := make([]int16, n)
	right := make([]int16, n)
	for i := 0; i < n; i++ {
		left[i] = samples[2*i]
		right[i] = samples[2*i+1]
	}
	r.machineFor(feedID + "_L").process(left)
	r.machineFor(feedID + "_R").process(right)
}

func (r *Recorder) machineFor(feedID string) *machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[feedID]
	if !ok {
		m = newMachine(feedID, r.cfg, r.onSegment, r.logger)
		r.machines[feedID] = m
	}
	return m
}

// onSegment persists a closed segment, announces it and queues the
// transcription. Runs on the PCM path, so the whisper call is async.
func (r *Recorder) onSegment(seg model.RecordingSegment, reason string) {
	metrics.VOXSegmentsTotal.WithLabelValues(seg.FeedID, reason).Inc()

	if err := r.store.SaveRecording(&seg); err != nil {
		r.logger.Error().Err(err).Str("segment", seg.SegmentID).Msg("persist segment failed")
		return
	}
	r.bus.Publish(bus.TopicRecordingComplete, seg)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.transcribe(seg)
	}()
}

func (r *Recorder) transcribe(seg model.RecordingSegment) {
	text, spans, err := r.transcriber.Transcribe(r.ctx, seg.Filepath)
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Warn().Err(err).Str("segment", seg.SegmentID).Msg("transcription failed")
		}
		return
	}

	at := time.Now().UTC()
	if err := r.store.SetTranscription(seg.SegmentID, text, spans, at); err != nil {
		r.logger.Error().Err(err).Str("segment", seg.SegmentID).Msg("persist transcription failed")
		return
	}

	seg.Transcribed = true
	seg.TranscriptionText = text
	seg.TranscriptionSegments = spans
	seg.TranscribedAt = &at
	r.bus.Publish(bus.TopicTranscriptionComplete, seg)
}

// Close flushes every open segment and waits for in-flight
// transcriptions.
func (r *Recorder) Close() {
	r.mu.Lock()
	for _, m := range r.machines {
		m.flush()
	}
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
