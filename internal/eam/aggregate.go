// SPDX-License-Identifier: MIT

package eam

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/model"
)

const (
	// relatedWindow bounds how far apart segments of one broadcast can be.
	relatedWindow = 120 * time.Second
	// maxRelated caps the segment set per aggregation.
	maxRelated = 10
	// slidingWindow is the candidate window width in segments.
	slidingWindow = 3
	// minConfidence gates detection.
	minConfidence = 40
	// minPhonetics triggers aggregation without procedural indicators.
	minPhonetics = 15
	// dedupTTL expires processed fingerprints.
	dedupTTL = 10 * time.Minute

	dedupCacheSize = 1024
	headerLength   = 6
)

// SegmentStore is the slice of the store the aggregator reads and writes.
type SegmentStore interface {
	GetRecordingsInTimeWindow(feedID string, t time.Time, window time.Duration) ([]*model.RecordingSegment, error)
	SaveEAMMessage(eam *model.EAMMessage) (string, bool, error)
}

// Aggregate is the combined view of related transcribed segments.
type Aggregate struct {
	CombinedText    string
	SegmentIDs      []string
	SegmentCount    int
	FirstTimestamp  time.Time
	LastTimestamp   time.Time
	DurationSeconds float64
}

// Aggregator correlates transcriptions across adjacent recording segments
// and emits detected EAMs. It consumes transcription_complete events.
type Aggregator struct {
	store  SegmentStore
	bus    *bus.Bus
	logger zerolog.Logger

	// processed maps an order-independent segment-set fingerprint to the
	// EAM id that consumed it.
	processed *expirable.LRU[string, string]

	sub    *bus.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAggregator builds the aggregator.
func NewAggregator(store SegmentStore, b *bus.Bus) *Aggregator {
	return &Aggregator{
		store:     store,
		bus:       b,
		logger:    log.WithComponent("eam"),
		processed: expirable.NewLRU[string, string](dedupCacheSize, nil, dedupTTL),
	}
}

// Start subscribes to transcription events. Non-blocking.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.done != nil {
		return fmt.Errorf("eam: already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.sub = a.bus.Subscribe(bus.TopicTranscriptionComplete)
	a.done = make(chan struct{})
	go a.loop(loopCtx)
	return nil
}

// Stop unsubscribes and waits for the loop, bounded by ctx.
func (a *Aggregator) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	a.sub.Close()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("eam: stop timed out: %w", ctx.Err())
	}
}

func (a *Aggregator) loop(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.sub.C():
			if !ok {
				return
			}
			seg, ok := ev.Data.(model.RecordingSegment)
			if !ok {
				continue
			}
			a.OnTranscription(seg)
		}
	}
}

// OnTranscription runs the full aggregation pass for one freshly
// transcribed segment.
func (a *Aggregator) OnTranscription(seg model.RecordingSegment) {
	if !ShouldTriggerAggregation(seg.TranscriptionText) {
		return
	}

	related, err := a.relatedSegments(seg)
	if err != nil {
		a.logger.Warn().Err(err).Str("segment", seg.SegmentID).Msg("related segment lookup failed")
		return
	}

	for _, window := range BuildSlidingWindows(related, slidingWindow) {
		agg := AggregateTranscriptions(window)
		if agg.CombinedText == "" || a.isProcessed(agg.SegmentIDs) {
			continue
		}
		if eam, ok := a.detect(seg.FeedID, agg); ok {
			a.emit(eam, agg.SegmentIDs)
		}
	}
}

// ShouldTriggerAggregation reports whether a transcription looks enough
// like an EAM to bother correlating neighbors.
func ShouldTriggerAggregation(text string) bool {
	cleaned := NormalizePhonetics(CleanTranscription(text))
	if DetectIndicators(cleaned).Any() {
		return true
	}
	return ExtractPhoneticSequence(cleaned).PhoneticCount >= minPhonetics
}

// relatedSegments pulls transcribed neighbors within the window, capped.
func (a *Aggregator) relatedSegments(seg model.RecordingSegment) ([]*model.RecordingSegment, error) {
	segments, err := a.store.GetRecordingsInTimeWindow(seg.FeedID, seg.StartTime, relatedWindow)
	if err != nil {
		return nil, err
	}
	out := segments[:0]
	for _, s := range segments {
		if s.Transcribed && s.TranscriptionText != "" {
			out = append(out, s)
		}
	}
	if len(out) > maxRelated {
		out = out[:maxRelated]
	}
	return out, nil
}

// AggregateTranscriptions combines a segment set chronologically.
func AggregateTranscriptions(segments []*model.RecordingSegment) Aggregate {
	sorted := append([]*model.RecordingSegment(nil), segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime.Before(sorted[j].StartTime) })

	var (
		parts []string
		ids   []string
	)
	for _, s := range sorted {
		if s.TranscriptionText != "" {
			parts = append(parts, s.TranscriptionText)
		}
		ids = append(ids, s.SegmentID)
	}
	agg := Aggregate{
		CombinedText: strings.Join(parts, " "),
		SegmentIDs:   ids,
		SegmentCount: len(sorted),
	}
	if len(sorted) > 0 {
		agg.FirstTimestamp = sorted[0].StartTime
		last := sorted[len(sorted)-1]
		agg.LastTimestamp = last.StartTime
		agg.DurationSeconds = last.StartTime.Sub(sorted[0].StartTime).Seconds() +
			float64(last.DurationMS)/1000
	}
	return agg
}

// BuildSlidingWindows yields every contiguous window of size w, or the
// full set when fewer segments exist.
func BuildSlidingWindows(segments []*model.RecordingSegment, w int) [][]*model.RecordingSegment {
	if len(segments) == 0 {
		return nil
	}
	if len(segments) <= w {
		return [][]*model.RecordingSegment{segments}
	}
	var out [][]*model.RecordingSegment
	for i := 0; i+w <= len(segments); i++ {
		out = append(out, segments[i:i+w])
	}
	return out
}

// detect scores one candidate aggregate. The second return is false when
// confidence is too low or no EAM type can be assigned.
func (a *Aggregator) detect(feedID string, agg Aggregate) (*model.EAMMessage, bool) {
	cleaned := NormalizePhonetics(CleanTranscription(agg.CombinedText))
	indicators := DetectIndicators(cleaned)
	seq := ExtractPhoneticSequence(cleaned)
	confidence := EstimateConfidence(indicators, seq.PhoneticCount)
	if confidence < minConfidence {
		return nil, false
	}

	var (
		eamType model.EAMType
		header  string
	)
	switch {
	case indicators.HasSkyking:
		eamType = model.EAMTypeSkyking
	case len(seq.Decoded) >= headerLength:
		eamType = model.EAMTypeEAM
		header = seq.Decoded[:headerLength]
	case indicators.HasMessageFollows:
		eamType = model.EAMTypeEAM
	default:
		return nil, false
	}

	now := time.Now().UTC()
	first, last := agg.FirstTimestamp, agg.LastTimestamp
	if first.IsZero() {
		first, last = now, now
	}

	return &model.EAMMessage{
		ID:               uuid.NewString(),
		FeedID:           feedID,
		Type:             eamType,
		Header:           header,
		MessageBody:      seq.Decoded,
		MessageLength:    len(seq.Decoded),
		Confidence:       confidence,
		FirstDetected:    first,
		LastDetected:     last,
		SegmentIDs:       agg.SegmentIDs,
		MultiSegment:     len(agg.SegmentIDs) >= 2,
		RawTranscription: agg.CombinedText,
	}, true
}

func (a *Aggregator) emit(eam *model.EAMMessage, segmentIDs []string) {
	id, created, err := a.store.SaveEAMMessage(eam)
	if err != nil {
		a.logger.Error().Err(err).Msg("persist eam failed")
		return
	}
	eam.ID = id
	a.markSegmentsProcessed(segmentIDs, id)
	if !created {
		// Same broadcast re-detected inside the dedup window; the store
		// bumped repeat_count, nothing to announce.
		return
	}

	metrics.EAMDetectedTotal.WithLabelValues(string(eam.Type)).Inc()
	a.logger.Info().
		Str("eam_id", id).
		Str("type", string(eam.Type)).
		Int("confidence", eam.Confidence).
		Int("segments", len(segmentIDs)).
		Str("event", "eam.detected").
		Msg("emergency action message detected")
	a.bus.Publish(bus.TopicEAMDetected, eam)
}

// fingerprint is order-independent over the segment set.
func fingerprint(segmentIDs []string) string {
	ids := append([]string(nil), segmentIDs...)
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

func (a *Aggregator) markSegmentsProcessed(segmentIDs []string, eamID string) {
	a.processed.Add(fingerprint(segmentIDs), eamID)
}

func (a *Aggregator) isProcessed(segmentIDs []string) bool {
	_, ok := a.processed.Get(fingerprint(segmentIDs))
	return ok
}
