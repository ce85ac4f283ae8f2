// SPDX-License-Identifier: MIT

// Package adsb holds the shared poll loop, significant-change detection
// and message normalization for all ADS-B style sources. Concrete sources
// (TAR1090, OpenSky, ADSB-Exchange) supply a Fetcher and delegate the rest.
package adsb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/model"
	"github.com/airwaveio/airwave/internal/source"
)

// ErrRateLimited is returned by fetchers on HTTP 429. The poll loop
// doubles its interval until the next successful fetch.
var ErrRateLimited = errors.New("adsb: upstream rate limited")

// StateVector is the normalized upstream snapshot entry all fetchers
// produce. Altitude is feet, speed knots, vertical rate ft/min.
type StateVector struct {
	Hex          string
	Flight       string
	Lat          float64
	Lon          float64
	AltitudeFt   float64
	GroundSpeed  float64
	Track        float64
	VerticalRate float64
	Squawk       string
	OnGround     bool
}

// Fetcher produces one snapshot of state vectors per poll.
type Fetcher interface {
	Fetch(ctx context.Context) ([]StateVector, error)
}

// significant-change thresholds, keyed by hex.
const (
	positionDeltaDeg = 0.0015 // ~150 m
	altitudeDeltaFt  = 1000.0
	speedDeltaKt     = 50.0
	headingDeltaDeg  = 30.0
	maxPollInterval  = 5 * time.Minute
)

// Base is the shared collaborator concrete ADS-B sources hold a pointer to.
type Base struct {
	name     string
	fetcher  Fetcher
	sink     source.Sink
	bus      *bus.Bus
	interval time.Duration
	api      string
	logger   zerolog.Logger

	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen map[string]StateVector
	cancel   context.CancelFunc
	done     chan struct{}

	connected    atomic.Bool
	messageCount atomic.Int64
	lastUpdate   atomic.Int64 // unix ms
	curInterval  atomic.Int64 // ms, reflects 429 backoff
}

// NewBase wires the shared poll machinery for one concrete source.
func NewBase(name, api string, fetcher Fetcher, sink source.Sink, b *bus.Bus, interval time.Duration) *Base {
	base := &Base{
		name:     name,
		api:      api,
		fetcher:  fetcher,
		sink:     sink,
		bus:      b,
		interval: interval,
		logger:   log.WithSource(name),
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		lastSeen: make(map[string]StateVector),
	}
	base.curInterval.Store(interval.Milliseconds())
	return base
}

// Name returns the source name.
func (b *Base) Name() string { return b.name }

// Start launches the poll loop. Non-blocking.
func (b *Base) Start(ctx context.Context) error {
	if b.done != nil {
		return fmt.Errorf("%s: already started", b.name)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.pollLoop(loopCtx)
	return nil
}

// Stop cancels the poll loop and waits for it, bounded by ctx.
func (b *Base) Stop(ctx context.Context) error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: stop timed out: %w", b.name, ctx.Err())
	}
}

// Stats implements source.Source.
func (b *Base) Stats() source.Stats {
	b.mu.Lock()
	tracked := len(b.lastSeen)
	b.mu.Unlock()
	return source.Stats{
		Connected:        b.connected.Load(),
		TrackedEntities:  tracked,
		LastUpdate:       time.UnixMilli(b.lastUpdate.Load()),
		UpdateIntervalMS: b.curInterval.Load(),
		MessageCount:     b.messageCount.Load(),
	}
}

func (b *Base) pollLoop(ctx context.Context) {
	defer close(b.done)

	interval := b.interval
	timer := time.NewTimer(0) // first poll immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := b.limiter.Wait(ctx); err != nil {
			return
		}

		snapshot, err := b.fetcher.Fetch(ctx)
		switch {
		case errors.Is(err, ErrRateLimited):
			// Double the delay up to the cap; restore on next success.
			interval = interval * 2
			if interval > maxPollInterval {
				interval = maxPollInterval
			}
			b.curInterval.Store(interval.Milliseconds())
			metrics.SourceRateLimitedTotal.WithLabelValues(b.name).Inc()
			metrics.SourcePollsTotal.WithLabelValues(b.name, "rate_limited").Inc()
			b.logger.Warn().
				Dur("next_poll", interval).
				Str("event", "source.rate_limited").
				Msg("upstream returned 429, backing off")
		case err != nil:
			// Keep the previous snapshot; never crash the loop.
			metrics.SourcePollsTotal.WithLabelValues(b.name, "error").Inc()
			b.setConnected(false, err)
			b.logger.Warn().Err(err).Str("event", "source.poll_failed").Msg("poll failed, keeping last snapshot")
		default:
			if interval != b.interval {
				interval = b.interval
				b.curInterval.Store(interval.Milliseconds())
			}
			metrics.SourcePollsTotal.WithLabelValues(b.name, "ok").Inc()
			b.setConnected(true, nil)
			b.ingestSnapshot(snapshot)
		}

		timer.Reset(interval)
	}
}

func (b *Base) setConnected(up bool, cause error) {
	if b.connected.Swap(up) == up {
		return
	}
	if up {
		metrics.SourceConnected.WithLabelValues(b.name).Set(1)
		b.bus.Publish(bus.TopicSourceStatus, bus.SourceStatus{Source: b.name, OK: true})
		b.logger.Info().Str("event", "source.connected").Msg("connected")
		return
	}
	metrics.SourceConnected.WithLabelValues(b.name).Set(0)
	status := bus.SourceStatus{Source: b.name, OK: false}
	if cause != nil {
		status.Error = cause.Error()
	}
	b.bus.Publish(bus.TopicSourceStatus, status)
}

// ingestSnapshot applies the significant-change predicate per hex and
// emits a canonical message for each vector that moved.
func (b *Base) ingestSnapshot(snapshot []StateVector) {
	now := time.Now().UTC()
	b.lastUpdate.Store(now.UnixMilli())

	var changed []*model.Message
	b.mu.Lock()
	for _, sv := range snapshot {
		if sv.Hex == "" {
			continue
		}
		prev, seen := b.lastSeen[sv.Hex]
		if seen && !SignificantChange(prev, sv) {
			continue
		}
		b.lastSeen[sv.Hex] = sv
		changed = append(changed, b.toMessage(sv, now))
	}
	b.mu.Unlock()

	for _, msg := range changed {
		if !b.sink.Offer(msg) {
			// Processor ingress full: the latest snapshot already replaced
			// the per-hex state, so the record coalesces naturally.
			metrics.SourceDropsTotal.WithLabelValues(b.name).Inc()
			continue
		}
		b.messageCount.Add(1)
		metrics.SourceMessagesTotal.WithLabelValues(b.name).Inc()
	}

	if len(changed) > 0 {
		b.bus.Publish(bus.TopicADSBBatch, changed)
	}
}

func (b *Base) toMessage(sv StateVector, now time.Time) *model.Message {
	return &model.Message{
		ID:        uuid.NewString(),
		Timestamp: now,
		Source:    model.SourceInfo{Type: "adsb", API: b.api},
		Type:      model.SourceADSB,
		Flight:    sv.Flight,
		Hex:       sv.Hex,
		Position: &model.Position{
			Lat:               sv.Lat,
			Lon:               sv.Lon,
			AltitudeFt:        sv.AltitudeFt,
			CoordinatesString: CoordinatesString(sv.Lat, sv.Lon),
		},
		GroundSpeed:  sv.GroundSpeed,
		Heading:      sv.Track,
		VerticalRate: sv.VerticalRate,
		OnGround:     sv.OnGround,
		Squawk:       sv.Squawk,
		FlightPhase:  DerivePhase(sv),
	}
}

// SignificantChange reports whether cur differs enough from prev to emit.
func SignificantChange(prev, cur StateVector) bool {
	if math.Abs(cur.Lat-prev.Lat) > positionDeltaDeg ||
		math.Abs(cur.Lon-prev.Lon) > positionDeltaDeg {
		return true
	}
	if math.Abs(cur.AltitudeFt-prev.AltitudeFt) >= altitudeDeltaFt {
		return true
	}
	if math.Abs(cur.GroundSpeed-prev.GroundSpeed) >= speedDeltaKt {
		return true
	}
	if headingDelta(prev.Track, cur.Track) >= headingDeltaDeg {
		return true
	}
	if DerivePhase(prev) != DerivePhase(cur) {
		return true
	}
	return false
}

func headingDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// DerivePhase maps kinematics onto a flight phase.
func DerivePhase(sv StateVector) model.FlightPhase {
	switch {
	case sv.OnGround || sv.AltitudeFt < 100:
		return model.PhaseTaxi
	case sv.VerticalRate > 1000 && sv.AltitudeFt < 20000:
		return model.PhaseTakeoff
	case sv.VerticalRate < -1000:
		return model.PhaseDescent
	case sv.AltitudeFt < 10000 && math.Abs(sv.VerticalRate) <= 500:
		return model.PhaseApproach
	case sv.AltitudeFt >= 20000 && math.Abs(sv.VerticalRate) <= 500:
		return model.PhaseCruise
	default:
		return model.PhaseUnknown
	}
}

// CoordinatesString renders "N5530 W00434": hemisphere prefix, latitude as
// DDMM (4 digits), longitude as DDDMM (5 digits), zero-padded.
func CoordinatesString(lat, lon float64) string {
	latHemi := "N"
	if lat < 0 {
		latHemi = "S"
		lat = -lat
	}
	lonHemi := "E"
	if lon < 0 {
		lonHemi = "W"
		lon = -lon
	}
	latDeg := int(lat)
	latMin := int(math.Round((lat - float64(latDeg)) * 60))
	if latMin == 60 {
		latDeg++
		latMin = 0
	}
	lonDeg := int(lon)
	lonMin := int(math.Round((lon - float64(lonDeg)) * 60))
	if lonMin == 60 {
		lonDeg++
		lonMin = 0
	}
	return fmt.Sprintf("%s%02d%02d %s%03d%02d", latHemi, latDeg, latMin, lonHemi, lonDeg, lonMin)
}

// MetersToFeet converts upstream metric altitudes.
func MetersToFeet(m float64) float64 { return m * 3.28084 }

// MPSToKnots converts upstream metric ground speeds.
func MPSToKnots(mps float64) float64 { return mps * 1.9438445 }

// MPSToFPM converts vertical rates from m/s to ft/min.
func MPSToFPM(mps float64) float64 { return mps * 196.8504 }
