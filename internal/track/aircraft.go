// SPDX-License-Identifier: MIT

// Package track holds the live aircraft map fed by ADS-B updates and the
// military watch tracker layered on top of it.
package track

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/model"
)

// DefaultTrackRing bounds the per-aircraft position history.
const DefaultTrackRing = 200

const registrationCacheSize = 4096

// RegistrationStore resolves ICAO hex codes to registrations.
type RegistrationStore interface {
	LookupRegistration(hex string) (registration, typeCode string, err error)
}

type regEntry struct {
	registration string
	typeCode     string
}

// Tracker is the in-memory live aircraft map. Upsert is O(1); listing is
// O(live-set). Eviction runs on the supervisor's periodic tick.
type Tracker struct {
	mu       sync.RWMutex
	aircraft map[string]*model.Aircraft

	maxTrack   int
	staleAfter time.Duration

	regStore RegistrationStore
	regCache *lru.Cache[string, regEntry]

	logger zerolog.Logger
}

// NewTracker builds a tracker evicting aircraft unseen for staleAfter.
// regStore may be nil when no registration table is available.
func NewTracker(staleAfter time.Duration, regStore RegistrationStore) *Tracker {
	cache, _ := lru.New[string, regEntry](registrationCacheSize)
	return &Tracker{
		aircraft:   make(map[string]*model.Aircraft),
		maxTrack:   DefaultTrackRing,
		staleAfter: staleAfter,
		regStore:   regStore,
		regCache:   cache,
		logger:     log.WithComponent("tracker"),
	}
}

// Upsert folds one message into the live map and returns the updated
// aircraft. Track points are appended only when the message carries a
// position with a timestamp after the last recorded point.
func (t *Tracker) Upsert(msg *model.Message) *model.Aircraft {
	key := msg.Identifier()
	if key == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ac, ok := t.aircraft[key]
	if !ok {
		ac = &model.Aircraft{}
		t.aircraft[key] = ac
	}

	if msg.Hex != "" {
		ac.Hex = msg.Hex
	}
	if msg.Tail != "" {
		ac.Tail = msg.Tail
	}
	if msg.Flight != "" {
		ac.Flight = msg.Flight
	}
	if msg.Squawk != "" {
		ac.Squawk = msg.Squawk
	}
	if msg.FlightPhase != "" {
		ac.FlightPhase = msg.FlightPhase
	}
	if msg.Position != nil {
		ac.Position = msg.Position
		ac.GroundSpeed = msg.GroundSpeed
		ac.Heading = msg.Heading
		ac.VerticalRate = msg.VerticalRate
		ac.OnGround = msg.OnGround
		t.appendTrackPoint(ac, msg)
	}
	if ac.Registration == "" && ac.Hex != "" {
		reg := t.resolveRegistration(ac.Hex)
		ac.Registration = reg.registration
		if ac.TypeCode == "" {
			ac.TypeCode = reg.typeCode
		}
	}

	ac.LastSeen = msg.Timestamp
	ac.MessageCount++
	return ac
}

// appendTrackPoint keeps the ring bounded and its timestamps strictly
// increasing. Out-of-order samples are dropped.
func (t *Tracker) appendTrackPoint(ac *model.Aircraft, msg *model.Message) {
	if n := len(ac.Track); n > 0 && !msg.Timestamp.After(ac.Track[n-1].Timestamp) {
		return
	}
	ac.Track = append(ac.Track, model.TrackPoint{
		Lat:          msg.Position.Lat,
		Lon:          msg.Position.Lon,
		AltitudeFt:   msg.Position.AltitudeFt,
		GroundSpeed:  msg.GroundSpeed,
		Heading:      msg.Heading,
		VerticalRate: msg.VerticalRate,
		Timestamp:    msg.Timestamp,
	})
	if len(ac.Track) > t.maxTrack {
		ac.Track = ac.Track[len(ac.Track)-t.maxTrack:]
	}
}

// resolveRegistration is a read-through LRU over the registration table.
// Lookup failures are not cached so a later import can still resolve.
func (t *Tracker) resolveRegistration(hex string) regEntry {
	if entry, ok := t.regCache.Get(hex); ok {
		return entry
	}
	if t.regStore == nil {
		return regEntry{}
	}
	reg, tc, err := t.regStore.LookupRegistration(hex)
	if err != nil {
		return regEntry{}
	}
	entry := regEntry{registration: reg, typeCode: tc}
	t.regCache.Add(hex, entry)
	return entry
}

// Get returns a copy of the aircraft tracked under identifier.
func (t *Tracker) Get(identifier string) (model.Aircraft, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ac, ok := t.aircraft[identifier]
	if !ok {
		return model.Aircraft{}, false
	}
	return snapshot(ac), true
}

// ListActive returns copies of every tracked aircraft.
func (t *Tracker) ListActive() []model.Aircraft {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Aircraft, 0, len(t.aircraft))
	for _, ac := range t.aircraft {
		out = append(out, snapshot(ac))
	}
	return out
}

// EvictStale removes aircraft unseen since now minus the stale window and
// returns the evicted identifiers.
func (t *Tracker) EvictStale(now time.Time) []string {
	cutoff := now.Add(-t.staleAfter)

	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []string
	for key, ac := range t.aircraft {
		if ac.LastSeen.Before(cutoff) {
			delete(t.aircraft, key)
			evicted = append(evicted, key)
		}
	}
	if len(evicted) > 0 {
		t.logger.Debug().Int("count", len(evicted)).Msg("evicted stale aircraft")
	}
	return evicted
}

// Size returns the live-set size.
func (t *Tracker) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.aircraft)
}

// snapshot deep-copies the mutable track slice so callers never alias
// tracker-owned state.
func snapshot(ac *model.Aircraft) model.Aircraft {
	cp := *ac
	if ac.Position != nil {
		pos := *ac.Position
		cp.Position = &pos
	}
	cp.Track = append([]model.TrackPoint(nil), ac.Track...)
	return cp
}
