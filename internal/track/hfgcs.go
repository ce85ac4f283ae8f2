// SPDX-License-Identifier: MIT

package track

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/model"
)

// Curated watch tables. Hexes cover the E-4B fleet; tails cover the E-6B
// Mercury fleet operating on HFGCS frequencies.
var militaryHexes = map[string]model.Classification{
	"adfeb3": model.ClassE4B,
	"adfeb4": model.ClassE4B,
	"adfeb5": model.ClassE4B,
	"adfeb6": model.ClassE4B,
}

var militaryCallsignPrefixes = []string{"IRON", "GOTO", "GORDO", "TITAN", "SLICK"}

var militaryTails = map[string]model.Classification{
	"162782": model.ClassE6B,
	"162783": model.ClassE6B,
	"162784": model.ClassE6B,
	"163918": model.ClassE6B,
	"163919": model.ClassE6B,
	"163920": model.ClassE6B,
	"164386": model.ClassE6B,
	"164387": model.ClassE6B,
	"164388": model.ClassE6B,
	"164404": model.ClassE6B,
	"164405": model.ClassE6B,
	"164406": model.ClassE6B,
	"164407": model.ClassE6B,
	"164408": model.ClassE6B,
	"164409": model.ClassE6B,
	"164410": model.ClassE6B,
}

var militaryTypeSubstrings = []string{"E-6B", "E-6", "E6", "E-4B", "E-4", "E4", "TACAMO", "NIGHTWATCH"}

// HFGCSEvent is the payload published on the hfgcs_aircraft topic.
type HFGCSEvent struct {
	Event    string              `json:"event"` // detected, updated, lost
	Aircraft model.HFGCSAircraft `json:"aircraft"`
}

// HFGCSTracker watches the message stream for military aircraft. Four
// detection methods run in order; the first hit wins.
type HFGCSTracker struct {
	mu       sync.Mutex
	aircraft map[string]*model.HFGCSAircraft

	staleAfter time.Duration
	bus        *bus.Bus
	logger     zerolog.Logger
}

// NewHFGCSTracker builds the watcher. Lost events fire from EvictStale
// after staleAfter without messages.
func NewHFGCSTracker(staleAfter time.Duration, b *bus.Bus) *HFGCSTracker {
	return &HFGCSTracker{
		aircraft:   make(map[string]*model.HFGCSAircraft),
		staleAfter: staleAfter,
		bus:        b,
		logger:     log.WithComponent("hfgcs"),
	}
}

// Classify applies the detection methods to a message. The boolean is
// false for non-military traffic.
func Classify(msg *model.Message) (model.DetectionMethod, model.Classification, bool) {
	if cls, ok := militaryHexes[strings.ToLower(msg.Hex)]; ok {
		return model.DetectByHex, cls, true
	}
	callsign := strings.ToUpper(strings.TrimSpace(msg.Flight))
	for _, prefix := range militaryCallsignPrefixes {
		if strings.HasPrefix(callsign, prefix) {
			return model.DetectByCallsign, classifyCallsign(prefix), true
		}
	}
	if cls, ok := militaryTails[strings.TrimSpace(msg.Tail)]; ok {
		return model.DetectByTail, cls, true
	}
	typeField := strings.ToUpper(msg.Label + " " + msg.Text)
	for _, sub := range militaryTypeSubstrings {
		if strings.Contains(typeField, sub) {
			return model.DetectByType, classifyType(sub), true
		}
	}
	return "", "", false
}

// IRON/GOTO callsigns historically belong to E-6B missions; the rest are
// rotated across platforms and stay unclassified.
func classifyCallsign(prefix string) model.Classification {
	switch prefix {
	case "IRON", "GOTO":
		return model.ClassE6B
	default:
		return model.ClassOtherMilitary
	}
}

func classifyType(sub string) model.Classification {
	switch sub {
	case "E-6B", "E-6", "E6", "TACAMO":
		return model.ClassE6B
	case "E-4B", "E-4", "E4", "NIGHTWATCH":
		return model.ClassE4B
	default:
		return model.ClassOtherMilitary
	}
}

// Observe feeds one message through detection. Non-military messages are
// ignored. Detected and updated events publish on the bus.
func (h *HFGCSTracker) Observe(msg *model.Message) {
	method, cls, ok := Classify(msg)
	if !ok {
		return
	}
	key := msg.Identifier()
	if key == "" {
		return
	}

	h.mu.Lock()
	ac, seen := h.aircraft[key]
	if !seen {
		ac = &model.HFGCSAircraft{
			DetectionMethod: method,
			Classification:  cls,
			FirstDetected:   msg.Timestamp,
		}
		h.aircraft[key] = ac
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
	if msg.Position != nil {
		ac.Position = msg.Position
	}
	ac.LastSeen = msg.Timestamp
	ac.MessageCount++
	event := cloneHFGCS(ac)
	h.mu.Unlock()

	if !seen {
		h.logger.Info().
			Str("identifier", key).
			Str("method", string(method)).
			Str("classification", string(cls)).
			Str("event", "hfgcs.detected").
			Msg("military aircraft detected")
		h.bus.Publish(bus.TopicHFGCSAircraft, HFGCSEvent{Event: "detected", Aircraft: event})
		return
	}
	h.bus.Publish(bus.TopicHFGCSAircraft, HFGCSEvent{Event: "updated", Aircraft: event})
}

// ListActive returns copies of every watched aircraft.
func (h *HFGCSTracker) ListActive() []model.HFGCSAircraft {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.HFGCSAircraft, 0, len(h.aircraft))
	for _, ac := range h.aircraft {
		out = append(out, cloneHFGCS(ac))
	}
	return out
}

// EvictStale publishes a lost event for every aircraft unseen past the
// stale window and removes it.
func (h *HFGCSTracker) EvictStale(now time.Time) {
	cutoff := now.Add(-h.staleAfter)

	h.mu.Lock()
	var lost []model.HFGCSAircraft
	for key, ac := range h.aircraft {
		if ac.LastSeen.Before(cutoff) {
			lost = append(lost, cloneHFGCS(ac))
			delete(h.aircraft, key)
		}
	}
	h.mu.Unlock()

	for _, ac := range lost {
		h.logger.Info().
			Str("identifier", ac.Identifier()).
			Str("event", "hfgcs.lost").
			Msg("military aircraft lost")
		h.bus.Publish(bus.TopicHFGCSAircraft, HFGCSEvent{Event: "lost", Aircraft: ac})
	}
}

// cloneHFGCS copies the record for publication. Caller holds h.mu.
func cloneHFGCS(a *model.HFGCSAircraft) model.HFGCSAircraft {
	cp := *a
	if a.Position != nil {
		pos := *a.Position
		cp.Position = &pos
	}
	cp.Track = append([]model.TrackPoint(nil), a.Track...)
	return cp
}
