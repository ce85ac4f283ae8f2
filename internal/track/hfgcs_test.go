// SPDX-License-Identifier: MIT

package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/model"
)

func TestClassifyDetectionOrder(t *testing.T) {
	tests := []struct {
		name   string
		msg    *model.Message
		method model.DetectionMethod
		class  model.Classification
		hit    bool
	}{
		{
			name:   "hex table",
			msg:    &model.Message{Hex: "ADFEB4"},
			method: model.DetectByHex,
			class:  model.ClassE4B,
			hit:    true,
		},
		{
			name:   "callsign prefix",
			msg:    &model.Message{Flight: "IRON99"},
			method: model.DetectByCallsign,
			class:  model.ClassE6B,
			hit:    true,
		},
		{
			name:   "callsign prefix unclassified platform",
			msg:    &model.Message{Flight: "SLICK21"},
			method: model.DetectByCallsign,
			class:  model.ClassOtherMilitary,
			hit:    true,
		},
		{
			name:   "tail list",
			msg:    &model.Message{Tail: "164388"},
			method: model.DetectByTail,
			class:  model.ClassE6B,
			hit:    true,
		},
		{
			name:   "type substring",
			msg:    &model.Message{Text: "TACAMO ORBIT ESTABLISHED"},
			method: model.DetectByType,
			class:  model.ClassE6B,
			hit:    true,
		},
		{
			name:   "nightwatch substring",
			msg:    &model.Message{Text: "NIGHTWATCH AIRBORNE"},
			method: model.DetectByType,
			class:  model.ClassE4B,
			hit:    true,
		},
		{
			name: "civilian traffic",
			msg:  &model.Message{Hex: "a1b2c3", Flight: "UAL123", Text: "OUT 1432Z"},
		},
		{
			// Hex wins over a matching callsign.
			name:   "hex beats callsign",
			msg:    &model.Message{Hex: "adfeb3", Flight: "IRON99"},
			method: model.DetectByHex,
			class:  model.ClassE4B,
			hit:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, class, hit := Classify(tt.msg)
			assert.Equal(t, tt.hit, hit)
			if tt.hit {
				assert.Equal(t, tt.method, method)
				assert.Equal(t, tt.class, class)
			}
		})
	}
}

func TestHFGCSTrackerLifecycle(t *testing.T) {
	b := bus.New(0)
	sub := b.Subscribe(bus.TopicHFGCSAircraft)
	h := NewHFGCSTracker(10*time.Minute, b)
	now := time.Now().UTC()

	h.Observe(&model.Message{Flight: "GORDO15", Timestamp: now})
	ev := <-sub.C()
	det := ev.Data.(HFGCSEvent)
	assert.Equal(t, "detected", det.Event)
	assert.Equal(t, model.DetectByCallsign, det.Aircraft.DetectionMethod)
	assert.Equal(t, now, det.Aircraft.FirstDetected)

	h.Observe(&model.Message{Flight: "GORDO15", Timestamp: now.Add(time.Minute)})
	ev = <-sub.C()
	upd := ev.Data.(HFGCSEvent)
	assert.Equal(t, "updated", upd.Event)
	assert.Equal(t, int64(2), upd.Aircraft.MessageCount)

	require.Len(t, h.ListActive(), 1)

	// Past the stale window the aircraft is lost.
	h.EvictStale(now.Add(15 * time.Minute))
	ev = <-sub.C()
	lost := ev.Data.(HFGCSEvent)
	assert.Equal(t, "lost", lost.Event)
	assert.Empty(t, h.ListActive())
}

func TestHFGCSTrackerIgnoresCivilian(t *testing.T) {
	b := bus.New(0)
	sub := b.Subscribe(bus.TopicHFGCSAircraft)
	h := NewHFGCSTracker(10*time.Minute, b)

	h.Observe(&model.Message{Flight: "UAL123", Timestamp: time.Now().UTC()})
	assert.Empty(t, h.ListActive())
	select {
	case <-sub.C():
		t.Fatal("unexpected event for civilian traffic")
	default:
	}
}
