// SPDX-License-Identifier: MIT

package process

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/model"
	"github.com/airwaveio/airwave/internal/schema"
	"github.com/airwaveio/airwave/internal/track"
)

type fakeStore struct {
	saved []*model.Message
}

func (f *fakeStore) SaveMessage(msg *model.Message) (bool, error) {
	f.saved = append(f.saved, msg)
	return true, nil
}

func newTestProcessor(t *testing.T) (*Processor, *fakeStore, *bus.Bus) {
	t.Helper()
	validator, err := schema.Load()
	require.NoError(t, err)

	st := &fakeStore{}
	b := bus.New(0)
	tracker := track.NewTracker(5*time.Minute, nil)
	hfgcs := track.NewHFGCSTracker(10*time.Minute, b)
	return New(st, validator, tracker, hfgcs, b), st, b
}

func acarsMsg(text string) *model.Message {
	return &model.Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    model.SourceInfo{Type: "acars"},
		Type:      model.SourceACARS,
		Flight:    "UAL123",
		Text:      text,
	}
}

func TestProcessPersistsTextMessage(t *testing.T) {
	p, st, b := newTestProcessor(t)
	sub := b.Subscribe(bus.TopicMessage)

	out := p.Process(acarsMsg("OUT 1432Z FUEL 10200"))
	require.NotNil(t, out)

	assert.Equal(t, uint64(1), out.MessageNumber)
	assert.Equal(t, model.CategoryOOOI, out.Category)
	require.NotNil(t, out.Validation)
	assert.True(t, out.Validation.Valid)
	require.Len(t, st.saved, 1)

	select {
	case ev := <-sub.C():
		assert.Equal(t, bus.TopicMessage, ev.Type)
	default:
		t.Fatal("expected message event")
	}
}

func TestProcessADSBNotPersisted(t *testing.T) {
	p, st, _ := newTestProcessor(t)

	out := p.Process(&model.Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    model.SourceInfo{Type: "adsb"},
		Type:      model.SourceADSB,
		Hex:       "a1b2c3",
		Position:  &model.Position{Lat: 42.0, Lon: -73.0, AltitudeFt: 35000},
	})
	require.NotNil(t, out)

	assert.Equal(t, model.CategoryADSB, out.Category)
	assert.Nil(t, out.Validation)
	assert.Empty(t, st.saved)
}

func TestProcessInvalidMessagePersistedAnyway(t *testing.T) {
	p, st, _ := newTestProcessor(t)

	// Bad hex pattern fails the envelope schema; the message still lands.
	m := acarsMsg("CREW SCHEDULING")
	m.Hex = "not-a-hex"
	out := p.Process(m)
	require.NotNil(t, out)
	require.NotNil(t, out.Validation)
	assert.False(t, out.Validation.Valid)
	assert.NotEmpty(t, out.Validation.Errors)
	assert.Len(t, st.saved, 1)
}

func TestProcessRejectsIncompleteMessage(t *testing.T) {
	p, st, _ := newTestProcessor(t)
	assert.Nil(t, p.Process(&model.Message{ID: "x"}))           // no timestamp
	assert.Nil(t, p.Process(&model.Message{Timestamp: time.Now()})) // no id
	assert.Nil(t, p.Process(nil))
	assert.Empty(t, st.saved)
}

func TestProcessSequenceMonotonic(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	first := p.Process(acarsMsg("A"))
	second := p.Process(acarsMsg("B"))
	assert.Equal(t, uint64(1), first.MessageNumber)
	assert.Equal(t, uint64(2), second.MessageNumber)
	assert.Equal(t, uint64(2), p.Sequence())
}

func TestProcessFeedsHFGCSTracker(t *testing.T) {
	p, _, b := newTestProcessor(t)
	sub := b.Subscribe(bus.TopicHFGCSAircraft)

	m := acarsMsg("position report")
	m.Flight = "IRON99"
	p.Process(m)

	select {
	case ev := <-sub.C():
		hev, ok := ev.Data.(track.HFGCSEvent)
		require.True(t, ok)
		assert.Equal(t, "detected", hev.Event)
		assert.Equal(t, model.ClassE6B, hev.Aircraft.Classification)
	default:
		t.Fatal("expected hfgcs_aircraft event")
	}
}

func TestOfferBoundedQueue(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	for i := 0; i < DefaultQueueSize; i++ {
		require.True(t, p.Offer(acarsMsg("X")))
	}
	assert.False(t, p.Offer(acarsMsg("overflow")))
}
