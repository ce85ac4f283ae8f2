// SPDX-License-Identifier: MIT

package track

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/model"
)

func adsbUpdate(hex string, ts time.Time, lat float64) *model.Message {
	return &model.Message{
		Hex:       hex,
		Timestamp: ts,
		Type:      model.SourceADSB,
		Position:  &model.Position{Lat: lat, Lon: -73.0, AltitudeFt: 35000},
	}
}

func TestTrackerUpsertAndGet(t *testing.T) {
	tr := NewTracker(5*time.Minute, nil)
	now := time.Now().UTC()

	ac := tr.Upsert(adsbUpdate("a1b2c3", now, 42.0))
	require.NotNil(t, ac)
	assert.Equal(t, int64(1), ac.MessageCount)
	require.Len(t, ac.Track, 1)

	got, ok := tr.Get("a1b2c3")
	require.True(t, ok)
	assert.Equal(t, "a1b2c3", got.Hex)
	assert.Equal(t, 1, tr.Size())

	_, ok = tr.Get("missing")
	assert.False(t, ok)
}

func TestTrackerIdentifierFallback(t *testing.T) {
	tr := NewTracker(5*time.Minute, nil)
	now := time.Now().UTC()

	// No hex: keyed by tail, then flight.
	tr.Upsert(&model.Message{Tail: "N123US", Timestamp: now})
	_, ok := tr.Get("N123US")
	assert.True(t, ok)

	tr.Upsert(&model.Message{Flight: "UAL123", Timestamp: now})
	_, ok = tr.Get("UAL123")
	assert.True(t, ok)

	// No identity at all is a no-op.
	assert.Nil(t, tr.Upsert(&model.Message{Timestamp: now}))
	assert.Equal(t, 2, tr.Size())
}

func TestTrackerRingBounded(t *testing.T) {
	tr := NewTracker(5*time.Minute, nil)
	base := time.Now().UTC()

	for i := 0; i < DefaultTrackRing+50; i++ {
		tr.Upsert(adsbUpdate("a1b2c3", base.Add(time.Duration(i)*time.Second), 42.0+float64(i)*0.01))
	}

	got, ok := tr.Get("a1b2c3")
	require.True(t, ok)
	assert.Len(t, got.Track, DefaultTrackRing)
	// Oldest points were shifted out; the newest survives at the end.
	assert.Equal(t, base.Add(time.Duration(DefaultTrackRing+49)*time.Second), got.Track[DefaultTrackRing-1].Timestamp)
}

func TestTrackerDropsOutOfOrderPoints(t *testing.T) {
	tr := NewTracker(5*time.Minute, nil)
	base := time.Now().UTC()

	tr.Upsert(adsbUpdate("a1b2c3", base, 42.0))
	tr.Upsert(adsbUpdate("a1b2c3", base.Add(-time.Second), 43.0)) // older, dropped
	tr.Upsert(adsbUpdate("a1b2c3", base, 44.0))                   // equal, dropped

	got, _ := tr.Get("a1b2c3")
	require.Len(t, got.Track, 1)
	assert.Equal(t, 42.0, got.Track[0].Lat)
	// The live state still took the newest update.
	assert.Equal(t, int64(3), got.MessageCount)
}

func TestTrackerEvictStale(t *testing.T) {
	tr := NewTracker(5*time.Minute, nil)
	now := time.Now().UTC()

	tr.Upsert(adsbUpdate("stale1", now.Add(-10*time.Minute), 42.0))
	tr.Upsert(adsbUpdate("fresh1", now, 42.0))

	evicted := tr.EvictStale(now)
	assert.Equal(t, []string{"stale1"}, evicted)
	assert.Equal(t, 1, tr.Size())
	_, ok := tr.Get("fresh1")
	assert.True(t, ok)
}

type fakeRegStore struct {
	lookups int
}

func (f *fakeRegStore) LookupRegistration(hex string) (string, string, error) {
	f.lookups++
	if hex == "a1b2c3" {
		return "N456AW", "B742", nil
	}
	return "", "", fmt.Errorf("not found")
}

func TestTrackerResolvesRegistration(t *testing.T) {
	regs := &fakeRegStore{}
	tr := NewTracker(5*time.Minute, regs)
	now := time.Now().UTC()

	ac := tr.Upsert(adsbUpdate("a1b2c3", now, 42.0))
	assert.Equal(t, "N456AW", ac.Registration)
	assert.Equal(t, "B742", ac.TypeCode)

	// Second upsert hits the cache, not the store.
	tr.Upsert(adsbUpdate("a1b2c3", now.Add(time.Second), 42.1))
	assert.Equal(t, 1, regs.lookups)
}

func TestSnapshotDoesNotAliasTrack(t *testing.T) {
	tr := NewTracker(5*time.Minute, nil)
	now := time.Now().UTC()
	tr.Upsert(adsbUpdate("a1b2c3", now, 42.0))

	got, _ := tr.Get("a1b2c3")
	got.Track[0].Lat = 99.0

	again, _ := tr.Get("a1b2c3")
	assert.Equal(t, 42.0, again.Track[0].Lat)
}
