// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/model"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	t.Setenv("AIRWAVE_AUDIO_RECORDINGS_DIR", t.TempDir())

	d, err := New(Options{
		DBPath:  filepath.Join(t.TempDir(), "airwave.db"),
		OpsAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.store.Close() })
	return d
}

func TestOpsHealthAndReadiness(t *testing.T) {
	d := newTestDaemon(t)
	srv := httptest.NewServer(d.opsRouter(context.Background()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Readiness follows the lifecycle flag.
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	d.ready.Store(true)
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpsMessagesEndpoint(t *testing.T) {
	d := newTestDaemon(t)
	srv := httptest.NewServer(d.opsRouter(context.Background()))
	defer srv.Close()

	msg := &model.Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      model.SourceACARS,
		Source:    model.SourceInfo{Type: "acars"},
		Flight:    "UAL123",
		Text:      "OUT 1432Z FUEL 10200",
	}
	require.NotNil(t, d.processor.Process(msg))

	resp, err := http.Get(srv.URL + "/api/v1/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var msgs []*model.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.Equal(t, model.CategoryOOOI, msgs[0].Category)
}

func TestOpsErrorMapping(t *testing.T) {
	d := newTestDaemon(t)
	srv := httptest.NewServer(d.opsRouter(context.Background()))
	defer srv.Close()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/aircraft/UNKNOWN/track", http.StatusNotFound},
		{http.MethodGet, "/api/v1/recordings/nope", http.StatusNotFound},
		{http.MethodGet, "/api/v1/photos/N123US", http.StatusNotFound},
		{http.MethodGet, "/api/v1/messages/search", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/sources/nope/restart", http.StatusNotFound},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode, "%s %s", tt.method, tt.path)
	}
}

func TestOpsConfigRoundTrip(t *testing.T) {
	d := newTestDaemon(t)
	srv := httptest.NewServer(d.opsRouter(context.Background()))
	defer srv.Close()

	put := func(body string) *http.Response {
		req, err := http.NewRequest(http.MethodPut,
			srv.URL+"/api/v1/config/tar1090/poll_interval", strings.NewReader(body))
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := put(`{"value": "9000"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/api/v1/config/tar1090/poll_interval")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, "9000", got["value"])

	// Type violations bounce with 400 and leave the value untouched.
	resp = put(`{"value": "fast"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 9000, d.cfg.GetInt("tar1090", "poll_interval"))
}

func TestOpsAircraftColdStartFallback(t *testing.T) {
	d := newTestDaemon(t)
	srv := httptest.NewServer(d.opsRouter(context.Background()))
	defer srv.Close()

	// State flushed by a previous run: rows exist, the live map is empty.
	require.NoError(t, d.store.UpsertAircraftState(&model.Aircraft{
		Hex:      "a1b2c3",
		Flight:   "UAL123",
		LastSeen: time.Now().UTC(),
	}))
	require.Zero(t, d.tracker.Size())

	resp, err := http.Get(srv.URL + "/api/v1/aircraft")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var aircraft []*model.Aircraft
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&aircraft))
	require.Len(t, aircraft, 1)
	assert.Equal(t, "a1b2c3", aircraft[0].Hex)

	// Once live traffic arrives the tracker serves the list again.
	require.NotNil(t, d.processor.Process(&model.Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      model.SourceADSB,
		Source:    model.SourceInfo{Type: "adsb"},
		Hex:       "d4e5f6",
		Position:  &model.Position{Lat: 40.0, Lon: -74.0},
	}))
	resp, err = http.Get(srv.URL + "/api/v1/aircraft")
	require.NoError(t, err)
	defer resp.Body.Close()
	aircraft = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&aircraft))
	require.Len(t, aircraft, 1)
	assert.Equal(t, "d4e5f6", aircraft[0].Hex)
}

func TestFlushAircraftPersistsTrackerState(t *testing.T) {
	d := newTestDaemon(t)
	now := time.Now().UTC()

	out := d.processor.Process(&model.Message{
		ID:        uuid.NewString(),
		Timestamp: now,
		Type:      model.SourceADSB,
		Source:    model.SourceInfo{Type: "adsb"},
		Hex:       "a1b2c3",
		Flight:    "UAL123",
		Position:  &model.Position{Lat: 42.0, Lon: -73.0, AltitudeFt: 35000},
	})
	require.NotNil(t, out)
	require.Equal(t, 1, d.tracker.Size())

	d.flushAircraft()

	// ADS-B traffic never lands in the messages table, yet its track is
	// queryable once flushed.
	trk, err := d.store.GetAircraftTrack("a1b2c3")
	require.NoError(t, err)
	require.Len(t, trk.TrackPoints, 1)
	assert.InDelta(t, 42.0, trk.TrackPoints[0].Lat, 0.0001)
	assert.Equal(t, "UAL123", trk.Metadata["flight"])
	assert.Empty(t, trk.MessageHistory)
}
