// SPDX-License-Identifier: MIT

package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/source"
)

// OpenSkyConfig bounds the query to a lat/lon box around a center point.
type OpenSkyConfig struct {
	BaseURL   string
	CenterLat float64
	CenterLon float64
	RadiusDeg float64
	Interval  time.Duration
}

type openskyFetcher struct {
	cfg    OpenSkyConfig
	client *http.Client
}

// NewOpenSky builds a source polling the OpenSky Network states API.
// OpenSky reports metric units; the fetcher converts to feet and knots.
func NewOpenSky(cfg OpenSkyConfig, sink source.Sink, b *bus.Bus) *Base {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://opensky-network.org"
	}
	f := &openskyFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	return NewBase("opensky", "opensky", f, sink, b, cfg.Interval)
}

// openskyResponse carries positional state vector arrays; fields are
// indexed, not named, so entries decode into []any.
type openskyResponse struct {
	Time   int64   `json:"time"`
	States [][]any `json:"states"`
}

func (f *openskyFetcher) Fetch(ctx context.Context) ([]StateVector, error) {
	q := url.Values{}
	q.Set("lamin", fmt.Sprintf("%.4f", f.cfg.CenterLat-f.cfg.RadiusDeg))
	q.Set("lamax", fmt.Sprintf("%.4f", f.cfg.CenterLat+f.cfg.RadiusDeg))
	q.Set("lomin", fmt.Sprintf("%.4f", f.cfg.CenterLon-f.cfg.RadiusDeg))
	q.Set("lomax", fmt.Sprintf("%.4f", f.cfg.CenterLon+f.cfg.RadiusDeg))

	endpoint := strings.TrimSuffix(f.cfg.BaseURL, "/") + "/api/states/all?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("opensky: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opensky: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensky: unexpected status %d", resp.StatusCode)
	}

	var doc openskyResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("opensky: decode: %w", err)
	}

	out := make([]StateVector, 0, len(doc.States))
	for _, st := range doc.States {
		sv, ok := decodeOpenSkyState(st)
		if !ok {
			continue
		}
		out = append(out, sv)
	}
	return out, nil
}

// State vector array layout (positional):
//
//	0 icao24, 1 callsign, 2 origin_country, 3 time_position,
//	4 last_contact, 5 longitude, 6 latitude, 7 baro_altitude (m),
//	8 on_ground, 9 velocity (m/s), 10 true_track, 11 vertical_rate (m/s)
func decodeOpenSkyState(st []any) (StateVector, bool) {
	if len(st) < 12 {
		return StateVector{}, false
	}
	hex, _ := st[0].(string)
	lon, okLon := toFloat(st[5])
	lat, okLat := toFloat(st[6])
	if hex == "" || !okLon || !okLat {
		return StateVector{}, false
	}

	sv := StateVector{
		Hex: strings.ToLower(hex),
		Lat: lat,
		Lon: lon,
	}
	if cs, ok := st[1].(string); ok {
		sv.Flight = strings.TrimSpace(cs)
	}
	if alt, ok := toFloat(st[7]); ok {
		sv.AltitudeFt = MetersToFeet(alt)
	}
	if og, ok := st[8].(bool); ok {
		sv.OnGround = og
	}
	if vel, ok := toFloat(st[9]); ok {
		sv.GroundSpeed = MPSToKnots(vel)
	}
	if trk, ok := toFloat(st[10]); ok {
		sv.Track = trk
	}
	if vr, ok := toFloat(st[11]); ok {
		sv.VerticalRate = MPSToFPM(vr)
	}
	return sv, true
}

func toFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
