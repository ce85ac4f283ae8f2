// SPDX-License-Identifier: MIT

package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/source"
)

// tar1090Aircraft mirrors one entry of tar1090's aircraft.json. AltBaro is
// a json.RawMessage because readsb emits the string "ground" for aircraft
// on the apron.
type tar1090Aircraft struct {
	Hex      string          `json:"hex"`
	Flight   string          `json:"flight"`
	Lat      *float64        `json:"lat"`
	Lon      *float64        `json:"lon"`
	AltBaro  json.RawMessage `json:"alt_baro"`
	GS       float64         `json:"gs"`
	Track    float64         `json:"track"`
	BaroRate float64         `json:"baro_rate"`
	Squawk   string          `json:"squawk"`
}

type tar1090Response struct {
	Now      float64           `json:"now"`
	Aircraft []tar1090Aircraft `json:"aircraft"`
}

type tar1090Fetcher struct {
	url    string
	client *http.Client
}

// NewTAR1090 builds a source polling a local tar1090/readsb aircraft.json.
func NewTAR1090(url string, sink source.Sink, b *bus.Bus, interval time.Duration) *Base {
	f := &tar1090Fetcher{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	return NewBase("tar1090", "tar1090", f, sink, b, interval)
}

func (f *tar1090Fetcher) Fetch(ctx context.Context) ([]StateVector, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("tar1090: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tar1090: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tar1090: unexpected status %d", resp.StatusCode)
	}

	var doc tar1090Response
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("tar1090: decode: %w", err)
	}

	out := make([]StateVector, 0, len(doc.Aircraft))
	for _, ac := range doc.Aircraft {
		if ac.Hex == "" || ac.Lat == nil || ac.Lon == nil {
			continue
		}
		alt, onGround := decodeAltBaro(ac.AltBaro)
		out = append(out, StateVector{
			Hex:          strings.ToLower(ac.Hex),
			Flight:       strings.TrimSpace(ac.Flight),
			Lat:          *ac.Lat,
			Lon:          *ac.Lon,
			AltitudeFt:   alt,
			GroundSpeed:  ac.GS,
			Track:        ac.Track,
			VerticalRate: ac.BaroRate,
			Squawk:       ac.Squawk,
			OnGround:     onGround,
		})
	}
	return out, nil
}

// decodeAltBaro handles both numeric feet and the literal "ground".
func decodeAltBaro(raw json.RawMessage) (altFt float64, onGround bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s == "ground" {
		return 0, true
	}
	return 0, false
}
