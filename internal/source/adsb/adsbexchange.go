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

// ExchangeConfig selects the RapidAPI endpoint and the query circle.
type ExchangeConfig struct {
	APIURL   string
	APIKey   string
	Lat      float64
	Lon      float64
	DistNM   int
	Interval time.Duration
}

type exchangeFetcher struct {
	cfg    ExchangeConfig
	client *http.Client
}

// NewExchange builds a source polling the ADS-B Exchange RapidAPI feed
// for aircraft within a circle around the configured point.
func NewExchange(cfg ExchangeConfig, sink source.Sink, b *bus.Bus) *Base {
	f := &exchangeFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	return NewBase("adsbexchange", "adsbexchange", f, sink, b, cfg.Interval)
}

type exchangeResponse struct {
	AC []tar1090Aircraft `json:"ac"`
}

func (f *exchangeFetcher) Fetch(ctx context.Context) ([]StateVector, error) {
	endpoint := fmt.Sprintf("%s/lat/%.4f/lon/%.4f/dist/%d/",
		strings.TrimSuffix(f.cfg.APIURL, "/"), f.cfg.Lat, f.cfg.Lon, f.cfg.DistNM)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("adsbexchange: build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", f.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", "adsbexchange-com1.p.rapidapi.com")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adsbexchange: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("adsbexchange: api key rejected (status %d)", resp.StatusCode)
	default:
		return nil, fmt.Errorf("adsbexchange: unexpected status %d", resp.StatusCode)
	}

	var doc exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("adsbexchange: decode: %w", err)
	}

	out := make([]StateVector, 0, len(doc.AC))
	for _, ac := range doc.AC {
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
