// SPDX-License-Identifier: MIT

// Package eamwatch polls the EAM.watch API for emergency action messages
// logged by the wider monitoring community and maps them onto canonical
// messages with source type eam.
package eamwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/model"
	"github.com/airwaveio/airwave/internal/source"
)

const sourceName = "eamwatch"

// Config holds the API endpoint, token and poll cadence.
type Config struct {
	APIURL   string
	APIToken string
	Interval time.Duration
}

// apiRecord mirrors one entry of the EAM.watch messages endpoint.
type apiRecord struct {
	Type           string `json:"type"` // EAM or SKYKING
	Header         string `json:"header"`
	Body           string `json:"body"`
	Confidence     int    `json:"confidence"`
	DetectedAt     string `json:"detected_at"`
	Codeword       string `json:"codeword"`
	TimeCode       string `json:"time_code"`
	Authentication string `json:"authentication"`
}

type apiResponse struct {
	Messages   []apiRecord `json:"messages"`
	NextCursor string      `json:"next_cursor"`
}

// Source polls the messages endpoint, paginating with a "since" cursor so
// each record is fetched once.
type Source struct {
	cfg    Config
	sink   source.Sink
	bus    *bus.Bus
	client *http.Client
	logger zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	cursor string // opaque pagination cursor from the last response

	connected    atomic.Bool
	messageCount atomic.Int64
	lastUpdate   atomic.Int64
}

// New builds the poller.
func New(cfg Config, sink source.Sink, b *bus.Bus) *Source {
	return &Source{
		cfg:    cfg,
		sink:   sink,
		bus:    b,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: log.WithSource(sourceName),
	}
}

// Name implements source.Source.
func (s *Source) Name() string { return sourceName }

// Start launches the poll loop. Non-blocking.
func (s *Source) Start(ctx context.Context) error {
	if s.done != nil {
		return fmt.Errorf("%s: already started", sourceName)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.pollLoop(loopCtx)
	return nil
}

// Stop cancels the poll loop and waits for it, bounded by ctx.
func (s *Source) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: stop timed out: %w", sourceName, ctx.Err())
	}
}

// Stats implements source.Source.
func (s *Source) Stats() source.Stats {
	return source.Stats{
		Connected:        s.connected.Load(),
		LastUpdate:       time.UnixMilli(s.lastUpdate.Load()),
		UpdateIntervalMS: s.cfg.Interval.Milliseconds(),
		MessageCount:     s.messageCount.Load(),
	}
}

func (s *Source) pollLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Source) poll(ctx context.Context) {
	s.mu.Lock()
	since := s.cursor
	s.mu.Unlock()

	doc, err := s.fetch(ctx, since)
	if err != nil {
		metrics.SourcePollsTotal.WithLabelValues(sourceName, "error").Inc()
		s.setConnected(false, err)
		s.logger.Warn().Err(err).Str("event", "source.poll_failed").Msg("poll failed")
		return
	}
	metrics.SourcePollsTotal.WithLabelValues(sourceName, "ok").Inc()
	s.setConnected(true, nil)
	s.lastUpdate.Store(time.Now().UnixMilli())

	if doc.NextCursor != "" {
		s.mu.Lock()
		s.cursor = doc.NextCursor
		s.mu.Unlock()
	}

	for _, rec := range doc.Messages {
		msg := normalize(rec)
		if !s.sink.Offer(msg) {
			metrics.SourceDropsTotal.WithLabelValues(sourceName).Inc()
			continue
		}
		s.messageCount.Add(1)
		metrics.SourceMessagesTotal.WithLabelValues(sourceName).Inc()
	}
}

func (s *Source) fetch(ctx context.Context, since string) (*apiResponse, error) {
	q := url.Values{}
	if since != "" {
		q.Set("since", since)
	}
	endpoint := strings.TrimSuffix(s.cfg.APIURL, "/") + "/messages"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("eamwatch: build request: %w", err)
	}
	if s.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eamwatch: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eamwatch: unexpected status %d", resp.StatusCode)
	}

	var doc apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("eamwatch: decode: %w", err)
	}
	return &doc, nil
}

func normalize(rec apiRecord) *model.Message {
	ts := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, rec.DetectedAt); err == nil {
		ts = t.UTC()
	}
	text := rec.Body
	if rec.Header != "" {
		text = rec.Header + " " + rec.Body
	}
	return &model.Message{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Source: model.SourceInfo{
			Type: string(model.SourceEAM),
			API:  "eamwatch",
		},
		Type:      model.SourceEAM,
		Text:      text,
		HFGCSType: strings.ToUpper(rec.Type),
	}
}

func (s *Source) setConnected(up bool, cause error) {
	if s.connected.Swap(up) == up {
		return
	}
	if up {
		metrics.SourceConnected.WithLabelValues(sourceName).Set(1)
		s.bus.Publish(bus.TopicSourceStatus, bus.SourceStatus{Source: sourceName, OK: true})
		return
	}
	metrics.SourceConnected.WithLabelValues(sourceName).Set(0)
	status := bus.SourceStatus{Source: sourceName, OK: false}
	if cause != nil {
		status.Error = cause.Error()
	}
	s.bus.Publish(bus.TopicSourceStatus, status)
}
