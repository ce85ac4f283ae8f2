// SPDX-License-Identifier: MIT

// Package airframes receives ACARS, VDL-M2 and HFDL records from the
// Airframes feed over WebSocket or NATS, or synthesizes records on a
// timer when no upstream is configured.
package airframes

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/source"
)

const (
	sourceName       = "airframes"
	reconnectBackoff = 2 * time.Second
	maxBackoff       = 60 * time.Second
	mockInterval     = 15 * time.Second
	natsSubject      = "airframes.feed.>"
)

// Config selects the transport. NATS wins over WebSocket when both are
// set; with neither, the source runs in mock mode.
type Config struct {
	WSURL   string
	NATSURL string
	APIKey  string
}

// Source is the Airframes feed source.
type Source struct {
	cfg    Config
	sink   source.Sink
	bus    *bus.Bus
	logger zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	connected    atomic.Bool
	messageCount atomic.Int64
	lastUpdate   atomic.Int64

	mu   sync.Mutex
	seen map[string]struct{} // distinct tails this session, for Stats
}

// New builds the source. Transport is picked at Start time from cfg.
func New(cfg Config, sink source.Sink, b *bus.Bus) *Source {
	return &Source{
		cfg:    cfg,
		sink:   sink,
		bus:    b,
		logger: log.WithSource(sourceName),
		seen:   make(map[string]struct{}),
	}
}

// Name implements source.Source.
func (s *Source) Name() string { return sourceName }

// Start launches the receive loop for the configured transport.
func (s *Source) Start(ctx context.Context) error {
	if s.done != nil {
		return fmt.Errorf("%s: already started", sourceName)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	switch {
	case s.cfg.NATSURL != "":
		go s.natsLoop(loopCtx)
	case s.cfg.WSURL != "":
		go s.wsLoop(loopCtx)
	default:
		s.logger.Info().Str("event", "source.mock_mode").Msg("no upstream configured, generating mock records")
		go s.mockLoop(loopCtx)
	}
	return nil
}

// Stop cancels the receive loop and waits for it, bounded by ctx.
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
	s.mu.Lock()
	tracked := len(s.seen)
	s.mu.Unlock()
	return source.Stats{
		Connected:       s.connected.Load(),
		TrackedEntities: tracked,
		LastUpdate:      time.UnixMilli(s.lastUpdate.Load()),
		MessageCount:    s.messageCount.Load(),
	}
}

func (s *Source) wsLoop(ctx context.Context) {
	defer close(s.done)

	backoff := reconnectBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		header := http.Header{}
		if s.cfg.APIKey != "" {
			header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.WSURL, header)
		if err != nil {
			s.setConnected(false, err)
			s.logger.Warn().Err(err).
				Dur("retry_in", backoff).
				Str("event", "source.dial_failed").
				Msg("websocket dial failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		s.setConnected(true, nil)
		backoff = reconnectBackoff
		s.readFrames(ctx, conn)
		_ = conn.Close()
	}
}

// readFrames drains one connection until it fails or ctx is done.
func (s *Source) readFrames(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.setConnected(false, err)
				s.logger.Warn().Err(err).Str("event", "source.read_failed").Msg("websocket read failed, reconnecting")
			}
			return
		}
		s.ingest(payload)
	}
}

func (s *Source) natsLoop(ctx context.Context) {
	defer close(s.done)

	nc, err := nats.Connect(s.cfg.NATSURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectBackoff),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.setConnected(false, err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			s.setConnected(true, nil)
		}),
	)
	if err != nil {
		s.setConnected(false, err)
		s.logger.Error().Err(err).Str("event", "source.nats_failed").Msg("nats connect failed")
		return
	}
	defer nc.Close()

	sub, err := nc.Subscribe(natsSubject, func(m *nats.Msg) {
		s.ingest(m.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("event", "source.nats_failed").Msg("nats subscribe failed")
		return
	}
	defer func() { _ = sub.Unsubscribe() }()

	s.setConnected(nc.IsConnected(), nil)
	<-ctx.Done()
}

func (s *Source) mockLoop(ctx context.Context) {
	defer close(s.done)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(mockInterval)
	defer ticker.Stop()

	s.setConnected(true, nil)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			raw, err := json.Marshal(mockRecord(rng))
			if err != nil {
				continue
			}
			s.ingest(raw)
		}
	}
}

// ingest decodes one wire record and offers the normalized message. A
// malformed frame is counted and skipped, never fatal.
func (s *Source) ingest(payload []byte) {
	var rec wireRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		metrics.SourcePollsTotal.WithLabelValues(sourceName, "error").Inc()
		s.logger.Debug().Err(err).Msg("skipping malformed feed record")
		return
	}

	msg := normalize(rec)
	if !s.sink.Offer(msg) {
		metrics.SourceDropsTotal.WithLabelValues(sourceName).Inc()
		return
	}

	s.messageCount.Add(1)
	s.lastUpdate.Store(time.Now().UnixMilli())
	metrics.SourceMessagesTotal.WithLabelValues(sourceName).Inc()

	if msg.Tail != "" {
		s.mu.Lock()
		s.seen[msg.Tail] = struct{}{}
		s.mu.Unlock()
	}
}

func (s *Source) setConnected(up bool, cause error) {
	if s.connected.Swap(up) == up {
		return
	}
	if up {
		metrics.SourceConnected.WithLabelValues(sourceName).Set(1)
		s.bus.Publish(bus.TopicSourceStatus, bus.SourceStatus{Source: sourceName, OK: true})
		s.logger.Info().Str("event", "source.connected").Msg("connected")
		return
	}
	metrics.SourceConnected.WithLabelValues(sourceName).Set(0)
	status := bus.SourceStatus{Source: sourceName, OK: false}
	if cause != nil {
		status.Error = cause.Error()
	}
	s.bus.Publish(bus.TopicSourceStatus, status)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
