// SPDX-License-Identifier: MIT

// Package process is the single-pass enrichment pipeline between the
// sources and everything downstream. Each message gets a sequence number,
// a category, structured fields, a validation verdict, and is then routed
// to the store, the trackers and the bus.
package process

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/model"
	"github.com/airwaveio/airwave/internal/schema"
	"github.com/airwaveio/airwave/internal/track"
)

// DefaultQueueSize bounds the ingress queue between sources and the
// pipeline goroutine.
const DefaultQueueSize = 4096

// MessageStore is the slice of the store the processor writes to.
type MessageStore interface {
	SaveMessage(msg *model.Message) (bool, error)
}

// Processor consumes the ingress queue and runs the pipeline. Sources
// feed it through Offer, which never blocks.
type Processor struct {
	store     MessageStore
	validator *schema.Validator
	tracker   *track.Tracker
	hfgcs     *track.HFGCSTracker
	bus       *bus.Bus
	logger    zerolog.Logger

	queue   chan *model.Message
	counter atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// New wires the pipeline. All collaborators are required.
func New(store MessageStore, validator *schema.Validator, tracker *track.Tracker, hfgcs *track.HFGCSTracker, b *bus.Bus) *Processor {
	return &Processor{
		store:     store,
		validator: validator,
		tracker:   tracker,
		hfgcs:     hfgcs,
		bus:       b,
		logger:    log.WithComponent("processor"),
		queue:     make(chan *model.Message, DefaultQueueSize),
	}
}

// Offer implements source.Sink. Returns false when the queue is full.
func (p *Processor) Offer(msg *model.Message) bool {
	select {
	case p.queue <- msg:
		return true
	default:
		return false
	}
}

// Start launches the pipeline goroutine. Non-blocking.
func (p *Processor) Start(ctx context.Context) error {
	if p.done != nil {
		return fmt.Errorf("processor: already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx)
	return nil
}

// Stop drains nothing further and waits for the loop, bounded by ctx.
func (p *Processor) Stop(ctx context.Context) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("processor: stop timed out: %w", ctx.Err())
	}
}

func (p *Processor) loop(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			p.Process(msg)
		}
	}
}

// Process runs one message through the pipeline. Errors in any stage are
// counted and the pipeline moves on; a malformed record never halts it.
// Returns the enriched message, or nil when it was rejected outright.
func (p *Processor) Process(msg *model.Message) *model.Message {
	if msg == nil || msg.ID == "" || msg.Timestamp.IsZero() {
		metrics.ProcessorErrorsTotal.WithLabelValues("intake").Inc()
		return nil
	}

	msg.MessageNumber = p.counter.Add(1)
	categorize(msg)

	// ADS-B skips schema validation; the upstream shape is fixed and the
	// volume makes per-message validation pointless.
	if msg.Type != model.SourceADSB {
		res, err := p.validator.ValidateMessage(msg)
		if err != nil {
			metrics.ProcessorErrorsTotal.WithLabelValues("validate").Inc()
			p.logger.Warn().Err(err).Str("id", msg.ID).Msg("validation errored")
		} else {
			msg.Validation = &model.Validation{Valid: res.Valid, Errors: res.Errors}
			if !res.Valid {
				p.logger.Debug().
					Str("id", msg.ID).
					Strs("errors", res.Errors).
					Msg("message failed validation, persisting anyway")
			}
		}
	}

	if msg.Type == model.SourceADSB {
		// ADS-B would dominate storage; it lives in the tracker only.
		p.tracker.Upsert(msg)
	} else if _, err := p.store.SaveMessage(msg); err != nil {
		metrics.ProcessorErrorsTotal.WithLabelValues("persist").Inc()
		p.logger.Error().Err(err).Str("id", msg.ID).Msg("persist failed")
	}

	// Hex detection only ever fires on ADS-B traffic, so the watch
	// tracker sees every message regardless of branch.
	p.hfgcs.Observe(msg)

	metrics.ProcessorMessagesTotal.WithLabelValues(string(msg.Type), string(msg.Category)).Inc()
	p.bus.Publish(bus.TopicMessage, msg)
	return msg
}

// Sequence returns the last assigned message number.
func (p *Processor) Sequence() uint64 { return p.counter.Load() }
