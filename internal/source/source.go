// SPDX-License-Identifier: MIT

// Package source defines the lifecycle contract every upstream feed
// implements and the sink sources emit normalized messages into.
package source

import (
	"context"
	"time"

	"github.com/airwaveio/airwave/internal/model"
)

// Stats is the snapshot every source exposes for diagnostics.
type Stats struct {
	Connected        bool      `json:"connected"`
	TrackedEntities  int       `json:"tracked_entities"`
	LastUpdate       time.Time `json:"last_update"`
	UpdateIntervalMS int64     `json:"update_interval_ms"`
	MessageCount     int64     `json:"message_count"`
}

// Source is the common lifecycle contract. Start is non-blocking; Stop
// cancels in-flight work and returns after the last in-flight callback,
// bounded by the caller's context.
type Source interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Stats() Stats
}

// Sink accepts normalized messages without blocking. Offer returns false
// when the ingress queue is full; the source then coalesces to the latest
// snapshot (ADS-B) or drops the record (text sources).
type Sink interface {
	Offer(msg *model.Message) bool
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg *model.Message) bool

// Offer implements Sink.
func (f SinkFunc) Offer(msg *model.Message) bool { return f(msg) }
