// SPDX-License-Identifier: MIT

// Package manager owns the set of running sources. Sources are registered
// as factories so a restart can rebuild one from current configuration.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/apperr"
	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/source"
)

// stopTimeout bounds how long one source may take to shut down.
const stopTimeout = 5 * time.Second

// Factory builds a source from the configuration as it is right now.
type Factory func() (source.Source, error)

// Manager is the source registry and lifecycle owner.
type Manager struct {
	bus    *bus.Bus
	logger zerolog.Logger

	mu        sync.Mutex
	order     []string
	factories map[string]Factory
	running   map[string]source.Source
}

// New builds an empty manager.
func New(b *bus.Bus) *Manager {
	return &Manager{
		bus:       b,
		logger:    log.WithComponent("sources"),
		factories: make(map[string]Factory),
		running:   make(map[string]source.Source),
	}
}

// Register adds a named source factory. Registration order is start order.
func (m *Manager) Register(name string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.factories[name]; !dup {
		m.order = append(m.order, name)
	}
	m.factories[name] = factory
}

// StartAll builds and starts every registered source. A source that fails
// to build or start is logged and skipped; the rest still come up.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.order {
		if _, up := m.running[name]; up {
			continue
		}
		if err := m.startLocked(ctx, name); err != nil {
			m.logger.Error().Err(err).Str("source", name).Msg("source failed to start")
			m.bus.Publish(bus.TopicSourceStatus, bus.SourceStatus{Source: name, OK: false, Error: err.Error()})
		}
	}
}

func (m *Manager) startLocked(ctx context.Context, name string) error {
	factory, ok := m.factories[name]
	if !ok {
		return apperr.New(apperr.KindNotFound, "source_unknown", fmt.Sprintf("no source named %q", name))
	}
	src, err := factory()
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "source_build_failed", err).WithDetail("source", name)
	}
	if err := src.Start(ctx); err != nil {
		return apperr.Wrap(apperr.KindTransient, "source_start_failed", err).WithDetail("source", name)
	}
	m.running[name] = src
	m.logger.Info().Str("source", name).Str("event", "source.started").Msg("source started")
	return nil
}

// StopAll stops every running source, each bounded by the stop timeout.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.running {
		m.stopLocked(name)
	}
}

func (m *Manager) stopLocked(name string) {
	src, ok := m.running[name]
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := src.Stop(ctx); err != nil {
		m.logger.Warn().Err(err).Str("source", name).Msg("source stop failed")
	}
	delete(m.running, name)
	m.logger.Info().Str("source", name).Str("event", "source.stopped").Msg("source stopped")
}

// Restart stops the named source, awaits its shutdown, rebuilds it from
// current configuration and starts it again.
func (m *Manager) Restart(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(name)
	return m.startLocked(ctx, name)
}

// Names returns the registered source names in start order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Stats snapshots every running source.
func (m *Manager) Stats() map[string]source.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]source.Stats, len(m.running))
	for name, src := range m.running {
		out[name] = src.Stats()
	}
	return out
}
