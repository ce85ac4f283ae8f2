// SPDX-License-Identifier: MIT

package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/apperr"
	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/source"
)

type stubSource struct {
	name     string
	startErr error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started.Store(true)
	return nil
}

func (s *stubSource) Stop(context.Context) error {
	s.stopped.Store(true)
	return nil
}

func (s *stubSource) Stats() source.Stats {
	return source.Stats{Connected: s.started.Load() && !s.stopped.Load()}
}

func TestStartAllInOrder(t *testing.T) {
	m := New(bus.New(0))

	var built []string
	for _, name := range []string{"tar1090", "airframes", "eamwatch"} {
		name := name
		m.Register(name, func() (source.Source, error) {
			built = append(built, name)
			return &stubSource{name: name}, nil
		})
	}

	m.StartAll(context.Background())
	assert.Equal(t, []string{"tar1090", "airframes", "eamwatch"}, built)
	assert.Equal(t, []string{"tar1090", "airframes", "eamwatch"}, m.Names())
	assert.Len(t, m.Stats(), 3)
}

func TestStartAllContinuesPastFailure(t *testing.T) {
	b := bus.New(0)
	sub := b.Subscribe(bus.TopicSourceStatus)
	m := New(b)

	m.Register("broken", func() (source.Source, error) {
		return nil, errors.New("no api key")
	})
	healthy := &stubSource{name: "tar1090"}
	m.Register("tar1090", func() (source.Source, error) { return healthy, nil })

	m.StartAll(context.Background())
	assert.True(t, healthy.started.Load())
	require.Len(t, m.Stats(), 1)

	select {
	case ev := <-sub.C():
		st := ev.Data.(bus.SourceStatus)
		assert.Equal(t, "broken", st.Source)
		assert.False(t, st.OK)
	default:
		t.Fatal("expected source_status event for failed source")
	}
}

func TestStartAllIdempotent(t *testing.T) {
	m := New(bus.New(0))

	var builds int
	m.Register("tar1090", func() (source.Source, error) {
		builds++
		return &stubSource{name: "tar1090"}, nil
	})

	m.StartAll(context.Background())
	m.StartAll(context.Background())
	assert.Equal(t, 1, builds, "running sources are not rebuilt")
}

func TestRestartRebuildsFromFactory(t *testing.T) {
	m := New(bus.New(0))

	var instances []*stubSource
	m.Register("eamwatch", func() (source.Source, error) {
		s := &stubSource{name: "eamwatch"}
		instances = append(instances, s)
		return s, nil
	})

	ctx := context.Background()
	m.StartAll(ctx)
	require.NoError(t, m.Restart(ctx, "eamwatch"))

	require.Len(t, instances, 2)
	assert.True(t, instances[0].stopped.Load(), "old instance stopped")
	assert.True(t, instances[1].started.Load(), "new instance started")
}

func TestRestartUnknownSource(t *testing.T) {
	m := New(bus.New(0))
	err := m.Restart(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestStopAll(t *testing.T) {
	m := New(bus.New(0))
	src := &stubSource{name: "tar1090"}
	m.Register("tar1090", func() (source.Source, error) { return src, nil })

	m.StartAll(context.Background())
	m.StopAll()
	assert.True(t, src.stopped.Load())
	assert.Empty(t, m.Stats())
}

func TestDuplicateRegisterKeepsOrder(t *testing.T) {
	m := New(bus.New(0))
	m.Register("a", func() (source.Source, error) { return &stubSource{name: "a"}, nil })
	m.Register("b", func() (source.Source, error) { return &stubSource{name: "b"}, nil })
	m.Register("a", func() (source.Source, error) { return &stubSource{name: "a"}, nil })
	assert.Equal(t, []string{"a", "b"}, m.Names())
}
