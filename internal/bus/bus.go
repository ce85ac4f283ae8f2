// SPDX-License-Identifier: MIT

// Package bus is the in-process typed topic bus. Delivery is at-most-once:
// subscribers own bounded queues and the oldest event is dropped on
// overflow. The bus holds no records of its own.
package bus

import (
	"sync"
	"time"

	"github.com/airwaveio/airwave/internal/metrics"
)

// Topic names the event streams the edge and internal components consume.
type Topic string

const (
	TopicMessage               Topic = "message"
	TopicADSBBatch             Topic = "adsb_batch"
	TopicHFGCSAircraft         Topic = "hfgcs_aircraft"
	TopicEAMDetected           Topic = "eam_detected"
	TopicTranscriptionComplete Topic = "transcription_complete"
	TopicRecordingComplete     Topic = "recording_complete"
	TopicStatsUpdated          Topic = "stats_updated"
	TopicSourceStatus          Topic = "source_status"
)

// Event is the typed envelope delivered to subscribers.
type Event struct {
	Type      Topic     `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// DefaultQueueSize bounds each subscriber queue.
const DefaultQueueSize = 1024

// Bus fans events out to per-topic subscriber queues.
type Bus struct {
	mu        sync.Mutex
	subs      map[Topic][]*Subscription
	queueSize int
	closed    bool
}

// New creates a bus with the given per-subscriber queue size (0 for default).
func New(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		subs:      make(map[Topic][]*Subscription),
		queueSize: queueSize,
	}
}

// Subscription is one subscriber's bounded queue on a topic.
type Subscription struct {
	bus     *Bus
	topic   Topic
	ch      chan Event
	mu      sync.Mutex
	dropped uint64
	closed  bool
}

// C is the subscriber's event channel.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped returns how many events this subscriber lost to backpressure.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close removes the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	lst := s.bus.subs[s.topic]
	out := lst[:0]
	for _, sub := range lst {
		if sub != s {
			out = append(out, sub)
		}
	}
	if len(out) == 0 {
		delete(s.bus.subs, s.topic)
	} else {
		s.bus.subs[s.topic] = out
	}
	metrics.BusSubscribers.WithLabelValues(string(s.topic)).Dec()
	close(s.ch)
}

// Subscribe registers a new bounded-queue subscriber on topic.
func (b *Bus) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Event, b.queueSize),
	}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()
	metrics.BusSubscribers.WithLabelValues(string(topic)).Inc()
	return sub
}

// Publish delivers an event to every subscriber of topic. The subscriber
// list is copied under the lock; delivery happens outside it. A full queue
// sheds its oldest event so the newest is never lost.
func (b *Bus) Publish(topic Topic, data any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := append([]*Subscription(nil), b.subs[topic]...)
	b.mu.Unlock()

	metrics.BusPublishedTotal.WithLabelValues(string(topic)).Inc()
	if len(subs) == 0 {
		return
	}

	ev := Event{Type: topic, Timestamp: time.Now().UTC(), Data: data}
	for _, sub := range subs {
		sub.offer(ev)
	}
}

func (s *Subscription) offer(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		// Queue full: shed the oldest event and retry.
		select {
		case <-s.ch:
			s.dropped++
			metrics.IncBusDrop(string(s.topic), "overflow")
		default:
		}
	}
}

// Close shuts the bus down; subsequent publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscription
	for _, lst := range b.subs {
		all = append(all, lst...)
	}
	b.subs = make(map[Topic][]*Subscription)
	b.mu.Unlock()

	for _, sub := range all {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			metrics.BusSubscribers.WithLabelValues(string(sub.topic)).Dec()
			close(sub.ch)
		}
		sub.mu.Unlock()
	}
}

// SourceStatus is the payload of TopicSourceStatus events.
type SourceStatus struct {
	Source string `json:"source"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}
