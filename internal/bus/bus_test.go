// SPDX-License-Identifier: MIT

package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(0)
	sub := b.Subscribe(TopicMessage)
	other := b.Subscribe(TopicEAMDetected)

	b.Publish(TopicMessage, "payload")

	ev := <-sub.C()
	assert.Equal(t, TopicMessage, ev.Type)
	assert.Equal(t, "payload", ev.Data)
	assert.False(t, ev.Timestamp.IsZero())

	// Other topics see nothing.
	select {
	case <-other.C():
		t.Fatal("event leaked across topics")
	default:
	}
}

func TestFanOut(t *testing.T) {
	b := New(0)
	a := b.Subscribe(TopicMessage)
	c := b.Subscribe(TopicMessage)

	b.Publish(TopicMessage, 1)
	assert.Equal(t, 1, (<-a.C()).Data)
	assert.Equal(t, 1, (<-c.C()).Data)
}

func TestOverflowDropsOldest(t *testing.T) {
	b := New(2)
	sub := b.Subscribe(TopicMessage)

	for i := 0; i < 5; i++ {
		b.Publish(TopicMessage, i)
	}

	// The newest events survive; the oldest were shed.
	assert.Equal(t, 3, (<-sub.C()).Data)
	assert.Equal(t, 4, (<-sub.C()).Data)
	assert.Equal(t, uint64(3), sub.Dropped())
}

func TestSubscriptionClose(t *testing.T) {
	b := New(0)
	sub := b.Subscribe(TopicMessage)
	sub.Close()

	// Publishing after unsubscribe does not panic and the channel is closed.
	b.Publish(TopicMessage, 1)
	_, open := <-sub.C()
	assert.False(t, open)

	// Double close is safe.
	sub.Close()
}

func TestBusClose(t *testing.T) {
	b := New(0)
	sub := b.Subscribe(TopicMessage)

	b.Publish(TopicMessage, "before")
	b.Close()
	b.Publish(TopicMessage, "after")

	ev, open := <-sub.C()
	require.True(t, open)
	assert.Equal(t, "before", ev.Data)

	_, open = <-sub.C()
	assert.False(t, open)

	// Close is idempotent.
	b.Close()
}
