// SPDX-License-Identifier: MIT

package youtube

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/bus"
)

type pcmCollector struct {
	feeds    []string
	channels []int
	samples  []int16
}

func (c *pcmCollector) WritePCM(feedID string, channels int, samples []int16) {
	c.feeds = append(c.feeds, feedID)
	c.channels = append(c.channels, channels)
	c.samples = append(c.samples, samples...)
}

func pcmBytes(samples []int16, dangling bool) []byte {
	n := len(samples) * 2
	if dangling {
		n++
	}
	data := make([]byte, n)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}
	return data
}

func TestPumpDecodesLittleEndian(t *testing.T) {
	want := []int16{0, 1000, -1000, 32767, -32768}
	data := pcmBytes(want, true) // trailing half-sample is discarded at EOF

	sink := &pcmCollector{}
	s := New(Config{StreamURL: "https://youtube.example/live", FeedID: "hfgcs"}, sink, bus.New(0))

	require.NoError(t, s.pump(bytes.NewReader(data)))
	assert.Equal(t, want, sink.samples)
	assert.Equal(t, int64(len(data)), s.bytesRead.Load())
	assert.Contains(t, sink.feeds, "hfgcs")
}

func TestPumpReassemblesSplitSamples(t *testing.T) {
	want := []int16{1000, -2, 513}
	sink := &pcmCollector{}
	s := New(Config{FeedID: "hfgcs"}, sink, bus.New(0))

	// One byte per read forces the carry path on every sample.
	r := iotest.OneByteReader(bytes.NewReader(pcmBytes(want, false)))
	require.NoError(t, s.pump(r))
	assert.Equal(t, want, sink.samples)
}

func TestStartRequiresStreamURL(t *testing.T) {
	s := New(Config{FeedID: "hfgcs"}, &pcmCollector{}, bus.New(0))
	assert.Error(t, s.Start(context.Background()))
}

func TestNewDefaults(t *testing.T) {
	s := New(Config{FeedID: "hfgcs"}, &pcmCollector{}, bus.New(0))
	assert.Equal(t, "youtube:hfgcs", s.Name())
	assert.Equal(t, "ffmpeg", s.cfg.FFmpegPath)
	assert.Equal(t, 16000, s.cfg.SampleRate)
	assert.Equal(t, 1, s.cfg.Channels)
}
