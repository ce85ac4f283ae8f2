// SPDX-License-Identifier: MIT

package audio

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/model"
)

// testVOXConfig shrinks the gate so 100 samples equal 100ms.
func testVOXConfig(dir string) VOXConfig {
	return VOXConfig{
		SampleRate:  1000,
		Threshold:   500,
		SpeechOnset: 100,
		SilenceHang: 100,
		MaxSegment:  500,
		Dir:         dir,
	}
}

type segmentRecorder struct {
	segs    []model.RecordingSegment
	reasons []string
}

func (r *segmentRecorder) done(seg model.RecordingSegment, reason string) {
	r.segs = append(r.segs, seg)
	r.reasons = append(r.reasons, reason)
}

func chunk(n int, val int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = val
	}
	return out
}

func TestVOXSilenceClose(t *testing.T) {
	rec := &segmentRecorder{}
	m := newMachine("hfgcs", testVOXConfig(t.TempDir()), rec.done, zerolog.Nop())

	m.process(chunk(100, 1000)) // onset reached, segment opens
	require.Equal(t, stateSpeaking, m.state)

	m.process(chunk(100, 0)) // silence hang expires
	require.Len(t, rec.segs, 1)
	assert.Equal(t, "silence", rec.reasons[0])

	seg := rec.segs[0]
	assert.Equal(t, "hfgcs", seg.FeedID)
	assert.Equal(t, int64(200), seg.DurationMS)
	assert.Equal(t, int64(wavHeaderSize+200*2), seg.Filesize)

	// The onset audio was replayed into the file.
	info, err := os.Stat(seg.Filepath)
	require.NoError(t, err)
	assert.Equal(t, seg.Filesize, info.Size())
	assert.Equal(t, stateIdle, m.state)
}

func TestVOXMaxDurationClose(t *testing.T) {
	rec := &segmentRecorder{}
	m := newMachine("hfgcs", testVOXConfig(t.TempDir()), rec.done, zerolog.Nop())

	// Continuous speech runs into the segment ceiling.
	for i := 0; i < 5; i++ {
		m.process(chunk(100, 1000))
	}
	require.Len(t, rec.segs, 1)
	assert.Equal(t, "max_duration", rec.reasons[0])
	assert.Equal(t, int64(500), rec.segs[0].DurationMS)
}

func TestVOXTruncationSplitsLongSpeech(t *testing.T) {
	rec := &segmentRecorder{}
	m := newMachine("hfgcs", testVOXConfig(t.TempDir()), rec.done, zerolog.Nop())

	// 750ms of continuous speech against a 500ms ceiling: the gate closes
	// the first segment at the cap, re-arms, and keeps capturing.
	for i := 0; i < 15; i++ {
		m.process(chunk(50, 1000))
	}
	m.flush()

	require.Len(t, rec.segs, 2)
	assert.Equal(t, []string{"max_duration", "silence"}, rec.reasons)
	assert.Equal(t, int64(500), rec.segs[0].DurationMS)
	assert.Equal(t, int64(250), rec.segs[1].DurationMS)

	// Segment starts advance by consumed audio, so the second starts
	// exactly where the first ended.
	assert.NotEqual(t, rec.segs[0].SegmentID, rec.segs[1].SegmentID)
	assert.True(t, rec.segs[1].StartTime.After(rec.segs[0].StartTime))
	assert.Equal(t, 500*time.Millisecond, rec.segs[1].StartTime.Sub(rec.segs[0].StartTime))

	for _, seg := range rec.segs {
		info, err := os.Stat(seg.Filepath)
		require.NoError(t, err)
		assert.Equal(t, seg.Filesize, info.Size())
	}
}

func TestVOXBriefBlipIgnored(t *testing.T) {
	rec := &segmentRecorder{}
	m := newMachine("hfgcs", testVOXConfig(t.TempDir()), rec.done, zerolog.Nop())

	m.process(chunk(50, 1000)) // below the onset requirement
	m.process(chunk(100, 0))   // silence resets the onset counter
	m.process(chunk(50, 1000))
	assert.Equal(t, stateIdle, m.state)
	assert.Empty(t, rec.segs)
}

func TestVOXFlushClosesOpenSegment(t *testing.T) {
	rec := &segmentRecorder{}
	m := newMachine("hfgcs", testVOXConfig(t.TempDir()), rec.done, zerolog.Nop())

	m.process(chunk(100, 1000))
	require.Equal(t, stateSpeaking, m.state)

	m.flush()
	require.Len(t, rec.segs, 1)
	assert.Equal(t, "silence", rec.reasons[0])
	assert.Equal(t, stateIdle, m.state)

	// Flushing while idle is a no-op.
	m.flush()
	assert.Len(t, rec.segs, 1)
}

func TestPeak(t *testing.T) {
	assert.Equal(t, int16(0), peak(nil))
	assert.Equal(t, int16(1000), peak([]int16{-1000, 500}))
	assert.Equal(t, int16(32767), peak([]int16{-32768}))
}
