// SPDX-License-Identifier: MIT

package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.wav")
	w, err := newWAVWriter(path, 16000)
	require.NoError(t, err)

	samples := []int16{0, 1000, -1000, 32767, -32768}
	require.NoError(t, w.writeSamples(samples))
	size, err := w.close()
	require.NoError(t, err)
	assert.Equal(t, int64(wavHeaderSize+len(samples)*2), size)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, int(size))

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(36+len(samples)*2), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(len(samples)*2), binary.LittleEndian.Uint32(data[40:44]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]), "mono")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]), "bits per sample")

	// Samples survive the little-endian round trip.
	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(data[wavHeaderSize+2*i:]))
		assert.Equal(t, want, got)
	}
}

func TestWAVWriterEmptySegment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	w, err := newWAVWriter(path, 8000)
	require.NoError(t, err)

	size, err := w.close()
	require.NoError(t, err)
	assert.Equal(t, int64(wavHeaderSize), size)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[40:44]))
}
