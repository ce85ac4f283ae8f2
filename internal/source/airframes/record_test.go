// SPDX-License-Identifier: MIT

package airframes

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/model"
)

func TestNormalize(t *testing.T) {
	rec := wireRecord{
		Timestamp: 1756036800.5,
		Station:   "KA4-EXAMPLE",
		Protocol:  "vdl-m2",
		Flight:    " UAL123 ",
		Tail:      "N123US",
		Label:     "H1",
		Text:      "POS N4237W07300 FL350",
	}
	rec.Channel.FrequencyMHz = 136.975

	msg := normalize(rec)
	require.NotEmpty(t, msg.ID)
	assert.Equal(t, model.SourceVDLM2, msg.Type)
	assert.Equal(t, "vdlm2", msg.Source.Type)
	assert.Equal(t, "KA4-EXAMPLE", msg.Source.StationID)
	assert.Equal(t, 136.975, msg.Source.Frequency)
	assert.Equal(t, "UAL123", msg.Flight)
	assert.Equal(t, "N123US", msg.Tail)
	assert.Equal(t, time.Unix(1756036800, 500000000).UTC(), msg.Timestamp)

	// Categorization belongs to the processor, not the source.
	assert.Empty(t, msg.Category)
}

func TestNormalizeProtocols(t *testing.T) {
	tests := []struct {
		protocol string
		want     model.SourceType
	}{
		{"acars", model.SourceACARS},
		{"ACARS", model.SourceACARS},
		{"vdl-m2", model.SourceVDLM2},
		{"vdlm2", model.SourceVDLM2},
		{"hfdl", model.SourceHFDL},
		{"", model.SourceACARS},
	}
	for _, tt := range tests {
		t.Run("protocol "+tt.protocol, func(t *testing.T) {
			msg := normalize(wireRecord{Protocol: tt.protocol, Text: "X"})
			assert.Equal(t, tt.want, msg.Type)
		})
	}
}

func TestNormalizeMissingTimestamp(t *testing.T) {
	before := time.Now().UTC()
	msg := normalize(wireRecord{Text: "X"})
	assert.False(t, msg.Timestamp.Before(before))
}

func TestMockRecordsAreNormalizable(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ids := make(map[string]bool)
	for i := 0; i < 50; i++ {
		msg := normalize(mockRecord(rng))
		require.NotEmpty(t, msg.ID)
		assert.False(t, ids[msg.ID], "ids must be unique")
		ids[msg.ID] = true
		assert.True(t, model.ValidSourceType(msg.Type))
		assert.NotEmpty(t, msg.Flight)
		assert.NotEmpty(t, msg.Text)
	}
}
