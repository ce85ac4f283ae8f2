// SPDX-License-Identifier: MIT

package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/model"
)

func msg(text, label string, st model.SourceType) *model.Message {
	return &model.Message{Text: text, Label: label, Type: st}
}

func TestCategorizeOOOI(t *testing.T) {
	m := msg("OUT 1432Z FUEL 10200", "", model.SourceACARS)
	categorize(m)
	assert.Equal(t, model.CategoryOOOI, m.Category)
	require.NotNil(t, m.OOOI)
	assert.Equal(t, "OUT", m.OOOI.Event)
	assert.Equal(t, "1432Z", m.OOOI.Time)
}

func TestCategorizePosition(t *testing.T) {
	m := msg("POS N4237 W07300 FL350", "", model.SourceACARS)
	categorize(m)
	assert.Equal(t, model.CategoryPosition, m.Category)
	require.NotNil(t, m.Position)
	assert.Equal(t, "N4237 W07300", m.Position.CoordinatesString)
	assert.InDelta(t, 42.6166, m.Position.Lat, 0.001)
	assert.InDelta(t, -73.0, m.Position.Lon, 0.001)
	assert.InDelta(t, 35000.0, m.Position.AltitudeFt, 0.1)
}

func TestCategorizeCPDLC(t *testing.T) {
	m := msg("REQUEST CLIMB FL380 DUE TURBULENCE", "CR1", model.SourceVDLM2)
	categorize(m)
	assert.Equal(t, model.CategoryCPDLC, m.Category)
	assert.Equal(t, "request", m.CPDLCType)

	m = msg("CLEARED DIRECT WAYPOINT", "CC1", model.SourceVDLM2)
	categorize(m)
	assert.Equal(t, model.CategoryCPDLC, m.Category)
	assert.Equal(t, "clearance", m.CPDLCType)

	// Same text without a CPDLC label is freetext.
	m = msg("REQUEST CLIMB FL380", "H1", model.SourceACARS)
	categorize(m)
	assert.Equal(t, model.CategoryFreetext, m.Category)
}

func TestCategorizeWeather(t *testing.T) {
	m := msg("METAR KJFK 241551Z 18012KT 10SM FEW250 28/17 A3002", "", model.SourceACARS)
	categorize(m)
	assert.Equal(t, model.CategoryWeather, m.Category)
}

func TestCategorizeADSB(t *testing.T) {
	m := msg("", "", model.SourceADSB)
	categorize(m)
	assert.Equal(t, model.CategoryADSB, m.Category)
}

func TestCategorizeHFGCS(t *testing.T) {
	m := msg("SKYKING SKYKING DO NOT ANSWER", "", model.SourceHFGCS)
	categorize(m)
	assert.Equal(t, model.CategoryHFGCS, m.Category)
	assert.Equal(t, "SKYKING", m.HFGCSType)

	// Frequency match without text indicators.
	m = &model.Message{Type: model.SourceHFGCS, Source: model.SourceInfo{Frequency: 11.175}, Text: "garbled audio"}
	categorize(m)
	assert.Equal(t, model.CategoryHFGCS, m.Category)
	assert.Equal(t, "EAM", m.HFGCSType)
}

func TestCategorizeFreetext(t *testing.T) {
	m := msg("CREW SCHEDULING CONFIRM GATE B22", "", model.SourceACARS)
	categorize(m)
	assert.Equal(t, model.CategoryFreetext, m.Category)
}

func TestCategoryOrderOOOIBeatsWeather(t *testing.T) {
	// First match wins: an OOOI token ahead of a METAR block.
	m := msg("OFF 1444Z METAR KBOS", "", model.SourceACARS)
	categorize(m)
	assert.Equal(t, model.CategoryOOOI, m.Category)
}

func TestParseCoordinates(t *testing.T) {
	lat, lon, ok := parseCoordinates("N4237", "W07300")
	require.True(t, ok)
	assert.InDelta(t, 42.6166, lat, 0.001)
	assert.InDelta(t, -73.0, lon, 0.001)

	lat, lon, ok = parseCoordinates("S123045", "E0453015")
	require.True(t, ok)
	assert.InDelta(t, -12.5125, lat, 0.001)
	assert.InDelta(t, 45.5041, lon, 0.001)

	_, _, ok = parseCoordinates("N42", "W073")
	assert.False(t, ok)
}

func TestExtractAltitude(t *testing.T) {
	alt, ok := extractAltitude("POS N4237 W07300 FL350")
	require.True(t, ok)
	assert.InDelta(t, 35000.0, alt, 0.1)

	alt, ok = extractAltitude("POS N4237 W07300 ALT 9500")
	require.True(t, ok)
	assert.InDelta(t, 9500.0, alt, 0.1)

	_, ok = extractAltitude("POS N4237 W07300")
	assert.False(t, ok)
}
