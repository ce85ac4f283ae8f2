// SPDX-License-Identifier: MIT

package airframes

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/airwaveio/airwave/internal/model"
)

// wireRecord mirrors one feed entry from the Airframes firehose. Only the
// fields the pipeline consumes are decoded.
type wireRecord struct {
	Timestamp float64 `json:"timestamp"`
	Station   string  `json:"station_id"`
	Channel   struct {
		FrequencyMHz float64 `json:"frequency_mhz"`
	} `json:"channel"`
	Protocol string `json:"protocol"` // acars, vdl-m2, hfdl
	Flight   string `json:"flight"`
	Tail     string `json:"tail"`
	Label    string `json:"label"`
	Text     string `json:"text"`
}

// normalize converts a wire record into the canonical message shape.
// Categorization is the processor's job; the source only maps identity
// and transport metadata.
func normalize(rec wireRecord) *model.Message {
	ts := time.Now().UTC()
	if rec.Timestamp > 0 {
		sec := int64(rec.Timestamp)
		nsec := int64((rec.Timestamp - float64(sec)) * 1e9)
		ts = time.Unix(sec, nsec).UTC()
	}

	st := model.SourceACARS
	switch strings.ToLower(rec.Protocol) {
	case "vdl-m2", "vdlm2":
		st = model.SourceVDLM2
	case "hfdl":
		st = model.SourceHFDL
	}

	return &model.Message{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Source: model.SourceInfo{
			Type:      string(st),
			StationID: rec.Station,
			Frequency: rec.Channel.FrequencyMHz,
		},
		Type:   st,
		Flight: strings.TrimSpace(rec.Flight),
		Tail:   strings.TrimSpace(rec.Tail),
		Label:  rec.Label,
		Text:   rec.Text,
	}
}

// Fixtures for the mock generator. Realistic enough to exercise every
// processor category without an upstream connection.
var mockTexts = []string{
	"OUT 1432Z FUEL 10200",
	"OFF 1444Z",
	"POS N4237W07300 FL350",
	"REQUEST CLIMB FL380 DUE TURBULENCE",
	"METAR KJFK 241551Z 18012KT 10SM FEW250 28/17 A3002",
	"ON 1610Z",
	"FREE TEXT CREW SCHEDULING CONFIRM GATE B22",
}

var mockFlights = []string{"UAL123", "DAL456", "AAL789", "BAW117", "DLH401"}

func mockRecord(rng *rand.Rand) wireRecord {
	return wireRecord{
		Timestamp: float64(time.Now().Unix()),
		Station:   "MOCK-01",
		Protocol:  "acars",
		Flight:    mockFlights[rng.Intn(len(mockFlights))],
		Tail:      fmt.Sprintf("N%03dUS", rng.Intn(900)+100),
		Label:     "H1",
		Text:      mockTexts[rng.Intn(len(mockTexts))],
	}
}
