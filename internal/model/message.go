// SPDX-License-Identifier: MIT

// Package model holds the canonical AirWave data model shared by sources,
// the processor, the trackers and the store.
package model

import "time"

// SourceType identifies the kind of upstream a message originated from.
type SourceType string

const (
	SourceACARS SourceType = "acars"
	SourceVDLM2 SourceType = "vdlm2"
	SourceHFDL  SourceType = "hfdl"
	SourceADSB  SourceType = "adsb"
	SourceHFGCS SourceType = "hfgcs"
	SourceEAM   SourceType = "eam"
)

// Category is the processor-assigned message category.
type Category string

const (
	CategoryOOOI        Category = "oooi"
	CategoryPosition    Category = "position"
	CategoryCPDLC       Category = "cpdlc"
	CategoryWeather     Category = "weather"
	CategoryPerformance Category = "performance"
	CategoryATCRequest  Category = "atc_request"
	CategoryHFGCS       Category = "hfgcs"
	CategoryADSB        Category = "adsb"
	CategoryFreetext    Category = "freetext"
)

// FlightPhase is derived from kinematics for ADS-B messages.
type FlightPhase string

const (
	PhaseTaxi     FlightPhase = "TAXI"
	PhaseTakeoff  FlightPhase = "TAKEOFF"
	PhaseCruise   FlightPhase = "CRUISE"
	PhaseDescent  FlightPhase = "DESCENT"
	PhaseApproach FlightPhase = "APPROACH"
	PhaseLanding  FlightPhase = "LANDING"
	PhaseUnknown  FlightPhase = "UNKNOWN"
)

// SourceInfo describes where a message came from.
type SourceInfo struct {
	Type      string  `json:"type"`
	StationID string  `json:"station_id,omitempty"`
	Frequency float64 `json:"frequency,omitempty"`
	API       string  `json:"api,omitempty"`
}

// Position is a geographic fix with optional altitude.
type Position struct {
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	AltitudeFt        float64 `json:"altitude_ft,omitempty"`
	CoordinatesString string  `json:"coordinates_string,omitempty"`
}

// OOOI carries an extracted Out/Off/On/In event.
type OOOI struct {
	Event string `json:"event"`
	Time  string `json:"time,omitempty"`
}

// Validation records the schema-validation outcome for a message.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Message is the canonical normalized message emitted by every source.
// Every persisted message has ID, Timestamp and SourceType set. A message
// is created by a source, enriched once by the processor, persisted once
// and never mutated afterward.
type Message struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Source    SourceInfo `json:"source"`
	Type      SourceType `json:"source_type"`

	Flight  string `json:"flight,omitempty"`
	Tail    string `json:"tail,omitempty"`
	Hex     string `json:"hex,omitempty"`
	Airline string `json:"airline,omitempty"`

	Position *Position `json:"position,omitempty"`

	GroundSpeed  float64 `json:"ground_speed,omitempty"`
	Heading      float64 `json:"heading,omitempty"`
	VerticalRate float64 `json:"vertical_rate,omitempty"`
	OnGround     bool    `json:"on_ground,omitempty"`
	Squawk       string  `json:"squawk,omitempty"`

	Text  string `json:"text,omitempty"`
	Label string `json:"label,omitempty"`

	Category    Category    `json:"category,omitempty"`
	FlightPhase FlightPhase `json:"flight_phase,omitempty"`

	OOOI      *OOOI  `json:"oooi,omitempty"`
	CPDLCType string `json:"cpdlc_type,omitempty"`
	HFGCSType string `json:"hfgcs_type,omitempty"`

	Validation *Validation `json:"validation,omitempty"`

	// MessageNumber is a process-local monotonic counter assigned by the
	// processor. Not persisted across restarts.
	MessageNumber uint64 `json:"message_number,omitempty"`
}

// Identifier returns the strongest identity key present: hex, then tail,
// then flight. Empty when the message carries no aircraft identity.
func (m *Message) Identifier() string {
	switch {
	case m.Hex != "":
		return m.Hex
	case m.Tail != "":
		return m.Tail
	case m.Flight != "":
		return m.Flight
	}
	return ""
}

// ValidSourceType reports whether s is one of the declared source types.
func ValidSourceType(s SourceType) bool {
	switch s {
	case SourceACARS, SourceVDLM2, SourceHFDL, SourceADSB, SourceHFGCS, SourceEAM:
		return true
	}
	return false
}
