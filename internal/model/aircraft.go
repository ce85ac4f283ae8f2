// SPDX-License-Identifier: MIT

package model

import "time"

// TrackPoint is one position sample in an aircraft's bounded track ring.
// Points are appended only when the significant-change predicate fires.
type TrackPoint struct {
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	AltitudeFt   float64   `json:"altitude_ft"`
	GroundSpeed  float64   `json:"ground_speed"`
	Heading      float64   `json:"heading"`
	VerticalRate float64   `json:"vertical_rate"`
	Timestamp    time.Time `json:"timestamp"`
}

// Aircraft is the live in-memory state for one airframe. At most one record
// exists per hex; tail/flight collisions are resolved by last-update recency.
type Aircraft struct {
	Hex    string `json:"hex,omitempty"`
	Tail   string `json:"tail,omitempty"`
	Flight string `json:"flight,omitempty"`

	Registration string `json:"registration,omitempty"`
	TypeCode     string `json:"type,omitempty"`

	Position     *Position `json:"position,omitempty"`
	GroundSpeed  float64   `json:"ground_speed,omitempty"`
	Heading      float64   `json:"heading,omitempty"`
	VerticalRate float64   `json:"vertical_rate,omitempty"`
	OnGround     bool      `json:"on_ground,omitempty"`
	Squawk       string    `json:"squawk,omitempty"`

	FlightPhase FlightPhase `json:"flight_phase,omitempty"`

	LastSeen     time.Time    `json:"last_seen"`
	MessageCount int64        `json:"message_count"`
	Track        []TrackPoint `json:"track,omitempty"`
}

// Identifier returns the key this aircraft is tracked under.
func (a *Aircraft) Identifier() string {
	switch {
	case a.Hex != "":
		return a.Hex
	case a.Tail != "":
		return a.Tail
	}
	return a.Flight
}

// DetectionMethod says which identity field matched the military tables.
type DetectionMethod string

const (
	DetectByHex      DetectionMethod = "hex"
	DetectByCallsign DetectionMethod = "callsign"
	DetectByTail     DetectionMethod = "tail"
	DetectByType     DetectionMethod = "type"
)

// Classification buckets a detected military aircraft.
type Classification string

const (
	ClassE6B           Classification = "E-6B"
	ClassE4B           Classification = "E-4B"
	ClassOtherMilitary Classification = "other-military"
)

// HFGCSAircraft is an Aircraft that matched the military watch tables.
type HFGCSAircraft struct {
	Aircraft
	DetectionMethod DetectionMethod `json:"detection_method"`
	Classification  Classification  `json:"classification"`
	FirstDetected   time.Time       `json:"first_detected"`
}
