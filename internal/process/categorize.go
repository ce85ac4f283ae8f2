// SPDX-License-Identifier: MIT

package process

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/airwaveio/airwave/internal/model"
)

// Category rules run in declaration order; the first match wins.
var (
	oooiRe     = regexp.MustCompile(`\b(OUT|OFF|ON|IN)\b\s+(\d{3,4}Z?)`)
	positionRe = regexp.MustCompile(`\bPOS\b.*?([NS]\d{4,6})\s*([EW]\d{5,7})`)
	altFLRe    = regexp.MustCompile(`\bFL(\d{2,3})\b`)
	altNumRe   = regexp.MustCompile(`\bALT\s*(\d{3,5})\b`)
	cpdlcRe    = regexp.MustCompile(`\b(REQUEST|CLEARED|CLIMB|DESCEND)\b`)
	weatherRe  = regexp.MustCompile(`\b(METAR|TAF|SPECI)\b`)
	skykingRe  = regexp.MustCompile(`\b(SKYKING|EAM|STAND\s*BY\s*FOR\s*A?\s*MESSAGE)\b`)
)

// cpdlcLabels is the ARINC 620 label set used for controller-pilot data
// link exchanges.
var cpdlcLabels = map[string]bool{
	"A6": true, "AT": true, "B9": true, "CR": true, "CC": true,
	"AT1": true, "CR1": true, "CC1": true, "DR1": true,
}

// hfgcsFrequencies are the primary HFGCS voice frequencies in MHz.
var hfgcsFrequencies = map[float64]bool{
	4.724: true, 6.739: true, 8.992: true, 11.175: true, 13.200: true, 15.016: true,
}

// categorize assigns the category and fills category-specific structured
// fields in place.
func categorize(msg *model.Message) {
	text := strings.ToUpper(msg.Text)

	if m := oooiRe.FindStringSubmatch(text); m != nil {
		msg.Category = model.CategoryOOOI
		msg.OOOI = &model.OOOI{Event: m[1], Time: m[2]}
		return
	}

	if m := positionRe.FindStringSubmatch(text); m != nil {
		msg.Category = model.CategoryPosition
		pos := &model.Position{CoordinatesString: m[1] + " " + m[2]}
		if lat, lon, ok := parseCoordinates(m[1], m[2]); ok {
			pos.Lat, pos.Lon = lat, lon
		}
		if alt, ok := extractAltitude(text); ok {
			pos.AltitudeFt = alt
		}
		msg.Position = pos
		return
	}

	if m := cpdlcRe.FindStringSubmatch(text); m != nil && isCPDLCLabel(msg.Label) {
		msg.Category = model.CategoryCPDLC
		if m[1] == "REQUEST" {
			msg.CPDLCType = "request"
		} else {
			msg.CPDLCType = "clearance"
		}
		return
	}

	if weatherRe.MatchString(text) {
		msg.Category = model.CategoryWeather
		return
	}

	if msg.Type == model.SourceADSB {
		msg.Category = model.CategoryADSB
		return
	}

	if hfgcsFrequencies[msg.Source.Frequency] || skykingRe.MatchString(text) {
		msg.Category = model.CategoryHFGCS
		if msg.HFGCSType == "" {
			if strings.Contains(text, "SKYKING") {
				msg.HFGCSType = "SKYKING"
			} else {
				msg.HFGCSType = "EAM"
			}
		}
		return
	}

	msg.Category = model.CategoryFreetext
}

func isCPDLCLabel(label string) bool {
	return cpdlcLabels[strings.ToUpper(label)]
}

// parseCoordinates decodes compact ACARS position groups like N4237
// (DDMM) or N423712 (DDMMSS) into decimal degrees.
func parseCoordinates(latStr, lonStr string) (lat, lon float64, ok bool) {
	lat, ok = parseCoordinate(latStr[1:], 2)
	if !ok {
		return 0, 0, false
	}
	if latStr[0] == 'S' {
		lat = -lat
	}
	lon, ok = parseCoordinate(lonStr[1:], 3)
	if !ok {
		return 0, 0, false
	}
	if lonStr[0] == 'W' {
		lon = -lon
	}
	return lat, lon, true
}

// parseCoordinate handles DD(D)MM and DD(D)MMSS digit groups.
func parseCoordinate(digits string, degWidth int) (float64, bool) {
	if len(digits) < degWidth+2 {
		return 0, false
	}
	deg, err := strconv.Atoi(digits[:degWidth])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(digits[degWidth : degWidth+2])
	if err != nil || minutes >= 60 {
		return 0, false
	}
	val := float64(deg) + float64(minutes)/60
	if len(digits) >= degWidth+4 {
		if sec, err := strconv.Atoi(digits[degWidth+2 : degWidth+4]); err == nil && sec < 60 {
			val += float64(sec) / 3600
		}
	}
	return val, true
}

// extractAltitude pulls a flight level (FL350 -> 35000 ft) or a numeric
// ALT group out of a position report.
func extractAltitude(text string) (float64, bool) {
	if m := altFLRe.FindStringSubmatch(text); m != nil {
		fl, err := strconv.Atoi(m[1])
		if err == nil {
			return float64(fl) * 100, true
		}
	}
	if m := altNumRe.FindStringSubmatch(text); m != nil {
		alt, err := strconv.Atoi(m[1])
		if err == nil {
			return float64(alt), true
		}
	}
	return 0, false
}
