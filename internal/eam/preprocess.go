// SPDX-License-Identifier: MIT

// Package eam turns whisper transcriptions of HFGCS voice traffic into
// structured Emergency Action Messages. The preprocessor is pure text
// transforms; the aggregator correlates adjacent recording segments.
package eam

import (
	"regexp"
	"strings"
)

// Artifacts the transcription server injects that carry no signal.
var (
	compactDateRe = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	spacedDateRe  = regexp.MustCompile(`\b\d{1,2}\s+\d{1,2}\s+\d{4}\b`)
	isoTimeRe     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?\b`)
	bracketTimeRe = regexp.MustCompile(`\[\d{1,2}:\d{2}(?::\d{2})?\]`)
	durationRe    = regexp.MustCompile(`(?i)\b(?:\d+m\d+s|\d+\s?(?:s|sec|secs|seconds)|\d+\s?(?:m|min|mins|minutes))\b`)
	unknownRe     = regexp.MustCompile(`\[\s*UNKNOWN\s*\]`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// CleanTranscription strips recognizer artifacts, collapses whitespace
// and uppercases.
func CleanTranscription(s string) string {
	s = strings.ToUpper(s)
	s = isoTimeRe.ReplaceAllString(s, " ")
	s = compactDateRe.ReplaceAllString(s, " ")
	s = spacedDateRe.ReplaceAllString(s, " ")
	s = bracketTimeRe.ReplaceAllString(s, " ")
	s = durationRe.ReplaceAllString(s, " ")
	s = unknownRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// phoneticFixes maps common recognizer errors onto the NATO word the
// operator actually said.
var phoneticFixes = map[string]string{
	"FORCE":    "FOXTROT",
	"FOX":      "FOXTROT",
	"STRONG":   "SIERRA",
	"HILO":     "HOTEL",
	"HELLO":    "HOTEL",
	"ALPHA":    "ALFA",
	"JULIET":   "JULIETT",
	"X-RAY":    "XRAY",
	"WHISKY":   "WHISKEY",
	"OSCA":     "OSCAR",
	"TANGLE":   "TANGO",
	"MICHAEL":  "MIKE",
	"CHARLEY":  "CHARLIE",
	"VICTORIA": "VICTOR",
}

// fillers the recognizer hears in static.
var fillerPhrases = []string{"I THINK", "I BELIEVE", "SORT OF", "KIND OF"}
var fillerWords = map[string]bool{"UH": true, "UM": true, "ER": true, "AH": true}

// NormalizePhonetics substitutes recognizer errors for their NATO words
// and strips filler phrases. Input is expected cleaned (uppercase).
func NormalizePhonetics(s string) string {
	for _, phrase := range fillerPhrases {
		s = strings.ReplaceAll(s, phrase, " ")
	}
	words := strings.Fields(s)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if fillerWords[w] {
			continue
		}
		if fixed, ok := phoneticFixes[w]; ok {
			w = fixed
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// natoLetters maps each NATO phonetic to the character it encodes.
var natoLetters = map[string]byte{
	"ALFA": 'A', "BRAVO": 'B', "CHARLIE": 'C', "DELTA": 'D',
	"ECHO": 'E', "FOXTROT": 'F', "GOLF": 'G', "HOTEL": 'H',
	"INDIA": 'I', "JULIETT": 'J', "KILO": 'K', "LIMA": 'L',
	"MIKE": 'M', "NOVEMBER": 'N', "OSCAR": 'O', "PAPA": 'P',
	"QUEBEC": 'Q', "ROMEO": 'R', "SIERRA": 'S', "TANGO": 'T',
	"UNIFORM": 'U', "VICTOR": 'V', "WHISKEY": 'W', "XRAY": 'X',
	"YANKEE": 'Y', "ZULU": 'Z',
}

var natoDigits = map[string]byte{
	"ZERO": '0', "ONE": '1', "TWO": '2', "THREE": '3', "FOUR": '4',
	"FIVE": '5', "SIX": '6', "SEVEN": '7', "EIGHT": '8', "NINE": '9',
	"NINER": '9',
}

// PhoneticSequence is the decoded character stream of a transmission.
type PhoneticSequence struct {
	Original      string
	Decoded       string
	PhoneticCount int
}

// ExtractPhoneticSequence decodes NATO phonetics and spelled digits into
// the character string they encode.
func ExtractPhoneticSequence(s string) PhoneticSequence {
	var decoded strings.Builder
	count := 0
	for _, w := range strings.Fields(s) {
		if c, ok := natoLetters[w]; ok {
			decoded.WriteByte(c)
			count++
			continue
		}
		if c, ok := natoDigits[w]; ok {
			decoded.WriteByte(c)
			count++
		}
	}
	return PhoneticSequence{Original: s, Decoded: decoded.String(), PhoneticCount: count}
}

// Indicators are the procedural markers of an EAM broadcast.
type Indicators struct {
	HasStandBy          bool
	HasMessageFollows   bool
	HasISayAgain        bool
	HasMessageLength    bool
	HasAuthentication   bool
	HasSkyking          bool
	HasRepeatedPatterns bool
}

var messageLengthRe = regexp.MustCompile(`\b(?:MESSAGE\s+OF\s+\d+|(\d+)\s+CHARACTER)\b`)

// DetectIndicators scans a cleaned transcription for EAM procedure words.
func DetectIndicators(s string) Indicators {
	return Indicators{
		HasStandBy:          strings.Contains(s, "STAND BY") || strings.Contains(s, "STANDBY"),
		HasMessageFollows:   strings.Contains(s, "MESSAGE FOLLOWS"),
		HasISayAgain:        strings.Contains(s, "I SAY AGAIN"),
		HasMessageLength:    messageLengthRe.MatchString(s),
		HasAuthentication:   strings.Contains(s, "AUTHENTICATION"),
		HasSkyking:          strings.Contains(s, "SKYKING"),
		HasRepeatedPatterns: hasRepeatedPattern(s),
	}
}

// hasRepeatedPattern reports whether any trigram of words occurs twice.
// EAMs repeat the preamble and body verbatim, so a real broadcast nearly
// always trips this.
func hasRepeatedPattern(s string) bool {
	words := strings.Fields(s)
	if len(words) < 6 {
		return false
	}
	seen := make(map[string]bool, len(words))
	for i := 0; i+3 <= len(words); i++ {
		gram := words[i] + " " + words[i+1] + " " + words[i+2]
		if seen[gram] {
			return true
		}
		seen[gram] = true
	}
	return false
}

// Any reports whether at least one indicator holds.
func (in Indicators) Any() bool {
	return in.HasStandBy || in.HasMessageFollows || in.HasISayAgain ||
		in.HasMessageLength || in.HasAuthentication || in.HasSkyking ||
		in.HasRepeatedPatterns
}

// EstimateConfidence scores a candidate 0..100 from its indicators and
// phonetic density.
func EstimateConfidence(in Indicators, phoneticCount int) int {
	score := 0
	if in.HasStandBy {
		score += 10
	}
	if in.HasMessageFollows {
		score += 15
	}
	if in.HasISayAgain {
		score += 15
	}
	if in.HasMessageLength {
		score += 10
	}
	if in.HasRepeatedPatterns {
		score += 10
	}
	if in.HasAuthentication {
		score += 15
	}
	if in.HasSkyking {
		score += 25
	}
	density := phoneticCount * 2
	if density > 30 {
		density = 30
	}
	score += density
	if score > 100 {
		score = 100
	}
	return score
}
