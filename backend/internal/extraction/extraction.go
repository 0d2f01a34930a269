// Package extraction talks to the services that turn transcript text into
// candidate entities. Candidates are untrusted: callers filter them by
// confidence and normalize them before anything reaches the graph.
package extraction

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Candidate is one entity occurrence proposed by an extractor. Offsets are
// character (rune) positions into the transcript, end exclusive.
type Candidate struct {
	Type            string  `json:"type"`
	Value           string  `json:"value"`
	NormalizedValue string  `json:"normalized_value"`
	Confidence      float64 `json:"confidence"`
	StartOffset     int     `json:"start_offset"`
	EndOffset       int     `json:"end_offset"`
	SourceText      string  `json:"source_text,omitempty"`
}

// Extractor returns candidate entities for a transcript
type Extractor interface {
	Extract(ctx context.Context, transcript, language string) ([]Candidate, error)
	Name() string
}

// FilterByConfidence keeps candidates whose confidence is at least min.
// The second result is the number dropped.
func FilterByConfidence(candidates []Candidate, min float64) ([]Candidate, int) {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence >= min {
			kept = append(kept, c)
		}
	}
	return kept, len(candidates) - len(kept)
}

// Snippet cuts the text around [start, end) with radius characters of
// context on each side. Offsets are clamped to the text.
func Snippet(text string, start, end, radius int) string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return ""
	}
	start = clamp(start, 0, n)
	end = clamp(end, start, n)

	from := clamp(start-radius, 0, n)
	to := clamp(end+radius, 0, n)
	return string(runes[from:to])
}

// locate finds value in text and returns its rune offsets, or -1, -1.
// Used when an extractor does not report offsets.
func locate(text, value string) (int, int) {
	if value == "" {
		return -1, -1
	}
	idx := indexFold(text, value)
	if idx < 0 {
		return -1, -1
	}
	start := utf8.RuneCountInString(text[:idx])
	return start, start + utf8.RuneCountInString(value)
}

// indexFold is strings.Index falling back to a case-insensitive match of the
// same byte length
func indexFold(text, value string) int {
	if idx := strings.Index(text, value); idx >= 0 {
		return idx
	}
	for i := range text {
		if i+len(value) > len(text) {
			break
		}
		if strings.EqualFold(text[i:i+len(value)], value) {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
