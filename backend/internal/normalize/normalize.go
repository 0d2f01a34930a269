// Package normalize canonicalizes raw entity text into the key used for
// entity identity matching.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"tami-graph/backend/internal/constants"
	"tami-graph/backend/internal/utils"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// edgePunctuation is stripped from both ends of a key. Symbols inside a
// name (C#, C++, Node.js) are never edges; a leading dot glued to a name
// (.NET) is kept, a trailing one is not.
const edgePunctuation = ".,;:!?\"'`()[]{}<>«»“”‘’…-–—"

// Normalizer folds surface text to an identity key. It is safe for concurrent use.
type Normalizer struct {
	lang string
	fold func() cases.Caser
}

// New returns a Normalizer for the given language code or tag.
// Turkish, Azerbaijani and Lithuanian use locale-specific lowercasing so
// dotted and dotless i are kept apart; every other language uses full Unicode case folding.
func New(lang string) *Normalizer {
	code := utils.NormalizeLanguageCode(lang)
	n := &Normalizer{lang: code}

	switch code {
	case constants.LanguageCodeTurkish, constants.LanguageCodeAzerbaijani, constants.LanguageCodeLithuanian:
		tag := language.Make(code)
		n.fold = func() cases.Caser { return cases.Lower(tag) }
	default:
		n.fold = func() cases.Caser { return cases.Fold() }
	}
	return n
}

// Language returns the base language code the normalizer folds for
func (n *Normalizer) Language() string {
	return n.lang
}

// Key returns the normalized key for raw. Empty or punctuation-only input yields "".
// Names (people, organizations, projects, products) also lose a trailing possessive.
func (n *Normalizer) Key(raw, entityType string) string {
	if raw == "" {
		return ""
	}

	s := norm.NFKC.String(raw)
	// cases.Caser is stateful and not safe to share
	s = n.fold().String(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = trimEdges(s)

	if possessiveTypes[entityType] {
		for _, suffix := range []string{"'s", "’s"} {
			if trimmed, ok := strings.CutSuffix(s, suffix); ok && trimmed != "" {
				s = trimEdges(trimmed)
				break
			}
		}
	}
	return s
}

func trimEdges(s string) string {
	s = strings.TrimRight(s, " "+edgePunctuation)
	trimmed := strings.TrimLeft(s, " "+edgePunctuation)
	// a single dot directly before the name belongs to it
	if i := len(s) - len(trimmed); i > 0 && trimmed != "" && s[i-1] == '.' && (i == 1 || s[i-2] != '.') {
		return s[i-1:]
	}
	return trimmed
}

var possessiveTypes = map[string]bool{
	"person":       true,
	"organization": true,
	"project":      true,
	"product":      true,
}

// Display cleans up a surface form for display without changing its casing
func Display(raw string) string {
	s := norm.NFKC.String(raw)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
