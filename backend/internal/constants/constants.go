package constants

import "time"

// Extraction constants
const (
	// DefaultMinConfidence is the extraction confidence below which candidates are dropped
	DefaultMinConfidence = 0.7

	// MentionContextRadius is the number of characters kept on each side of a
	// mention when cutting its context snippet out of a transcript
	MentionContextRadius = 100
)

// Relationship inference constants
const (
	// DefaultCollaborationThreshold is the number of shared meetings needed
	// before two people are inferred to collaborate
	DefaultCollaborationThreshold = 3

	// DefaultCoOccurrenceMin is the shared-meeting floor for co-occurrence ranking
	DefaultCoOccurrenceMin = 2
)

// Traversal constants
const (
	// DefaultGraphDepth is the subgraph depth used when the caller does not pass one
	DefaultGraphDepth = 2
	// MaxGraphDepth is the hard cap on subgraph depth
	MaxGraphDepth = 5

	// DefaultMaxHops is the connection search bound used when the caller does not pass one
	DefaultMaxHops = 4
	// MaxHops is the hard cap on connection search
	MaxHops = 6

	// MaxConnectionPaths is the number of shortest paths returned by a connection search
	MaxConnectionPaths = 5
)

// Pagination constants
const (
	DefaultPageSize   = 50
	MaxPageSize       = 500
	DefaultSearchSize = 20
)

// Store call constants
const (
	DefaultStoreTimeout       = 10 * time.Second
	DefaultStoreRetryAttempts = 3
	// StoreRetryBaseDelay is doubled after every failed attempt
	StoreRetryBaseDelay = 200 * time.Millisecond

	// BreakerFailureThreshold is the number of consecutive store outages that open the breaker
	BreakerFailureThreshold = 5
	// BreakerOpenTimeout is how long the breaker stays open before probing again
	BreakerOpenTimeout = 30 * time.Second
)

// Entity source markers
const (
	SourceExtraction = "extraction"
	SourceUser       = "user"
	SourceInferred   = "inferred"
)

// Language codes
const (
	LanguageCodeEnglish     = "en"
	LanguageCodeFrench      = "fr"
	LanguageCodeSpanish     = "es"
	LanguageCodeGerman      = "de"
	LanguageCodeItalian     = "it"
	LanguageCodePortuguese  = "pt"
	LanguageCodeTurkish     = "tr"
	LanguageCodeAzerbaijani = "az"
	LanguageCodeLithuanian  = "lt"
	LanguageCodeJapanese    = "ja"
	LanguageCodeChinese     = "zh"
	LanguageCodeKorean      = "ko"
	LanguageCodeRussian     = "ru"
)
