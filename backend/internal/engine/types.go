package engine

import (
	"time"

	"tami-graph/backend/internal/graph"
)

// EntityRequest is one observation or manual creation of an entity
type EntityRequest struct {
	ID              string    `json:"id,omitempty"`
	Type            string    `json:"type"`
	Value           string    `json:"value"`
	NormalizedValue string    `json:"normalized_value,omitempty"` // extractor's canonical form, preferred over Value for the key
	Language        string    `json:"language,omitempty"`
	Description     string    `json:"description,omitempty"`
	MentionDelta    int64     `json:"mention_delta,omitempty"`
	Aliases         []string  `json:"aliases,omitempty"`
	Confidence      *float64  `json:"confidence,omitempty"`
	SeenAt          time.Time `json:"seen_at,omitempty"`
	SentimentAvg    *float64  `json:"sentiment_avg,omitempty"`
	IsUserCreated   bool      `json:"is_user_created,omitempty"`
}

// MentionRequest records an entity's appearance in a meeting
type MentionRequest struct {
	EntityID         string    `json:"entity_id"`
	MeetingID        string    `json:"meeting_id"`
	Context          string    `json:"context,omitempty"`
	TimestampStart   *float64  `json:"timestamp_start,omitempty"`
	TimestampEnd     *float64  `json:"timestamp_end,omitempty"`
	Speaker          string    `json:"speaker,omitempty"`
	Delta            int64     `json:"delta,omitempty"`
	Sentiment        *float64  `json:"sentiment,omitempty"`
	OverwriteContext bool      `json:"overwrite_context,omitempty"`
	ObservedAt       time.Time `json:"observed_at,omitempty"`
}

// RelationshipRequest creates or refreshes a semantic relationship
type RelationshipRequest struct {
	FromID     string                 `json:"from_id"`
	ToID       string                 `json:"to_id"`
	Type       string                 `json:"type"`
	Confidence *float64               `json:"confidence,omitempty"`
	Source     string                 `json:"source,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// MeetingRequest creates a meeting or advances its status
type MeetingRequest struct {
	ID               string    `json:"id,omitempty"`
	Title            string    `json:"title"`
	Status           string    `json:"status,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds,omitempty"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

// ActionItemRequest creates an action item, optionally assigning it
type ActionItemRequest struct {
	ID          string     `json:"id,omitempty"`
	MeetingID   string     `json:"meeting_id"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status,omitempty"`
	Language    string     `json:"language,omitempty"`
}

// TranscriptRequest is a transcript to run through extraction
type TranscriptRequest struct {
	MeetingID       string    `json:"-"`
	Title           string    `json:"title,omitempty"`
	Transcript      string    `json:"transcript"`
	Language        string    `json:"language,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	RecordedAt      time.Time `json:"recorded_at,omitempty"`
}

// IngestSummary reports what a transcript ingestion did
type IngestSummary struct {
	MeetingID string `json:"meeting_id"`
	Extracted int    `json:"extracted"`
	Filtered  int    `json:"filtered"` // dropped below the confidence threshold
	Entities  int    `json:"entities"`
	Mentions  int    `json:"mentions"`
	Errors    int    `json:"errors"`
}

// BatchError is one failed item of a batch
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchSummary reports a batch that continues past failed items
type BatchSummary struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors,omitempty"`
}

// EntityGroups is a page of entities grouped by type
type EntityGroups map[graph.EntityType][]graph.EntitySummary
