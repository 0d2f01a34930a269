package graph

import "time"

// ============================================================================
// Knowledge Graph Types
// ============================================================================

// Entity is a typed node scoped to one owner. (OwnerID, Type, NormalizedValue)
// identifies at most one live entity.
type Entity struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	Type            EntityType `json:"type"`
	NormalizedValue string     `json:"normalized_value"`
	DisplayValue    string     `json:"display_value"`
	Aliases         []string   `json:"aliases"`
	Description     string     `json:"description,omitempty"`
	MentionCount    int64      `json:"mention_count"`
	Confidence      float64    `json:"confidence"`
	FirstSeen       time.Time  `json:"first_seen"`
	LastSeen        time.Time  `json:"last_seen"`
	SentimentAvg    *float64   `json:"sentiment_avg,omitempty"`
	IsUserCreated   bool       `json:"is_user_created"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EntityRef is the short form of an entity used inside other results
type EntityRef struct {
	ID              string     `json:"id"`
	Type            EntityType `json:"type"`
	NormalizedValue string     `json:"normalized_value"`
	DisplayValue    string     `json:"display_value"`
}

// Ref returns the short form of e
func (e *Entity) Ref() EntityRef {
	return EntityRef{
		ID:              e.ID,
		Type:            e.Type,
		NormalizedValue: e.NormalizedValue,
		DisplayValue:    e.DisplayValue,
	}
}

// Meeting is one transcribed session
type Meeting struct {
	ID               string        `json:"id"`
	OwnerID          string        `json:"owner_id"`
	Title            string        `json:"title"`
	Status           MeetingStatus `json:"status"`
	DurationSeconds  float64       `json:"duration_seconds,omitempty"`
	DetectedLanguage string        `json:"detected_language,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Mention is the single MENTIONED_IN edge between an entity and a meeting
type Mention struct {
	EntityID       string    `json:"entity_id"`
	MeetingID      string    `json:"meeting_id"`
	Context        string    `json:"context,omitempty"`
	TimestampStart *float64  `json:"timestamp_start,omitempty"`
	TimestampEnd   *float64  `json:"timestamp_end,omitempty"`
	Speaker        string    `json:"speaker,omitempty"`
	MentionCount   int64     `json:"mention_count"`
	Sentiment      *float64  `json:"sentiment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MeetingMention is a mention as seen from its entity, with the meeting's title
type MeetingMention struct {
	Mention
	MeetingTitle     string    `json:"meeting_title"`
	MeetingCreatedAt time.Time `json:"meeting_created_at"`
}

// Relationship is a typed, directed semantic edge between two entities
type Relationship struct {
	FromID     string                 `json:"from_id"`
	ToID       string                 `json:"to_id"`
	Type       RelationshipType       `json:"type"`
	Confidence float64                `json:"confidence"`
	Source     string                 `json:"source"`
	Strength   int64                  `json:"strength,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// RelationshipView is a relationship seen from one of its endpoints
type RelationshipView struct {
	Relationship
	Direction Direction `json:"direction"`
	Other     EntityRef `json:"other"`
}

// EntityDetail is an entity with its meeting mentions and semantic relationships
type EntityDetail struct {
	Entity
	Mentions      []MeetingMention   `json:"mentions"`
	Relationships []RelationshipView `json:"relationships"`
}

// EntitySummary is a list row: the entity plus the number of meetings it appears in
type EntitySummary struct {
	Entity
	MeetingCount int64 `json:"meeting_count"`
}

// EntityStats counts an owner's entities per type
type EntityStats struct {
	Total  int64                `json:"total"`
	ByType map[EntityType]int64 `json:"by_type"`
}

// SearchHit is a full-text search result
type SearchHit struct {
	Entity
	Score float64 `json:"score"`
}

// CoOccurrence is an unordered entity pair that shares meetings
type CoOccurrence struct {
	Entity1        EntityRef `json:"entity1"`
	Entity2        EntityRef `json:"entity2"`
	SharedMeetings int64     `json:"shared_meetings"`
	MeetingTitles  []string  `json:"meeting_titles"`
}

// NodeKind distinguishes entity and meeting nodes in traversal results
type NodeKind string

const (
	NodeKindEntity  NodeKind = "entity"
	NodeKindMeeting NodeKind = "meeting"
)

// GraphNode is a node in a subgraph or path
type GraphNode struct {
	ID    string     `json:"id"`
	Kind  NodeKind   `json:"kind"`
	Type  EntityType `json:"type,omitempty"` // entities only
	Label string     `json:"label"`          // display value or meeting title
	Depth int        `json:"depth"`
}

// GraphEdge is an edge in a subgraph or path
type GraphEdge struct {
	FromID     string                 `json:"from_id"`
	ToID       string                 `json:"to_id"`
	Type       RelationshipType       `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Subgraph is every node and edge within Depth hops of Root
type Subgraph struct {
	Root  string      `json:"root"`
	Depth int         `json:"depth"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Path is an ordered node and edge sequence. Edges[i] joins Nodes[i] and Nodes[i+1].
type Path struct {
	Nodes  []GraphNode `json:"nodes"`
	Edges  []GraphEdge `json:"edges"`
	Length int         `json:"length"`
}

// ActionItem is a task raised in a meeting, optionally assigned to a person
type ActionItem struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	MeetingID        string     `json:"meeting_id"`
	Description      string     `json:"description"`
	Assignee         string     `json:"assignee,omitempty"`
	AssigneeEntityID string     `json:"assignee_entity_id,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ============================================================================
// Inputs
// ============================================================================

// UpsertEntityInput describes one observation of an entity
type UpsertEntityInput struct {
	ID              string // used only when the entity is created
	OwnerID         string
	Type            EntityType
	NormalizedValue string
	DisplayValue    string
	Description     string
	MentionDelta    int64
	Aliases         []string
	Confidence      float64
	SeenAt          time.Time
	SentimentAvg    *float64
	IsUserCreated   bool
}

// EntityUpdate sets scalar fields explicitly. nil fields are left untouched.
type EntityUpdate struct {
	DisplayValue *string   `json:"display_value,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Aliases      *[]string `json:"aliases,omitempty"` // replaces the alias set
	Confidence   *float64  `json:"confidence,omitempty"`
	SentimentAvg *float64  `json:"sentiment_avg,omitempty"`
}

// Empty reports whether the update sets nothing
func (u EntityUpdate) Empty() bool {
	return u.DisplayValue == nil && u.Description == nil && u.Aliases == nil &&
		u.Confidence == nil && u.SentimentAvg == nil
}

// MeetingInput creates a meeting
type MeetingInput struct {
	ID               string
	OwnerID          string
	Title            string
	Status           MeetingStatus
	DurationSeconds  float64
	DetectedLanguage string
	CreatedAt        time.Time
}

// MentionInput records one or more occurrences of an entity in a meeting
type MentionInput struct {
	OwnerID          string
	EntityID         string
	MeetingID        string
	Context          string
	TimestampStart   *float64
	TimestampEnd     *float64
	Speaker          string
	Delta            int64
	Sentiment        *float64
	OverwriteContext bool
	ObservedAt       time.Time
}

// RelationshipInput creates or refreshes a semantic edge
type RelationshipInput struct {
	OwnerID    string
	FromID     string
	ToID       string
	Type       RelationshipType
	Confidence float64
	Source     string
	Properties map[string]interface{}
}

// ActionItemInput creates an action item in a meeting
type ActionItemInput struct {
	ID          string
	OwnerID     string
	MeetingID   string
	Description string
	DueDate     *time.Time
	Status      string
}

// AssignInput resolves an assignee name to a person entity
type AssignInput struct {
	OwnerID  string
	ItemID   string
	Assignee string // as written
	Key      string // normalized form of Assignee
}
