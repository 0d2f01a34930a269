package graph

import "context"

// Store is the graph store the engine runs on. Every write method is a single
// store transaction: it either applies fully or not at all. Methods return
// errors from tami-graph/backend/pkg/errors (not_found, conflict, validation,
// store_unavailable) so callers can branch on the category.
type Store interface {
	// UpsertEntity finds or creates the entity keyed by (owner, type, normalized value)
	// in one atomic match-or-create.
	UpsertEntity(ctx context.Context, in UpsertEntityInput) (*Entity, error)
	UpdateEntity(ctx context.Context, ownerID, entityID string, update EntityUpdate) (*Entity, error)
	DeleteEntity(ctx context.Context, ownerID, entityID string) error
	GetEntity(ctx context.Context, ownerID, entityID string) (*EntityDetail, error)
	// ListEntities pages through an owner's entities by mention count, descending.
	// An empty entityType lists every type.
	ListEntities(ctx context.Context, ownerID string, entityType EntityType, offset, limit int) ([]EntitySummary, error)
	EntityStats(ctx context.Context, ownerID string) (*EntityStats, error)
	SearchEntities(ctx context.Context, ownerID, query string, types []EntityType, limit int) ([]SearchHit, error)

	UpsertMeeting(ctx context.Context, in MeetingInput) (*Meeting, error)
	GetMeeting(ctx context.Context, ownerID, meetingID string) (*Meeting, error)
	// UpdateMeetingStatus moves a meeting forward. A backward move is a conflict.
	UpdateMeetingStatus(ctx context.Context, ownerID, meetingID string, status MeetingStatus) (*Meeting, error)

	// AddMention finds or creates the single MENTIONED_IN edge for (entity, meeting).
	AddMention(ctx context.Context, in MentionInput) (*Mention, error)

	// UpsertRelationship creates or refreshes (from, to, type). allow is called
	// with the endpoint types inside the same transaction; a non-nil result aborts it.
	UpsertRelationship(ctx context.Context, in RelationshipInput, allow func(from, to EntityType) error) (*Relationship, error)
	DeleteRelationship(ctx context.Context, ownerID, fromID, toID string, relType RelationshipType) error
	EntityRelationships(ctx context.Context, ownerID, entityID string, dir Direction) ([]RelationshipView, error)
	// InferCollaborations refreshes inferred COLLABORATES_WITH edges and returns
	// the number of edges created or updated.
	InferCollaborations(ctx context.Context, ownerID string, threshold int) (int, error)
	CoOccurrences(ctx context.Context, ownerID string, minShared, limit int) ([]CoOccurrence, error)

	Subgraph(ctx context.Context, ownerID, entityID string, depth int) (*Subgraph, error)
	ShortestPaths(ctx context.Context, ownerID, fromID, toID string, maxHops, limit int) ([]Path, error)

	// MergeEntities folds mergeID into keepID and deletes mergeID.
	MergeEntities(ctx context.Context, ownerID, keepID, mergeID string) (*Entity, error)

	CreateActionItem(ctx context.Context, in ActionItemInput) (*ActionItem, error)
	AssignActionItem(ctx context.Context, in AssignInput) (*ActionItem, error)

	Close(ctx context.Context) error
}
