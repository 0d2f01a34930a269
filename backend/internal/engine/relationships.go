package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tami-graph/backend/internal/constants"
	"tami-graph/backend/internal/graph"
	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Relationship Engine
// ============================================================================

var relationshipSources = map[string]bool{
	constants.SourceExtraction: true,
	constants.SourceUser:       true,
	constants.SourceInferred:   true,
}

// CreateRelationship creates or refreshes the (from, to, type) edge. The type
// must be allowed for the ordered pair of endpoint types; the check runs in
// the same store transaction as the write.
func (e *Engine) CreateRelationship(ctx context.Context, ownerID string, req RelationshipRequest) (*graph.Relationship, error) {
	in, err := relationshipInput(ownerID, req)
	if err != nil {
		return nil, err
	}

	allow := func(from, to graph.EntityType) error {
		return graph.ValidateRelationship(from, to, in.Type)
	}

	unlock := e.locks.RLock(in.FromID, in.ToID)
	defer unlock()

	rel, err := call(ctx, e.guard, "create relationship", true, func(ctx context.Context) (*graph.Relationship, error) {
		return e.store.UpsertRelationship(ctx, in, allow)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Relationship upserted",
		zap.String("owner_id", ownerID),
		zap.String("from_id", in.FromID),
		zap.String("to_id", in.ToID),
		zap.String("type", string(in.Type)),
		zap.String("source", in.Source),
	)
	return rel, nil
}

func relationshipInput(ownerID string, req RelationshipRequest) (graph.RelationshipInput, error) {
	var in graph.RelationshipInput
	if err := requireOwner(ownerID); err != nil {
		return in, err
	}
	if err := requireID("from_id", req.FromID); err != nil {
		return in, err
	}
	if err := requireID("to_id", req.ToID); err != nil {
		return in, err
	}
	if req.FromID == req.ToID {
		return in, apperrors.NewValidation("to_id", "an entity cannot relate to itself")
	}

	relType, err := graph.ParseRelationshipType(req.Type)
	if err != nil {
		return in, err
	}
	if relType.IsStructural() {
		return in, apperrors.NewValidation("type", fmt.Sprintf("%s edges are managed by the graph", relType))
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	if err := checkUnit("confidence", &confidence); err != nil {
		return in, err
	}

	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		source = constants.SourceUser
	}
	if !relationshipSources[source] {
		return in, apperrors.NewValidation("source", fmt.Sprintf("%q is not a relationship source", req.Source))
	}

	for k := range req.Properties {
		if graph.ReservedRelationshipProperty(k) {
			return in, apperrors.NewValidation("properties", fmt.Sprintf("%q is set by the engine", k))
		}
	}

	return graph.RelationshipInput{
		OwnerID:    ownerID,
		FromID:     req.FromID,
		ToID:       req.ToID,
		Type:       relType,
		Confidence: confidence,
		Source:     source,
		Properties: req.Properties,
	}, nil
}

// DeleteRelationship removes one (from, to, type) edge
func (e *Engine) DeleteRelationship(ctx context.Context, ownerID, fromID, toID, relType string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if err := requireID("from_id", fromID); err != nil {
		return err
	}
	if err := requireID("to_id", toID); err != nil {
		return err
	}
	parsed, err := graph.ParseRelationshipType(relType)
	if err != nil {
		return err
	}
	if parsed.IsStructural() {
		return apperrors.NewValidation("type", fmt.Sprintf("%s edges are managed by the graph", parsed))
	}

	unlock := e.locks.RLock(fromID, toID)
	defer unlock()

	_, err = call(ctx, e.guard, "delete relationship", false, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.store.DeleteRelationship(ctx, ownerID, fromID, toID, parsed)
	})
	if err != nil {
		return err
	}
	e.logger.Info("Relationship deleted",
		zap.String("owner_id", ownerID),
		zap.String("from_id", fromID),
		zap.String("to_id", toID),
		zap.String("type", string(parsed)),
	)
	return nil
}

// EntityRelationships lists the semantic edges touching an entity.
// direction is outgoing, incoming or both (the default).
func (e *Engine) EntityRelationships(ctx context.Context, ownerID, entityID, direction string) ([]graph.RelationshipView, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("entity_id", entityID); err != nil {
		return nil, err
	}
	dir, err := graph.ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	return call(ctx, e.guard, "entity relationships", true, func(ctx context.Context) ([]graph.RelationshipView, error) {
		return e.store.EntityRelationships(ctx, ownerID, entityID, dir)
	})
}

// InferCollaborations refreshes COLLABORATES_WITH edges between people who
// share at least threshold meetings. Zero uses the configured threshold.
func (e *Engine) InferCollaborations(ctx context.Context, ownerID string, threshold int) (int, error) {
	if err := requireOwner(ownerID); err != nil {
		return 0, err
	}
	if threshold == 0 {
		threshold = e.opts.CollaborationThreshold
	}
	if threshold < 1 {
		return 0, apperrors.NewValidation("threshold", "must be at least 1")
	}

	touched, err := call(ctx, e.guard, "infer collaborations", true, func(ctx context.Context) (int, error) {
		return e.store.InferCollaborations(ctx, ownerID, threshold)
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("Collaborations inferred",
		zap.String("owner_id", ownerID),
		zap.Int("threshold", threshold),
		zap.Int("edges", touched),
	)
	return touched, nil
}

// CoOccurrences ranks entity pairs by the number of meetings they share.
// Zero minShared uses the configured floor.
func (e *Engine) CoOccurrences(ctx context.Context, ownerID string, minShared, limit int) ([]graph.CoOccurrence, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if minShared == 0 {
		minShared = e.opts.CoOccurrenceMin
	}
	if minShared < 1 {
		return nil, apperrors.NewValidation("min", "must be at least 1")
	}
	limit, err := bounded("limit", limit, constants.DefaultPageSize, constants.MaxPageSize)
	if err != nil {
		return nil, err
	}

	return call(ctx, e.guard, "co-occurrences", true, func(ctx context.Context) ([]graph.CoOccurrence, error) {
		return e.store.CoOccurrences(ctx, ownerID, minShared, limit)
	})
}
