package engine

import (
	"context"

	"tami-graph/backend/internal/constants"
	"tami-graph/backend/internal/graph"
	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Graph Query Layer
// ============================================================================

// EntityGraph returns every node and edge within depth hops of the entity,
// meetings included. Zero depth uses the default; the cap is hard.
func (e *Engine) EntityGraph(ctx context.Context, ownerID, entityID string, depth int) (*graph.Subgraph, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("entity_id", entityID); err != nil {
		return nil, err
	}
	depth, err := bounded("depth", depth, constants.DefaultGraphDepth, constants.MaxGraphDepth)
	if err != nil {
		return nil, err
	}

	return call(ctx, e.guard, "entity graph", true, func(ctx context.Context) (*graph.Subgraph, error) {
		return e.store.Subgraph(ctx, ownerID, entityID, depth)
	})
}

// FindConnections returns up to MaxConnectionPaths shortest paths between two
// entities within maxHops. No path is an empty result, not an error.
func (e *Engine) FindConnections(ctx context.Context, ownerID, fromID, toID string, maxHops int) ([]graph.Path, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("from", fromID); err != nil {
		return nil, err
	}
	if err := requireID("to", toID); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, apperrors.NewValidation("to", "must differ from from")
	}
	maxHops, err := bounded("max_hops", maxHops, constants.DefaultMaxHops, constants.MaxHops)
	if err != nil {
		return nil, err
	}

	return call(ctx, e.guard, "find connections", true, func(ctx context.Context) ([]graph.Path, error) {
		return e.store.ShortestPaths(ctx, ownerID, fromID, toID, maxHops, constants.MaxConnectionPaths)
	})
}
