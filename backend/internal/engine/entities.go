package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tami-graph/backend/internal/constants"
	"tami-graph/backend/internal/graph"
	"tami-graph/backend/internal/normalize"
	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Entity Store
// ============================================================================

// UpsertEntity resolves the request to its canonical entity, creating it on
// first sight. Identity is (owner, type, normalized key); the store matches or
// creates in one atomic statement.
func (e *Engine) UpsertEntity(ctx context.Context, ownerID string, req EntityRequest) (*graph.Entity, error) {
	in, err := entityInput(ownerID, req)
	if err != nil {
		return nil, err
	}

	entity, err := call(ctx, e.guard, "upsert entity", true, func(ctx context.Context) (*graph.Entity, error) {
		return e.store.UpsertEntity(ctx, in)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Entity upserted",
		zap.String("owner_id", ownerID),
		zap.String("entity_id", entity.ID),
		zap.String("type", string(entity.Type)),
		zap.Int64("mention_count", entity.MentionCount),
	)
	return entity, nil
}

func entityInput(ownerID string, req EntityRequest) (graph.UpsertEntityInput, error) {
	var in graph.UpsertEntityInput
	if err := requireOwner(ownerID); err != nil {
		return in, err
	}
	entityType, err := graph.ParseEntityType(req.Type)
	if err != nil {
		return in, err
	}

	n := normalize.New(req.Language)
	raw := req.NormalizedValue
	if strings.TrimSpace(raw) == "" {
		raw = req.Value
	}
	key := n.Key(raw, string(entityType))
	if key == "" {
		return in, apperrors.NewValidation("value", "is empty after normalization")
	}

	display := normalize.Display(req.Value)
	if display == "" {
		display = normalize.Display(req.NormalizedValue)
	}

	delta := req.MentionDelta
	if delta == 0 {
		delta = 1
	}
	if delta < 0 {
		return in, apperrors.NewValidation("mention_delta", "must not be negative")
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	if err := checkUnit("confidence", &confidence); err != nil {
		return in, err
	}
	if err := checkSentiment("sentiment_avg", req.SentimentAvg); err != nil {
		return in, err
	}

	return graph.UpsertEntityInput{
		ID:              req.ID,
		OwnerID:         ownerID,
		Type:            entityType,
		NormalizedValue: key,
		DisplayValue:    display,
		Description:     strings.TrimSpace(req.Description),
		MentionDelta:    delta,
		Aliases:         aliasKeys(n, req.Aliases, entityType, key),
		Confidence:      confidence,
		SeenAt:          req.SeenAt,
		SentimentAvg:    req.SentimentAvg,
		IsUserCreated:   req.IsUserCreated,
	}, nil
}

// aliasKeys normalizes aliases the same way as the entity key, dropping
// blanks, duplicates and the key itself
func aliasKeys(n *normalize.Normalizer, aliases []string, entityType graph.EntityType, key string) []string {
	out := make([]string, 0, len(aliases))
	seen := map[string]bool{key: true, "": true}
	for _, a := range aliases {
		k := n.Key(a, string(entityType))
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// UpdateEntity sets scalar fields explicitly. Aliases, when given, replace the alias set.
func (e *Engine) UpdateEntity(ctx context.Context, ownerID, entityID string, update graph.EntityUpdate, language string) (*graph.Entity, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("entity_id", entityID); err != nil {
		return nil, err
	}
	if update.Empty() {
		return nil, apperrors.NewValidation("update", "sets no fields")
	}
	if update.DisplayValue != nil {
		display := normalize.Display(*update.DisplayValue)
		if display == "" {
			return nil, apperrors.NewValidation("display_value", "must not be empty")
		}
		update.DisplayValue = &display
	}
	if err := checkUnit("confidence", update.Confidence); err != nil {
		return nil, err
	}
	if err := checkSentiment("sentiment_avg", update.SentimentAvg); err != nil {
		return nil, err
	}

	unlock := e.locks.RLock(entityID)
	defer unlock()

	if update.Aliases != nil {
		// Alias keys depend on the entity type, which never changes
		current, err := e.GetEntity(ctx, ownerID, entityID)
		if err != nil {
			return nil, err
		}
		keys := aliasKeys(normalize.New(language), *update.Aliases, current.Type, current.NormalizedValue)
		update.Aliases = &keys
	}

	entity, err := call(ctx, e.guard, "update entity", true, func(ctx context.Context) (*graph.Entity, error) {
		return e.store.UpdateEntity(ctx, ownerID, entityID, update)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Entity updated", zap.String("owner_id", ownerID), zap.String("entity_id", entityID))
	return entity, nil
}

// DeleteEntity removes the entity and every edge touching it. It is never
// retried: a repeat after an unconfirmed attempt reports NotFound.
func (e *Engine) DeleteEntity(ctx context.Context, ownerID, entityID string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if err := requireID("entity_id", entityID); err != nil {
		return err
	}

	unlock := e.locks.Lock(entityID)
	defer unlock()

	_, err := call(ctx, e.guard, "delete entity", false, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.store.DeleteEntity(ctx, ownerID, entityID)
	})
	if err != nil {
		return err
	}
	e.logger.Info("Entity deleted", zap.String("owner_id", ownerID), zap.String("entity_id", entityID))
	return nil
}

// ============================================================================
// Entity Queries
// ============================================================================

// GetEntity returns the entity with its meeting mentions and semantic relationships
func (e *Engine) GetEntity(ctx context.Context, ownerID, entityID string) (*graph.EntityDetail, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("entity_id", entityID); err != nil {
		return nil, err
	}
	return call(ctx, e.guard, "get entity", true, func(ctx context.Context) (*graph.EntityDetail, error) {
		return e.store.GetEntity(ctx, ownerID, entityID)
	})
}

// ListEntities pages through the owner's entities, most mentioned first.
// An empty entityType lists every type.
func (e *Engine) ListEntities(ctx context.Context, ownerID, entityType string, offset, limit int) ([]graph.EntitySummary, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	var typ graph.EntityType
	if strings.TrimSpace(entityType) != "" {
		parsed, err := graph.ParseEntityType(entityType)
		if err != nil {
			return nil, err
		}
		typ = parsed
	}
	offset, limit, err := page(offset, limit)
	if err != nil {
		return nil, err
	}

	return call(ctx, e.guard, "list entities", true, func(ctx context.Context) ([]graph.EntitySummary, error) {
		return e.store.ListEntities(ctx, ownerID, typ, offset, limit)
	})
}

// ListGrouped pages through every entity, most mentioned first, and groups the page by type
func (e *Engine) ListGrouped(ctx context.Context, ownerID string, offset, limit int) (EntityGroups, error) {
	entities, err := e.ListEntities(ctx, ownerID, "", offset, limit)
	if err != nil {
		return nil, err
	}
	groups := make(EntityGroups)
	for _, s := range entities {
		groups[s.Type] = append(groups[s.Type], s)
	}
	return groups, nil
}

// EntityStats counts the owner's entities per type
func (e *Engine) EntityStats(ctx context.Context, ownerID string) (*graph.EntityStats, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return call(ctx, e.guard, "entity stats", true, func(ctx context.Context) (*graph.EntityStats, error) {
		return e.store.EntityStats(ctx, ownerID)
	})
}

// SearchEntities runs a full-text query over values and descriptions
func (e *Engine) SearchEntities(ctx context.Context, ownerID, query string, types []string, limit int) ([]graph.SearchHit, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidation("q", "is required")
	}
	limit, err := bounded("limit", limit, constants.DefaultSearchSize, constants.MaxPageSize)
	if err != nil {
		return nil, err
	}

	parsed := make([]graph.EntityType, 0, len(types))
	for _, t := range types {
		if strings.TrimSpace(t) == "" {
			continue
		}
		typ, err := graph.ParseEntityType(t)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, typ)
	}

	return call(ctx, e.guard, "search entities", true, func(ctx context.Context) ([]graph.SearchHit, error) {
		return e.store.SearchEntities(ctx, ownerID, query, parsed, limit)
	})
}
