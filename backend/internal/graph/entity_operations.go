package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Entity Operations
// ============================================================================

// UpsertEntity finds or creates an entity by (owner, type, normalized value).
// The MERGE is the only identity check: concurrent calls for the same key
// converge on one node and their deltas accumulate.
func (r *Repository) UpsertEntity(ctx context.Context, in UpsertEntityInput) (*Entity, error) {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := r.now()
	seenAt := in.SeenAt
	if seenAt.IsZero() {
		seenAt = now
	}

	// The label comes from a validated EntityType, never from raw input
	query := fmt.Sprintf(`
		MERGE (e:Entity {user_id: $owner_id, type: $type, normalized_value: $normalized_value})
		ON CREATE SET
			e:%s,
			e.id = $id,
			e.display_value = $display_value,
			e.aliases = $aliases,
			e.description = $description,
			e.mention_count = $delta,
			e.confidence = $confidence,
			e.first_seen = $seen_at,
			e.last_seen = $seen_at,
			e.sentiment_avg = $sentiment_avg,
			e.is_user_created = $is_user_created,
			e.created_at = $now,
			e.updated_at = $now
		ON MATCH SET
			e.mention_count = coalesce(e.mention_count, 0) + $delta,
			e.last_seen = CASE WHEN e.last_seen IS NULL OR $seen_at > e.last_seen THEN $seen_at ELSE e.last_seen END,
			e.aliases = coalesce(e.aliases, []) + [a IN $aliases WHERE NOT a IN coalesce(e.aliases, [])],
			e.updated_at = $now
		RETURN e
	`, in.Type.Label())

	params := map[string]interface{}{
		"owner_id":         in.OwnerID,
		"type":             string(in.Type),
		"normalized_value": in.NormalizedValue,
		"id":               id,
		"display_value":    in.DisplayValue,
		"aliases":          dedupeStrings(in.Aliases),
		"description":      in.Description,
		"delta":            in.MentionDelta,
		"confidence":       in.Confidence,
		"seen_at":          seenAt,
		"sentiment_avg":    nullableFloat(in.SentimentAvg),
		"is_user_created":  in.IsUserCreated,
		"now":              now,
	}

	entity, err := writeTx(ctx, r, "upsert entity", func(tx neo4j.ManagedTransaction) (*Entity, error) {
		record, err := single(ctx, tx, query, params)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert entity: %w", err)
		}
		if record == nil {
			return nil, fmt.Errorf("failed to upsert entity: no record returned")
		}
		node, _ := getNodeFromRecord(record, "e")
		return entityFromProps(node.Props), nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Upserted entity",
		zap.String("owner_id", in.OwnerID),
		zap.String("entity_id", entity.ID),
		zap.String("type", string(in.Type)),
		zap.Int64("mention_count", entity.MentionCount),
	)
	return entity, nil
}

// UpdateEntity sets the given scalar fields
func (r *Repository) UpdateEntity(ctx context.Context, ownerID, entityID string, update EntityUpdate) (*Entity, error) {
	params := map[string]interface{}{
		"owner_id":  ownerID,
		"entity_id": entityID,
		"now":       r.now(),
	}
	sets := []string{"e.updated_at = $now"}

	// Field names are fixed here; only values are parameters
	if update.DisplayValue != nil {
		sets = append(sets, "e.display_value = $display_value")
		params["display_value"] = *update.DisplayValue
	}
	if update.Description != nil {
		sets = append(sets, "e.description = $description")
		params["description"] = *update.Description
	}
	if update.Aliases != nil {
		sets = append(sets, "e.aliases = $aliases")
		params["aliases"] = dedupeStrings(*update.Aliases)
	}
	if update.Confidence != nil {
		sets = append(sets, "e.confidence = $confidence")
		params["confidence"] = *update.Confidence
	}
	if update.SentimentAvg != nil {
		sets = append(sets, "e.sentiment_avg = $sentiment_avg")
		params["sentiment_avg"] = *update.SentimentAvg
	}

	query := `
		MATCH (e:Entity {id: $entity_id, user_id: $owner_id})
		SET ` + strings.Join(sets, ", ") + `
		RETURN e
	`

	return writeTx(ctx, r, "update entity", func(tx neo4j.ManagedTransaction) (*Entity, error) {
		record, err := single(ctx, tx, query, params)
		if err != nil {
			return nil, fmt.Errorf("failed to update entity: %w", err)
		}
		if record == nil {
			return nil, apperrors.NewNotFound("entity", entityID)
		}
		node, _ := getNodeFromRecord(record, "e")
		return entityFromProps(node.Props), nil
	})
}

// DeleteEntity removes an entity and every edge touching it
func (r *Repository) DeleteEntity(ctx context.Context, ownerID, entityID string) error {
	query := `
		MATCH (e:Entity {id: $entity_id, user_id: $owner_id})
		WITH e, e.id AS deleted_id
		DETACH DELETE e
		RETURN count(deleted_id) AS deleted
	`

	_, err := writeTx(ctx, r, "delete entity", func(tx neo4j.ManagedTransaction) (bool, error) {
		record, err := single(ctx, tx, query, map[string]interface{}{
			"owner_id":  ownerID,
			"entity_id": entityID,
		})
		if err != nil {
			return false, fmt.Errorf("failed to delete entity: %w", err)
		}
		if record == nil || getInt64FromRecord(record, "deleted") == 0 {
			return false, apperrors.NewNotFound("entity", entityID)
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("Deleted entity", zap.String("owner_id", ownerID), zap.String("entity_id", entityID))
	return nil
}

// GetEntity returns an entity with its mentions and semantic relationships
func (r *Repository) GetEntity(ctx context.Context, ownerID, entityID string) (*EntityDetail, error) {
	query := `
		MATCH (e:Entity {id: $entity_id, user_id: $owner_id})
		OPTIONAL MATCH (e)-[m:MENTIONED_IN]->(mt:Meeting)
		WITH e, m, mt
		ORDER BY mt.created_at DESC
		RETURN e, collect(CASE WHEN mt IS NULL THEN NULL ELSE {
			meeting_id: mt.id,
			meeting_title: mt.title,
			meeting_created_at: mt.created_at,
			props: properties(m)
		} END) AS mentions
	`

	return readTx(ctx, r, "get entity", func(tx neo4j.ManagedTransaction) (*EntityDetail, error) {
		record, err := single(ctx, tx, query, map[string]interface{}{
			"owner_id":  ownerID,
			"entity_id": entityID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get entity: %w", err)
		}
		if record == nil {
			return nil, apperrors.NewNotFound("entity", entityID)
		}

		node, _ := getNodeFromRecord(record, "e")
		detail := &EntityDetail{
			Entity:        *entityFromProps(node.Props),
			Mentions:      []MeetingMention{},
			Relationships: []RelationshipView{},
		}

		raw, _ := record.Get("mentions")
		if list, ok := raw.([]interface{}); ok {
			for _, item := range list {
				row, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				props, _ := row["props"].(map[string]interface{})
				meetingID := getStringFromMap(row, "meeting_id", "")
				detail.Mentions = append(detail.Mentions, MeetingMention{
					Mention:          *mentionFromProps(entityID, meetingID, props),
					MeetingTitle:     getStringFromMap(row, "meeting_title", ""),
					MeetingCreatedAt: getTimeFromMap(row, "meeting_created_at"),
				})
			}
		}

		rels, err := entityRelationshipsTx(ctx, tx, ownerID, entityID, DirectionBoth)
		if err != nil {
			return nil, err
		}
		detail.Relationships = rels
		return detail, nil
	})
}

// ListEntities pages through an owner's entities ordered by mention count
func (r *Repository) ListEntities(ctx context.Context, ownerID string, entityType EntityType, offset, limit int) ([]EntitySummary, error) {
	query := `
		MATCH (e:Entity {user_id: $owner_id})
		WHERE $type = '' OR e.type = $type
		WITH e
		ORDER BY e.mention_count DESC, e.id ASC
		SKIP $offset
		LIMIT $limit
		OPTIONAL MATCH (e)-[:MENTIONED_IN]->(m:Meeting)
		WITH e, count(DISTINCT m) AS meeting_count
		RETURN e, meeting_count
		ORDER BY e.mention_count DESC, e.id ASC
	`

	return readTx(ctx, r, "list entities", func(tx neo4j.ManagedTransaction) ([]EntitySummary, error) {
		records, err := collect(ctx, tx, query, map[string]interface{}{
			"owner_id": ownerID,
			"type":     string(entityType),
			"offset":   int64(offset),
			"limit":    int64(limit),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list entities: %w", err)
		}

		summaries := make([]EntitySummary, 0, len(records))
		for _, record := range records {
			node, ok := getNodeFromRecord(record, "e")
			if !ok {
				continue
			}
			summaries = append(summaries, EntitySummary{
				Entity:       *entityFromProps(node.Props),
				MeetingCount: getInt64FromRecord(record, "meeting_count"),
			})
		}
		return summaries, nil
	})
}

// EntityStats counts an owner's entities per type
func (r *Repository) EntityStats(ctx context.Context, ownerID string) (*EntityStats, error) {
	query := `
		MATCH (e:Entity {user_id: $owner_id})
		RETURN e.type AS type, count(e) AS count
	`

	return readTx(ctx, r, "entity stats", func(tx neo4j.ManagedTransaction) (*EntityStats, error) {
		records, err := collect(ctx, tx, query, map[string]interface{}{"owner_id": ownerID})
		if err != nil {
			return nil, fmt.Errorf("failed to get entity stats: %w", err)
		}

		stats := &EntityStats{ByType: make(map[EntityType]int64)}
		for _, record := range records {
			count := getInt64FromRecord(record, "count")
			stats.ByType[EntityType(getStringFromRecord(record, "type"))] = count
			stats.Total += count
		}
		return stats, nil
	})
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
