package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Merge Operations
// ============================================================================

// MergeEntities folds mergeID into keepID inside one write transaction. Both
// must belong to ownerID and share a type:
// mentions move to keep (counts summed where keep already has the meeting),
// semantic and assignment edges move to keep unless keep already has them,
// aliases and mention counts are combined, and mergeID is deleted.
func (r *Repository) MergeEntities(ctx context.Context, ownerID, keepID, mergeID string) (*Entity, error) {
	loadQuery := `
		OPTIONAL MATCH (k:Entity {id: $keep_id})
		OPTIONAL MATCH (m:Entity {id: $merge_id})
		RETURN k.user_id AS keep_owner, m.user_id AS merge_owner, k.type AS keep_type, m.type AS merge_type
	`

	mentionsQuery := `
		MATCH (m:Entity {id: $merge_id})-[old:MENTIONED_IN]->(mt:Meeting)
		MATCH (k:Entity {id: $keep_id})
		MERGE (k)-[moved:MENTIONED_IN]->(mt)
		ON CREATE SET moved = properties(old)
		ON MATCH SET moved.mention_count = coalesce(moved.mention_count, 0) + coalesce(old.mention_count, 0)
		DELETE old
		RETURN count(*) AS moved
	`

	edgesQuery := `
		MATCH (m:Entity {id: $merge_id})-[r]-(o)
		WHERE NOT type(r) IN $structural AND o.id <> $keep_id
		RETURN type(r) AS rel_type, properties(r) AS props, startNode(r) = m AS outgoing,
			o.id AS other_id, CASE WHEN o:ActionItem THEN 'ActionItem' ELSE 'Entity' END AS other_label
	`

	finalizeQuery := `
		MATCH (k:Entity {id: $keep_id})
		MATCH (m:Entity {id: $merge_id})
		SET k.aliases = reduce(acc = [], a IN [x IN coalesce(k.aliases, []) + coalesce(m.aliases, []) + [m.normalized_value] WHERE x <> k.normalized_value] |
				CASE WHEN a IN acc THEN acc ELSE acc + a END),
			k.mention_count = coalesce(k.mention_count, 0) + coalesce(m.mention_count, 0),
			k.first_seen = CASE WHEN m.first_seen < k.first_seen THEN m.first_seen ELSE k.first_seen END,
			k.last_seen = CASE WHEN m.last_seen > k.last_seen THEN m.last_seen ELSE k.last_seen END,
			k.updated_at = $now
		DETACH DELETE m
		RETURN k
	`

	params := map[string]interface{}{
		"keep_id":    keepID,
		"merge_id":   mergeID,
		"structural": StructuralTypeNames(),
		"now":        r.now(),
	}

	kept, err := writeTx(ctx, r, "merge entities", func(tx neo4j.ManagedTransaction) (*Entity, error) {
		owners, err := single(ctx, tx, loadQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to load merge endpoints: %w", err)
		}
		var keepOwner, mergeOwner string
		if owners != nil {
			keepOwner = getStringFromRecord(owners, "keep_owner")
			mergeOwner = getStringFromRecord(owners, "merge_owner")
		}
		if keepOwner == "" {
			return nil, apperrors.NewNotFound("entity", keepID)
		}
		if mergeOwner == "" {
			return nil, apperrors.NewNotFound("entity", mergeID)
		}
		if keepOwner != ownerID || mergeOwner != ownerID {
			return nil, apperrors.NewConflict("entities from different owners cannot be merged")
		}
		// moved edges keep their type, so the endpoint types must match
		if keepType, mergeType := getStringFromRecord(owners, "keep_type"), getStringFromRecord(owners, "merge_type"); keepType != mergeType {
			return nil, apperrors.NewConflict(fmt.Sprintf("cannot merge %s into %s", mergeType, keepType))
		}

		if _, err := single(ctx, tx, mentionsQuery, params); err != nil {
			return nil, fmt.Errorf("failed to move mentions: %w", err)
		}

		edges, err := collect(ctx, tx, edgesQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to load edges to move: %w", err)
		}
		for _, record := range edges {
			if err := moveEdge(ctx, tx, keepID, record); err != nil {
				return nil, err
			}
		}

		record, err := single(ctx, tx, finalizeQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to finalize merge: %w", err)
		}
		if record == nil {
			return nil, apperrors.NewNotFound("entity", keepID)
		}
		node, _ := getNodeFromRecord(record, "k")
		return entityFromProps(node.Props), nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Merged entities",
		zap.String("owner_id", ownerID),
		zap.String("keep_id", keepID),
		zap.String("merge_id", mergeID),
		zap.Int64("mention_count", kept.MentionCount),
	)
	return kept, nil
}

// moveEdge recreates one of the absorbed entity's edges on keep. An edge keep
// already has with the same type and neighbour is left as it is.
func moveEdge(ctx context.Context, tx neo4j.ManagedTransaction, keepID string, record *neo4j.Record) error {
	relType, err := ParseRelationshipType(getStringFromRecord(record, "rel_type"))
	if err != nil {
		return fmt.Errorf("cannot move edge of unknown type %q: %w", getStringFromRecord(record, "rel_type"), err)
	}
	otherLabel := "Entity"
	if getStringFromRecord(record, "other_label") == "ActionItem" {
		otherLabel = "ActionItem"
	}

	pattern := "(k)-[r:%s]->(o)"
	if !getBoolFromRecord(record, "outgoing") {
		pattern = "(o)-[r:%s]->(k)"
	}
	// relType and otherLabel come from fixed vocabularies
	query := fmt.Sprintf(`
		MATCH (k:Entity {id: $keep_id})
		MATCH (o:%s {id: $other_id})
		MERGE `+pattern+`
		ON CREATE SET r = $props
	`, otherLabel, relType)

	raw, _ := record.Get("props")
	props, _ := raw.(map[string]interface{})
	if props == nil {
		props = map[string]interface{}{}
	}

	result, err := tx.Run(ctx, query, map[string]interface{}{
		"keep_id":  keepID,
		"other_id": getStringFromRecord(record, "other_id"),
		"props":    props,
	})
	if err != nil {
		return fmt.Errorf("failed to move %s edge: %w", relType, err)
	}
	_, err = result.Consume(ctx)
	return err
}
