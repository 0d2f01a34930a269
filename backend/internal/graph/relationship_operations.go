package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"tami-graph/backend/internal/constants"
	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Relationship Operations
// ============================================================================

// UpsertRelationship creates (from)-[type]->(to) or refreshes its properties
// in place. allow sees the endpoint types inside the same transaction.
func (r *Repository) UpsertRelationship(ctx context.Context, in RelationshipInput, allow func(from, to EntityType) error) (*Relationship, error) {
	if _, err := ParseRelationshipType(string(in.Type)); err != nil {
		return nil, err
	}

	endpointQuery := `
		OPTIONAL MATCH (a:Entity {id: $from_id, user_id: $owner_id})
		OPTIONAL MATCH (b:Entity {id: $to_id, user_id: $owner_id})
		RETURN a.type AS from_type, b.type AS to_type
	`

	// in.Type was checked against the vocabulary above
	mergeQuery := fmt.Sprintf(`
		MATCH (a:Entity {id: $from_id, user_id: $owner_id})
		MATCH (b:Entity {id: $to_id, user_id: $owner_id})
		MERGE (a)-[r:%s]->(b)
		ON CREATE SET r.created_at = $now
		SET r += $props,
			r.confidence = $confidence,
			r.source = $source,
			r.updated_at = $now
		RETURN properties(r) AS props
	`, in.Type)

	props := in.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	params := map[string]interface{}{
		"owner_id":   in.OwnerID,
		"from_id":    in.FromID,
		"to_id":      in.ToID,
		"props":      props,
		"confidence": in.Confidence,
		"source":     in.Source,
		"now":        r.now(),
	}

	rel, err := writeTx(ctx, r, "upsert relationship", func(tx neo4j.ManagedTransaction) (*Relationship, error) {
		check, err := single(ctx, tx, endpointQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to load relationship endpoints: %w", err)
		}
		var fromType, toType string
		if check != nil {
			fromType = getStringFromRecord(check, "from_type")
			toType = getStringFromRecord(check, "to_type")
		}
		if fromType == "" {
			return nil, apperrors.NewNotFound("entity", in.FromID)
		}
		if toType == "" {
			return nil, apperrors.NewNotFound("entity", in.ToID)
		}
		if allow != nil {
			if err := allow(EntityType(fromType), EntityType(toType)); err != nil {
				return nil, err
			}
		}

		record, err := single(ctx, tx, mergeQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert relationship: %w", err)
		}
		if record == nil {
			return nil, fmt.Errorf("failed to upsert relationship: no record returned")
		}
		raw, _ := record.Get("props")
		stored, _ := raw.(map[string]interface{})
		return relationshipFromProps(in.FromID, in.ToID, in.Type, stored), nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Upserted relationship",
		zap.String("owner_id", in.OwnerID),
		zap.String("from_id", in.FromID),
		zap.String("to_id", in.ToID),
		zap.String("type", string(in.Type)),
	)
	return rel, nil
}

// DeleteRelationship removes one (from, to, type) edge
func (r *Repository) DeleteRelationship(ctx context.Context, ownerID, fromID, toID string, relType RelationshipType) error {
	if _, err := ParseRelationshipType(string(relType)); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		MATCH (a:Entity {id: $from_id, user_id: $owner_id})-[r:%s]->(b:Entity {id: $to_id, user_id: $owner_id})
		DELETE r
		RETURN count(*) AS deleted
	`, relType)

	_, err := writeTx(ctx, r, "delete relationship", func(tx neo4j.ManagedTransaction) (bool, error) {
		record, err := single(ctx, tx, query, map[string]interface{}{
			"owner_id": ownerID,
			"from_id":  fromID,
			"to_id":    toID,
		})
		if err != nil {
			return false, fmt.Errorf("failed to delete relationship: %w", err)
		}
		if record == nil || getInt64FromRecord(record, "deleted") == 0 {
			return false, apperrors.NewNotFound("relationship", fmt.Sprintf("%s-[%s]->%s", fromID, relType, toID))
		}
		return true, nil
	})
	return err
}

// EntityRelationships lists the semantic edges touching one entity
func (r *Repository) EntityRelationships(ctx context.Context, ownerID, entityID string, dir Direction) ([]RelationshipView, error) {
	return readTx(ctx, r, "entity relationships", func(tx neo4j.ManagedTransaction) ([]RelationshipView, error) {
		exists, err := single(ctx, tx, `MATCH (e:Entity {id: $entity_id, user_id: $owner_id}) RETURN e.id AS id`,
			map[string]interface{}{"owner_id": ownerID, "entity_id": entityID})
		if err != nil {
			return nil, fmt.Errorf("failed to load entity: %w", err)
		}
		if exists == nil {
			return nil, apperrors.NewNotFound("entity", entityID)
		}
		return entityRelationshipsTx(ctx, tx, ownerID, entityID, dir)
	})
}

func entityRelationshipsTx(ctx context.Context, tx neo4j.ManagedTransaction, ownerID, entityID string, dir Direction) ([]RelationshipView, error) {
	query := `
		MATCH (e:Entity {id: $entity_id, user_id: $owner_id})-[r]-(o:Entity {user_id: $owner_id})
		WHERE NOT type(r) IN $structural
			AND ($direction = 'both'
				OR ($direction = 'outgoing' AND startNode(r) = e)
				OR ($direction = 'incoming' AND endNode(r) = e))
		RETURN r, o, startNode(r) = e AS outgoing
		ORDER BY type(r), o.id
	`

	records, err := collect(ctx, tx, query, map[string]interface{}{
		"owner_id":   ownerID,
		"entity_id":  entityID,
		"structural": StructuralTypeNames(),
		"direction":  string(dir),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}

	seen := make(map[string]bool, len(records))
	views := make([]RelationshipView, 0, len(records))
	for _, record := range records {
		rel, ok := getRelationshipFromRecord(record, "r")
		if !ok || seen[rel.ElementId] {
			continue
		}
		seen[rel.ElementId] = true

		other, _ := getNodeFromRecord(record, "o")
		otherEntity := entityFromProps(other.Props)
		view := RelationshipView{Direction: DirectionOutgoing, Other: otherEntity.Ref()}
		fromID, toID := entityID, otherEntity.ID
		if !getBoolFromRecord(record, "outgoing") {
			view.Direction = DirectionIncoming
			fromID, toID = otherEntity.ID, entityID
		}
		view.Relationship = *relationshipFromProps(fromID, toID, RelationshipType(rel.Type), rel.Props)
		views = append(views, view)
	}
	return views, nil
}

// InferCollaborations upserts COLLABORATES_WITH between every pair of the
// owner's people who share at least threshold meetings, with strength set to
// the current count. Inferred edges whose pair has dropped below the
// threshold are removed. Returns the number of edges created or refreshed.
func (r *Repository) InferCollaborations(ctx context.Context, ownerID string, threshold int) (int, error) {
	upsertQuery := `
		MATCH (p1:Entity {user_id: $owner_id, type: 'person'})-[:MENTIONED_IN]->(m:Meeting)<-[:MENTIONED_IN]-(p2:Entity {user_id: $owner_id, type: 'person'})
		WHERE p1.id < p2.id
		WITH p1, p2, count(DISTINCT m) AS shared
		WHERE shared >= $threshold
		MERGE (p1)-[r:COLLABORATES_WITH]->(p2)
		ON CREATE SET
			r.source = $source,
			r.confidence = 1.0,
			r.created_at = $now
		SET r.strength = shared,
			r.updated_at = $now
		RETURN count(r) AS touched
	`

	pruneQuery := `
		MATCH (p1:Entity {user_id: $owner_id, type: 'person'})-[r:COLLABORATES_WITH {source: $source}]-(p2:Entity {user_id: $owner_id})
		WHERE p1.id < p2.id
		OPTIONAL MATCH (p1)-[:MENTIONED_IN]->(m:Meeting)<-[:MENTIONED_IN]-(p2)
		WITH r, count(DISTINCT m) AS shared
		WHERE shared < $threshold
		DELETE r
		RETURN count(*) AS pruned
	`

	params := map[string]interface{}{
		"owner_id":  ownerID,
		"threshold": int64(threshold),
		"source":    constants.SourceInferred,
		"now":       r.now(),
	}

	touched, err := writeTx(ctx, r, "infer collaborations", func(tx neo4j.ManagedTransaction) (int, error) {
		record, err := single(ctx, tx, upsertQuery, params)
		if err != nil {
			return 0, fmt.Errorf("failed to infer collaborations: %w", err)
		}
		touched := 0
		if record != nil {
			touched = int(getInt64FromRecord(record, "touched"))
		}

		pruned, err := single(ctx, tx, pruneQuery, params)
		if err != nil {
			return 0, fmt.Errorf("failed to prune collaborations: %w", err)
		}
		if pruned != nil && getInt64FromRecord(pruned, "pruned") > 0 {
			r.logger.Info("Pruned stale inferred collaborations",
				zap.String("owner_id", ownerID),
				zap.Int64("pruned", getInt64FromRecord(pruned, "pruned")),
			)
		}
		return touched, nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("Inferred collaborations",
		zap.String("owner_id", ownerID),
		zap.Int("threshold", threshold),
		zap.Int("touched", touched),
	)
	return touched, nil
}

// CoOccurrences ranks unordered entity pairs by the number of meetings they share
func (r *Repository) CoOccurrences(ctx context.Context, ownerID string, minShared, limit int) ([]CoOccurrence, error) {
	query := `
		MATCH (e1:Entity {user_id: $owner_id})-[:MENTIONED_IN]->(m:Meeting)<-[:MENTIONED_IN]-(e2:Entity {user_id: $owner_id})
		WHERE e1.id < e2.id
		WITH e1, e2, count(DISTINCT m) AS shared, collect(DISTINCT m.title) AS titles
		WHERE shared >= $min_shared
		RETURN e1, e2, shared, titles
		ORDER BY shared DESC, e1.id ASC, e2.id ASC
		LIMIT $limit
	`

	return readTx(ctx, r, "co-occurrences", func(tx neo4j.ManagedTransaction) ([]CoOccurrence, error) {
		records, err := collect(ctx, tx, query, map[string]interface{}{
			"owner_id":   ownerID,
			"min_shared": int64(minShared),
			"limit":      int64(limit),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get co-occurrences: %w", err)
		}

		pairs := make([]CoOccurrence, 0, len(records))
		for _, record := range records {
			n1, _ := getNodeFromRecord(record, "e1")
			n2, _ := getNodeFromRecord(record, "e2")
			pairs = append(pairs, CoOccurrence{
				Entity1:        entityFromProps(n1.Props).Ref(),
				Entity2:        entityFromProps(n2.Props).Ref(),
				SharedMeetings: getInt64FromRecord(record, "shared"),
				MeetingTitles:  getStringSliceFromRecord(record, "titles"),
			})
		}
		return pairs, nil
	})
}
