package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Action Item Operations
// ============================================================================

// CreateActionItem creates an action item linked to its meeting by CREATED_IN
func (r *Repository) CreateActionItem(ctx context.Context, in ActionItemInput) (*ActionItem, error) {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	status := in.Status
	if status == "" {
		status = "open"
	}
	var dueDate interface{}
	if in.DueDate != nil {
		dueDate = *in.DueDate
	}

	query := `
		MATCH (mt:Meeting {id: $meeting_id, user_id: $owner_id})
		MERGE (a:ActionItem {id: $id})
		ON CREATE SET
			a.user_id = $owner_id,
			a.meeting_id = $meeting_id,
			a.description = $description,
			a.due_date = $due_date,
			a.status = $status,
			a.created_at = $now
		WITH a, mt
		FOREACH (_ IN CASE WHEN a.user_id = $owner_id THEN [1] ELSE [] END |
			MERGE (a)-[:CREATED_IN]->(mt))
		RETURN a
	`

	item, err := writeTx(ctx, r, "create action item", func(tx neo4j.ManagedTransaction) (*ActionItem, error) {
		record, err := single(ctx, tx, query, map[string]interface{}{
			"id":          id,
			"owner_id":    in.OwnerID,
			"meeting_id":  in.MeetingID,
			"description": in.Description,
			"due_date":    dueDate,
			"status":      status,
			"now":         r.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create action item: %w", err)
		}
		if record == nil {
			return nil, apperrors.NewNotFound("meeting", in.MeetingID)
		}
		node, _ := getNodeFromRecord(record, "a")
		item := actionItemFromProps(node.Props)
		if item.OwnerID != in.OwnerID {
			return nil, apperrors.NewConflict(fmt.Sprintf("action item %s belongs to another owner", id))
		}
		return item, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Created action item",
		zap.String("owner_id", in.OwnerID),
		zap.String("action_item_id", item.ID),
		zap.String("meeting_id", in.MeetingID),
	)
	return item, nil
}

// AssignActionItem records the assignee name and links the best matching
// Person entity with ASSIGNED_TO. A person matches when the name equals its
// normalized value, display value (case-insensitively) or one of its aliases.
// Several matches are ranked by mention count, then last seen, then id.
// No match leaves the item assigned by name only.
func (r *Repository) AssignActionItem(ctx context.Context, in AssignInput) (*ActionItem, error) {
	itemQuery := `
		MATCH (a:ActionItem {id: $item_id, user_id: $owner_id})
		OPTIONAL MATCH (:Entity)-[old:ASSIGNED_TO]->(a)
		DELETE old
		WITH DISTINCT a
		SET a.assignee = $assignee
		RETURN a
	`

	assignQuery := `
		MATCH (a:ActionItem {id: $item_id, user_id: $owner_id})
		MATCH (p:Entity {user_id: $owner_id, type: 'person'})
		WHERE p.normalized_value = $key
			OR toLower(p.display_value) = toLower($assignee)
			OR $key IN coalesce(p.aliases, [])
		WITH a, p
		ORDER BY p.mention_count DESC, p.last_seen DESC, p.id ASC
		LIMIT 1
		MERGE (p)-[:ASSIGNED_TO]->(a)
		RETURN p.id AS person_id
	`

	params := map[string]interface{}{
		"owner_id": in.OwnerID,
		"item_id":  in.ItemID,
		"assignee": in.Assignee,
		"key":      in.Key,
	}

	item, err := writeTx(ctx, r, "assign action item", func(tx neo4j.ManagedTransaction) (*ActionItem, error) {
		record, err := single(ctx, tx, itemQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to load action item: %w", err)
		}
		if record == nil {
			return nil, apperrors.NewNotFound("action_item", in.ItemID)
		}
		node, _ := getNodeFromRecord(record, "a")
		item := actionItemFromProps(node.Props)

		if in.Key == "" {
			return item, nil
		}
		match, err := single(ctx, tx, assignQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to assign action item: %w", err)
		}
		if match != nil {
			item.AssigneeEntityID = getStringFromRecord(match, "person_id")
		}
		return item, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Assigned action item",
		zap.String("owner_id", in.OwnerID),
		zap.String("action_item_id", in.ItemID),
		zap.String("assignee", in.Assignee),
		zap.String("entity_id", item.AssigneeEntityID),
	)
	return item, nil
}
