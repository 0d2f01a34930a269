package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Mention Operations
// ============================================================================

// AddMention finds or creates the MENTIONED_IN edge for (entity, meeting).
// A repeat observation adds to mention_count and keeps the first context
// unless OverwriteContext is set. Missing endpoints are never created.
func (r *Repository) AddMention(ctx context.Context, in MentionInput) (*Mention, error) {
	checkQuery := `
		OPTIONAL MATCH (e:Entity {id: $entity_id, user_id: $owner_id})
		OPTIONAL MATCH (m:Meeting {id: $meeting_id, user_id: $owner_id})
		RETURN e IS NOT NULL AS has_entity, m IS NOT NULL AS has_meeting
	`

	mergeQuery := `
		MATCH (e:Entity {id: $entity_id, user_id: $owner_id})
		MATCH (m:Meeting {id: $meeting_id, user_id: $owner_id})
		MERGE (e)-[r:MENTIONED_IN]->(m)
		ON CREATE SET
			r.context = $context,
			r.timestamp_start = $timestamp_start,
			r.timestamp_end = $timestamp_end,
			r.speaker = $speaker,
			r.mention_count = $delta,
			r.sentiment = $sentiment,
			r.created_at = $now,
			r.updated_at = $now
		ON MATCH SET
			r.mention_count = coalesce(r.mention_count, 0) + $delta,
			r.context = CASE WHEN $overwrite THEN $context ELSE r.context END,
			r.updated_at = $now
		RETURN properties(r) AS props
	`

	now := r.now()
	if !in.ObservedAt.IsZero() {
		now = in.ObservedAt
	}
	params := map[string]interface{}{
		"owner_id":        in.OwnerID,
		"entity_id":       in.EntityID,
		"meeting_id":      in.MeetingID,
		"context":         in.Context,
		"timestamp_start": nullableFloat(in.TimestampStart),
		"timestamp_end":   nullableFloat(in.TimestampEnd),
		"speaker":         in.Speaker,
		"delta":           in.Delta,
		"sentiment":       nullableFloat(in.Sentiment),
		"overwrite":       in.OverwriteContext,
		"now":             now,
	}

	mention, err := writeTx(ctx, r, "add mention", func(tx neo4j.ManagedTransaction) (*Mention, error) {
		check, err := single(ctx, tx, checkQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to check mention endpoints: %w", err)
		}
		if check == nil || !getBoolFromRecord(check, "has_entity") {
			return nil, apperrors.NewNotFound("entity", in.EntityID)
		}
		if !getBoolFromRecord(check, "has_meeting") {
			return nil, apperrors.NewNotFound("meeting", in.MeetingID)
		}

		record, err := single(ctx, tx, mergeQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to add mention: %w", err)
		}
		if record == nil {
			return nil, fmt.Errorf("failed to add mention: no record returned")
		}
		raw, _ := record.Get("props")
		props, _ := raw.(map[string]interface{})
		return mentionFromProps(in.EntityID, in.MeetingID, props), nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Recorded mention",
		zap.String("entity_id", in.EntityID),
		zap.String("meeting_id", in.MeetingID),
		zap.Int64("mention_count", mention.MentionCount),
	)
	return mention, nil
}
