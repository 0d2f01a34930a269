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
// Meeting Operations
// ============================================================================

// statusRank mirrors MeetingStatus.Rank inside Cypher
const statusRank = `CASE m.status WHEN 'completed' THEN 2 WHEN 'processing' THEN 1 ELSE 0 END`

// UpsertMeeting creates a meeting, or advances the status of an existing one.
// Other attributes are fixed at creation.
func (r *Repository) UpsertMeeting(ctx context.Context, in MeetingInput) (*Meeting, error) {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := r.now()
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		MERGE (m:Meeting {id: $id})
		ON CREATE SET
			m.user_id = $owner_id,
			m.title = $title,
			m.status = $status,
			m.duration_seconds = $duration_seconds,
			m.detected_language = $detected_language,
			m.created_at = $created_at
		ON MATCH SET
			m.status = CASE WHEN m.user_id = $owner_id AND $rank > ` + statusRank + ` THEN $status ELSE m.status END
		RETURN m
	`

	meeting, err := writeTx(ctx, r, "upsert meeting", func(tx neo4j.ManagedTransaction) (*Meeting, error) {
		record, err := single(ctx, tx, query, map[string]interface{}{
			"id":                id,
			"owner_id":          in.OwnerID,
			"title":             in.Title,
			"status":            string(in.Status),
			"rank":              int64(in.Status.Rank()),
			"duration_seconds":  in.DurationSeconds,
			"detected_language": in.DetectedLanguage,
			"created_at":        createdAt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upsert meeting: %w", err)
		}
		if record == nil {
			return nil, fmt.Errorf("failed to upsert meeting: no record returned")
		}
		node, _ := getNodeFromRecord(record, "m")
		m := meetingFromProps(node.Props)
		if m.OwnerID != in.OwnerID {
			return nil, apperrors.NewConflict(fmt.Sprintf("meeting %s belongs to another owner", id))
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Upserted meeting",
		zap.String("owner_id", in.OwnerID),
		zap.String("meeting_id", meeting.ID),
		zap.String("status", string(meeting.Status)),
	)
	return meeting, nil
}

// GetMeeting returns one of an owner's meetings
func (r *Repository) GetMeeting(ctx context.Context, ownerID, meetingID string) (*Meeting, error) {
	query := `
		MATCH (m:Meeting {id: $meeting_id, user_id: $owner_id})
		RETURN m
	`

	return readTx(ctx, r, "get meeting", func(tx neo4j.ManagedTransaction) (*Meeting, error) {
		record, err := single(ctx, tx, query, map[string]interface{}{
			"owner_id":   ownerID,
			"meeting_id": meetingID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get meeting: %w", err)
		}
		if record == nil {
			return nil, apperrors.NewNotFound("meeting", meetingID)
		}
		node, _ := getNodeFromRecord(record, "m")
		return meetingFromProps(node.Props), nil
	})
}

// UpdateMeetingStatus moves a meeting forward along pending, processing, completed.
// Setting the current status again is a no-op.
func (r *Repository) UpdateMeetingStatus(ctx context.Context, ownerID, meetingID string, status MeetingStatus) (*Meeting, error) {
	query := `
		MATCH (m:Meeting {id: $meeting_id, user_id: $owner_id})
		WITH m, m.status AS previous, ` + statusRank + ` AS current
		SET m.status = CASE WHEN $rank >= current THEN $status ELSE m.status END
		RETURN m, previous, current
	`

	return writeTx(ctx, r, "update meeting status", func(tx neo4j.ManagedTransaction) (*Meeting, error) {
		record, err := single(ctx, tx, query, map[string]interface{}{
			"owner_id":   ownerID,
			"meeting_id": meetingID,
			"status":     string(status),
			"rank":       int64(status.Rank()),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update meeting status: %w", err)
		}
		if record == nil {
			return nil, apperrors.NewNotFound("meeting", meetingID)
		}
		if getInt64FromRecord(record, "current") > int64(status.Rank()) {
			return nil, apperrors.NewConflict(fmt.Sprintf("meeting %s cannot move from %s back to %s",
				meetingID, getStringFromRecord(record, "previous"), status))
		}
		node, _ := getNodeFromRecord(record, "m")
		return meetingFromProps(node.Props), nil
	})
}
