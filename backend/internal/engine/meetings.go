package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tami-graph/backend/internal/graph"
	"tami-graph/backend/internal/normalize"
	"tami-graph/backend/internal/utils"
	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Meetings
// ============================================================================

// CreateMeeting creates a meeting, or advances the status of an existing one.
// Ids are assigned here so a retried call lands on the same meeting.
func (e *Engine) CreateMeeting(ctx context.Context, ownerID string, req MeetingRequest) (*graph.Meeting, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	status, err := graph.ParseMeetingStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if req.DurationSeconds < 0 {
		return nil, apperrors.NewValidation("duration_seconds", "must not be negative")
	}

	in := graph.MeetingInput{
		ID:              strings.TrimSpace(req.ID),
		OwnerID:         ownerID,
		Title:           strings.TrimSpace(req.Title),
		Status:          status,
		DurationSeconds: req.DurationSeconds,
		CreatedAt:       req.CreatedAt,
	}
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if req.DetectedLanguage != "" {
		in.DetectedLanguage = utils.NormalizeLanguageCode(req.DetectedLanguage)
	}

	meeting, err := call(ctx, e.guard, "upsert meeting", true, func(ctx context.Context) (*graph.Meeting, error) {
		return e.store.UpsertMeeting(ctx, in)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Meeting upserted",
		zap.String("owner_id", ownerID),
		zap.String("meeting_id", meeting.ID),
		zap.String("status", string(meeting.Status)),
	)
	return meeting, nil
}

// GetMeeting returns one meeting
func (e *Engine) GetMeeting(ctx context.Context, ownerID, meetingID string) (*graph.Meeting, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("meeting_id", meetingID); err != nil {
		return nil, err
	}
	return call(ctx, e.guard, "get meeting", true, func(ctx context.Context) (*graph.Meeting, error) {
		return e.store.GetMeeting(ctx, ownerID, meetingID)
	})
}

// UpdateMeetingStatus moves a meeting along pending, processing, completed.
// Moving backwards is a conflict.
func (e *Engine) UpdateMeetingStatus(ctx context.Context, ownerID, meetingID, status string) (*graph.Meeting, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("meeting_id", meetingID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(status) == "" {
		return nil, apperrors.NewValidation("status", "is required")
	}
	parsed, err := graph.ParseMeetingStatus(status)
	if err != nil {
		return nil, err
	}

	meeting, err := call(ctx, e.guard, "update meeting status", true, func(ctx context.Context) (*graph.Meeting, error) {
		return e.store.UpdateMeetingStatus(ctx, ownerID, meetingID, parsed)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Meeting status updated",
		zap.String("owner_id", ownerID),
		zap.String("meeting_id", meetingID),
		zap.String("status", string(meeting.Status)),
	)
	return meeting, nil
}

// ============================================================================
// Action Items
// ============================================================================

var actionItemStatuses = map[string]bool{
	"open":        true,
	"in_progress": true,
	"done":        true,
}

// CreateActionItem creates an action item linked to its meeting and, when an
// assignee is given, resolves it to a person.
func (e *Engine) CreateActionItem(ctx context.Context, ownerID string, req ActionItemRequest) (*graph.ActionItem, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("meeting_id", req.MeetingID); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, apperrors.NewValidation("description", "is required")
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = "open"
	}
	if !actionItemStatuses[status] {
		return nil, apperrors.NewValidation("status", fmt.Sprintf("%q is not an action item status", req.Status))
	}

	in := graph.ActionItemInput{
		ID:          strings.TrimSpace(req.ID),
		OwnerID:     ownerID,
		MeetingID:   req.MeetingID,
		Description: description,
		DueDate:     req.DueDate,
		Status:      status,
	}
	if in.ID == "" {
		in.ID = uuid.New().String()
	}

	item, err := call(ctx, e.guard, "create action item", true, func(ctx context.Context) (*graph.ActionItem, error) {
		return e.store.CreateActionItem(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Action item created",
		zap.String("owner_id", ownerID),
		zap.String("meeting_id", req.MeetingID),
		zap.String("action_item_id", item.ID),
	)

	if strings.TrimSpace(req.Assignee) == "" {
		return item, nil
	}
	return e.AssignActionItem(ctx, ownerID, item.ID, req.Assignee, req.Language)
}

// AssignActionItem records the assignee name and links the best matching
// person: most mentioned, then most recently seen, then lowest id.
func (e *Engine) AssignActionItem(ctx context.Context, ownerID, itemID, assignee, language string) (*graph.ActionItem, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("action_item_id", itemID); err != nil {
		return nil, err
	}
	assignee = normalize.Display(assignee)
	key := normalize.New(language).Key(assignee, string(graph.EntityTypePerson))
	if key == "" {
		return nil, apperrors.NewValidation("assignee", "is required")
	}

	in := graph.AssignInput{OwnerID: ownerID, ItemID: itemID, Assignee: assignee, Key: key}
	item, err := call(ctx, e.guard, "assign action item", true, func(ctx context.Context) (*graph.ActionItem, error) {
		return e.store.AssignActionItem(ctx, in)
	})
	if err != nil {
		return nil, err
	}

	if item.AssigneeEntityID == "" {
		e.logger.Info("Action item assignee matched no person",
			zap.String("owner_id", ownerID),
			zap.String("action_item_id", itemID),
			zap.String("assignee", assignee),
		)
	} else {
		e.logger.Info("Action item assigned",
			zap.String("owner_id", ownerID),
			zap.String("action_item_id", itemID),
			zap.String("entity_id", item.AssigneeEntityID),
		)
	}
	return item, nil
}
