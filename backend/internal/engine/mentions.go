package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tami-graph/backend/internal/graph"
	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Mention Linker
// ============================================================================

// AddMention records an entity's appearance in a meeting on the single
// MENTIONED_IN edge for the pair. Both endpoints must already exist.
func (e *Engine) AddMention(ctx context.Context, ownerID string, req MentionRequest) (*graph.Mention, error) {
	in, err := mentionInput(ownerID, req)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.RLock(in.EntityID)
	defer unlock()

	mention, err := call(ctx, e.guard, "add mention", true, func(ctx context.Context) (*graph.Mention, error) {
		return e.store.AddMention(ctx, in)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Mention recorded",
		zap.String("owner_id", ownerID),
		zap.String("entity_id", in.EntityID),
		zap.String("meeting_id", in.MeetingID),
		zap.Int64("mention_count", mention.MentionCount),
	)
	return mention, nil
}

func mentionInput(ownerID string, req MentionRequest) (graph.MentionInput, error) {
	var in graph.MentionInput
	if err := requireOwner(ownerID); err != nil {
		return in, err
	}
	if err := requireID("entity_id", req.EntityID); err != nil {
		return in, err
	}
	if err := requireID("meeting_id", req.MeetingID); err != nil {
		return in, err
	}

	delta := req.Delta
	if delta == 0 {
		delta = 1
	}
	if delta < 0 {
		return in, apperrors.NewValidation("delta", "must not be negative")
	}
	if req.TimestampStart != nil && *req.TimestampStart < 0 {
		return in, apperrors.NewValidation("timestamp_start", "must not be negative")
	}
	if req.TimestampStart != nil && req.TimestampEnd != nil && *req.TimestampEnd < *req.TimestampStart {
		return in, apperrors.NewValidation("timestamp_end", "must not precede timestamp_start")
	}
	if err := checkSentiment("sentiment", req.Sentiment); err != nil {
		return in, err
	}

	return graph.MentionInput{
		OwnerID:          ownerID,
		EntityID:         req.EntityID,
		MeetingID:        req.MeetingID,
		Context:          strings.TrimSpace(req.Context),
		TimestampStart:   req.TimestampStart,
		TimestampEnd:     req.TimestampEnd,
		Speaker:          strings.TrimSpace(req.Speaker),
		Delta:            delta,
		Sentiment:        req.Sentiment,
		OverwriteContext: req.OverwriteContext,
		ObservedAt:       req.ObservedAt,
	}, nil
}
