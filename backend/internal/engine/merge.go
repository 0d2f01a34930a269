package engine

import (
	"context"

	"go.uber.org/zap"

	"tami-graph/backend/internal/graph"
	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Merge Coordinator
// ============================================================================

// MergeEntities folds mergeID into keepID in one store transaction while
// holding both entity locks. It is never retried: once mergeID is absorbed a
// repeat reports NotFound instead of merging twice.
func (e *Engine) MergeEntities(ctx context.Context, ownerID, keepID, mergeID string) (*graph.Entity, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireID("keep_id", keepID); err != nil {
		return nil, err
	}
	if err := requireID("merge_id", mergeID); err != nil {
		return nil, err
	}
	if keepID == mergeID {
		return nil, apperrors.NewValidation("merge_id", "cannot merge an entity into itself")
	}

	unlock := e.locks.Lock(keepID, mergeID)
	defer unlock()

	merged, err := call(ctx, e.guard, "merge entities", false, func(ctx context.Context) (*graph.Entity, error) {
		return e.store.MergeEntities(ctx, ownerID, keepID, mergeID)
	})
	if err != nil {
		e.logger.Warn("Merge failed",
			zap.String("owner_id", ownerID),
			zap.String("keep_id", keepID),
			zap.String("merge_id", mergeID),
			zap.Error(err),
		)
		return nil, err
	}

	e.logger.Info("Entities merged",
		zap.String("owner_id", ownerID),
		zap.String("keep_id", keepID),
		zap.String("merge_id", mergeID),
		zap.Int64("mention_count", merged.MentionCount),
		zap.Int("aliases", len(merged.Aliases)),
	)
	return merged, nil
}
