package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tami-graph/backend/internal/constants"
	"tami-graph/backend/internal/extraction"
	"tami-graph/backend/internal/graph"
	"tami-graph/backend/internal/normalize"
	"tami-graph/backend/internal/utils"
	apperrors "tami-graph/backend/pkg/errors"
	"tami-graph/backend/pkg/logger"
)

// ============================================================================
// Ingestion
// ============================================================================

// Ingestor feeds extraction output through the engine
type Ingestor struct {
	engine    *Engine
	extractor extraction.Extractor
	logger    *zap.Logger
}

// NewIngestor creates an ingestor. extractor may be nil when only bulk
// mention ingestion is used.
func NewIngestor(engine *Engine, extractor extraction.Extractor) *Ingestor {
	return &Ingestor{
		engine:    engine,
		extractor: extractor,
		logger:    logger.Named("ingest"),
	}
}

// occurrence groups the candidates of one transcript that resolve to the same entity
type occurrence struct {
	entityType graph.EntityType
	key        string
	display    string
	count      int64
	confidence float64
	start      int
	end        int
}

// IngestTranscript extracts entities from a meeting transcript and records
// them. Candidates below the confidence floor never reach the store.
// Candidates resolving to the same (type, key) become one upsert and one
// mention carrying the combined count. Per-entity failures are counted in the
// summary and do not stop the run.
func (i *Ingestor) IngestTranscript(ctx context.Context, ownerID string, req TranscriptRequest) (*IngestSummary, error) {
	if i.extractor == nil {
		return nil, apperrors.NewConfigMissingRequired("extractor")
	}
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, apperrors.NewValidation("transcript", "is required")
	}
	lang := utils.NormalizeLanguageCode(req.Language)

	meeting, err := i.engine.CreateMeeting(ctx, ownerID, MeetingRequest{
		ID:               req.MeetingID,
		Title:            req.Title,
		Status:           string(graph.MeetingStatusProcessing),
		DurationSeconds:  req.DurationSeconds,
		DetectedLanguage: lang,
		CreatedAt:        req.RecordedAt,
	})
	if err != nil {
		return nil, err
	}
	if meeting.Status == graph.MeetingStatusCompleted {
		return nil, apperrors.NewConflict(fmt.Sprintf("meeting %s has already been ingested", meeting.ID))
	}

	summary := &IngestSummary{MeetingID: meeting.ID}

	candidates, err := i.extractor.Extract(ctx, req.Transcript, lang)
	if err != nil {
		return nil, err
	}
	summary.Extracted = len(candidates)

	kept, dropped := extraction.FilterByConfidence(candidates, i.engine.opts.MinConfidence)
	summary.Filtered = dropped
	if dropped > 0 {
		i.logger.Info("Dropped low-confidence candidates",
			zap.String("meeting_id", meeting.ID),
			zap.Int("dropped", dropped),
			zap.Float64("min_confidence", i.engine.opts.MinConfidence),
		)
	}

	occurrences, invalid := groupCandidates(kept, lang)
	summary.Errors += invalid

	observedAt := meeting.CreatedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.engine.opts.IngestConcurrency)

	for _, occ := range occurrences {
		occ := occ
		g.Go(func() error {
			entityOK, mentionOK := i.recordOccurrence(gctx, ownerID, meeting.ID, req.Transcript, lang, occ, observedAt)

			mu.Lock()
			defer mu.Unlock()
			if entityOK {
				summary.Entities++
			}
			if mentionOK {
				summary.Mentions++
			}
			if !entityOK || !mentionOK {
				summary.Errors++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if _, err := i.engine.UpdateMeetingStatus(ctx, ownerID, meeting.ID, string(graph.MeetingStatusCompleted)); err != nil {
		return summary, err
	}

	i.logger.Info("Transcript ingested",
		zap.String("owner_id", ownerID),
		zap.String("meeting_id", meeting.ID),
		zap.String("extractor", i.extractor.Name()),
		zap.Int("extracted", summary.Extracted),
		zap.Int("filtered", summary.Filtered),
		zap.Int("entities", summary.Entities),
		zap.Int("mentions", summary.Mentions),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

func (i *Ingestor) recordOccurrence(ctx context.Context, ownerID, meetingID, transcript, lang string, occ *occurrence, observedAt time.Time) (bool, bool) {
	confidence := occ.confidence
	entity, err := i.engine.UpsertEntity(ctx, ownerID, EntityRequest{
		Type:            string(occ.entityType),
		Value:           occ.display,
		NormalizedValue: occ.key,
		Language:        lang,
		MentionDelta:    occ.count,
		Confidence:      &confidence,
		SeenAt:          observedAt,
	})
	if err != nil {
		i.logger.Warn("Failed to upsert extracted entity",
			zap.String("meeting_id", meetingID),
			zap.String("type", string(occ.entityType)),
			zap.String("value", occ.key),
			zap.Error(err),
		)
		return false, false
	}

	_, err = i.engine.AddMention(ctx, ownerID, MentionRequest{
		EntityID:   entity.ID,
		MeetingID:  meetingID,
		Context:    extraction.Snippet(transcript, occ.start, occ.end, constants.MentionContextRadius),
		Delta:      occ.count,
		ObservedAt: observedAt,
	})
	if err != nil {
		i.logger.Warn("Failed to record mention",
			zap.String("meeting_id", meetingID),
			zap.String("entity_id", entity.ID),
			zap.Error(err),
		)
		return true, false
	}
	return true, true
}

// groupCandidates folds candidates to (type, key) in first-seen order. The
// second result counts candidates with an invalid type or an empty key.
func groupCandidates(candidates []extraction.Candidate, lang string) ([]*occurrence, int) {
	n := normalize.New(lang)
	index := make(map[string]*occurrence)
	ordered := make([]*occurrence, 0)
	invalid := 0

	for _, c := range candidates {
		entityType, err := graph.ParseEntityType(c.Type)
		if err != nil {
			invalid++
			continue
		}
		raw := c.NormalizedValue
		if strings.TrimSpace(raw) == "" {
			raw = c.Value
		}
		key := n.Key(raw, string(entityType))
		if key == "" {
			invalid++
			continue
		}

		id := string(entityType) + "\x00" + key
		if occ, ok := index[id]; ok {
			occ.count++
			if c.Confidence > occ.confidence {
				occ.confidence = c.Confidence
			}
			continue
		}
		occ := &occurrence{
			entityType: entityType,
			key:        key,
			display:    normalize.Display(c.Value),
			count:      1,
			confidence: c.Confidence,
			start:      c.StartOffset,
			end:        c.EndOffset,
		}
		index[id] = occ
		ordered = append(ordered, occ)
	}
	return ordered, invalid
}

// IngestMentions records a batch of mentions. A failed item is counted and
// reported; it does not stop the batch.
func (i *Ingestor) IngestMentions(ctx context.Context, ownerID string, mentions []MentionRequest) (*BatchSummary, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	summary := &BatchSummary{}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.engine.opts.IngestConcurrency)

	for idx, m := range mentions {
		idx, m := idx, m
		g.Go(func() error {
			_, err := i.engine.AddMention(gctx, ownerID, m)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, BatchError{Index: idx, Error: err.Error()})
				return nil
			}
			summary.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Errors, func(a, b int) bool { return summary.Errors[a].Index < summary.Errors[b].Index })
	i.logger.Info("Mention batch ingested",
		zap.String("owner_id", ownerID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}
