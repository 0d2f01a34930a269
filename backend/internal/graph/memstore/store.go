// Package memstore is an in-process graph.Store. One mutex stands in for the
// store transaction, so every method is atomic with respect to every other.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tami-graph/backend/internal/graph"
	apperrors "tami-graph/backend/pkg/errors"
	"tami-graph/backend/pkg/logger"
)

type identityKey struct {
	owner string
	typ   graph.EntityType
	value string
}

type mentionKey struct {
	entityID  string
	meetingID string
}

type relKey struct {
	from string
	to   string
	typ  graph.RelationshipType
}

// Store keeps the whole graph in maps
type Store struct {
	mu            sync.Mutex
	entities      map[string]*graph.Entity
	identities    map[identityKey]string
	meetings      map[string]*graph.Meeting
	mentions      map[mentionKey]*graph.Mention
	relationships map[relKey]*graph.Relationship
	actionItems   map[string]*graph.ActionItem
	assignments   map[string]string // action item id -> person entity id
	now           func() time.Time
	logger        *zap.Logger
}

var _ graph.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithClock replaces the store's time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		entities:      make(map[string]*graph.Entity),
		identities:    make(map[identityKey]string),
		meetings:      make(map[string]*graph.Meeting),
		mentions:      make(map[mentionKey]*graph.Mention),
		relationships: make(map[relKey]*graph.Relationship),
		actionItems:   make(map[string]*graph.ActionItem),
		assignments:   make(map[string]string),
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger.Named("memstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close is a no-op
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// lock takes the store mutex unless ctx is already done
func (s *Store) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	return nil
}

// ============================================================================
// Entities
// ============================================================================

func (s *Store) UpsertEntity(ctx context.Context, in graph.UpsertEntityInput) (*graph.Entity, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	now := s.now()
	seenAt := in.SeenAt
	if seenAt.IsZero() {
		seenAt = now
	}

	key := identityKey{in.OwnerID, in.Type, in.NormalizedValue}
	if id, ok := s.identities[key]; ok {
		e := s.entities[id]
		e.MentionCount += in.MentionDelta
		if seenAt.After(e.LastSeen) {
			e.LastSeen = seenAt
		}
		e.Aliases = unionStrings(e.Aliases, in.Aliases)
		e.UpdatedAt = now
		return cloneEntity(e), nil
	}

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	if _, taken := s.entities[id]; taken {
		return nil, apperrors.NewConflict(fmt.Sprintf("entity id %s already in use", id))
	}
	e := &graph.Entity{
		ID:              id,
		OwnerID:         in.OwnerID,
		Type:            in.Type,
		NormalizedValue: in.NormalizedValue,
		DisplayValue:    in.DisplayValue,
		Aliases:         unionStrings(nil, in.Aliases),
		Description:     in.Description,
		MentionCount:    in.MentionDelta,
		Confidence:      in.Confidence,
		FirstSeen:       seenAt,
		LastSeen:        seenAt,
		SentimentAvg:    cloneFloat(in.SentimentAvg),
		IsUserCreated:   in.IsUserCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.entities[id] = e
	s.identities[key] = id
	return cloneEntity(e), nil
}

func (s *Store) UpdateEntity(ctx context.Context, ownerID, entityID string, update graph.EntityUpdate) (*graph.Entity, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	e, err := s.ownedEntity(ownerID, entityID)
	if err != nil {
		return nil, err
	}
	if update.DisplayValue != nil {
		e.DisplayValue = *update.DisplayValue
	}
	if update.Description != nil {
		e.Description = *update.Description
	}
	if update.Aliases != nil {
		e.Aliases = unionStrings(nil, *update.Aliases)
	}
	if update.Confidence != nil {
		e.Confidence = *update.Confidence
	}
	if update.SentimentAvg != nil {
		e.SentimentAvg = cloneFloat(update.SentimentAvg)
	}
	e.UpdatedAt = s.now()
	return cloneEntity(e), nil
}

func (s *Store) DeleteEntity(ctx context.Context, ownerID, entityID string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	e, err := s.ownedEntity(ownerID, entityID)
	if err != nil {
		return err
	}
	s.detachDelete(e)
	return nil
}

// detachDelete removes e and every edge touching it
func (s *Store) detachDelete(e *graph.Entity) {
	for k := range s.mentions {
		if k.entityID == e.ID {
			delete(s.mentions, k)
		}
	}
	for k := range s.relationships {
		if k.from == e.ID || k.to == e.ID {
			delete(s.relationships, k)
		}
	}
	for item, person := range s.assignments {
		if person == e.ID {
			delete(s.assignments, item)
		}
	}
	delete(s.identities, identityKey{e.OwnerID, e.Type, e.NormalizedValue})
	delete(s.entities, e.ID)
}

func (s *Store) GetEntity(ctx context.Context, ownerID, entityID string) (*graph.EntityDetail, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	e, err := s.ownedEntity(ownerID, entityID)
	if err != nil {
		return nil, err
	}

	detail := &graph.EntityDetail{
		Entity:        *cloneEntity(e),
		Mentions:      []graph.MeetingMention{},
		Relationships: s.relationshipViews(ownerID, entityID, graph.DirectionBoth),
	}
	for k, m := range s.mentions {
		if k.entityID != entityID {
			continue
		}
		meeting := s.meetings[k.meetingID]
		detail.Mentions = append(detail.Mentions, graph.MeetingMention{
			Mention:          *cloneMention(m),
			MeetingTitle:     meeting.Title,
			MeetingCreatedAt: meeting.CreatedAt,
		})
	}
	sort.Slice(detail.Mentions, func(i, j int) bool {
		a, b := detail.Mentions[i], detail.Mentions[j]
		if !a.MeetingCreatedAt.Equal(b.MeetingCreatedAt) {
			return a.MeetingCreatedAt.After(b.MeetingCreatedAt)
		}
		return a.MeetingID < b.MeetingID
	})
	return detail, nil
}

func (s *Store) ListEntities(ctx context.Context, ownerID string, entityType graph.EntityType, offset, limit int) ([]graph.EntitySummary, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	matched := make([]*graph.Entity, 0)
	for _, e := range s.entities {
		if e.OwnerID == ownerID && (entityType == "" || e.Type == entityType) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].MentionCount != matched[j].MentionCount {
			return matched[i].MentionCount > matched[j].MentionCount
		}
		return matched[i].ID < matched[j].ID
	})

	if offset >= len(matched) {
		return []graph.EntitySummary{}, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	summaries := make([]graph.EntitySummary, 0, end-offset)
	for _, e := range matched[offset:end] {
		summaries = append(summaries, graph.EntitySummary{
			Entity:       *cloneEntity(e),
			MeetingCount: int64(len(s.meetingsOf(e.ID))),
		})
	}
	return summaries, nil
}

func (s *Store) EntityStats(ctx context.Context, ownerID string) (*graph.EntityStats, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	stats := &graph.EntityStats{ByType: make(map[graph.EntityType]int64)}
	for _, e := range s.entities {
		if e.OwnerID == ownerID {
			stats.ByType[e.Type]++
			stats.Total++
		}
	}
	return stats, nil
}

// SearchEntities scores each entity by the share of query terms found in its
// values (weight 1) or description (weight 0.5)
func (s *Store) SearchEntities(ctx context.Context, ownerID, query string, types []graph.EntityType, limit int) ([]graph.SearchHit, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []graph.SearchHit{}, nil
	}
	allowed := make(map[graph.EntityType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}

	hits := make([]graph.SearchHit, 0)
	for _, e := range s.entities {
		if e.OwnerID != ownerID || (len(allowed) > 0 && !allowed[e.Type]) {
			continue
		}
		values := e.NormalizedValue + " " + strings.ToLower(e.DisplayValue)
		description := strings.ToLower(e.Description)

		score := 0.0
		for _, term := range terms {
			switch {
			case strings.Contains(values, term):
				score += 1.0
			case strings.Contains(description, term):
				score += 0.5
			}
		}
		if score > 0 {
			hits = append(hits, graph.SearchHit{Entity: *cloneEntity(e), Score: score / float64(len(terms))})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// ============================================================================
// Meetings and Mentions
// ============================================================================

func (s *Store) UpsertMeeting(ctx context.Context, in graph.MeetingInput) (*graph.Meeting, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	if m, ok := s.meetings[id]; ok {
		if m.OwnerID != in.OwnerID {
			return nil, apperrors.NewConflict(fmt.Sprintf("meeting %s belongs to another owner", id))
		}
		if in.Status.Rank() > m.Status.Rank() {
			m.Status = in.Status
		}
		copied := *m
		return &copied, nil
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	status := in.Status
	if status == "" {
		status = graph.MeetingStatusPending
	}
	m := &graph.Meeting{
		ID:               id,
		OwnerID:          in.OwnerID,
		Title:            in.Title,
		Status:           status,
		DurationSeconds:  in.DurationSeconds,
		DetectedLanguage: in.DetectedLanguage,
		CreatedAt:        createdAt,
	}
	s.meetings[id] = m
	copied := *m
	return &copied, nil
}

func (s *Store) GetMeeting(ctx context.Context, ownerID, meetingID string) (*graph.Meeting, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	m, ok := s.meetings[meetingID]
	if !ok || m.OwnerID != ownerID {
		return nil, apperrors.NewNotFound("meeting", meetingID)
	}
	copied := *m
	return &copied, nil
}

func (s *Store) UpdateMeetingStatus(ctx context.Context, ownerID, meetingID string, status graph.MeetingStatus) (*graph.Meeting, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	m, ok := s.meetings[meetingID]
	if !ok || m.OwnerID != ownerID {
		return nil, apperrors.NewNotFound("meeting", meetingID)
	}
	if status.Rank() < m.Status.Rank() {
		return nil, apperrors.NewConflict(fmt.Sprintf("meeting %s cannot move from %s back to %s", meetingID, m.Status, status))
	}
	m.Status = status
	copied := *m
	return &copied, nil
}

func (s *Store) AddMention(ctx context.Context, in graph.MentionInput) (*graph.Mention, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, err := s.ownedEntity(in.OwnerID, in.EntityID); err != nil {
		return nil, err
	}
	if m, ok := s.meetings[in.MeetingID]; !ok || m.OwnerID != in.OwnerID {
		return nil, apperrors.NewNotFound("meeting", in.MeetingID)
	}

	key := mentionKey{in.EntityID, in.MeetingID}
	if m, ok := s.mentions[key]; ok {
		m.MentionCount += in.Delta
		if in.OverwriteContext {
			m.Context = in.Context
		}
		return cloneMention(m), nil
	}

	createdAt := in.ObservedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	m := &graph.Mention{
		EntityID:       in.EntityID,
		MeetingID:      in.MeetingID,
		Context:        in.Context,
		TimestampStart: cloneFloat(in.TimestampStart),
		TimestampEnd:   cloneFloat(in.TimestampEnd),
		Speaker:        in.Speaker,
		MentionCount:   in.Delta,
		Sentiment:      cloneFloat(in.Sentiment),
		CreatedAt:      createdAt,
	}
	s.mentions[key] = m
	return cloneMention(m), nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Store) ownedEntity(ownerID, entityID string) (*graph.Entity, error) {
	e, ok := s.entities[entityID]
	if !ok || e.OwnerID != ownerID {
		return nil, apperrors.NewNotFound("entity", entityID)
	}
	return e, nil
}

// meetingsOf returns the ids of the meetings an entity is mentioned in
func (s *Store) meetingsOf(entityID string) map[string]bool {
	out := make(map[string]bool)
	for k := range s.mentions {
		if k.entityID == entityID {
			out[k.meetingID] = true
		}
	}
	return out
}

func unionStrings(existing, add []string) []string {
	out := make([]string, 0, len(existing)+len(add))
	seen := make(map[string]bool, len(existing)+len(add))
	for _, list := range [][]string{existing, add} {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneEntity(e *graph.Entity) *graph.Entity {
	c := *e
	c.Aliases = append([]string{}, e.Aliases...)
	c.SentimentAvg = cloneFloat(e.SentimentAvg)
	return &c
}

func cloneMention(m *graph.Mention) *graph.Mention {
	c := *m
	c.TimestampStart = cloneFloat(m.TimestampStart)
	c.TimestampEnd = cloneFloat(m.TimestampEnd)
	c.Sentiment = cloneFloat(m.Sentiment)
	return &c
}

func cloneRelationship(r *graph.Relationship) *graph.Relationship {
	c := *r
	if r.Properties != nil {
		c.Properties = make(map[string]interface{}, len(r.Properties))
		for k, v := range r.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}
