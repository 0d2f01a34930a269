package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"tami-graph/backend/internal/graph"
	apperrors "tami-graph/backend/pkg/errors"
)

// MergeEntities folds mergeID into keepID. Both must share owner and type.
// Mentions move to keep with counts
// summed per meeting, semantic edges and assignments move unless keep already
// has them, then mergeID is deleted.
func (s *Store) MergeEntities(ctx context.Context, ownerID, keepID, mergeID string) (*graph.Entity, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	keep, ok := s.entities[keepID]
	if !ok {
		return nil, apperrors.NewNotFound("entity", keepID)
	}
	merge, ok := s.entities[mergeID]
	if !ok {
		return nil, apperrors.NewNotFound("entity", mergeID)
	}
	if keep.OwnerID != ownerID || merge.OwnerID != ownerID {
		return nil, apperrors.NewConflict("entities from different owners cannot be merged")
	}
	if keep.Type != merge.Type {
		return nil, apperrors.NewConflict(fmt.Sprintf("cannot merge %s into %s", merge.Type, keep.Type))
	}

	for k, m := range s.mentions {
		if k.entityID != mergeID {
			continue
		}
		target := mentionKey{keepID, k.meetingID}
		if existing, ok := s.mentions[target]; ok {
			existing.MentionCount += m.MentionCount
		} else {
			moved := cloneMention(m)
			moved.EntityID = keepID
			s.mentions[target] = moved
		}
		delete(s.mentions, k)
	}

	for k, rel := range s.relationships {
		var target relKey
		switch {
		case k.from == mergeID && k.to != keepID:
			target = relKey{keepID, k.to, k.typ}
		case k.to == mergeID && k.from != keepID:
			target = relKey{k.from, keepID, k.typ}
		default:
			continue
		}
		if _, exists := s.relationships[target]; !exists {
			moved := cloneRelationship(rel)
			moved.FromID, moved.ToID = target.from, target.to
			s.relationships[target] = moved
		}
	}

	for item, person := range s.assignments {
		if person == mergeID {
			s.assignments[item] = keepID
		}
	}

	keep.Aliases = withoutString(unionStrings(keep.Aliases, append(append([]string{}, merge.Aliases...), merge.NormalizedValue)), keep.NormalizedValue)
	keep.MentionCount += merge.MentionCount
	if !merge.FirstSeen.IsZero() && merge.FirstSeen.Before(keep.FirstSeen) {
		keep.FirstSeen = merge.FirstSeen
	}
	if merge.LastSeen.After(keep.LastSeen) {
		keep.LastSeen = merge.LastSeen
	}
	keep.UpdatedAt = s.now()

	s.detachDelete(merge)
	return cloneEntity(keep), nil
}

// ============================================================================
// Action Items
// ============================================================================

func (s *Store) CreateActionItem(ctx context.Context, in graph.ActionItemInput) (*graph.ActionItem, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if m, ok := s.meetings[in.MeetingID]; !ok || m.OwnerID != in.OwnerID {
		return nil, apperrors.NewNotFound("meeting", in.MeetingID)
	}

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	if existing, ok := s.actionItems[id]; ok {
		if existing.OwnerID != in.OwnerID {
			return nil, apperrors.NewConflict(fmt.Sprintf("action item %s belongs to another owner", id))
		}
		return s.actionItemView(existing), nil
	}

	status := in.Status
	if status == "" {
		status = "open"
	}
	item := &graph.ActionItem{
		ID:          id,
		OwnerID:     in.OwnerID,
		MeetingID:   in.MeetingID,
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      status,
		CreatedAt:   s.now(),
	}
	s.actionItems[id] = item
	return s.actionItemView(item), nil
}

// AssignActionItem links the best matching person: highest mention count,
// then most recently seen, then lowest id
func (s *Store) AssignActionItem(ctx context.Context, in graph.AssignInput) (*graph.ActionItem, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	item, ok := s.actionItems[in.ItemID]
	if !ok || item.OwnerID != in.OwnerID {
		return nil, apperrors.NewNotFound("action_item", in.ItemID)
	}
	item.Assignee = in.Assignee
	delete(s.assignments, item.ID)

	if in.Key != "" {
		candidates := make([]*graph.Entity, 0)
		for _, e := range s.entities {
			if e.OwnerID == in.OwnerID && e.Type == graph.EntityTypePerson && matchesAssignee(e, in) {
				candidates = append(candidates, e)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.MentionCount != b.MentionCount {
				return a.MentionCount > b.MentionCount
			}
			if !a.LastSeen.Equal(b.LastSeen) {
				return a.LastSeen.After(b.LastSeen)
			}
			return a.ID < b.ID
		})
		if len(candidates) > 0 {
			s.assignments[item.ID] = candidates[0].ID
		}
	}
	return s.actionItemView(item), nil
}

func matchesAssignee(e *graph.Entity, in graph.AssignInput) bool {
	if e.NormalizedValue == in.Key || strings.EqualFold(e.DisplayValue, in.Assignee) {
		return true
	}
	for _, alias := range e.Aliases {
		if alias == in.Key {
			return true
		}
	}
	return false
}

func (s *Store) actionItemView(item *graph.ActionItem) *graph.ActionItem {
	c := *item
	c.AssigneeEntityID = s.assignments[item.ID]
	return &c
}

func withoutString(list []string, drop string) []string {
	out := list[:0]
	for _, v := range list {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
