package memstore

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"tami-graph/backend/internal/constants"
	"tami-graph/backend/internal/graph"
	apperrors "tami-graph/backend/pkg/errors"
)

func (s *Store) UpsertRelationship(ctx context.Context, in graph.RelationshipInput, allow func(from, to graph.EntityType) error) (*graph.Relationship, error) {
	if _, err := graph.ParseRelationshipType(string(in.Type)); err != nil {
		return nil, err
	}
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	from, err := s.ownedEntity(in.OwnerID, in.FromID)
	if err != nil {
		return nil, err
	}
	to, err := s.ownedEntity(in.OwnerID, in.ToID)
	if err != nil {
		return nil, err
	}
	if allow != nil {
		if err := allow(from.Type, to.Type); err != nil {
			return nil, err
		}
	}

	now := s.now()
	key := relKey{in.FromID, in.ToID, in.Type}
	rel, ok := s.relationships[key]
	if !ok {
		rel = &graph.Relationship{
			FromID:    in.FromID,
			ToID:      in.ToID,
			Type:      in.Type,
			CreatedAt: now,
		}
		s.relationships[key] = rel
	}
	for k, v := range in.Properties {
		if rel.Properties == nil {
			rel.Properties = make(map[string]interface{})
		}
		rel.Properties[k] = v
	}
	rel.Confidence = in.Confidence
	rel.Source = in.Source
	rel.UpdatedAt = now
	return cloneRelationship(rel), nil
}

func (s *Store) DeleteRelationship(ctx context.Context, ownerID, fromID, toID string, relType graph.RelationshipType) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	key := relKey{fromID, toID, relType}
	_, fromErr := s.ownedEntity(ownerID, fromID)
	_, toErr := s.ownedEntity(ownerID, toID)
	if _, ok := s.relationships[key]; !ok || fromErr != nil || toErr != nil {
		return apperrors.NewNotFound("relationship", fmt.Sprintf("%s-[%s]->%s", fromID, relType, toID))
	}
	delete(s.relationships, key)
	return nil
}

func (s *Store) EntityRelationships(ctx context.Context, ownerID, entityID string, dir graph.Direction) ([]graph.RelationshipView, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, err := s.ownedEntity(ownerID, entityID); err != nil {
		return nil, err
	}
	return s.relationshipViews(ownerID, entityID, dir), nil
}

// relationshipViews lists the semantic edges touching entityID, ordered by type then neighbour id
func (s *Store) relationshipViews(ownerID, entityID string, dir graph.Direction) []graph.RelationshipView {
	views := make([]graph.RelationshipView, 0)
	for k, rel := range s.relationships {
		if k.typ.IsStructural() {
			continue
		}
		var otherID string
		var direction graph.Direction
		switch {
		case k.from == entityID && dir != graph.DirectionIncoming:
			otherID, direction = k.to, graph.DirectionOutgoing
		case k.to == entityID && dir != graph.DirectionOutgoing:
			otherID, direction = k.from, graph.DirectionIncoming
		default:
			continue
		}
		other, ok := s.entities[otherID]
		if !ok || other.OwnerID != ownerID {
			continue
		}
		views = append(views, graph.RelationshipView{
			Relationship: *cloneRelationship(rel),
			Direction:    direction,
			Other:        other.Ref(),
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Type != views[j].Type {
			return views[i].Type < views[j].Type
		}
		return views[i].Other.ID < views[j].Other.ID
	})
	return views
}

func (s *Store) InferCollaborations(ctx context.Context, ownerID string, threshold int) (int, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	now := s.now()
	people := make([]*graph.Entity, 0)
	for _, e := range s.entities {
		if e.OwnerID == ownerID && e.Type == graph.EntityTypePerson {
			people = append(people, e)
		}
	}
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })

	meetings := make(map[string]map[string]bool, len(people))
	for _, p := range people {
		meetings[p.ID] = s.meetingsOf(p.ID)
	}

	touched := 0
	for i, p1 := range people {
		for _, p2 := range people[i+1:] {
			shared := int64(sharedCount(meetings[p1.ID], meetings[p2.ID]))
			if shared < int64(threshold) {
				continue
			}
			key := relKey{p1.ID, p2.ID, graph.RelCollaboratesWith}
			rel, ok := s.relationships[key]
			if !ok {
				rel = &graph.Relationship{
					FromID:     p1.ID,
					ToID:       p2.ID,
					Type:       graph.RelCollaboratesWith,
					Source:     constants.SourceInferred,
					Confidence: 1.0,
					CreatedAt:  now,
				}
				s.relationships[key] = rel
			}
			rel.Strength = shared
			rel.UpdatedAt = now
			touched++
		}
	}

	pruned := 0
	for k, rel := range s.relationships {
		if k.typ != graph.RelCollaboratesWith || rel.Source != constants.SourceInferred {
			continue
		}
		from, ok := s.entities[k.from]
		if !ok || from.OwnerID != ownerID {
			continue
		}
		if sharedCount(s.meetingsOf(k.from), s.meetingsOf(k.to)) < threshold {
			delete(s.relationships, k)
			pruned++
		}
	}
	if pruned > 0 {
		s.logger.Info("Pruned stale inferred collaborations", zap.String("owner_id", ownerID), zap.Int("pruned", pruned))
	}
	return touched, nil
}

func (s *Store) CoOccurrences(ctx context.Context, ownerID string, minShared, limit int) ([]graph.CoOccurrence, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	byMeeting := make(map[string][]string)
	for k := range s.mentions {
		if e := s.entities[k.entityID]; e != nil && e.OwnerID == ownerID {
			byMeeting[k.meetingID] = append(byMeeting[k.meetingID], k.entityID)
		}
	}

	type pair struct{ a, b string }
	shared := make(map[pair][]string)
	for meetingID, ids := range byMeeting {
		for i := range ids {
			for j := range ids {
				if ids[i] < ids[j] {
					p := pair{ids[i], ids[j]}
					shared[p] = append(shared[p], meetingID)
				}
			}
		}
	}

	out := make([]graph.CoOccurrence, 0)
	for p, meetingIDs := range shared {
		if len(meetingIDs) < minShared {
			continue
		}
		sort.Strings(meetingIDs)
		titles := make([]string, 0, len(meetingIDs))
		seenTitle := make(map[string]bool, len(meetingIDs))
		for _, id := range meetingIDs {
			title := s.meetings[id].Title
			if !seenTitle[title] {
				seenTitle[title] = true
				titles = append(titles, title)
			}
		}
		out = append(out, graph.CoOccurrence{
			Entity1:        s.entities[p.a].Ref(),
			Entity2:        s.entities[p.b].Ref(),
			SharedMeetings: int64(len(meetingIDs)),
			MeetingTitles:  titles,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SharedMeetings != out[j].SharedMeetings {
			return out[i].SharedMeetings > out[j].SharedMeetings
		}
		if out[i].Entity1.ID != out[j].Entity1.ID {
			return out[i].Entity1.ID < out[j].Entity1.ID
		}
		return out[i].Entity2.ID < out[j].Entity2.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sharedCount(a, b map[string]bool) int {
	n := 0
	for id := range a {
		if b[id] {
			n++
		}
	}
	return n
}
