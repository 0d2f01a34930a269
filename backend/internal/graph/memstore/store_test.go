package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tami-graph/backend/internal/graph"
	apperrors "tami-graph/backend/pkg/errors"
)

const owner = "user-1"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	return New(WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))
}

func mustEntity(t *testing.T, s *Store, typ graph.EntityType, value string) *graph.Entity {
	t.Helper()
	e, err := s.UpsertEntity(context.Background(), graph.UpsertEntityInput{
		OwnerID:         owner,
		Type:            typ,
		NormalizedValue: value,
		DisplayValue:    value,
		MentionDelta:    1,
		Confidence:      0.9,
	})
	require.NoError(t, err)
	return e
}

func mustMeeting(t *testing.T, s *Store, id string) *graph.Meeting {
	t.Helper()
	m, err := s.UpsertMeeting(context.Background(), graph.MeetingInput{ID: id, OwnerID: owner, Title: "Meeting " + id})
	require.NoError(t, err)
	return m
}

func mustMention(t *testing.T, s *Store, entityID, meetingID string) {
	t.Helper()
	_, err := s.AddMention(context.Background(), graph.MentionInput{
		OwnerID:   owner,
		EntityID:  entityID,
		MeetingID: meetingID,
		Delta:     1,
	})
	require.NoError(t, err)
}

func mustRelate(t *testing.T, s *Store, fromID, toID string, relType graph.RelationshipType) {
	t.Helper()
	_, err := s.UpsertRelationship(context.Background(), graph.RelationshipInput{
		OwnerID:    owner,
		FromID:     fromID,
		ToID:       toID,
		Type:       relType,
		Confidence: 1.0,
		Source:     "user",
	}, nil)
	require.NoError(t, err)
}

func TestUpsertEntity_Accumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertEntity(ctx, graph.UpsertEntityInput{
		OwnerID: owner, Type: graph.EntityTypePerson, NormalizedValue: "sarah", DisplayValue: "Sarah",
		MentionDelta: 2, Aliases: []string{"sarah k"},
	})
	require.NoError(t, err)

	second, err := s.UpsertEntity(ctx, graph.UpsertEntityInput{
		OwnerID: owner, Type: graph.EntityTypePerson, NormalizedValue: "sarah", DisplayValue: "SARAH",
		MentionDelta: 3, Aliases: []string{"sarah k", "s. k"},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(5), second.MentionCount)
	assert.Equal(t, "Sarah", second.DisplayValue, "display value is kept from creation")
	assert.Equal(t, []string{"sarah k", "s. k"}, second.Aliases)
	assert.True(t, second.LastSeen.After(first.LastSeen))
	assert.Equal(t, first.FirstSeen, second.FirstSeen)
}

func TestUpsertEntity_IdentityIsScopedByOwnerAndType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	person := mustEntity(t, s, graph.EntityTypePerson, "apple")
	org := mustEntity(t, s, graph.EntityTypeOrganization, "apple")
	other, err := s.UpsertEntity(ctx, graph.UpsertEntityInput{
		OwnerID: "user-2", Type: graph.EntityTypePerson, NormalizedValue: "apple", MentionDelta: 1,
	})
	require.NoError(t, err)

	assert.NotEqual(t, person.ID, org.ID)
	assert.NotEqual(t, person.ID, other.ID)

	_, err = s.GetEntity(ctx, "user-2", person.ID)
	assert.True(t, apperrors.IsNotFound(err), "entities of another owner are invisible")
}

func TestUpsertEntity_ConcurrentConverges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := s.UpsertEntity(ctx, graph.UpsertEntityInput{
				OwnerID: owner, Type: graph.EntityTypeTechnology, NormalizedValue: "kubernetes", MentionDelta: 1,
			})
			if assert.NoError(t, err) {
				ids <- e.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	unique := make(map[string]bool)
	for id := range ids {
		unique[id] = true
	}
	assert.Len(t, unique, 1)

	stats, err := s.EntityStats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)

	list, err := s.ListEntities(ctx, owner, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(20), list[0].MentionCount)
}

func TestUpdateEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := mustEntity(t, s, graph.EntityTypeProject, "atlas")

	desc := "migration project"
	aliases := []string{"project atlas"}
	updated, err := s.UpdateEntity(ctx, owner, e.ID, graph.EntityUpdate{Description: &desc, Aliases: &aliases})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)
	assert.Equal(t, aliases, updated.Aliases)
	assert.Equal(t, e.DisplayValue, updated.DisplayValue)

	_, err = s.UpdateEntity(ctx, owner, "missing", graph.EntityUpdate{Description: &desc})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteEntity_DetachesEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustEntity(t, s, graph.EntityTypePerson, "alice")
	acme := mustEntity(t, s, graph.EntityTypeOrganization, "acme")
	mustMeeting(t, s, "m1")
	mustMention(t, s, alice.ID, "m1")
	mustRelate(t, s, alice.ID, acme.ID, graph.RelWorksAt)

	require.NoError(t, s.DeleteEntity(ctx, owner, alice.ID))

	_, err := s.GetEntity(ctx, owner, alice.ID)
	assert.True(t, apperrors.IsNotFound(err))

	rels, err := s.EntityRelationships(ctx, owner, acme.ID, graph.DirectionBoth)
	require.NoError(t, err)
	assert.Empty(t, rels)

	err = s.DeleteEntity(ctx, owner, alice.ID)
	assert.True(t, apperrors.IsNotFound(err))

	again := mustEntity(t, s, graph.EntityTypePerson, "alice")
	assert.NotEqual(t, alice.ID, again.ID, "identity is free again after delete")
}

func TestListEntities_OrderAndPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		mustEntity(t, s, graph.EntityTypeTopic, v)
	}
	_, err := s.UpsertEntity(ctx, graph.UpsertEntityInput{
		OwnerID: owner, Type: graph.EntityTypeTopic, NormalizedValue: "c", MentionDelta: 4,
	})
	require.NoError(t, err)
	mustEntity(t, s, graph.EntityTypePerson, "dana")

	topics, err := s.ListEntities(ctx, owner, graph.EntityTypeTopic, 0, 10)
	require.NoError(t, err)
	require.Len(t, topics, 3)
	assert.Equal(t, "c", topics[0].NormalizedValue)

	page, err := s.ListEntities(ctx, owner, graph.EntityTypeTopic, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, topics[1].ID, page[0].ID)

	empty, err := s.ListEntities(ctx, owner, graph.EntityTypeTopic, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	stats, err := s.EntityStats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(3), stats.ByType[graph.EntityTypeTopic])
	assert.Equal(t, int64(1), stats.ByType[graph.EntityTypePerson])
}

func TestSearchEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	atlas := mustEntity(t, s, graph.EntityTypeProject, "atlas migration")
	desc := "the atlas rollout"
	mig := mustEntity(t, s, graph.EntityTypeTopic, "rollout")
	_, err := s.UpdateEntity(ctx, owner, mig.ID, graph.EntityUpdate{Description: &desc})
	require.NoError(t, err)

	hits, err := s.SearchEntities(ctx, owner, "Atlas", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, atlas.ID, hits[0].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = s.SearchEntities(ctx, owner, "atlas", []graph.EntityType{graph.EntityTypeTopic}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, mig.ID, hits[0].ID)

	hits, err = s.SearchEntities(ctx, owner, "   ", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMeetingStatus_MovesForwardOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := mustMeeting(t, s, "m1")
	assert.Equal(t, graph.MeetingStatusPending, m.Status)

	m, err := s.UpdateMeetingStatus(ctx, owner, "m1", graph.MeetingStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, graph.MeetingStatusCompleted, m.Status)

	_, err = s.UpdateMeetingStatus(ctx, owner, "m1", graph.MeetingStatusProcessing)
	assert.True(t, apperrors.IsConflict(err))

	// re-upserting never moves status back
	m, err = s.UpsertMeeting(ctx, graph.MeetingInput{ID: "m1", OwnerID: owner, Status: graph.MeetingStatusPending})
	require.NoError(t, err)
	assert.Equal(t, graph.MeetingStatusCompleted, m.Status)

	_, err = s.UpsertMeeting(ctx, graph.MeetingInput{ID: "m1", OwnerID: "user-2"})
	assert.True(t, apperrors.IsConflict(err))

	_, err = s.GetMeeting(ctx, "user-2", "m1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAddMention_SingleEdgePerPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := mustEntity(t, s, graph.EntityTypePerson, "bob")
	mustMeeting(t, s, "m1")

	_, err := s.AddMention(ctx, graph.MentionInput{OwnerID: owner, EntityID: e.ID, MeetingID: "m1", Delta: 2, Context: "first"})
	require.NoError(t, err)
	m, err := s.AddMention(ctx, graph.MentionInput{OwnerID: owner, EntityID: e.ID, MeetingID: "m1", Delta: 3, Context: "second"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), m.MentionCount)
	assert.Equal(t, "first", m.Context)

	m, err = s.AddMention(ctx, graph.MentionInput{OwnerID: owner, EntityID: e.ID, MeetingID: "m1", Delta: 1, Context: "third", OverwriteContext: true})
	require.NoError(t, err)
	assert.Equal(t, "third", m.Context)

	detail, err := s.GetEntity(ctx, owner, e.ID)
	require.NoError(t, err)
	require.Len(t, detail.Mentions, 1)
	assert.Equal(t, "Meeting m1", detail.Mentions[0].MeetingTitle)

	_, err = s.AddMention(ctx, graph.MentionInput{OwnerID: owner, EntityID: e.ID, MeetingID: "missing", Delta: 1})
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.AddMention(ctx, graph.MentionInput{OwnerID: owner, EntityID: "missing", MeetingID: "m1", Delta: 1})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpsertRelationship(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustEntity(t, s, graph.EntityTypePerson, "alice")
	acme := mustEntity(t, s, graph.EntityTypeOrganization, "acme")

	allow := func(relType graph.RelationshipType) func(from, to graph.EntityType) error {
		return func(from, to graph.EntityType) error { return graph.ValidateRelationship(from, to, relType) }
	}

	in := graph.RelationshipInput{
		OwnerID: owner, FromID: alice.ID, ToID: acme.ID, Type: graph.RelWorksAt,
		Confidence: 0.8, Source: "extraction", Properties: map[string]interface{}{"role": "cto"},
	}
	rel, err := s.UpsertRelationship(ctx, in, allow(graph.RelWorksAt))
	require.NoError(t, err)
	assert.Equal(t, "cto", rel.Properties["role"])

	in.Confidence = 0.95
	in.Properties = map[string]interface{}{"since": "2024"}
	rel, err = s.UpsertRelationship(ctx, in, allow(graph.RelWorksAt))
	require.NoError(t, err)
	assert.Equal(t, 0.95, rel.Confidence)
	assert.Equal(t, "cto", rel.Properties["role"], "properties are merged")
	assert.Equal(t, "2024", rel.Properties["since"])

	views, err := s.EntityRelationships(ctx, owner, alice.ID, graph.DirectionBoth)
	require.NoError(t, err)
	require.Len(t, views, 1, "the same triple never duplicates")
	assert.Equal(t, graph.DirectionOutgoing, views[0].Direction)
	assert.Equal(t, acme.ID, views[0].Other.ID)

	incoming, err := s.EntityRelationships(ctx, owner, alice.ID, graph.DirectionIncoming)
	require.NoError(t, err)
	assert.Empty(t, incoming)

	bad := graph.RelationshipInput{OwnerID: owner, FromID: acme.ID, ToID: alice.ID, Type: graph.RelUses, Source: "user"}
	_, err = s.UpsertRelationship(ctx, bad, allow(graph.RelUses))
	assert.True(t, apperrors.IsConflict(err))

	unknown := graph.RelationshipInput{OwnerID: owner, FromID: alice.ID, ToID: acme.ID, Type: "LIKES"}
	_, err = s.UpsertRelationship(ctx, unknown, nil)
	assert.True(t, apperrors.IsValidation(err))

	missing := graph.RelationshipInput{OwnerID: owner, FromID: alice.ID, ToID: "missing", Type: graph.RelWorksAt}
	_, err = s.UpsertRelationship(ctx, missing, nil)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, s.DeleteRelationship(ctx, owner, alice.ID, acme.ID, graph.RelWorksAt))
	err = s.DeleteRelationship(ctx, owner, alice.ID, acme.ID, graph.RelWorksAt)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestInferCollaborations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustEntity(t, s, graph.EntityTypePerson, "alice")
	bob := mustEntity(t, s, graph.EntityTypePerson, "bob")
	carol := mustEntity(t, s, graph.EntityTypePerson, "carol")

	for _, id := range []string{"m1", "m2", "m3"} {
		mustMeeting(t, s, id)
		mustMention(t, s, alice.ID, id)
		mustMention(t, s, bob.ID, id)
	}
	mustMention(t, s, carol.ID, "m1")

	n, err := s.InferCollaborations(ctx, owner, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	views, err := s.EntityRelationships(ctx, owner, alice.ID, graph.DirectionBoth)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, graph.RelCollaboratesWith, views[0].Type)
	assert.Equal(t, bob.ID, views[0].Other.ID)
	assert.Equal(t, int64(3), views[0].Strength)
	assert.Equal(t, "inferred", views[0].Source)

	// idempotent
	n, err = s.InferCollaborations(ctx, owner, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	views, err = s.EntityRelationships(ctx, owner, bob.ID, graph.DirectionBoth)
	require.NoError(t, err)
	assert.Len(t, views, 1)

	// raising the threshold prunes the inferred edge
	n, err = s.InferCollaborations(ctx, owner, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	views, err = s.EntityRelationships(ctx, owner, alice.ID, graph.DirectionBoth)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestCoOccurrences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustEntity(t, s, graph.EntityTypeTopic, "budget")
	b := mustEntity(t, s, graph.EntityTypeProject, "atlas")
	c := mustEntity(t, s, graph.EntityTypePerson, "carol")

	for _, id := range []string{"m1", "m2"} {
		mustMeeting(t, s, id)
		mustMention(t, s, a.ID, id)
		mustMention(t, s, b.ID, id)
	}
	mustMention(t, s, c.ID, "m1")

	pairs, err := s.CoOccurrences(ctx, owner, 2, 10)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, int64(2), pairs[0].SharedMeetings)
	assert.Less(t, pairs[0].Entity1.ID, pairs[0].Entity2.ID)
	assert.ElementsMatch(t, []string{"Meeting m1", "Meeting m2"}, pairs[0].MeetingTitles)

	pairs, err = s.CoOccurrences(ctx, owner, 1, 10)
	require.NoError(t, err)
	assert.Len(t, pairs, 3)
	assert.Equal(t, int64(2), pairs[0].SharedMeetings)
}

func TestSubgraph(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustEntity(t, s, graph.EntityTypePerson, "alice")
	acme := mustEntity(t, s, graph.EntityTypeOrganization, "acme")
	berlin := mustEntity(t, s, graph.EntityTypeLocation, "berlin")
	mustRelate(t, s, alice.ID, acme.ID, graph.RelWorksAt)
	mustRelate(t, s, acme.ID, berlin.ID, graph.RelLocatedIn)
	mustMeeting(t, s, "m1")
	mustMention(t, s, alice.ID, "m1")

	sg, err := s.Subgraph(ctx, owner, alice.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, sg.Root)
	assert.Len(t, sg.Nodes, 3, "alice, acme and the meeting")
	assert.Len(t, sg.Edges, 2)

	sg, err = s.Subgraph(ctx, owner, alice.ID, 2)
	require.NoError(t, err)
	assert.Len(t, sg.Nodes, 4)
	assert.Len(t, sg.Edges, 3)
	for _, n := range sg.Nodes {
		if n.ID == berlin.ID {
			assert.Equal(t, 2, n.Depth)
		}
		if n.ID == "m1" {
			assert.Equal(t, graph.NodeKindMeeting, n.Kind)
		}
	}

	_, err = s.Subgraph(ctx, "user-2", alice.ID, 2)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestShortestPaths(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// two equal-length routes from a to d, one longer route
	a := mustEntity(t, s, graph.EntityTypeProject, "a")
	b := mustEntity(t, s, graph.EntityTypeProject, "b")
	c := mustEntity(t, s, graph.EntityTypeProject, "c")
	d := mustEntity(t, s, graph.EntityTypeProject, "d")
	e := mustEntity(t, s, graph.EntityTypeProject, "e")
	isolated := mustEntity(t, s, graph.EntityTypeProject, "isolated")
	mustRelate(t, s, a.ID, b.ID, graph.RelDependsOn)
	mustRelate(t, s, b.ID, d.ID, graph.RelDependsOn)
	mustRelate(t, s, a.ID, c.ID, graph.RelDependsOn)
	mustRelate(t, s, d.ID, c.ID, graph.RelRelatedTo)
	mustRelate(t, s, a.ID, e.ID, graph.RelRelatedTo)

	paths, err := s.ShortestPaths(ctx, owner, a.ID, d.ID, 4, 5)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.Equal(t, 2, p.Length)
		require.Len(t, p.Nodes, 3)
		assert.Equal(t, a.ID, p.Nodes[0].ID)
		assert.Equal(t, d.ID, p.Nodes[2].ID)
	}
	assert.Less(t, paths[0].Nodes[1].ID, paths[1].Nodes[1].ID)

	limited, err := s.ShortestPaths(ctx, owner, a.ID, d.ID, 4, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, paths[0].Nodes[1].ID, limited[0].Nodes[1].ID)

	tooShort, err := s.ShortestPaths(ctx, owner, a.ID, d.ID, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, tooShort)

	none, err := s.ShortestPaths(ctx, owner, a.ID, isolated.ID, 4, 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.ShortestPaths(ctx, owner, a.ID, "missing", 4, 5)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMergeEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	keep := mustEntity(t, s, graph.EntityTypePerson, "robert")
	merge := mustEntity(t, s, graph.EntityTypePerson, "bob")
	acme := mustEntity(t, s, graph.EntityTypeOrganization, "acme")
	atlas := mustEntity(t, s, graph.EntityTypeProject, "atlas")

	mustMeeting(t, s, "m1")
	mustMeeting(t, s, "m2")
	mustMention(t, s, keep.ID, "m1")
	mustMention(t, s, merge.ID, "m1")
	mustMention(t, s, merge.ID, "m2")
	mustRelate(t, s, merge.ID, acme.ID, graph.RelWorksAt)
	mustRelate(t, s, keep.ID, atlas.ID, graph.RelWorksOn)
	mustRelate(t, s, merge.ID, atlas.ID, graph.RelWorksOn)
	mustRelate(t, s, merge.ID, keep.ID, graph.RelCollaboratesWith)

	item, err := s.CreateActionItem(ctx, graph.ActionItemInput{OwnerID: owner, MeetingID: "m1", Description: "send deck"})
	require.NoError(t, err)
	item, err = s.AssignActionItem(ctx, graph.AssignInput{OwnerID: owner, ItemID: item.ID, Assignee: "Bob", Key: "bob"})
	require.NoError(t, err)
	require.Equal(t, merge.ID, item.AssigneeEntityID)

	merged, err := s.MergeEntities(ctx, owner, keep.ID, merge.ID)
	require.NoError(t, err)
	assert.Equal(t, keep.ID, merged.ID)
	assert.Equal(t, int64(2), merged.MentionCount)
	assert.Contains(t, merged.Aliases, "bob")

	_, err = s.GetEntity(ctx, owner, merge.ID)
	assert.True(t, apperrors.IsNotFound(err))

	detail, err := s.GetEntity(ctx, owner, keep.ID)
	require.NoError(t, err)
	require.Len(t, detail.Mentions, 2)
	counts := map[string]int64{}
	for _, m := range detail.Mentions {
		counts[m.MeetingID] = m.MentionCount
	}
	assert.Equal(t, map[string]int64{"m1": 2, "m2": 1}, counts)

	types := map[graph.RelationshipType]int{}
	for _, rel := range detail.Relationships {
		types[rel.Type]++
	}
	assert.Equal(t, map[graph.RelationshipType]int{graph.RelWorksAt: 1, graph.RelWorksOn: 1}, types,
		"edges move over without duplicates or self-loops")

	// the assignment follows the surviving entity
	item, err = s.AssignActionItem(ctx, graph.AssignInput{OwnerID: owner, ItemID: item.ID, Assignee: "Bob", Key: "bob"})
	require.NoError(t, err)
	assert.Equal(t, keep.ID, item.AssigneeEntityID, "merged value is matched through aliases")
}

func TestMergeEntities_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	keep := mustEntity(t, s, graph.EntityTypePerson, "robert")
	foreign, err := s.UpsertEntity(ctx, graph.UpsertEntityInput{
		OwnerID: "user-2", Type: graph.EntityTypePerson, NormalizedValue: "bob", MentionDelta: 1,
	})
	require.NoError(t, err)

	_, err = s.MergeEntities(ctx, owner, keep.ID, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = s.MergeEntities(ctx, owner, keep.ID, foreign.ID)
	assert.True(t, apperrors.IsConflict(err))

	org := mustEntity(t, s, graph.EntityTypeOrganization, "robert labs")
	_, err = s.MergeEntities(ctx, owner, keep.ID, org.ID)
	assert.True(t, apperrors.IsConflict(err), "types must match")
	_, err = s.GetEntity(ctx, owner, org.ID)
	assert.NoError(t, err)
}

func TestMergeEntities_DropsSurvivorKeyFromAliases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	keep := mustEntity(t, s, graph.EntityTypePerson, "robert")
	merge, err := s.UpsertEntity(ctx, graph.UpsertEntityInput{
		OwnerID: owner, Type: graph.EntityTypePerson, NormalizedValue: "bobby", MentionDelta: 1,
		Aliases: []string{"robert", "bob"},
	})
	require.NoError(t, err)

	merged, err := s.MergeEntities(ctx, owner, keep.ID, merge.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "bobby"}, merged.Aliases)
}

func TestAssignActionItem_TieBreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustMeeting(t, s, "m1")

	quiet := mustEntity(t, s, graph.EntityTypePerson, "sam")
	loud, err := s.UpsertEntity(ctx, graph.UpsertEntityInput{
		OwnerID: owner, Type: graph.EntityTypePerson, NormalizedValue: "samuel", DisplayValue: "Sam",
		MentionDelta: 5,
	})
	require.NoError(t, err)
	require.NotEqual(t, quiet.ID, loud.ID)

	item, err := s.CreateActionItem(ctx, graph.ActionItemInput{OwnerID: owner, MeetingID: "m1", Description: "book room"})
	require.NoError(t, err)
	assert.Equal(t, "open", item.Status)

	item, err = s.AssignActionItem(ctx, graph.AssignInput{OwnerID: owner, ItemID: item.ID, Assignee: "Sam", Key: "sam"})
	require.NoError(t, err)
	assert.Equal(t, "Sam", item.Assignee)
	assert.Equal(t, loud.ID, item.AssigneeEntityID, "higher mention count wins")

	item, err = s.AssignActionItem(ctx, graph.AssignInput{OwnerID: owner, ItemID: item.ID, Assignee: "Nobody", Key: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, item.AssigneeEntityID)
	assert.Equal(t, "Nobody", item.Assignee)

	_, err = s.CreateActionItem(ctx, graph.ActionItemInput{OwnerID: owner, MeetingID: "missing", Description: "x"})
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.AssignActionItem(ctx, graph.AssignInput{OwnerID: owner, ItemID: "missing", Assignee: "Sam", Key: "sam"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.UpsertEntity(ctx, graph.UpsertEntityInput{OwnerID: owner, Type: graph.EntityTypeTopic, NormalizedValue: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
