package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tami-graph/backend/pkg/errors"
)

// These tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.
func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	if os.Getenv("NEO4J_URI") == "" {
		t.Skip("NEO4J_URI not set")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	repo := NewRepository(driver, os.Getenv("NEO4J_DATABASE"))
	require.NoError(t, repo.SetupSchema(ctx, false))

	ownerID := "test-owner-" + time.Now().Format("20060102150405.000000")

	// Clean up
	t.Cleanup(func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (n {user_id: $owner}) DETACH DELETE n", map[string]interface{}{"owner": ownerID})
		driver.Close(ctx)
	})

	return repo, ownerID
}

func TestRepository_UpsertEntityAccumulates(t *testing.T) {
	repo, owner := newTestRepository(t)
	ctx := context.Background()

	in := UpsertEntityInput{
		OwnerID:         owner,
		Type:            EntityTypePerson,
		NormalizedValue: "dana cohen",
		DisplayValue:    "Dana Cohen",
		MentionDelta:    1,
		Aliases:         []string{"dana"},
		Confidence:      0.9,
	}
	first, err := repo.UpsertEntity(ctx, in)
	require.NoError(t, err)

	in.MentionDelta = 2
	in.Aliases = []string{"dana", "d. cohen"}
	second, err := repo.UpsertEntity(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(3), second.MentionCount)
	assert.ElementsMatch(t, []string{"dana", "d. cohen"}, second.Aliases)
}

func TestRepository_MentionAndMerge(t *testing.T) {
	repo, owner := newTestRepository(t)
	ctx := context.Background()

	meeting, err := repo.UpsertMeeting(ctx, MeetingInput{OwnerID: owner, Title: "Kickoff", Status: MeetingStatusPending})
	require.NoError(t, err)

	keep, err := repo.UpsertEntity(ctx, UpsertEntityInput{OwnerID: owner, Type: EntityTypeOrganization, NormalizedValue: "acme", DisplayValue: "Acme", MentionDelta: 2})
	require.NoError(t, err)
	dup, err := repo.UpsertEntity(ctx, UpsertEntityInput{OwnerID: owner, Type: EntityTypeOrganization, NormalizedValue: "acme corp", DisplayValue: "Acme Corp", MentionDelta: 3})
	require.NoError(t, err)

	for _, id := range []string{keep.ID, dup.ID, dup.ID} {
		_, err := repo.AddMention(ctx, MentionInput{OwnerID: owner, EntityID: id, MeetingID: meeting.ID, Context: "ctx", Delta: 1})
		require.NoError(t, err)
	}

	merged, err := repo.MergeEntities(ctx, owner, keep.ID, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), merged.MentionCount)
	assert.Contains(t, merged.Aliases, "acme corp")

	_, err = repo.GetEntity(ctx, owner, dup.ID)
	assert.True(t, apperrors.IsNotFound(err))

	detail, err := repo.GetEntity(ctx, owner, keep.ID)
	require.NoError(t, err)
	require.Len(t, detail.Mentions, 1)
	assert.Equal(t, int64(3), detail.Mentions[0].MentionCount)
}

func TestRepository_ShortestPathsNoPath(t *testing.T) {
	repo, owner := newTestRepository(t)
	ctx := context.Background()

	a, err := repo.UpsertEntity(ctx, UpsertEntityInput{OwnerID: owner, Type: EntityTypeTopic, NormalizedValue: "a", DisplayValue: "A", MentionDelta: 1})
	require.NoError(t, err)
	b, err := repo.UpsertEntity(ctx, UpsertEntityInput{OwnerID: owner, Type: EntityTypeTopic, NormalizedValue: "b", DisplayValue: "B", MentionDelta: 1})
	require.NoError(t, err)

	paths, err := repo.ShortestPaths(ctx, owner, a.ID, b.ID, 4, 5)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestRepository_MergeRejectsDifferentTypes(t *testing.T) {
	repo, owner := newTestRepository(t)
	ctx := context.Background()

	person := mustRepoEntity(t, repo, owner, EntityTypePerson, "jordan", 1)
	org := mustRepoEntity(t, repo, owner, EntityTypeOrganization, "jordan labs", 1)
	haifa := mustRepoEntity(t, repo, owner, EntityTypeLocation, "haifa", 1)
	mustRepoRelate(t, repo, owner, org.ID, haifa.ID, RelLocatedIn)

	_, err := repo.MergeEntities(ctx, owner, person.ID, org.ID)
	assert.True(t, apperrors.IsConflict(err), "got %v", err)

	views, err := repo.EntityRelationships(ctx, owner, person.ID, DirectionBoth)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRepository_MergeAliasesExcludeSurvivorKey(t *testing.T) {
	repo, owner := newTestRepository(t)
	ctx := context.Background()

	keep := mustRepoEntity(t, repo, owner, EntityTypePerson, "robert", 1)
	dup, err := repo.UpsertEntity(ctx, UpsertEntityInput{
		OwnerID: owner, Type: EntityTypePerson, NormalizedValue: "bobby", DisplayValue: "Bobby",
		MentionDelta: 1, Aliases: []string{"robert", "bob"},
	})
	require.NoError(t, err)

	merged, err := repo.MergeEntities(ctx, owner, keep.ID, dup.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "bobby"}, merged.Aliases)
}

func TestRepository_InferCollaborationsPrunes(t *testing.T) {
	repo, owner := newTestRepository(t)
	ctx := context.Background()

	alice := mustRepoEntity(t, repo, owner, EntityTypePerson, "alice", 1)
	bob := mustRepoEntity(t, repo, owner, EntityTypePerson, "bob", 1)
	carol := mustRepoEntity(t, repo, owner, EntityTypePerson, "carol", 1)

	var first string
	for i := 0; i < 3; i++ {
		m := mustRepoMeeting(t, repo, owner)
		if first == "" {
			first = m.ID
		}
		mustRepoMention(t, repo, owner, alice.ID, m.ID)
		mustRepoMention(t, repo, owner, bob.ID, m.ID)
	}
	mustRepoMention(t, repo, owner, carol.ID, first)
	// a user-authored edge on a pair below the threshold survives pruning
	mustRepoRelate(t, repo, owner, alice.ID, carol.ID, RelCollaboratesWith)

	n, err := repo.InferCollaborations(ctx, owner, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	views, err := repo.EntityRelationships(ctx, owner, bob.ID, DirectionBoth)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, alice.ID, views[0].Other.ID)
	assert.Equal(t, int64(3), views[0].Strength)
	assert.Equal(t, "inferred", views[0].Source)

	n, err = repo.InferCollaborations(ctx, owner, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "re-running refreshes the same edge")

	n, err = repo.InferCollaborations(ctx, owner, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	views, err = repo.EntityRelationships(ctx, owner, bob.ID, DirectionBoth)
	require.NoError(t, err)
	assert.Empty(t, views, "inferred edge below the threshold is pruned")

	views, err = repo.EntityRelationships(ctx, owner, carol.ID, DirectionBoth)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "user", views[0].Source)
}

func TestRepository_SubgraphExpandsByLevel(t *testing.T) {
	repo, owner := newTestRepository(t)
	ctx := context.Background()

	alice := mustRepoEntity(t, repo, owner, EntityTypePerson, "alice", 1)
	acme := mustRepoEntity(t, repo, owner, EntityTypeOrganization, "acme", 1)
	berlin := mustRepoEntity(t, repo, owner, EntityTypeLocation, "berlin", 1)
	mustRepoRelate(t, repo, owner, alice.ID, acme.ID, RelWorksAt)
	mustRepoRelate(t, repo, owner, acme.ID, berlin.ID, RelLocatedIn)
	m := mustRepoMeeting(t, repo, owner)
	mustRepoMention(t, repo, owner, alice.ID, m.ID)

	sg, err := repo.Subgraph(ctx, owner, alice.ID, 1)
	require.NoError(t, err)
	assert.Len(t, sg.Nodes, 3, "alice, acme and the meeting")
	assert.Len(t, sg.Edges, 2)

	sg, err = repo.Subgraph(ctx, owner, alice.ID, 2)
	require.NoError(t, err)
	assert.Len(t, sg.Nodes, 4)
	assert.Len(t, sg.Edges, 3)
	for _, n := range sg.Nodes {
		switch n.ID {
		case berlin.ID:
			assert.Equal(t, 2, n.Depth)
		case m.ID:
			assert.Equal(t, NodeKindMeeting, n.Kind)
		}
	}

	_, err = repo.Subgraph(ctx, owner+"-other", alice.ID, 2)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRepository_CoOccurrences(t *testing.T) {
	repo, owner := newTestRepository(t)
	ctx := context.Background()

	budget := mustRepoEntity(t, repo, owner, EntityTypeTopic, "budget", 1)
	atlas := mustRepoEntity(t, repo, owner, EntityTypeProject, "atlas", 1)
	carol := mustRepoEntity(t, repo, owner, EntityTypePerson, "carol", 1)

	var first string
	for i := 0; i < 2; i++ {
		m := mustRepoMeeting(t, repo, owner)
		if first == "" {
			first = m.ID
		}
		mustRepoMention(t, repo, owner, budget.ID, m.ID)
		mustRepoMention(t, repo, owner, atlas.ID, m.ID)
	}
	mustRepoMention(t, repo, owner, carol.ID, first)

	pairs, err := repo.CoOccurrences(ctx, owner, 2, 10)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, int64(2), pairs[0].SharedMeetings)
	assert.Less(t, pairs[0].Entity1.ID, pairs[0].Entity2.ID)
	assert.Len(t, pairs[0].MeetingTitles, 1, "both meetings share a title")

	pairs, err = repo.CoOccurrences(ctx, owner, 1, 10)
	require.NoError(t, err)
	assert.Len(t, pairs, 3)
	assert.Equal(t, int64(2), pairs[0].SharedMeetings)
}

func TestRepository_AssignActionItemTieBreak(t *testing.T) {
	repo, owner := newTestRepository(t)
	ctx := context.Background()
	m := mustRepoMeeting(t, repo, owner)

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	older, err := repo.UpsertEntity(ctx, UpsertEntityInput{
		OwnerID: owner, Type: EntityTypePerson, NormalizedValue: "sam", DisplayValue: "Sam",
		MentionDelta: 2, SeenAt: base,
	})
	require.NoError(t, err)
	recent, err := repo.UpsertEntity(ctx, UpsertEntityInput{
		OwnerID: owner, Type: EntityTypePerson, NormalizedValue: "samuel", DisplayValue: "Samuel",
		MentionDelta: 2, Aliases: []string{"sam"}, SeenAt: base.Add(time.Hour),
	})
	require.NoError(t, err)

	item, err := repo.CreateActionItem(ctx, ActionItemInput{OwnerID: owner, MeetingID: m.ID, Description: "book room"})
	require.NoError(t, err)

	item, err = repo.AssignActionItem(ctx, AssignInput{OwnerID: owner, ItemID: item.ID, Assignee: "Sam", Key: "sam"})
	require.NoError(t, err)
	assert.Equal(t, recent.ID, item.AssigneeEntityID, "equal counts fall back to the most recently seen")

	_, err = repo.UpsertEntity(ctx, UpsertEntityInput{
		OwnerID: owner, Type: EntityTypePerson, NormalizedValue: "sam", DisplayValue: "Sam",
		MentionDelta: 3, SeenAt: base,
	})
	require.NoError(t, err)

	item, err = repo.AssignActionItem(ctx, AssignInput{OwnerID: owner, ItemID: item.ID, Assignee: "Sam", Key: "sam"})
	require.NoError(t, err)
	assert.Equal(t, older.ID, item.AssigneeEntityID, "higher mention count wins")
}

func mustRepoEntity(t *testing.T, repo *Repository, owner string, typ EntityType, key string, delta int64) *Entity {
	t.Helper()
	e, err := repo.UpsertEntity(context.Background(), UpsertEntityInput{
		OwnerID: owner, Type: typ, NormalizedValue: key, DisplayValue: key, MentionDelta: delta, Confidence: 0.9,
	})
	require.NoError(t, err)
	return e
}

func mustRepoMeeting(t *testing.T, repo *Repository, owner string) *Meeting {
	t.Helper()
	m, err := repo.UpsertMeeting(context.Background(), MeetingInput{OwnerID: owner, Title: "Weekly sync", Status: MeetingStatusPending})
	require.NoError(t, err)
	return m
}

func mustRepoMention(t *testing.T, repo *Repository, owner, entityID, meetingID string) {
	t.Helper()
	_, err := repo.AddMention(context.Background(), MentionInput{OwnerID: owner, EntityID: entityID, MeetingID: meetingID, Delta: 1})
	require.NoError(t, err)
}

func mustRepoRelate(t *testing.T, repo *Repository, owner, fromID, toID string, relType RelationshipType) {
	t.Helper()
	_, err := repo.UpsertRelationship(context.Background(), RelationshipInput{
		OwnerID: owner, FromID: fromID, ToID: toID, Type: relType, Confidence: 1, Source: "user",
	}, nil)
	require.NoError(t, err)
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := os.Getenv("NEO4J_URI")
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "password"
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	return driver, nil
}
