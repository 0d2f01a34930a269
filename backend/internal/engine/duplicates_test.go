package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tami-graph/backend/pkg/errors"
)

func TestKeySimilarity(t *testing.T) {
	tests := []struct {
		k1, k2 string
		reason string
	}{
		{"sarah", "sarah connor", reasonWordSubset},
		{"sarah connor", "sarah", reasonWordSubset},
		{"kubernetes cluster", "kubernetes clusters", reasonContainment},
		{"q3 budget review", "budget review q3", reasonWordOverlap},
		{"acme corp", "acme inc", ""},
		{"sarah", "bob", ""},
		{"atlas", "atlas", ""},
		{"a b c d", "a", ""},
	}
	for _, tt := range tests {
		t.Run(tt.k1+" vs "+tt.k2, func(t *testing.T) {
			score, reason := keySimilarity(tt.k1, tt.k2)
			assert.Equal(t, tt.reason, reason)
			if reason != "" {
				assert.Greater(t, score, 0.0)
				assert.LessOrEqual(t, score, 1.0)
			}
		})
	}
}

func TestDuplicateCandidates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	full, err := e.UpsertEntity(ctx, owner, EntityRequest{Type: "person", Value: "Sarah Connor", MentionDelta: 5})
	require.NoError(t, err)
	short := upsert(t, e, "person", "Sarah")
	robert, err := e.UpsertEntity(ctx, owner, EntityRequest{Type: "person", Value: "Robert", Aliases: []string{"Bob"}})
	require.NoError(t, err)
	bob, err := e.UpsertEntity(ctx, owner, EntityRequest{Type: "person", Value: "Bob", MentionDelta: 3})
	require.NoError(t, err)
	upsert(t, e, "project", "Sarah")

	candidates, err := e.DuplicateCandidates(ctx, owner, "", 0)
	require.NoError(t, err)
	require.Len(t, candidates, 2, "types are never compared with each other")

	assert.Equal(t, reasonAlias, candidates[0].Reason)
	assert.Equal(t, bob.ID, candidates[0].Keep.ID, "the more mentioned entity is kept")
	assert.Equal(t, robert.ID, candidates[0].Merge.ID)

	assert.Equal(t, reasonWordSubset, candidates[1].Reason)
	assert.Equal(t, full.ID, candidates[1].Keep.ID)
	assert.Equal(t, short.ID, candidates[1].Merge.ID)

	candidates, err = e.DuplicateCandidates(ctx, owner, "project", 0)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, err = e.DuplicateCandidates(ctx, owner, "", 501)
	assert.True(t, apperrors.IsValidation(err))
}
