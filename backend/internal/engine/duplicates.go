package engine

import (
	"context"
	"sort"
	"strings"

	"tami-graph/backend/internal/constants"
	"tami-graph/backend/internal/graph"
)

// ============================================================================
// Duplicate Detection
// ============================================================================

// DuplicateCandidate is a pair of same-type entities that probably name the
// same thing. Keep is the better established of the two.
type DuplicateCandidate struct {
	Keep   graph.EntityRef `json:"keep"`
	Merge  graph.EntityRef `json:"merge"`
	Score  float64         `json:"score"`
	Reason string          `json:"reason"`
}

const (
	reasonAlias       = "alias"
	reasonContainment = "containment"
	reasonWordOverlap = "word_overlap"
	reasonWordSubset  = "word_subset"

	minContainmentLen = 10
	containmentRatio  = 0.8
	wordOverlapRatio  = 0.7
	wordSubsetRatio   = 0.5
)

// DuplicateCandidates compares the owner's most mentioned entities pairwise
// within each type and returns likely duplicates, best match first. Nothing
// is merged; the caller decides.
func (e *Engine) DuplicateCandidates(ctx context.Context, ownerID, entityType string, limit int) ([]DuplicateCandidate, error) {
	limit, err := bounded("limit", limit, constants.DefaultPageSize, constants.MaxPageSize)
	if err != nil {
		return nil, err
	}
	entities, err := e.ListEntities(ctx, ownerID, entityType, 0, constants.MaxPageSize)
	if err != nil {
		return nil, err
	}

	byType := make(map[graph.EntityType][]graph.EntitySummary)
	for _, s := range entities {
		byType[s.Type] = append(byType[s.Type], s)
	}

	out := make([]DuplicateCandidate, 0)
	for _, group := range byType {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				score, reason := similarity(&group[i].Entity, &group[j].Entity)
				if reason == "" {
					continue
				}
				keep, merge := preferred(&group[i].Entity, &group[j].Entity)
				out = append(out, DuplicateCandidate{Keep: keep.Ref(), Merge: merge.Ref(), Score: score, Reason: reason})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Keep.ID != out[j].Keep.ID {
			return out[i].Keep.ID < out[j].Keep.ID
		}
		return out[i].Merge.ID < out[j].Merge.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// preferred orders a pair so the more mentioned, then older, then lower id entity is kept
func preferred(a, b *graph.Entity) (*graph.Entity, *graph.Entity) {
	switch {
	case a.MentionCount != b.MentionCount:
		if a.MentionCount > b.MentionCount {
			return a, b
		}
		return b, a
	case !a.FirstSeen.Equal(b.FirstSeen):
		if a.FirstSeen.Before(b.FirstSeen) {
			return a, b
		}
		return b, a
	case a.ID < b.ID:
		return a, b
	}
	return b, a
}

// similarity scores two entities of the same type. An empty reason means
// they are not considered duplicates.
func similarity(a, b *graph.Entity) (float64, string) {
	if containsString(a.Aliases, b.NormalizedValue) || containsString(b.Aliases, a.NormalizedValue) {
		return 1, reasonAlias
	}
	return keySimilarity(a.NormalizedValue, b.NormalizedValue)
}

// keySimilarity compares two normalized keys
func keySimilarity(k1, k2 string) (float64, string) {
	if k1 == "" || k2 == "" || k1 == k2 {
		return 0, ""
	}

	// One key is a near-complete substring of the other
	if len(k1) >= minContainmentLen && len(k2) >= minContainmentLen &&
		(strings.Contains(k1, k2) || strings.Contains(k2, k1)) {
		ratio := float64(min(len(k1), len(k2))) / float64(max(len(k1), len(k2)))
		if ratio >= containmentRatio {
			return ratio, reasonContainment
		}
	}

	words1 := strings.Fields(k1)
	words2 := strings.Fields(k2)
	set1 := make(map[string]bool, len(words1))
	for _, w := range words1 {
		set1[w] = true
	}
	matches := 0
	for _, w := range words2 {
		if set1[w] {
			matches++
		}
	}
	if matches == 0 {
		return 0, ""
	}

	avg := float64(len(words1)+len(words2)) / 2
	if overlap := float64(matches) / avg; overlap >= wordOverlapRatio {
		return overlap, reasonWordOverlap
	}

	// "sarah" and "sarah connor": every word of the shorter key appears in the longer
	shorter, longer := len(words1), len(words2)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if matches == shorter {
		if ratio := float64(shorter) / float64(longer); ratio >= wordSubsetRatio {
			return ratio, reasonWordSubset
		}
	}
	return 0, ""
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
