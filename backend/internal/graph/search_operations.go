package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Search Operations
// ============================================================================

// EntitySearchIndex is the full-text index over entity values and descriptions
const EntitySearchIndex = "entity_search"

// SearchEntities runs a full-text query over normalized value, display value
// and description, scoped to the owner and optionally to a set of types
func (r *Repository) SearchEntities(ctx context.Context, ownerID, query string, types []EntityType, limit int) ([]SearchHit, error) {
	luceneQuery := escapeLucene(query)
	if luceneQuery == "" {
		return []SearchHit{}, nil
	}

	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	searchQuery := `
		CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
		WHERE node.user_id = $owner_id AND (size($types) = 0 OR node.type IN $types)
		RETURN node, score
		ORDER BY score DESC, node.id ASC
		LIMIT $limit
	`

	return readTx(ctx, r, "search entities", func(tx neo4j.ManagedTransaction) ([]SearchHit, error) {
		records, err := collect(ctx, tx, searchQuery, map[string]interface{}{
			"index":    EntitySearchIndex,
			"query":    luceneQuery,
			"owner_id": ownerID,
			"types":    typeNames,
			"limit":    int64(limit),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search entities: %w", err)
		}

		hits := make([]SearchHit, 0, len(records))
		for _, record := range records {
			node, ok := getNodeFromRecord(record, "node")
			if !ok {
				continue
			}
			hits = append(hits, SearchHit{
				Entity: *entityFromProps(node.Props),
				Score:  getFloat64FromRecord(record, "score"),
			})
		}
		return hits, nil
	})
}

// luceneSpecial lists characters with meaning in Lucene query syntax
const luceneSpecial = `+-&|!(){}[]^"~*?:\/`

// escapeLucene turns free text into a Lucene query that matches its terms
// literally. Multi-word input matches any of the words.
func escapeLucene(q string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(q) {
		if strings.ContainsRune(luceneSpecial, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	escaped := b.String()

	// bare boolean keywords would be parsed as operators
	words := strings.Fields(escaped)
	for i, w := range words {
		switch w {
		case "AND", "OR", "NOT":
			words[i] = strings.ToLower(w)
		}
	}
	return strings.Join(words, " ")
}
