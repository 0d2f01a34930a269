package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Traversal Operations
// ============================================================================

// Subgraph returns every Entity and Meeting node within depth hops of the
// entity, with the edges used to reach them, structural edges included.
// Expansion runs one level at a time so depth bounds the number of queries.
func (r *Repository) Subgraph(ctx context.Context, ownerID, entityID string, depth int) (*Subgraph, error) {
	rootQuery := `
		MATCH (e:Entity {id: $entity_id, user_id: $owner_id})
		RETURN e
	`

	expandQuery := `
		UNWIND $frontier AS node_id
		OPTIONAL MATCH (e:Entity {id: node_id, user_id: $owner_id})
		OPTIONAL MATCH (mt:Meeting {id: node_id, user_id: $owner_id})
		WITH coalesce(e, mt) AS n
		WHERE n IS NOT NULL
		MATCH (n)-[r]-(o)
		WHERE (o:Entity OR o:Meeting) AND o.user_id = $owner_id
		RETURN startNode(r).id AS start_id, endNode(r).id AS end_id, r, o
		ORDER BY start_id, end_id, type(r)
	`

	return readTx(ctx, r, "subgraph", func(tx neo4j.ManagedTransaction) (*Subgraph, error) {
		rootRecord, err := single(ctx, tx, rootQuery, map[string]interface{}{
			"owner_id":  ownerID,
			"entity_id": entityID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load subgraph root: %w", err)
		}
		if rootRecord == nil {
			return nil, apperrors.NewNotFound("entity", entityID)
		}
		root, _ := getNodeFromRecord(rootRecord, "e")

		sg := &Subgraph{
			Root:  entityID,
			Depth: depth,
			Nodes: []GraphNode{graphNodeFromNode(root, 0)},
			Edges: []GraphEdge{},
		}
		visited := map[string]bool{entityID: true}
		seenEdges := make(map[string]bool)
		frontier := []string{entityID}

		for level := 0; level < depth && len(frontier) > 0; level++ {
			records, err := collect(ctx, tx, expandQuery, map[string]interface{}{
				"owner_id": ownerID,
				"frontier": frontier,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to expand subgraph at depth %d: %w", level+1, err)
			}

			next := make([]string, 0)
			for _, record := range records {
				rel, ok := getRelationshipFromRecord(record, "r")
				if !ok {
					continue
				}
				if !seenEdges[rel.ElementId] {
					seenEdges[rel.ElementId] = true
					sg.Edges = append(sg.Edges, GraphEdge{
						FromID:     getStringFromRecord(record, "start_id"),
						ToID:       getStringFromRecord(record, "end_id"),
						Type:       RelationshipType(rel.Type),
						Properties: copyProps(rel.Props),
					})
				}

				other, _ := getNodeFromRecord(record, "o")
				otherID := getStringFromMap(other.Props, "id", "")
				if otherID == "" || visited[otherID] {
					continue
				}
				visited[otherID] = true
				sg.Nodes = append(sg.Nodes, graphNodeFromNode(other, level+1))
				next = append(next, otherID)
			}
			frontier = next
		}

		return sg, nil
	})
}

// ShortestPaths returns up to limit shortest paths between two entities within
// maxHops, through the owner's Entity and Meeting nodes only. No path is an
// empty result, not an error.
func (r *Repository) ShortestPaths(ctx context.Context, ownerID, fromID, toID string, maxHops, limit int) ([]Path, error) {
	endpointQuery := `
		OPTIONAL MATCH (a:Entity {id: $from_id, user_id: $owner_id})
		OPTIONAL MATCH (b:Entity {id: $to_id, user_id: $owner_id})
		RETURN a IS NOT NULL AS has_from, b IS NOT NULL AS has_to
	`

	// maxHops is an int bounded by the caller; it is the only interpolated value
	pathQuery := fmt.Sprintf(`
		MATCH (a:Entity {id: $from_id, user_id: $owner_id})
		MATCH (b:Entity {id: $to_id, user_id: $owner_id})
		MATCH p = allShortestPaths((a)-[*1..%d]-(b))
		WHERE all(n IN nodes(p) WHERE n.user_id = $owner_id AND (n:Entity OR n:Meeting))
		RETURN p
		ORDER BY [n IN nodes(p) | n.id]
		LIMIT $limit
	`, maxHops)

	params := map[string]interface{}{
		"owner_id": ownerID,
		"from_id":  fromID,
		"to_id":    toID,
		"limit":    int64(limit),
	}

	return readTx(ctx, r, "shortest paths", func(tx neo4j.ManagedTransaction) ([]Path, error) {
		check, err := single(ctx, tx, endpointQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to load path endpoints: %w", err)
		}
		if check == nil || !getBoolFromRecord(check, "has_from") {
			return nil, apperrors.NewNotFound("entity", fromID)
		}
		if !getBoolFromRecord(check, "has_to") {
			return nil, apperrors.NewNotFound("entity", toID)
		}

		records, err := collect(ctx, tx, pathQuery, params)
		if err != nil {
			return nil, fmt.Errorf("failed to find connections: %w", err)
		}

		paths := make([]Path, 0, len(records))
		for _, record := range records {
			raw, _ := record.Get("p")
			p, ok := raw.(neo4j.Path)
			if !ok {
				continue
			}
			paths = append(paths, pathFromNeo4j(p))
		}
		return paths, nil
	})
}

func pathFromNeo4j(p neo4j.Path) Path {
	ids := make(map[string]string, len(p.Nodes))
	out := Path{
		Nodes:  make([]GraphNode, 0, len(p.Nodes)),
		Edges:  make([]GraphEdge, 0, len(p.Relationships)),
		Length: len(p.Relationships),
	}
	for i, n := range p.Nodes {
		gn := graphNodeFromNode(n, i)
		ids[n.ElementId] = gn.ID
		out.Nodes = append(out.Nodes, gn)
	}
	for _, rel := range p.Relationships {
		out.Edges = append(out.Edges, GraphEdge{
			FromID:     ids[rel.StartElementId],
			ToID:       ids[rel.EndElementId],
			Type:       RelationshipType(rel.Type),
			Properties: copyProps(rel.Props),
		})
	}
	return out
}
