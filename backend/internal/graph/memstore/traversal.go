package memstore

import (
	"context"
	"sort"

	"tami-graph/backend/internal/graph"
)

// edge is one traversable edge between two of an owner's nodes
type edge struct {
	from  string
	to    string
	typ   graph.RelationshipType
	props map[string]interface{}
}

func (e edge) other(id string) string {
	if e.from == id {
		return e.to
	}
	return e.from
}

func (e edge) key() relKey {
	return relKey{e.from, e.to, e.typ}
}

// adjacency indexes the owner's semantic and MENTIONED_IN edges by endpoint.
// Each list is ordered by (from, to, type).
func (s *Store) adjacency(ownerID string) map[string][]edge {
	adj := make(map[string][]edge)
	add := func(e edge) {
		adj[e.from] = append(adj[e.from], e)
		adj[e.to] = append(adj[e.to], e)
	}

	for k, rel := range s.relationships {
		from, to := s.entities[k.from], s.entities[k.to]
		if from == nil || to == nil || from.OwnerID != ownerID || to.OwnerID != ownerID {
			continue
		}
		add(edge{from: k.from, to: k.to, typ: k.typ, props: cloneRelationship(rel).Properties})
	}
	for k, m := range s.mentions {
		e, meeting := s.entities[k.entityID], s.meetings[k.meetingID]
		if e == nil || meeting == nil || e.OwnerID != ownerID || meeting.OwnerID != ownerID {
			continue
		}
		add(edge{
			from: k.entityID,
			to:   k.meetingID,
			typ:  graph.RelMentionedIn,
			props: map[string]interface{}{
				"context":       m.Context,
				"mention_count": m.MentionCount,
				"speaker":       m.Speaker,
			},
		})
	}

	for id := range adj {
		list := adj[id]
		sort.Slice(list, func(i, j int) bool {
			if list[i].from != list[j].from {
				return list[i].from < list[j].from
			}
			if list[i].to != list[j].to {
				return list[i].to < list[j].to
			}
			return list[i].typ < list[j].typ
		})
	}
	return adj
}

func (s *Store) graphNode(id string, depth int) graph.GraphNode {
	if e, ok := s.entities[id]; ok {
		return graph.GraphNode{ID: id, Kind: graph.NodeKindEntity, Type: e.Type, Label: e.DisplayValue, Depth: depth}
	}
	m := s.meetings[id]
	return graph.GraphNode{ID: id, Kind: graph.NodeKindMeeting, Label: m.Title, Depth: depth}
}

// Subgraph expands level by level from the entity. An edge is included when
// it is reached from a node closer than depth.
func (s *Store) Subgraph(ctx context.Context, ownerID, entityID string, depth int) (*graph.Subgraph, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, err := s.ownedEntity(ownerID, entityID); err != nil {
		return nil, err
	}

	adj := s.adjacency(ownerID)
	sg := &graph.Subgraph{
		Root:  entityID,
		Depth: depth,
		Nodes: []graph.GraphNode{s.graphNode(entityID, 0)},
		Edges: []graph.GraphEdge{},
	}
	visited := map[string]bool{entityID: true}
	seenEdges := make(map[relKey]bool)
	frontier := []string{entityID}

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []string
		for _, id := range frontier {
			for _, e := range adj[id] {
				if !seenEdges[e.key()] {
					seenEdges[e.key()] = true
					sg.Edges = append(sg.Edges, graph.GraphEdge{FromID: e.from, ToID: e.to, Type: e.typ, Properties: e.props})
				}
				other := e.other(id)
				if visited[other] {
					continue
				}
				visited[other] = true
				sg.Nodes = append(sg.Nodes, s.graphNode(other, level+1))
				next = append(next, other)
			}
		}
		frontier = next
	}
	return sg, nil
}

// ShortestPaths enumerates shortest paths in lexicographic order of their
// node ids, stopping at limit. Only edges that lie on some shortest path are
// followed, so the enumeration never backtracks out of a dead end.
func (s *Store) ShortestPaths(ctx context.Context, ownerID, fromID, toID string, maxHops, limit int) ([]graph.Path, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, err := s.ownedEntity(ownerID, fromID); err != nil {
		return nil, err
	}
	if _, err := s.ownedEntity(ownerID, toID); err != nil {
		return nil, err
	}

	adj := s.adjacency(ownerID)
	distFrom := bfsDistances(adj, fromID, maxHops)
	length, ok := distFrom[toID]
	if !ok || length == 0 {
		return []graph.Path{}, nil
	}
	distTo := bfsDistances(adj, toID, length)

	paths := make([]graph.Path, 0)
	nodes := []string{fromID}
	edges := []edge{}

	var walk func(cur string)
	walk = func(cur string) {
		if limit > 0 && len(paths) >= limit {
			return
		}
		if cur == toID {
			paths = append(paths, s.buildPath(nodes, edges))
			return
		}

		candidates := make([]edge, 0)
		for _, e := range adj[cur] {
			next := e.other(cur)
			d, ok := distTo[next]
			if distFrom[next] == distFrom[cur]+1 && ok && distFrom[next]+d == length {
				candidates = append(candidates, e)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			ni, nj := candidates[i].other(cur), candidates[j].other(cur)
			if ni != nj {
				return ni < nj
			}
			return candidates[i].typ < candidates[j].typ
		})

		for _, e := range candidates {
			next := e.other(cur)
			nodes = append(nodes, next)
			edges = append(edges, e)
			walk(next)
			nodes = nodes[:len(nodes)-1]
			edges = edges[:len(edges)-1]
			if limit > 0 && len(paths) >= limit {
				return
			}
		}
	}
	walk(fromID)

	return paths, nil
}

func (s *Store) buildPath(nodes []string, edges []edge) graph.Path {
	p := graph.Path{
		Nodes:  make([]graph.GraphNode, 0, len(nodes)),
		Edges:  make([]graph.GraphEdge, 0, len(edges)),
		Length: len(edges),
	}
	for i, id := range nodes {
		p.Nodes = append(p.Nodes, s.graphNode(id, i))
	}
	for _, e := range edges {
		p.Edges = append(p.Edges, graph.GraphEdge{FromID: e.from, ToID: e.to, Type: e.typ, Properties: e.props})
	}
	return p
}

// bfsDistances returns hop distances from start, exploring at most maxDepth hops
func bfsDistances(adj map[string][]edge, start string, maxDepth int) map[string]int {
	dist := map[string]int{start: 0}
	frontier := []string{start}
	for level := 0; level < maxDepth && len(frontier) > 0; level++ {
		var next []string
		for _, id := range frontier {
			for _, e := range adj[id] {
				other := e.other(id)
				if _, seen := dist[other]; seen {
					continue
				}
				dist[other] = level + 1
				next = append(next, other)
			}
		}
		frontier = next
	}
	return dist
}
