package graph

import set "github.com/duke-git/lancet/v2/datastructure/set"

// PathSet is the result of a traversal: the nodes reached and the edges
// walked to reach them. The start node is never part of Nodes.
type PathSet struct {
	Nodes set.Set[string]
	Edges set.Set[EdgeKey]
}

// NewPathSet returns an empty PathSet.
func NewPathSet() PathSet {
	return PathSet{Nodes: set.New[string](), Edges: set.New[EdgeKey]()}
}

// Union returns a new PathSet holding the members of both.
func (p PathSet) Union(other PathSet) PathSet {
	return PathSet{
		Nodes: p.Nodes.Union(other.Nodes),
		Edges: p.Edges.Union(other.Edges),
	}
}

// Empty reports whether no node was reached.
func (p PathSet) Empty() bool {
	return len(p.Nodes) == 0
}

// HasNode reports whether id was reached.
func (p PathSet) HasNode(id string) bool {
	return p.Nodes.Contain(id)
}

// HasEdge reports whether the edge was walked.
func (p PathSet) HasEdge(key EdgeKey) bool {
	return p.Edges.Contain(key)
}

// OrderedNodes returns the reached nodes in g's insertion order.
func OrderedNodes[P any](g *Graph[P], p PathSet) []string {
	var out []string
	for _, id := range g.order {
		if p.Nodes.Contain(id) {
			out = append(out, id)
		}
	}
	return out
}

// OrderedEdges returns the walked edges in g's insertion order.
func OrderedEdges[P any](g *Graph[P], p PathSet) []EdgeKey {
	var out []EdgeKey
	for _, e := range g.edges {
		if k := e.Key(); p.Edges.Contain(k) {
			out = append(out, k)
		}
	}
	return out
}

// FindAncestors returns every node id transitively depends on, and the
// edges connecting them. An unknown id yields an empty PathSet.
func FindAncestors[P any](g *Graph[P], id string) PathSet {
	return walk(g, id, g.pred, true)
}

// FindDescendants returns every node that transitively depends on id, and
// the edges connecting them. An unknown id yields an empty PathSet.
func FindDescendants[P any](g *Graph[P], id string) PathSet {
	return walk(g, id, g.succ, false)
}

// walk is a breadth-first search along adj. Every edge leaving a dequeued
// node is recorded, including edges back into already visited nodes. The
// start node is marked visited up front so a cycle never adds it.
func walk[P any](g *Graph[P], start string, adj map[string][]string, backward bool) PathSet {
	ps := NewPathSet()
	if !g.Has(start) {
		return ps
	}

	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range adj[cur] {
			if backward {
				ps.Edges.Add(EdgeKey{From: next, To: cur})
			} else {
				ps.Edges.Add(EdgeKey{From: cur, To: next})
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			ps.Nodes.Add(next)
			queue = append(queue, next)
		}
	}
	return ps
}
