package graph

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrSelfLoop      = errors.New("self-loop")
	ErrDuplicateEdge = errors.New("duplicate edge")
)

// New returns an empty graph.
func New[P any]() *Graph[P] {
	return &Graph[P]{
		nodes: make(map[string]*Node[P]),
		index: make(map[EdgeKey]int),
		succ:  make(map[string][]string),
		pred:  make(map[string][]string),
	}
}

// AddNode inserts a node. It returns false, leaving the graph unchanged, if
// the id is already present.
func (g *Graph[P]) AddNode(id string, payload P) bool {
	if _, ok := g.nodes[id]; ok {
		return false
	}
	g.nodes[id] = &Node[P]{ID: id, Payload: payload}
	g.order = append(g.order, id)
	return true
}

// AddEdge inserts the edge source -> target. Both endpoints must exist.
func (g *Graph[P]) AddEdge(source, target string) error {
	if source == target {
		return fmt.Errorf("%w: %s", ErrSelfLoop, source)
	}
	if _, ok := g.nodes[source]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, source)
	}
	if _, ok := g.nodes[target]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, target)
	}
	key := EdgeKey{From: source, To: target}
	if _, ok := g.index[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, key)
	}
	g.index[key] = len(g.edges)
	g.edges = append(g.edges, Edge{Source: source, Target: target})
	g.succ[source] = append(g.succ[source], target)
	g.pred[target] = append(g.pred[target], source)
	return nil
}

// Node returns the node with the given id.
func (g *Graph[P]) Node(id string) (*Node[P], bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Has reports whether id is a node of the graph.
func (g *Graph[P]) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// HasEdge reports whether the edge identified by key exists.
func (g *Graph[P]) HasEdge(key EdgeKey) bool {
	_, ok := g.index[key]
	return ok
}

// EdgeIndex returns the insertion position of the edge identified by key.
func (g *Graph[P]) EdgeIndex(key EdgeKey) (int, bool) {
	i, ok := g.index[key]
	return i, ok
}

// IDs returns the node ids in insertion order.
func (g *Graph[P]) IDs() []string {
	return append([]string(nil), g.order...)
}

// Nodes returns the nodes in insertion order.
func (g *Graph[P]) Nodes() []*Node[P] {
	out := make([]*Node[P], 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns the edges in insertion order.
func (g *Graph[P]) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Successors returns the ids that directly depend on id.
func (g *Graph[P]) Successors(id string) []string {
	return append([]string(nil), g.succ[id]...)
}

// Predecessors returns the ids id directly depends on.
func (g *Graph[P]) Predecessors(id string) []string {
	return append([]string(nil), g.pred[id]...)
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph[P]) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph[P]) EdgeCount() int {
	return len(g.edges)
}

// Roots returns nodes without predecessors, in insertion order.
func (g *Graph[P]) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.pred[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes without successors, in insertion order.
func (g *Graph[P]) Leaves() []string {
	var leaves []string
	for _, id := range g.order {
		if len(g.succ[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
// The returned path starts and ends on the same node.
func (g *Graph[P]) DetectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, next := range g.succ[node] {
			if color[next] == gray {
				cycle := []string{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, id := range g.order {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
