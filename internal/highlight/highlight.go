// Package highlight marks the causal path of a selected task on a
// rendering surface.
package highlight

import "github.com/joshharrison/wfpath/internal/graph"

// Set is the active highlight: the union of a task's ancestors and
// descendants. An empty Nodes set means there is no active filter and
// every task is shown as part of the path.
type Set = graph.PathSet

// Marker toggles the in-path state of a single task.
type Marker interface {
	SetInPath(taskID string, inPath bool)
}

// EdgeHighlighter restricts edge highlighting to the given edges. An empty
// slice removes the restriction.
type EdgeHighlighter interface {
	HighlightPath(edges []graph.EdgeKey)
}

// Surface is what the controller draws on.
type Surface interface {
	Marker
	EdgeHighlighter
}

// Compute returns the highlight set for taskID. An empty or unknown id
// yields an empty set.
func Compute[P any](g *graph.Graph[P], taskID string) Set {
	if taskID == "" || !g.Has(taskID) {
		return graph.NewPathSet()
	}
	return graph.FindAncestors(g, taskID).Union(graph.FindDescendants(g, taskID))
}

// InPath reports whether taskID is shown as part of the active path.
func InPath(active Set, taskID string) bool {
	return active.Empty() || active.HasNode(taskID)
}

// Controller applies highlight sets for one graph. It is not safe for
// concurrent use; callers serialize access.
type Controller[P any] struct {
	graph   *graph.Graph[P]
	taskIDs []string
	surface Surface
	current Set
}

// NewController creates a controller for g. taskIDs is the full task list
// whose markers are refreshed on every call.
func NewController[P any](g *graph.Graph[P], taskIDs []string) *Controller[P] {
	return &Controller[P]{
		graph:   g,
		taskIDs: append([]string(nil), taskIDs...),
		current: graph.NewPathSet(),
	}
}

// Bind attaches the surface that receives marker and edge updates. A nil
// surface detaches.
func (c *Controller[P]) Bind(s Surface) {
	c.surface = s
}

// HighlightPath recomputes the active set for taskID ("" clears the
// selection), re-marks every task and hands the active edges to the
// surface in graph edge order. Without a bound surface only the set is
// computed.
func (c *Controller[P]) HighlightPath(taskID string) Set {
	active := Compute(c.graph, taskID)
	c.current = active
	if c.surface == nil {
		return active
	}

	for _, id := range c.taskIDs {
		c.surface.SetInPath(id, InPath(active, id))
	}
	c.surface.HighlightPath(graph.OrderedEdges(c.graph, active))
	return active
}

// Current returns the set applied by the last HighlightPath call.
func (c *Controller[P]) Current() Set {
	return c.current
}
