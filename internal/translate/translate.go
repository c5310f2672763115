// Package translate turns a flat list of task executions into a graph.
package translate

import (
	"errors"

	"github.com/joshharrison/wfpath/internal/feed"
	"github.com/joshharrison/wfpath/internal/graph"
	"github.com/joshharrison/wfpath/internal/layout"
)

// NodeData is the payload carried by every graph node.
type NodeData struct {
	Label    string          `json:"label"`
	State    feed.State      `json:"state"`
	TrackKey string          `json:"track_key"`
	Position layout.Position `json:"position"`
}

// DanglingRef is a dependency reference to a task missing from the list.
type DanglingRef struct {
	TaskID string
	Ref    string
	Field  string // "requires" or "required_by"
}

// Result is a built graph together with what the builder had to drop.
type Result struct {
	Graph      *graph.Graph[NodeData]
	Layout     *layout.Result
	Dangling   []DanglingRef
	SelfLoops  []string
	Duplicates []string
	Cycle      []string
	// Unnamed holds the input positions of tasks that had no id.
	Unnamed []int
}

// Build creates the task graph. Both Requires (predecessor) and RequiredBy
// (successor) references are turned into edges, so either side alone is
// enough. Unresolvable references, self references and repeated task ids
// are dropped and reported, as are tasks without an id. Node and edge order
// follow the input.
func Build(tasks []feed.TaskRecord) *Result {
	g := graph.New[NodeData]()
	r := &Result{Graph: g}

	first := make([]bool, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			r.Unnamed = append(r.Unnamed, i)
			continue
		}
		if !g.AddNode(t.ID, NodeData{Label: t.Label(), State: t.State, TrackKey: t.TrackKey()}) {
			r.Duplicates = append(r.Duplicates, t.ID)
			continue
		}
		first[i] = true
	}

	for i, t := range tasks {
		if !first[i] {
			continue
		}
		for _, ref := range t.Requires {
			r.addEdge(ref, t.ID, DanglingRef{TaskID: t.ID, Ref: ref, Field: "requires"})
		}
		for _, ref := range t.RequiredBy {
			r.addEdge(t.ID, ref, DanglingRef{TaskID: t.ID, Ref: ref, Field: "required_by"})
		}
	}

	r.Layout = layout.Assign(g)
	for _, n := range g.Nodes() {
		n.Payload.Position = r.Layout.Positions[n.ID]
	}
	r.Cycle = g.DetectCycle()
	return r
}

func (r *Result) addEdge(source, target string, ref DanglingRef) {
	err := r.Graph.AddEdge(source, target)
	switch {
	case err == nil, errors.Is(err, graph.ErrDuplicateEdge):
	case errors.Is(err, graph.ErrSelfLoop):
		r.SelfLoops = append(r.SelfLoops, ref.TaskID)
	case errors.Is(err, graph.ErrUnknownNode):
		r.Dangling = append(r.Dangling, ref)
	}
}

// GraphData is the snapshot handed to a rendering surface when it is
// constructed.
type GraphData struct {
	Nodes []DataNode `json:"nodes"`
	Edges []DataEdge `json:"edges"`
}

// DataNode is a node of GraphData.
type DataNode struct {
	ID string `json:"id"`
	NodeData
}

// DataEdge is an edge of GraphData.
type DataEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Data returns the graph as ordered nodes and edges.
func (r *Result) Data() GraphData {
	data := GraphData{
		Nodes: make([]DataNode, 0, r.Graph.NodeCount()),
		Edges: make([]DataEdge, 0, r.Graph.EdgeCount()),
	}
	for _, n := range r.Graph.Nodes() {
		data.Nodes = append(data.Nodes, DataNode{ID: n.ID, NodeData: n.Payload})
	}
	for _, e := range r.Graph.Edges() {
		data.Edges = append(data.Edges, DataEdge{Source: e.Source, Target: e.Target})
	}
	return data
}

// Clean reports whether nothing was dropped while building.
func (r *Result) Clean() bool {
	return len(r.Dangling) == 0 && len(r.SelfLoops) == 0 && len(r.Duplicates) == 0 && len(r.Unnamed) == 0
}
