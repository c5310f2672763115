package server

import (
	"github.com/joshharrison/wfpath/internal/feed"
	"github.com/joshharrison/wfpath/internal/graph"
	"github.com/joshharrison/wfpath/internal/highlight"
	"github.com/joshharrison/wfpath/internal/translate"
)

// Socket.IO event names. Every view operation is announced with exactly
// one event, so clients never have to reassemble a frame from several.
const (
	EventGraph      = "graph"         // server -> client: GraphPayload, a new surface replacing the previous one
	EventDestroy    = "graph:destroy" // server -> client: surface id, sent when the server shuts down
	EventSelection  = "selection"     // server -> client: PathPayload after select or clear
	EventNavigate   = "navigate"      // server -> client: feed.SubWorkflowExecution
	EventCandidates = "candidates"    // server -> client: DrillPayload with several executions

	EventSelect = "select" // client -> server: task id
	EventClear  = "clear"  // client -> server
	EventDrill  = "drill"  // client -> server: task id
)

// GraphPayload announces a new surface, the graph bound to it and the
// path currently highlighted on it.
type GraphPayload struct {
	Surface  uint64 `json:"surface"`
	Replaces uint64 `json:"replaces,omitempty"` // surface destroyed by this rebuild
	translate.GraphData
	Path *PathPayload `json:"path,omitempty"`
}

// PathPayload is one complete highlight frame. Clients apply the fields in
// order: reset the zoom if asked, set the task markers, restrict the edges,
// then show the selection.
type PathPayload struct {
	Surface    uint64          `json:"surface"`
	ZoomReset  bool            `json:"zoom_reset"`
	InPath     map[string]bool `json:"in_path"`
	Edges      []graph.EdgeKey `json:"edges"` // empty means every edge
	Generation uint64          `json:"generation"`
	Selected   string          `json:"selected"`
	Nodes      []string        `json:"nodes"`
}

// DrillPayload answers a drill-down request.
type DrillPayload struct {
	Token      string                      `json:"token"`
	TaskID     string                      `json:"task_id"`
	Executions []feed.SubWorkflowExecution `json:"executions,omitempty"`
	Navigated  bool                        `json:"navigated"`
}

// NewPathPayload describes active over g. Nodes and edges follow graph
// order.
func NewPathPayload(generation uint64, selected string, g *graph.Graph[translate.NodeData], active highlight.Set) PathPayload {
	p := PathPayload{
		Generation: generation,
		Selected:   selected,
		Nodes:      []string{},
		Edges:      []graph.EdgeKey{},
		InPath:     make(map[string]bool, g.NodeCount()),
	}
	p.Nodes = append(p.Nodes, graph.OrderedNodes(g, active)...)
	p.Edges = append(p.Edges, graph.OrderedEdges(g, active)...)
	for _, id := range g.IDs() {
		p.InPath[id] = highlight.InPath(active, id)
	}
	return p
}
