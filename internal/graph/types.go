package graph

// Node is a vertex of the graph. Payload is opaque to the graph and to the
// traversal functions.
type Node[P any] struct {
	ID      string
	Payload P
}

// Edge is a directed dependency: Source must run before Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Key returns the composite key of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{From: e.Source, To: e.Target}
}

// EdgeKey identifies an edge by its ordered endpoints.
type EdgeKey struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// String renders the key for display. Ids may themselves contain "->", so
// anything that has to be parsed back carries From and To separately.
func (k EdgeKey) String() string {
	return k.From + "->" + k.To
}

// Graph is a directed graph of task nodes. Node and edge order is the order
// of insertion. Successor and predecessor lists are maintained on every
// AddEdge so traversal never has to derive them.
type Graph[P any] struct {
	nodes map[string]*Node[P]
	order []string
	edges []Edge
	index map[EdgeKey]int
	succ  map[string][]string // node -> nodes that depend on it
	pred  map[string][]string // node -> nodes it depends on
}
