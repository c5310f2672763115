package layout

// Result is a layered ordering of a graph. Every edge of the acyclic part
// points from a lower layer to a higher one.
type Result struct {
	Layers    []Layer
	Positions map[string]Position
	TopoOrder []string
	Cyclic    []string // nodes left over by the topological sort, placed in the last layer
}

// Position places a node on the layered grid.
type Position struct {
	Layer int `json:"layer"`
	Row   int `json:"row"`
}

// Layer is a group of nodes with the same longest distance from a root.
type Layer struct {
	Index   int
	TaskIDs []string
}
