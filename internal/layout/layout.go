package layout

import "github.com/joshharrison/wfpath/internal/graph"

// Assign computes a layer and row for every node of g. A node's layer is
// the length of the longest path reaching it from a root. Nodes on or
// behind a cycle cannot be ordered and share one extra layer after the
// others.
func Assign[P any](g *graph.Graph[P]) *Result {
	order := topoSort(g)

	depth := make(map[string]int, len(order))
	maxDepth := -1
	for _, id := range order {
		d := 0
		for _, pred := range g.Predecessors(id) {
			if pd, ok := depth[pred]; ok && pd+1 > d {
				d = pd + 1
			}
		}
		depth[id] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	result := &Result{
		Positions: make(map[string]Position, g.NodeCount()),
		TopoOrder: order,
	}
	for _, id := range g.IDs() {
		if _, ok := depth[id]; !ok {
			result.Cyclic = append(result.Cyclic, id)
			depth[id] = maxDepth + 1
		}
	}

	// Group by depth, keeping insertion order within a layer.
	layerCount := maxDepth + 1
	if len(result.Cyclic) > 0 {
		layerCount++
	}
	result.Layers = make([]Layer, layerCount)
	for i := range result.Layers {
		result.Layers[i].Index = i
	}
	for _, id := range g.IDs() {
		d := depth[id]
		result.Positions[id] = Position{Layer: d, Row: len(result.Layers[d].TaskIDs)}
		result.Layers[d].TaskIDs = append(result.Layers[d].TaskIDs, id)
	}
	return result
}

// topoSort performs Kahn's algorithm. Unlike a strict sort it does not fail
// on a cycle: the nodes it could not order are simply absent from the result.
func topoSort[P any](g *graph.Graph[P]) []string {
	inDegree := make(map[string]int, g.NodeCount())
	var queue []string
	for _, id := range g.IDs() {
		inDegree[id] = len(g.Predecessors(id))
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, succ := range g.Successors(node) {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	return order
}
