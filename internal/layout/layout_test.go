package layout

import (
	"testing"

	"github.com/joshharrison/wfpath/internal/graph"
)

func buildTestGraph(t *testing.T, nodes []string, edges [][2]string) *graph.Graph[struct{}] {
	t.Helper()
	g := graph.New[struct{}]()
	for _, id := range nodes {
		g.AddNode(id, struct{}{})
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("add edge %s->%s: %v", e[0], e[1], err)
		}
	}
	return g
}

func TestAssign_LinearChain(t *testing.T) {
	// A -> B -> C
	g := buildTestGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	result := Assign(g)
	if len(result.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(result.Layers))
	}
	for i, id := range []string{"a", "b", "c"} {
		if pos := result.Positions[id]; pos.Layer != i || pos.Row != 0 {
			t.Errorf("expected %s at layer %d row 0, got %+v", id, i, pos)
		}
	}
	if len(result.Cyclic) != 0 {
		t.Errorf("expected no cyclic nodes, got %v", result.Cyclic)
	}
}

func TestAssign_LongestPath(t *testing.T) {
	// A -> B -> C -> D
	// A ---------> D
	// E (isolated)
	g := buildTestGraph(t, []string{"a", "b", "c", "d", "e"}, [][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "d"}, {"a", "d"},
	})

	result := Assign(g)
	if pos := result.Positions["d"]; pos.Layer != 3 {
		t.Errorf("expected d at layer 3 (longest path), got %d", pos.Layer)
	}
	layer0 := result.Layers[0].TaskIDs
	if len(layer0) != 2 || layer0[0] != "a" || layer0[1] != "e" {
		t.Errorf("expected layer 0 = [a e], got %v", layer0)
	}
	if pos := result.Positions["e"]; pos.Row != 1 {
		t.Errorf("expected e at row 1, got %d", pos.Row)
	}
	if len(result.TopoOrder) != 5 {
		t.Errorf("expected all 5 nodes sorted, got %v", result.TopoOrder)
	}
}

func TestAssign_Cycle(t *testing.T) {
	// R -> A -> B -> A, B -> C
	g := buildTestGraph(t, []string{"r", "a", "b", "c"}, [][2]string{
		{"r", "a"}, {"a", "b"}, {"b", "a"}, {"b", "c"},
	})

	result := Assign(g)
	if len(result.Cyclic) != 3 {
		t.Fatalf("expected a, b, c to be unordered, got %v", result.Cyclic)
	}
	if len(result.Layers) != 2 {
		t.Fatalf("expected root layer plus one leftover layer, got %d", len(result.Layers))
	}
	last := result.Layers[1].TaskIDs
	if len(last) != 3 || last[0] != "a" || last[1] != "b" || last[2] != "c" {
		t.Errorf("expected leftover layer [a b c], got %v", last)
	}
	if len(result.Positions) != 4 {
		t.Errorf("expected every node positioned, got %d", len(result.Positions))
	}
}

func TestAssign_Empty(t *testing.T) {
	result := Assign(graph.New[struct{}]())
	if len(result.Layers) != 0 || len(result.Positions) != 0 {
		t.Errorf("expected empty layout, got %+v", result)
	}
}
