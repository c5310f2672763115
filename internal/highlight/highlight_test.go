package highlight

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/joshharrison/wfpath/internal/graph"
)

type recorder struct {
	markers   map[string]bool
	markCalls int
	edgeCalls [][]graph.EdgeKey
}

func newRecorder() *recorder {
	return &recorder{markers: make(map[string]bool)}
}

func (r *recorder) SetInPath(taskID string, inPath bool) {
	r.markers[taskID] = inPath
	r.markCalls++
}

func (r *recorder) HighlightPath(edges []graph.EdgeKey) {
	r.edgeCalls = append(r.edgeCalls, edges)
}

func (r *recorder) lastEdges() []string {
	if len(r.edgeCalls) == 0 {
		return nil
	}
	var out []string
	for _, k := range r.edgeCalls[len(r.edgeCalls)-1] {
		out = append(out, k.String())
	}
	return out
}

// A -> B -> C, A -> D
func workedExample(t *testing.T) (*graph.Graph[string], []string) {
	t.Helper()
	ids := []string{"A", "B", "C", "D"}
	g := graph.New[string]()
	for _, id := range ids {
		g.AddNode(id, id)
	}
	for _, e := range [][2]string{{"A", "B"}, {"B", "C"}, {"A", "D"}} {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g, ids
}

func TestHighlightPath_SelectB(t *testing.T) {
	g, ids := workedExample(t)
	rec := newRecorder()
	c := NewController(g, ids)
	c.Bind(rec)

	active := c.HighlightPath("B")

	assert.Equal(t, []string{"A", "C"}, graph.OrderedNodes(g, active))
	assert.Equal(t, map[string]bool{"A": true, "B": false, "C": true, "D": false}, rec.markers)
	assert.Equal(t, []string{"A->B", "B->C"}, rec.lastEdges())
	assert.Len(t, rec.edgeCalls, 1, "edges are handed over in a single call")
}

func TestHighlightPath_SelectRoot(t *testing.T) {
	g, ids := workedExample(t)
	rec := newRecorder()
	c := NewController(g, ids)
	c.Bind(rec)

	c.HighlightPath("A")

	assert.Equal(t, map[string]bool{"A": false, "B": true, "C": true, "D": true}, rec.markers)
	assert.Equal(t, []string{"A->B", "B->C", "A->D"}, rec.lastEdges())
}

func TestHighlightPath_NoSelectionHighlightsEverything(t *testing.T) {
	g, ids := workedExample(t)
	rec := newRecorder()
	c := NewController(g, ids)
	c.Bind(rec)

	c.HighlightPath("B")
	active := c.HighlightPath("")

	assert.True(t, active.Empty())
	for _, id := range ids {
		assert.True(t, rec.markers[id], "task %s should be in path with no selection", id)
	}
	assert.Empty(t, rec.lastEdges())
}

func TestHighlightPath_UnknownTask(t *testing.T) {
	g, ids := workedExample(t)
	rec := newRecorder()
	c := NewController(g, ids)
	c.Bind(rec)

	active := c.HighlightPath("nope")
	assert.True(t, active.Empty())
	assert.True(t, rec.markers["A"])
}

func TestHighlightPath_IsolatedTask(t *testing.T) {
	g, ids := workedExample(t)
	g.AddNode("E", "E")
	ids = append(ids, "E")
	rec := newRecorder()
	c := NewController(g, ids)
	c.Bind(rec)

	// An isolated task has an empty path, which reads as "no filter".
	c.HighlightPath("E")
	for _, id := range ids {
		assert.True(t, rec.markers[id])
	}
}

func TestHighlightPath_NoSurface(t *testing.T) {
	g, ids := workedExample(t)
	c := NewController(g, ids)

	active := c.HighlightPath("C")
	assert.Equal(t, []string{"A", "B"}, graph.OrderedNodes(g, active))
	assert.Equal(t, active, c.Current())

	rec := newRecorder()
	c.Bind(rec)
	c.Bind(nil)
	c.HighlightPath("C")
	assert.Zero(t, rec.markCalls)
}

func TestHighlightPath_MarksEveryTaskEachCall(t *testing.T) {
	g, ids := workedExample(t)
	rec := newRecorder()
	c := NewController(g, ids)
	c.Bind(rec)

	c.HighlightPath("B")
	c.HighlightPath("D")
	assert.Equal(t, 2*len(ids), rec.markCalls)
	assert.Equal(t, map[string]bool{"A": true, "B": false, "C": false, "D": false}, rec.markers)
}

func TestHighlightPath_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "nodes")
		g := graph.New[string]()
		var ids []string
		for i := 0; i < n; i++ {
			id := fmt.Sprint(i)
			g.AddNode(id, id)
			ids = append(ids, id)
		}
		for _, e := range rapid.SliceOfN(rapid.IntRange(0, n*n-1), 0, 16).Draw(t, "edges") {
			_ = g.AddEdge(fmt.Sprint(e/n), fmt.Sprint(e%n))
		}
		sel := rapid.SampledFrom(append(ids, "")).Draw(t, "selected")

		rec := newRecorder()
		c := NewController(g, ids)
		c.Bind(rec)

		c.HighlightPath(sel)
		firstMarkers := make(map[string]bool)
		for k, v := range rec.markers {
			firstMarkers[k] = v
		}
		firstEdges := rec.lastEdges()

		c.HighlightPath(sel)
		if diff := cmp.Diff(firstMarkers, rec.markers); diff != "" {
			t.Fatalf("markers changed on repeat:\n%s", diff)
		}
		if diff := cmp.Diff(firstEdges, rec.lastEdges()); diff != "" {
			t.Fatalf("edges changed on repeat:\n%s", diff)
		}
	})
}
