package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/wfpath/internal/graph"
)

func TestDecodePath(t *testing.T) {
	// Socket.IO hands listeners generic JSON values.
	arg := map[string]any{
		"generation": float64(3),
		"selected":   "B",
		"nodes":      []any{"A", "C"},
		"zoom_reset": true,
		"edges": []any{
			map[string]any{"from": "A", "to": "B"},
			map[string]any{"from": "B", "to": "C"},
		},
		"in_path": map[string]any{"A": true, "B": false, "C": true},
	}

	p, err := DecodePath(arg)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), p.Generation)
	assert.Equal(t, "B", p.Selected)
	assert.Equal(t, []string{"A", "C"}, p.Nodes)
	assert.True(t, p.ZoomReset)
	assert.Equal(t, []graph.EdgeKey{{From: "A", To: "B"}, {From: "B", To: "C"}}, p.Edges)
	assert.False(t, p.InPath["B"])
}

func TestDecodePath_Invalid(t *testing.T) {
	_, err := DecodePath(map[string]any{"nodes": "not a list"})
	assert.Error(t, err)

	_, err = DecodePath(func() {})
	assert.Error(t, err)
}

func TestSelect_BadURL(t *testing.T) {
	c := New("localhost-without-scheme", nil)
	_, err := c.Select(context.Background(), "A")
	assert.ErrorContains(t, err, "scheme and host")
}

func TestSelect_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)
	c.Timeout = 500 * time.Millisecond

	start := time.Now()
	_, err := c.Select(context.Background(), "A")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
