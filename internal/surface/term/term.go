// Package term is a rendering surface that draws the task graph on a
// terminal.
package term

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/joshharrison/wfpath/internal/graph"
	"github.com/joshharrison/wfpath/internal/translate"
	"github.com/joshharrison/wfpath/internal/ui"
)

// Surface keeps the marker and edge state pushed by the highlight
// controller and renders it on demand.
type Surface struct {
	mu        sync.Mutex
	data      translate.GraphData
	inPath    map[string]bool
	edges     map[graph.EdgeKey]bool // nil means no restriction
	zoomReset int
	destroyed bool
}

// New creates a surface for data. Every task starts in path.
func New(data translate.GraphData) *Surface {
	s := &Surface{data: data, inPath: make(map[string]bool, len(data.Nodes))}
	for _, n := range data.Nodes {
		s.inPath[n.ID] = true
	}
	return s
}

func (s *Surface) SetInPath(taskID string, inPath bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inPath[taskID] = inPath
}

func (s *Surface) HighlightPath(edges []graph.EdgeKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(edges) == 0 {
		s.edges = nil
		return
	}
	s.edges = make(map[graph.EdgeKey]bool, len(edges))
	for _, k := range edges {
		s.edges[k] = true
	}
}

// ResetZoom has no viewport to reset on a terminal; it is counted so
// callers can observe it.
func (s *Surface) ResetZoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoomReset++
}

func (s *Surface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return fmt.Errorf("surface already destroyed")
	}
	s.destroyed = true
	return nil
}

// InPath reports the marker of taskID.
func (s *Surface) InPath(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inPath[taskID]
}

// EdgeInPath reports whether the edge is highlighted.
func (s *Surface) EdgeInPath(key graph.EdgeKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges == nil || s.edges[key]
}

// ZoomResets returns how many times ResetZoom was called.
func (s *Surface) ZoomResets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoomReset
}

// Destroyed reports whether Destroy was called.
func (s *Surface) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Render prints the graph layer by layer. Tasks and edges outside the
// active path are dimmed.
func (s *Surface) Render(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(w, "🔗 %s\n", ui.BoldCyan("Task Execution Graph"))
	fmt.Fprintln(w, ui.Cyan("════════════════════"))
	fmt.Fprintln(w)

	out := make(map[string][]string)
	for _, e := range s.data.Edges {
		out[e.Source] = append(out[e.Source], e.Target)
	}

	for li, layer := range s.layers() {
		fmt.Fprintf(w, "%s Layer %d %s\n", ui.Cyan("──"), li+1, ui.Cyan("──────────────────────────────"))
		for _, n := range layer {
			name := n.Label
			if !s.inPath[n.ID] {
				name = ui.Dim(name)
			}
			fmt.Fprintf(w, "  %s %s %s %s\n", ui.PathMarker(s.inPath[n.ID]), ui.StateIcon(n.State), ui.TaskPrefix(n.ID), name)

			for _, target := range out[n.ID] {
				key := graph.EdgeKey{From: n.ID, To: target}
				if s.edges == nil || s.edges[key] {
					fmt.Fprintf(w, "      %s %s\n", ui.Yellow("└──→"), ui.Magenta(target))
				} else {
					fmt.Fprintf(w, "      %s %s\n", ui.Dim("└──→"), ui.Dim(target))
				}
			}
		}
		fmt.Fprintln(w)
	}
}

func (s *Surface) layers() [][]translate.DataNode {
	var layers [][]translate.DataNode
	for _, n := range s.data.Nodes {
		for len(layers) <= n.Position.Layer {
			layers = append(layers, nil)
		}
		layers[n.Position.Layer] = append(layers[n.Position.Layer], n)
	}
	return layers
}

// RenderDOT writes the graph in Graphviz DOT format with the active path in
// red. Without a restriction nothing is emphasised.
func (s *Surface) RenderDOT(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(w, "digraph wfpath {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=rounded];")
	fmt.Fprintln(w)

	filtered := s.edges != nil
	for _, n := range s.data.Nodes {
		lines := []string{n.ID, string(n.State)}
		if n.Label != n.ID {
			lines = []string{n.ID, n.Label, string(n.State)}
		}
		attrs := "label=" + dotQuote(lines...)
		if filtered && s.inPath[n.ID] {
			attrs += `, style="rounded,bold", color=red`
		} else if filtered {
			attrs += `, color=gray`
		}
		fmt.Fprintf(w, "  %s [%s];\n", dotQuote(n.ID), attrs)
	}

	fmt.Fprintln(w)

	for _, e := range s.data.Edges {
		style := ""
		if filtered && s.edges[graph.EdgeKey{From: e.Source, To: e.Target}] {
			style = ` [color=red, penwidth=2]`
		} else if filtered {
			style = ` [color=gray]`
		}
		fmt.Fprintf(w, "  %s -> %s%s;\n", dotQuote(e.Source), dotQuote(e.Target), style)
	}

	fmt.Fprintln(w, "}")
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")

// dotQuote renders parts as one DOT double-quoted string, one line per part.
func dotQuote(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = dotEscaper.Replace(p)
	}
	return `"` + strings.Join(escaped, `\n`) + `"`
}
