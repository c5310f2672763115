package reporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/duke-git/lancet/v2/strutil"

	"github.com/joshharrison/wfpath/internal/feed"
	"github.com/joshharrison/wfpath/internal/graph"
	"github.com/joshharrison/wfpath/internal/highlight"
	"github.com/joshharrison/wfpath/internal/translate"
	"github.com/joshharrison/wfpath/internal/ui"
)

// ErrUnknownTask is returned when a trace is requested for a task that is
// not in the graph.
var ErrUnknownTask = errors.New("unknown task")

// Reporter prints graph summaries and dependency traces.
type Reporter struct {
	Result *translate.Result
}

// New creates a new Reporter.
func New(res *translate.Result) *Reporter {
	return &Reporter{Result: res}
}

// TraceEntry is one task of a trace.
type TraceEntry struct {
	TaskID string     `json:"task_id"`
	Label  string     `json:"label"`
	State  feed.State `json:"state"`
	Layer  int        `json:"layer"`
}

// TraceReport is the full dependency path of one task.
type TraceReport struct {
	Task        TraceEntry      `json:"task"`
	Ancestors   []TraceEntry    `json:"ancestors"`
	Descendants []TraceEntry    `json:"descendants"`
	Edges       []graph.EdgeKey `json:"edges"`
}

// Trace computes the report for taskID. Lists follow graph order.
func (r *Reporter) Trace(taskID string) (TraceReport, error) {
	g := r.Result.Graph
	n, ok := g.Node(taskID)
	if !ok {
		return TraceReport{}, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}

	anc := graph.FindAncestors(g, taskID)
	desc := graph.FindDescendants(g, taskID)

	rep := TraceReport{
		Task:        r.entry(taskID, n.Payload),
		Ancestors:   r.entries(graph.OrderedNodes(g, anc)),
		Descendants: r.entries(graph.OrderedNodes(g, desc)),
		Edges:       []graph.EdgeKey{},
	}
	rep.Edges = append(rep.Edges, graph.OrderedEdges(g, anc.Union(desc))...)
	return rep, nil
}

func (r *Reporter) entry(id string, d translate.NodeData) TraceEntry {
	return TraceEntry{TaskID: id, Label: d.Label, State: d.State, Layer: d.Position.Layer}
}

func (r *Reporter) entries(ids []string) []TraceEntry {
	out := make([]TraceEntry, 0, len(ids))
	for _, id := range ids {
		n, _ := r.Result.Graph.Node(id)
		out = append(out, r.entry(id, n.Payload))
	}
	return out
}

// PrintTrace writes the trace of taskID as a terminal-friendly listing.
func (r *Reporter) PrintTrace(w io.Writer, taskID string) error {
	rep, err := r.Trace(taskID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s %s  %s\n\n",
		ui.BoldCyan("Path of"), ui.TaskPrefix(rep.Task.TaskID),
		ui.Bold(rep.Task.Label), ui.StateLabel(rep.Task.State))

	printSection(w, "Upstream", rep.Ancestors)
	printSection(w, "Downstream", rep.Descendants)

	if len(rep.Edges) > 0 {
		edges := make([]string, len(rep.Edges))
		for i, k := range rep.Edges {
			edges[i] = k.String()
		}
		fmt.Fprintf(w, "%s %s\n", ui.Dim("edges:"), strings.Join(edges, ", "))
	}
	return nil
}

func printSection(w io.Writer, title string, entries []TraceEntry) {
	fmt.Fprintf(w, "  %s (%d)\n", ui.BoldWhite(title), len(entries))
	if len(entries) == 0 {
		fmt.Fprintf(w, "    %s\n", ui.Dim("none"))
	}
	for _, e := range entries {
		label := e.Label
		if utf8.RuneCountInString(label) > 40 {
			label = strutil.Ellipsis(label, 37)
		}
		fmt.Fprintf(w, "    %s %s %-40s %s\n",
			ui.StateIcon(e.State), ui.TaskPrefix(e.TaskID), label,
			ui.Dim(fmt.Sprintf("[layer %d]", e.Layer)))
	}
	fmt.Fprintln(w)
}

// PrintMarkers writes every task with its in-path marker for the active
// path. An empty active set marks every task.
func (r *Reporter) PrintMarkers(w io.Writer, active highlight.Set) {
	for _, n := range r.Result.Graph.Nodes() {
		fmt.Fprintf(w, "  %s %s %s %s\n",
			ui.PathMarker(highlight.InPath(active, n.ID)),
			ui.StateIcon(n.Payload.State), ui.TaskPrefix(n.ID), n.Payload.Label)
	}
}

// PrintSummary writes graph totals and everything the builder dropped.
func (r *Reporter) PrintSummary(w io.Writer) {
	res := r.Result
	layers := 0
	if res.Layout != nil {
		layers = len(res.Layout.Layers)
	}

	fmt.Fprintf(w, "%s %d tasks, %d edges, %d layers\n",
		ui.BoldCyan("Graph:"), res.Graph.NodeCount(), res.Graph.EdgeCount(), layers)

	roots := res.Graph.Roots()
	if len(roots) > 0 {
		fmt.Fprintf(w, "Roots:   %s\n", strings.Join(roots, ", "))
	}
	if len(res.Cycle) > 0 {
		fmt.Fprintf(w, "%s %s\n", ui.BoldYellow("Cycle:"), strings.Join(res.Cycle, " → "))
	}

	if res.Clean() {
		return
	}
	fmt.Fprintf(w, "\n%s\n", ui.BoldRed("Dropped references:"))
	for _, d := range res.Dangling {
		fmt.Fprintf(w, "  %s %s %s %s\n", ui.Red("✗"), ui.BoldMagenta(d.TaskID), ui.Dim(d.Field), d.Ref)
	}
	for _, id := range res.SelfLoops {
		fmt.Fprintf(w, "  %s %s %s\n", ui.Red("✗"), ui.BoldMagenta(id), ui.Dim("references itself"))
	}
	for _, id := range res.Duplicates {
		fmt.Fprintf(w, "  %s %s %s\n", ui.Yellow("!"), ui.BoldMagenta(id), ui.Dim("duplicate id ignored"))
	}
	for _, i := range res.Unnamed {
		fmt.Fprintf(w, "  %s %s %s\n", ui.Yellow("!"), ui.BoldMagenta(fmt.Sprintf("#%d", i)), ui.Dim("task without id ignored"))
	}
}

// JSON returns the machine-readable trace of taskID.
func (r *Reporter) JSON(taskID string) ([]byte, error) {
	rep, err := r.Trace(taskID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(rep, "", "  ")
}
