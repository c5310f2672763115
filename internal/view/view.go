// Package view owns the lifecycle of a rendered task graph: it rebuilds
// the graph when task data arrives, keeps exactly one rendering surface
// bound to it and routes selections to the highlight controller.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joshharrison/wfpath/internal/drilldown"
	"github.com/joshharrison/wfpath/internal/feed"
	"github.com/joshharrison/wfpath/internal/graph"
	"github.com/joshharrison/wfpath/internal/highlight"
	"github.com/joshharrison/wfpath/internal/translate"
)

var ErrClosed = errors.New("view closed")

// Surface is a rendering surface bound to one graph.
type Surface interface {
	highlight.Surface
	ResetZoom()
	Destroy() error
}

// SurfaceFactory constructs a surface for the given graph snapshot.
type SurfaceFactory func(data translate.GraphData) (Surface, error)

// View serializes rebuilds and selections. All methods are safe for
// concurrent use.
type View struct {
	factory SurfaceFactory
	logger  *zap.Logger
	drill   *drilldown.Controller

	mu         sync.Mutex
	tasks      []feed.TaskRecord
	result     *translate.Result
	controller *highlight.Controller[translate.NodeData]
	surface    Surface
	selected   string
	generation uint64
	closed     bool
}

// Option configures a View.
type Option func(*View)

// WithLogger sets the logger used for build reports and surface errors.
func WithLogger(logger *zap.Logger) Option {
	return func(v *View) { v.logger = logger }
}

// WithDrillDown attaches a drill-down controller. Pending lookups are
// invalidated on every selection change and rebuild.
func WithDrillDown(dc *drilldown.Controller) Option {
	return func(v *View) { v.drill = dc }
}

// New creates a View. A nil factory leaves the view without a surface;
// selections are still computed.
func New(factory SurfaceFactory, opts ...Option) *View {
	v := &View{factory: factory, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetTasks rebuilds the graph from tasks. The previous surface is
// destroyed before the new one is constructed, and the current selection
// is re-applied if the task still exists.
func (v *View) SetTasks(tasks []feed.TaskRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}

	res := translate.Build(tasks)
	v.report(res)

	v.destroySurface()
	if v.drill != nil {
		v.drill.Cancel()
	}

	v.tasks = append([]feed.TaskRecord(nil), tasks...)
	v.result = res
	v.generation++
	v.controller = highlight.NewController(res.Graph, res.Graph.IDs())

	if v.selected != "" && !res.Graph.Has(v.selected) {
		v.logger.Info("selected task no longer present, clearing selection", zap.String("task", v.selected))
		v.selected = ""
	}

	if v.factory != nil {
		surface, err := v.factory(res.Data())
		if err != nil {
			return fmt.Errorf("construct surface: %w", err)
		}
		v.surface = surface
		v.controller.Bind(surface)
	}
	v.controller.HighlightPath(v.selected)

	v.logger.Debug("graph rebuilt",
		zap.Uint64("generation", v.generation),
		zap.Int("nodes", res.Graph.NodeCount()),
		zap.Int("edges", res.Graph.EdgeCount()))
	return nil
}

func (v *View) report(res *translate.Result) {
	for _, d := range res.Dangling {
		v.logger.Warn("dropping dangling reference",
			zap.String("task", d.TaskID), zap.String("ref", d.Ref), zap.String("field", d.Field))
	}
	for _, id := range res.SelfLoops {
		v.logger.Warn("dropping self reference", zap.String("task", id))
	}
	for _, id := range res.Duplicates {
		v.logger.Warn("duplicate task id, keeping first occurrence", zap.String("task", id))
	}
	if len(res.Unnamed) > 0 {
		v.logger.Warn("dropping tasks without id", zap.Ints("positions", res.Unnamed))
	}
	if res.Cycle != nil {
		v.logger.Info("task graph contains a cycle", zap.Strings("cycle", res.Cycle))
	}
}

// destroySurface must be called with mu held.
func (v *View) destroySurface() {
	if v.surface == nil {
		return
	}
	if err := v.surface.Destroy(); err != nil {
		v.logger.Warn("destroy surface", zap.Error(err))
	}
	if v.controller != nil {
		v.controller.Bind(nil)
	}
	v.surface = nil
}

// TaskSelected resets the zoom and highlights the causal path of taskID.
// An empty id clears the selection.
func (v *View) TaskSelected(taskID string) highlight.Set {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.controller == nil {
		v.selected = taskID
		return graph.NewPathSet()
	}

	if v.drill != nil {
		v.drill.Cancel()
	}
	if v.surface != nil {
		v.surface.ResetZoom()
	}
	v.selected = taskID
	return v.controller.HighlightPath(taskID)
}

// HighlightPath re-applies the highlight for taskID without touching the
// zoom or the stored selection.
func (v *View) HighlightPath(taskID string) highlight.Set {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.controller == nil {
		return graph.NewPathSet()
	}
	return v.controller.HighlightPath(taskID)
}

// Clear removes the selection.
func (v *View) Clear() highlight.Set {
	return v.TaskSelected("")
}

// DrillDown starts a sub-workflow lookup for a task of the current graph.
// It returns ok=false when the task is unknown or no drill-down controller
// is attached.
func (v *View) DrillDown(ctx context.Context, taskID string) (token string, done <-chan drilldown.Outcome, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.drill == nil || v.result == nil || !v.result.Graph.Has(taskID) {
		return "", nil, false
	}
	token, done = v.drill.Request(ctx, taskID)
	return token, done, true
}

// Candidates returns the sub-workflows of the last ambiguous drill-down.
func (v *View) Candidates() []feed.SubWorkflowExecution {
	if v.drill == nil {
		return nil
	}
	return v.drill.Candidates()
}

// Snapshot is a consistent copy of the view state.
type Snapshot struct {
	Generation uint64
	Selected   string
	Tasks      []feed.TaskRecord
	Result     *translate.Result
	Active     highlight.Set
}

// Snapshot returns the current state. Result is nil before the first
// SetTasks.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := Snapshot{
		Generation: v.generation,
		Selected:   v.selected,
		Tasks:      append([]feed.TaskRecord(nil), v.tasks...),
		Result:     v.result,
		Active:     graph.NewPathSet(),
	}
	if v.controller != nil {
		s.Active = v.controller.Current()
	}
	return s
}

// Selected returns the current selection.
func (v *View) Selected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// Generation returns the number of rebuilds so far.
func (v *View) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generation
}

// Close destroys the current surface. It is safe to call more than once.
func (v *View) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	if v.drill != nil {
		v.drill.Cancel()
	}
	if v.surface == nil {
		return nil
	}
	err := v.surface.Destroy()
	v.surface = nil
	if v.controller != nil {
		v.controller.Bind(nil)
	}
	if err != nil {
		return fmt.Errorf("destroy surface: %w", err)
	}
	return nil
}

// With builds a view over tasks, runs fn and closes the view on every
// exit path, including a panic in fn.
func With(factory SurfaceFactory, tasks []feed.TaskRecord, fn func(*View) error, opts ...Option) (err error) {
	v := New(factory, opts...)
	defer func() {
		if cerr := v.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := v.SetTasks(tasks); err != nil {
		return err
	}
	return fn(v)
}
