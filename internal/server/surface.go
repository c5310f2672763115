package server

import (
	"sync"

	"github.com/joshharrison/wfpath/internal/graph"
	"github.com/joshharrison/wfpath/internal/translate"
)

// socketSurface collects the calls of one view operation. The server turns
// them into a single event once the operation is done, so a client always
// sees the zoom reset, markers and edges of a selection together.
type socketSurface struct {
	id uint64

	mu        sync.Mutex
	inPath    map[string]bool
	edges     []graph.EdgeKey
	marked    bool
	zoomReset bool
	destroyed bool
}

func newSocketSurface(id uint64, data translate.GraphData) *socketSurface {
	return &socketSurface{id: id, inPath: make(map[string]bool, len(data.Nodes))}
}

func (s *socketSurface) SetInPath(taskID string, inPath bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inPath[taskID] = inPath
}

func (s *socketSurface) HighlightPath(edges []graph.EdgeKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges[:0], edges...)
	s.marked = true
}

func (s *socketSurface) ResetZoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoomReset = true
}

func (s *socketSurface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	return nil
}

// frame copies the surface state into p and consumes a pending zoom reset.
func (s *socketSurface) frame(p *PathPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Surface = s.id
	p.ZoomReset = s.zoomReset
	s.zoomReset = false
	if !s.marked {
		return
	}
	p.InPath = make(map[string]bool, len(s.inPath))
	for id, in := range s.inPath {
		p.InPath[id] = in
	}
	p.Edges = append([]graph.EdgeKey{}, s.edges...)
}
