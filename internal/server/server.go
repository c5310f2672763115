// Package server exposes a task graph view over HTTP and Socket.IO. Every
// connected Socket.IO client acts as one shared rendering surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshharrison/wfpath/internal/drilldown"
	"github.com/joshharrison/wfpath/internal/feed"
	"github.com/joshharrison/wfpath/internal/translate"
	"github.com/joshharrison/wfpath/internal/view"
)

const maxFeedBytes = 16 << 20

// Server owns a view whose surfaces broadcast over Socket.IO.
type Server struct {
	io     *socket.Server
	view   *view.View
	drill  *drilldown.Controller
	logger *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// mu serializes view operations with the broadcast that announces them.
	mu       sync.Mutex
	clientMu sync.Mutex
	clients  map[socket.SocketId]*socket.Socket
	current  atomic.Pointer[socketSurface]
	feed     atomic.Pointer[feed.Feed]
	surfaces atomic.Uint64
}

// Option configures a Server.
type Option func(*Server)

// WithResolver replaces the default drill-down resolver, which answers from
// the executions of the last loaded feed.
func WithResolver(r drilldown.Resolver) Option {
	return func(s *Server) {
		s.drill = drilldown.New(r, drilldown.NavigatorFunc(s.navigate), s.logger)
	}
}

// New creates a Server. Call Close, or let Run return, to release it.
func New(logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		io:      socket.NewServer(nil, nil),
		logger:  logger,
		clients: make(map[socket.SocketId]*socket.Socket),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.drill = drilldown.New(drilldown.ResolverFunc(s.feedSubWorkflows), drilldown.NavigatorFunc(s.navigate), logger)
	for _, opt := range opts {
		opt(s)
	}
	s.view = view.New(s.newSurface, view.WithLogger(logger), view.WithDrillDown(s.drill))

	s.io.On("connection", s.onConnection)
	return s
}

// View returns the view driven by this server.
func (s *Server) View() *view.View {
	return s.view
}

func (s *Server) newSurface(data translate.GraphData) (view.Surface, error) {
	sf := newSocketSurface(s.surfaces.Add(1), data)
	s.current.Store(sf)
	return sf, nil
}

func (s *Server) feedSubWorkflows(ctx context.Context, taskID string) ([]feed.SubWorkflowExecution, error) {
	return drilldown.FeedResolver{Feed: s.feed.Load()}.SubWorkflows(ctx, taskID)
}

func (s *Server) navigate(exec feed.SubWorkflowExecution) {
	s.logger.Info("navigate", zap.String("execution", exec.ID), zap.String("task", exec.TaskExecutionID))
	s.broadcast(EventNavigate, exec)
}

// LoadFeed replaces the task data, rebuilds the graph and broadcasts the
// new surface together with the re-applied path.
func (s *Server) LoadFeed(f *feed.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	s.feed.Store(f)
	if err := s.view.SetTasks(f.Tasks); err != nil {
		return err
	}
	p, ok := s.graph()
	if !ok {
		return nil
	}
	if prev != nil && prev.id != p.Surface {
		p.Replaces = prev.id
	}
	s.broadcast(EventGraph, p)
	return nil
}

// Select applies a selection ("" clears it) and broadcasts the resulting
// frame as one selection event.
func (s *Server) Select(taskID string) (PathPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.TaskSelected(taskID)
	p, ok := s.path()
	if ok {
		s.broadcast(EventSelection, p)
	}
	return p, ok
}

// Graph returns the current surface, its graph and its path.
func (s *Server) Graph() (GraphPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph()
}

// Path returns the current selection frame.
func (s *Server) Path() (PathPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path()
}

// graph must be called with mu held.
func (s *Server) graph() (GraphPayload, bool) {
	snap := s.view.Snapshot()
	if snap.Result == nil {
		return GraphPayload{}, false
	}
	path, _ := s.path()
	return GraphPayload{Surface: path.Surface, GraphData: snap.Result.Data(), Path: &path}, true
}

// path must be called with mu held.
func (s *Server) path() (PathPayload, bool) {
	snap := s.view.Snapshot()
	if snap.Result == nil {
		return PathPayload{}, false
	}
	p := NewPathPayload(snap.Generation, snap.Selected, snap.Result.Graph, snap.Active)
	if sf := s.current.Load(); sf != nil {
		sf.frame(&p)
	}
	return p, true
}

// DrillDown starts a sub-workflow lookup. A single match is broadcast as a
// navigate event, several as a candidates event.
func (s *Server) DrillDown(taskID string) (string, bool) {
	token, done, ok := s.view.DrillDown(s.ctx, taskID)
	if !ok {
		return "", false
	}
	go func() {
		out := <-done
		if out.Stale || out.Err != nil || len(out.Executions) < 2 {
			return
		}
		s.broadcast(EventCandidates, DrillPayload{Token: out.Token, TaskID: out.TaskID, Executions: out.Executions})
	}()
	return token, true
}

func (s *Server) onConnection(clients ...any) {
	client, ok := clients[0].(*socket.Socket)
	if !ok {
		return
	}
	log := s.logger.With(zap.String("client", string(client.Id())))
	log.Debug("client connected")

	s.mu.Lock()
	s.clientMu.Lock()
	s.clients[client.Id()] = client
	s.clientMu.Unlock()
	if p, ok := s.graph(); ok {
		client.Emit(EventGraph, p)
	}
	s.mu.Unlock()

	client.On(EventSelect, func(args ...any) {
		id, _ := firstString(args)
		log.Debug("select", zap.String("task", id))
		s.Select(id)
	})
	client.On(EventClear, func(...any) {
		s.Select("")
	})
	client.On(EventDrill, func(args ...any) {
		if id, ok := firstString(args); ok {
			s.DrillDown(id)
		}
	})
	client.On("disconnect", func(args ...any) {
		s.clientMu.Lock()
		delete(s.clients, client.Id())
		s.clientMu.Unlock()
		log.Debug("client disconnected", zap.Any("reason", args))
	})
}

// broadcast sends one event to every connected client. Each client gets
// its own write: pre-encoded broadcasts batched behind a write in flight
// are dropped by the transport, per-client writes are not.
func (s *Server) broadcast(event string, v any) {
	s.clientMu.Lock()
	clients := make([]*socket.Socket, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientMu.Unlock()

	for _, c := range clients {
		if err := c.Emit(event, v); err != nil {
			s.logger.Debug("emit failed", zap.String("event", event), zap.String("client", string(c.Id())), zap.Error(err))
		}
	}
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

// --- HTTP ---

// Handler returns the HTTP routes, including the Socket.IO endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/graph", s.handleGetGraph)
	mux.HandleFunc("/path", s.handleGetPath)
	mux.HandleFunc("/select", s.handleSelect)
	mux.HandleFunc("/clear", s.handleClear)
	mux.HandleFunc("/drill", s.handleDrill)
	mux.HandleFunc("/candidates", s.handleCandidates)
	mux.Handle("/socket.io/", s.io.ServeHandler(nil))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("wfpath viewer: POST a task feed to /tasks, connect a Socket.IO client to /socket.io/\n"))
	})
	return mux
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFeedBytes))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	f, err := feed.ParseJSON(body)
	if err != nil {
		http.Error(w, "invalid feed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.LoadFeed(f); err != nil {
		s.logger.Error("load feed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p, _ := s.Graph()
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.Graph()
	if !ok {
		http.Error(w, "no graph loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.Path()
	if !ok {
		http.Error(w, "no graph loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	taskID := r.URL.Query().Get("task")
	if taskID == "" {
		http.Error(w, "missing task parameter", http.StatusBadRequest)
		return
	}
	p, ok := s.Select(taskID)
	if !ok {
		http.Error(w, "no graph loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.Select("")
	if !ok {
		http.Error(w, "no graph loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDrill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	taskID := r.URL.Query().Get("task")
	token, ok := s.DrillDown(taskID)
	if !ok {
		http.Error(w, "unknown task", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusAccepted, DrillPayload{Token: token, TaskID: taskID})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cands := s.view.Candidates()
	if cands == nil {
		cands = []feed.SubWorkflowExecution{}
	}
	writeJSON(w, http.StatusOK, cands)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- lifecycle ---

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down and closes
// the server.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("viewer listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close destroys the current surface and disconnects every client.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		if err := s.view.Close(); err != nil {
			s.logger.Warn("close view", zap.Error(err))
		}
		if sf := s.current.Load(); sf != nil {
			s.broadcast(EventDestroy, sf.id)
		}
		s.mu.Unlock()

		s.io.Close(nil)
	})
}
