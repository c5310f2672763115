package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/wfpath/internal/feed"
	"github.com/joshharrison/wfpath/internal/graph"
	"github.com/joshharrison/wfpath/internal/translate"
)

const testFeed = `{
	"tasks": [
		{"id": "A", "name": "extract", "state": "SUCCESS"},
		{"id": "B", "state": "RUNNING", "runtime_context": {"triggered_by": [{"task_id": "A"}]}},
		{"id": "C", "state": "IDLE", "requires": ["B"]},
		{"id": "D", "state": "ERROR", "requires": ["A", "ghost"]}
	],
	"executions": [
		{"id": "wf-b", "task_execution_id": "B"},
		{"id": "wf-d1", "task_execution_id": "D"},
		{"id": "wf-d2", "task_execution_id": "D"}
	]
}`

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_NoGraphLoaded(t *testing.T) {
	_, ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, get(t, ts.URL+"/graph").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, ts.URL+"/path").StatusCode)
	assert.Equal(t, http.StatusNotFound, post(t, ts.URL+"/select?task=A", "").StatusCode)
}

func TestServer_PostTasks(t *testing.T) {
	s, ts := newTestServer(t)

	resp := post(t, ts.URL+"/tasks", testFeed)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	g := decode[GraphPayload](t, resp)

	assert.Equal(t, uint64(1), g.Surface)
	require.Len(t, g.Nodes, 4)
	assert.Equal(t, "extract", g.Nodes[0].Label)
	assert.Equal(t, []translate.DataEdge{
		{Source: "A", Target: "B"},
		{Source: "B", Target: "C"},
		{Source: "A", Target: "D"},
	}, g.Edges)
	require.NotNil(t, g.Path)
	assert.False(t, g.Path.ZoomReset)
	assert.Equal(t, uint64(1), g.Path.Surface)
	assert.Equal(t, uint64(1), s.View().Generation())

	resp = get(t, ts.URL+"/graph")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[GraphPayload](t, resp).Nodes, 4)
}

func TestServer_PostTasksInvalid(t *testing.T) {
	_, ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/tasks", "{nope").StatusCode)

	resp, err := http.Get(ts.URL + "/tasks")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_SelectAndClear(t *testing.T) {
	_, ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, post(t, ts.URL+"/tasks", testFeed).StatusCode)

	resp := post(t, ts.URL+"/select?task=B", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[PathPayload](t, resp)
	assert.Equal(t, "B", p.Selected)
	assert.Equal(t, []string{"A", "C"}, p.Nodes)
	assert.Equal(t, []graph.EdgeKey{{From: "A", To: "B"}, {From: "B", To: "C"}}, p.Edges)
	assert.Equal(t, map[string]bool{"A": true, "B": false, "C": true, "D": false}, p.InPath)
	assert.True(t, p.ZoomReset)

	p = decode[PathPayload](t, get(t, ts.URL+"/path"))
	assert.Equal(t, "B", p.Selected)
	assert.False(t, p.ZoomReset, "a zoom reset is reported once, with its selection")

	p = decode[PathPayload](t, post(t, ts.URL+"/clear", ""))
	assert.Empty(t, p.Selected)
	assert.Empty(t, p.Nodes)
	for id, in := range p.InPath {
		assert.True(t, in, "task %s should be in path after clear", id)
	}

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/select", "").StatusCode)
}

func TestServer_SelectUnknownTask(t *testing.T) {
	_, ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, post(t, ts.URL+"/tasks", testFeed).StatusCode)

	resp := post(t, ts.URL+"/select?task=Z", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[PathPayload](t, resp)
	assert.Empty(t, p.Nodes)
	assert.True(t, p.InPath["A"])
}

func TestServer_SelectionSurvivesReload(t *testing.T) {
	s, ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, post(t, ts.URL+"/tasks", testFeed).StatusCode)
	post(t, ts.URL+"/select?task=C", "")

	reloaded := strings.Replace(testFeed, `"state": "IDLE"`, `"state": "RUNNING"`, 1)
	resp := post(t, ts.URL+"/tasks", reloaded)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	g := decode[GraphPayload](t, resp)
	assert.Equal(t, uint64(2), g.Surface)
	require.NotNil(t, g.Path)
	assert.Equal(t, "C", g.Path.Selected)

	p := decode[PathPayload](t, get(t, ts.URL+"/path"))
	assert.Equal(t, "C", p.Selected)
	assert.Equal(t, []string{"A", "B"}, p.Nodes)
	assert.Equal(t, uint64(2), p.Generation)
	assert.Equal(t, "C", s.View().Selected())
}

func TestServer_DrillDown(t *testing.T) {
	s, ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, post(t, ts.URL+"/tasks", testFeed).StatusCode)

	assert.Equal(t, http.StatusNotFound, post(t, ts.URL+"/drill?task=nope", "").StatusCode)

	resp := post(t, ts.URL+"/drill?task=D", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	d := decode[DrillPayload](t, resp)
	assert.NotEmpty(t, d.Token)

	require.Eventually(t, func() bool {
		return len(s.View().Candidates()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cands := decode[[]feed.SubWorkflowExecution](t, get(t, ts.URL+"/candidates"))
	require.Len(t, cands, 2)
	assert.Equal(t, "wf-d1", cands[0].ID)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s := New(nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ArrowInTaskIDs(t *testing.T) {
	_, ts := newTestServer(t)
	body := `[
		{"id": "x"},
		{"id": "y->z", "requires": ["x"]},
		{"id": "x->y"},
		{"id": "z", "requires": ["x->y"]}
	]`
	require.Equal(t, http.StatusCreated, post(t, ts.URL+"/tasks", body).StatusCode)

	p := decode[PathPayload](t, post(t, ts.URL+"/select?task=y-%3Ez", ""))
	assert.Equal(t, []graph.EdgeKey{{From: "x", To: "y->z"}}, p.Edges)

	p = decode[PathPayload](t, post(t, ts.URL+"/select?task=z", ""))
	assert.Equal(t, []graph.EdgeKey{{From: "x->y", To: "z"}}, p.Edges)
}

func TestSocketSurface_Frame(t *testing.T) {
	sf := newSocketSurface(7, translate.GraphData{})
	sf.ResetZoom()
	sf.SetInPath("a", true)
	sf.SetInPath("b", false)
	sf.HighlightPath([]graph.EdgeKey{{From: "a", To: "c"}})

	var p PathPayload
	sf.frame(&p)
	assert.Equal(t, uint64(7), p.Surface)
	assert.True(t, p.ZoomReset)
	assert.Equal(t, map[string]bool{"a": true, "b": false}, p.InPath)
	assert.Equal(t, []graph.EdgeKey{{From: "a", To: "c"}}, p.Edges)

	var again PathPayload
	sf.frame(&again)
	assert.False(t, again.ZoomReset, "zoom reset is consumed by the first frame")

	require.NoError(t, sf.Destroy())
	assert.True(t, sf.destroyed)
}
