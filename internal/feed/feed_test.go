package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_BareArray(t *testing.T) {
	data := []byte(`[
		{"id": "a", "name": "fetch", "state": "SUCCESS"},
		{"id": "b", "name": "parse", "state": "RUNNING", "requires": ["a", "a"]},
		{"id": "c", "state": "IDLE", "required_by": ["d"]}
	]`)

	f, err := ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, f.Tasks, 3)

	assert.Equal(t, "fetch", f.Tasks[0].Name)
	assert.Equal(t, StateSuccess, f.Tasks[0].State)
	assert.Nil(t, f.Tasks[0].Requires)
	assert.Equal(t, []string{"a"}, f.Tasks[1].Requires)
	assert.Equal(t, []string{"d"}, f.Tasks[2].RequiredBy)
	assert.Empty(t, f.Executions)
}

func TestParseJSON_TriggeredBy(t *testing.T) {
	data := []byte(`{
		"tasks": [
			{"id": "t1", "state": "SUCCESS", "runtime_context": {}},
			{"id": "t2", "state": "ERROR",
			 "runtime_context": {"triggered_by": [{"task_id": "t1", "event": "on-success"}]}},
			{"id": "t3", "state": "WAITING",
			 "runtime_context": "{\"triggered_by\": [{\"task_id\": \"t2\", \"event\": \"on-error\"}]}"}
		],
		"executions": [
			{"id": "wf-1", "task_execution_id": "t2", "workflow_name": "child", "state": "RUNNING"}
		]
	}`)

	f, err := ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, f.Tasks, 3)
	assert.Equal(t, []string{"t1"}, f.Tasks[1].Requires)
	assert.Equal(t, []string{"t2"}, f.Tasks[2].Requires)

	require.Len(t, f.Executions, 1)
	assert.Equal(t, SubWorkflowExecution{ID: "wf-1", TaskExecutionID: "t2", WorkflowName: "child", State: StateRunning}, f.Executions[0])
}

func TestParseJSON_CLIColumns(t *testing.T) {
	data := []byte(`[{"ID": "x1", "Name": "task1", "State": "SUCCESS", "Workflow Execution ID": "wf"}]`)

	f, err := ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, f.Tasks, 1)
	assert.Equal(t, "x1", f.Tasks[0].ID)
	assert.Equal(t, "task1", f.Tasks[0].Name)
	assert.Equal(t, StateSuccess, f.Tasks[0].State)
	assert.Equal(t, "wf", f.Tasks[0].WorkflowExecutionID)
}

func TestParseJSON_Errors(t *testing.T) {
	_, err := ParseJSON([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = ParseJSON([]byte(`{"items": []}`))
	assert.ErrorIs(t, err, ErrNoTaskList)
}

func TestParseHCL(t *testing.T) {
	src := []byte(`
task "load" {
  name  = "Load input"
  state = "SUCCESS"
}

task "transform" {
  state    = "RUNNING"
  requires = ["load"]
  attributes {
    retries = 2
    owner   = "etl"
  }
}

execution "wf-42" {
  task     = "transform"
  workflow = "nightly_transform"
}
`)

	f, err := ParseHCL("feed.hcl", src)
	require.NoError(t, err)
	require.Len(t, f.Tasks, 2)

	assert.Equal(t, "load", f.Tasks[0].ID)
	assert.Equal(t, "Load input", f.Tasks[0].Label())
	assert.Equal(t, []string{"load"}, f.Tasks[1].Requires)
	assert.Equal(t, map[string]string{"retries": "2", "owner": "etl"}, f.Tasks[1].Attributes)

	subs := f.SubWorkflows("transform")
	require.Len(t, subs, 1)
	assert.Equal(t, "nightly_transform", subs[0].WorkflowName)
}

func TestParseHCL_Invalid(t *testing.T) {
	_, err := ParseHCL("broken.hcl", []byte(`task "x" {`))
	assert.Error(t, err)

	_, err = ParseHCL("missing.hcl", []byte(`execution "e" {}`))
	assert.Error(t, err, "execution without task attribute must fail")
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "feed.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
tasks:
  - id: a
    state: SUCCESS
  - id: b
    state: IDLE
    requires: [a, a]
executions:
  - id: sub
    task_execution_id: b
`), 0o644))

	f, err := Load(yamlPath)
	require.NoError(t, err)
	require.Len(t, f.Tasks, 2)
	assert.Equal(t, []string{"a"}, f.Tasks[1].Requires)
	assert.Len(t, f.SubWorkflows("b"), 1)

	txtPath := filepath.Join(dir, "feed.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("a"), 0o644))
	_, err = Load(txtPath)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}

func TestTrackKey(t *testing.T) {
	task := TaskRecord{ID: "t1", State: StateRunning}
	assert.Equal(t, "t1_RUNNING", task.TrackKey())

	task.State = StateSuccess
	assert.Equal(t, "t1_SUCCESS", task.TrackKey())
	assert.True(t, task.State.Terminal())
	assert.False(t, StateRunningDelayed.Terminal())
}

func TestCommand_Fetch(t *testing.T) {
	cmd := NewCommand("sh", "-c", `printf '[{"id":"a","state":"SUCCESS"},{"id":"b","requires":["a"]}]'`)

	f, err := cmd.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, f.Tasks, 2)
	assert.Equal(t, []string{"a"}, f.Tasks[1].Requires)
}

func TestCommand_FetchFailure(t *testing.T) {
	cmd := NewCommand("sh", "-c", "echo boom >&2; exit 3")

	_, err := cmd.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNewCommand_DefaultBin(t *testing.T) {
	assert.Equal(t, "mistral", NewCommand("").Bin)
}
