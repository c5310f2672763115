package feed

// State is the execution status of a task as reported by the workflow engine.
// Values outside the known set are carried through unchanged.
type State string

const (
	StateIdle           State = "IDLE"
	StateWaiting        State = "WAITING"
	StateRunning        State = "RUNNING"
	StateRunningDelayed State = "RUNNING_DELAYED"
	StateSuccess        State = "SUCCESS"
	StateError          State = "ERROR"
	StateCancelled      State = "CANCELLED"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateError, StateCancelled:
		return true
	}
	return false
}

// TaskRecord is one task execution inside a workflow execution.
type TaskRecord struct {
	ID                  string            `json:"id" yaml:"id"`
	Name                string            `json:"name,omitempty" yaml:"name,omitempty"`
	State               State             `json:"state" yaml:"state"`
	WorkflowExecutionID string            `json:"workflow_execution_id,omitempty" yaml:"workflow_execution_id,omitempty"`
	Requires            []string          `json:"requires,omitempty" yaml:"requires,omitempty"`       // predecessors: tasks that triggered this one
	RequiredBy          []string          `json:"required_by,omitempty" yaml:"required_by,omitempty"` // successors
	Attributes          map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// TrackKey is the render identity of the task. It changes whenever the
// task's state changes, so surfaces know to redraw the node.
func (t TaskRecord) TrackKey() string {
	return t.ID + "_" + string(t.State)
}

// Label returns the display name, falling back to the id.
func (t TaskRecord) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// SubWorkflowExecution is a workflow execution spawned by a task execution.
type SubWorkflowExecution struct {
	ID              string `json:"id" yaml:"id"`
	TaskExecutionID string `json:"task_execution_id" yaml:"task_execution_id"`
	WorkflowName    string `json:"workflow_name,omitempty" yaml:"workflow_name,omitempty"`
	State           State  `json:"state,omitempty" yaml:"state,omitempty"`
}

// Feed is a snapshot of one workflow execution: its tasks and any
// sub-workflow executions they spawned.
type Feed struct {
	Tasks      []TaskRecord           `json:"tasks" yaml:"tasks"`
	Executions []SubWorkflowExecution `json:"executions,omitempty" yaml:"executions,omitempty"`
}

// Task returns the first task with the given id.
func (f *Feed) Task(id string) (TaskRecord, bool) {
	for _, t := range f.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskRecord{}, false
}

// SubWorkflows returns the executions spawned by taskID, in feed order.
func (f *Feed) SubWorkflows(taskID string) []SubWorkflowExecution {
	var out []SubWorkflowExecution
	for _, e := range f.Executions {
		if e.TaskExecutionID == taskID {
			out = append(out, e)
		}
	}
	return out
}
