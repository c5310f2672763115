package feed

import (
	"errors"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/tidwall/gjson"
)

var (
	ErrInvalidJSON = errors.New("invalid JSON task feed")
	ErrNoTaskList  = errors.New("task feed has no task list")
)

// ParseJSON reads a task feed. It accepts a bare array of task executions
// or an object holding "tasks" and an optional "executions" array. Field
// names are matched in snake_case or in the capitalised column form printed
// by workflow engine CLIs ("ID", "State", ...).
//
// Dependencies are read from "requires"/"required_by" and from
// runtime_context.triggered_by, which may hold plain ids or objects with a
// task_id (the runtime context itself may arrive JSON-encoded as a string).
func ParseJSON(data []byte) (*Feed, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)

	tasks := root
	var execs gjson.Result
	if root.IsObject() {
		tasks = root.Get("tasks")
		execs = root.Get("executions")
	}
	if !tasks.IsArray() {
		return nil, ErrNoTaskList
	}

	f := &Feed{}
	tasks.ForEach(func(_, item gjson.Result) bool {
		f.Tasks = append(f.Tasks, parseTask(item))
		return true
	})
	execs.ForEach(func(_, item gjson.Result) bool {
		f.Executions = append(f.Executions, SubWorkflowExecution{
			ID:              field(item, "id", "ID").String(),
			TaskExecutionID: field(item, "task_execution_id", "Task Execution ID").String(),
			WorkflowName:    field(item, "workflow_name", "Workflow name").String(),
			State:           State(field(item, "state", "State").String()),
		})
		return true
	})
	return f, nil
}

func parseTask(item gjson.Result) TaskRecord {
	t := TaskRecord{
		ID:                  field(item, "id", "ID").String(),
		Name:                field(item, "name", "Name").String(),
		State:               State(field(item, "state", "State").String()),
		WorkflowExecutionID: field(item, "workflow_execution_id", "Workflow Execution ID").String(),
	}

	requires := refs(item.Get("requires"))
	rc := item.Get("runtime_context")
	if rc.Type == gjson.String {
		rc = gjson.Parse(rc.String())
	}
	requires = append(requires, refs(rc.Get("triggered_by"))...)
	t.Requires = dedupe(requires)
	t.RequiredBy = dedupe(refs(item.Get("required_by")))

	if attrs := item.Get("attributes"); attrs.IsObject() {
		t.Attributes = make(map[string]string)
		attrs.ForEach(func(k, v gjson.Result) bool {
			t.Attributes[k.String()] = v.String()
			return true
		})
	}
	return t
}

// field returns the first of the given keys present on item.
func field(item gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := item.Get(gjson.Escape(k)); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// refs reads ["a", "b"] or [{"task_id": "a", "event": "on-success"}].
func refs(r gjson.Result) []string {
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		id := v.String()
		if v.IsObject() {
			id = v.Get("task_id").String()
			if id == "" {
				id = v.Get("id").String()
			}
		}
		if id != "" {
			out = append(out, id)
		}
		return true
	})
	return out
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return slice.Unique(ids)
}
