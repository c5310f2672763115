package feed

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// hclFile is the root of an HCL task feed:
//
//	task "load" {
//	  name  = "Load input"
//	  state = "SUCCESS"
//	}
//	task "transform" {
//	  state    = "RUNNING"
//	  requires = ["load"]
//	  attributes {
//	    retries = 2
//	  }
//	}
//	execution "wf-42" {
//	  task     = "transform"
//	  workflow = "nightly_transform"
//	}
type hclFile struct {
	Tasks      []*hclTask      `hcl:"task,block"`
	Executions []*hclExecution `hcl:"execution,block"`
	Remain     hcl.Body        `hcl:",remain"`
}

type hclTask struct {
	ID                string         `hcl:"id,label"`
	Name              string         `hcl:"name,optional"`
	State             string         `hcl:"state,optional"`
	WorkflowExecution string         `hcl:"workflow_execution,optional"`
	Requires          []string       `hcl:"requires,optional"`
	RequiredBy        []string       `hcl:"required_by,optional"`
	Attributes        *hclAttributes `hcl:"attributes,block"`
}

type hclAttributes struct {
	Body hcl.Body `hcl:",remain"`
}

type hclExecution struct {
	ID       string `hcl:"id,label"`
	Task     string `hcl:"task"`
	Workflow string `hcl:"workflow,optional"`
	State    string `hcl:"state,optional"`
}

// ParseHCL reads a task feed written in HCL. filename is only used in
// diagnostics.
func ParseHCL(filename string, src []byte) (*Feed, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse HCL feed %s: %w", filename, diags)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decode HCL feed %s: %w", filename, diags)
	}

	f := &Feed{}
	for _, ht := range root.Tasks {
		t := TaskRecord{
			ID:                  ht.ID,
			Name:                ht.Name,
			State:               State(ht.State),
			WorkflowExecutionID: ht.WorkflowExecution,
			Requires:            dedupe(ht.Requires),
			RequiredBy:          dedupe(ht.RequiredBy),
		}
		if ht.Attributes != nil {
			attrs, err := stringAttributes(ht.Attributes.Body)
			if err != nil {
				return nil, fmt.Errorf("task %q attributes: %w", ht.ID, err)
			}
			t.Attributes = attrs
		}
		f.Tasks = append(f.Tasks, t)
	}
	for _, he := range root.Executions {
		f.Executions = append(f.Executions, SubWorkflowExecution{
			ID:              he.ID,
			TaskExecutionID: he.Task,
			WorkflowName:    he.Workflow,
			State:           State(he.State),
		})
	}
	return f, nil
}

// stringAttributes evaluates every attribute of body without a context and
// converts it to a string. Null values are skipped.
func stringAttributes(body hcl.Body) (map[string]string, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	out := make(map[string]string, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		if val.IsNull() {
			continue
		}
		str, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = str.AsString()
	}
	return out, nil
}
