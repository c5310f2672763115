package feed

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs an external program that prints a JSON task feed on stdout,
// typically a workflow engine CLI listing the tasks of one execution.
type Command struct {
	Bin  string   // program to run (default: "mistral")
	Args []string // arguments, e.g. task-list <execution-id> -f json
}

// NewCommand creates a Command for the given binary and arguments.
func NewCommand(bin string, args ...string) *Command {
	if bin == "" {
		bin = "mistral"
	}
	return &Command{Bin: bin, Args: args}
}

func (c *Command) run(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Bin, c.Args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s %s: %w\n%s", c.Bin, strings.Join(c.Args, " "), err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s %s: %w", c.Bin, strings.Join(c.Args, " "), err)
	}
	return out, nil
}

// Fetch runs the command and parses its output.
func (c *Command) Fetch(ctx context.Context) (*Feed, error) {
	out, err := c.run(ctx)
	if err != nil {
		return nil, err
	}
	f, err := ParseJSON(out)
	if err != nil {
		return nil, fmt.Errorf("parse %s output: %w", c.Bin, err)
	}
	return f, nil
}
