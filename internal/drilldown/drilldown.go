// Package drilldown resolves the sub-workflow executions spawned by a task
// and asks a navigator to open them.
package drilldown

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshharrison/wfpath/internal/feed"
)

// Resolver looks up the sub-workflow executions spawned by a task.
type Resolver interface {
	SubWorkflows(ctx context.Context, taskID string) ([]feed.SubWorkflowExecution, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, taskID string) ([]feed.SubWorkflowExecution, error)

func (f ResolverFunc) SubWorkflows(ctx context.Context, taskID string) ([]feed.SubWorkflowExecution, error) {
	return f(ctx, taskID)
}

// FeedResolver answers lookups from a loaded feed.
type FeedResolver struct {
	Feed *feed.Feed
}

func (r FeedResolver) SubWorkflows(_ context.Context, taskID string) ([]feed.SubWorkflowExecution, error) {
	if r.Feed == nil {
		return nil, nil
	}
	return r.Feed.SubWorkflows(taskID), nil
}

// Navigator receives the navigation request when exactly one sub-workflow
// matches. Navigate runs with the Controller locked and must not call back
// into it.
type Navigator interface {
	Navigate(exec feed.SubWorkflowExecution)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(exec feed.SubWorkflowExecution)

func (f NavigatorFunc) Navigate(exec feed.SubWorkflowExecution) { f(exec) }

// Outcome describes how a request finished.
type Outcome struct {
	Token      string
	TaskID     string
	Executions []feed.SubWorkflowExecution
	Navigated  bool // exactly one execution matched and was handed to the navigator
	Stale      bool // a newer request or a Cancel superseded this one
	Err        error
}

// Controller runs lookups in the background. Only the most recent request
// may act; results of superseded requests are dropped.
type Controller struct {
	resolver  Resolver
	navigator Navigator
	logger    *zap.Logger

	mu         sync.Mutex
	token      string
	candidates []feed.SubWorkflowExecution
}

// New creates a Controller. A nil navigator turns single matches into
// candidates as well.
func New(resolver Resolver, navigator Navigator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{resolver: resolver, navigator: navigator, logger: logger}
}

// Request starts a lookup for taskID and returns its token and a channel
// that receives the outcome once.
func (c *Controller) Request(ctx context.Context, taskID string) (string, <-chan Outcome) {
	token := uuid.NewString()

	c.mu.Lock()
	c.token = token
	c.candidates = nil
	c.mu.Unlock()

	done := make(chan Outcome, 1)
	go func() {
		done <- c.resolve(ctx, token, taskID)
	}()
	return token, done
}

// Resolve performs a lookup synchronously.
func (c *Controller) Resolve(ctx context.Context, taskID string) Outcome {
	token, done := c.Request(ctx, taskID)
	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		c.cancelToken(token)
		return Outcome{Token: token, TaskID: taskID, Stale: true, Err: ctx.Err()}
	}
}

// Cancel invalidates any request in flight and clears the candidate list.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.token = ""
	c.candidates = nil
	c.mu.Unlock()
}

func (c *Controller) cancelToken(token string) {
	c.mu.Lock()
	if c.token == token {
		c.token = ""
	}
	c.mu.Unlock()
}

// Candidates returns the executions of the last request that matched more
// than one sub-workflow.
func (c *Controller) Candidates() []feed.SubWorkflowExecution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]feed.SubWorkflowExecution(nil), c.candidates...)
}

func (c *Controller) resolve(ctx context.Context, token, taskID string) Outcome {
	out := Outcome{Token: token, TaskID: taskID}
	execs, err := c.resolver.SubWorkflows(ctx, taskID)

	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		c.logger.Debug("dropping stale drill-down result", zap.String("task", taskID), zap.String("token", token))
		out.Stale = true
		return out
	}
	c.token = ""
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("drill-down lookup failed", zap.String("task", taskID), zap.Error(err))
		out.Err = err
		return out
	}
	out.Executions = execs
	if len(execs) == 1 && c.navigator != nil {
		// Navigating under the lock keeps a concurrent Cancel from slipping
		// in between the token check and the navigation.
		c.logger.Info("navigating to sub-workflow", zap.String("task", taskID), zap.String("execution", execs[0].ID))
		c.navigator.Navigate(execs[0])
		out.Navigated = true
	} else if len(execs) > 0 {
		c.candidates = append([]feed.SubWorkflowExecution(nil), execs...)
	}
	c.mu.Unlock()
	return out
}
