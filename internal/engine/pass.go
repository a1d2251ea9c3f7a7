package engine

import (
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/graphite/internal/graph"
)

// Execution records one run of a node's pipeline within a pass.
type Execution struct {
	Seq      int64
	Node     graph.NodeID
	Name     string
	Input    any
	Output   any
	Produced bool
	Failed   bool

	// Reentry is 0 for a node's first execution in the pass and counts up
	// for each re-entry from its own cyclic component.
	Reentry int
}

// Pass is the outcome of propagating one trigger.
type Pass struct {
	TriggerID string
	Seq       int64
	Trigger   Trigger

	// Executions lists node executions in the order they happened.
	Executions []Execution

	// Errors lists every error reported during the pass, in order.
	Errors []*RuntimeError

	// Aborted is set when a fatal error (cycle overflow, quota, context
	// cancellation) stopped the pass before its frontier was empty.
	Aborted bool

	// Cause is the fatal error that aborted the pass, if any.
	Cause error
}

// Err aggregates every error of the pass, or returns nil.
func (p *Pass) Err() error {
	var result *multierror.Error
	for _, e := range p.Errors {
		result = multierror.Append(result, e)
	}
	if p.Cause != nil && !containsCause(p.Errors, p.Cause) {
		result = multierror.Append(result, p.Cause)
	}
	return result.ErrorOrNil()
}

// Executed returns the ids of executed nodes in execution order,
// repeating re-entered nodes.
func (p *Pass) Executed() []graph.NodeID {
	out := make([]graph.NodeID, 0, len(p.Executions))
	for _, ex := range p.Executions {
		out = append(out, ex.Node)
	}
	return out
}

// Ran reports whether id executed at least once in the pass.
func (p *Pass) Ran(id graph.NodeID) bool {
	for _, ex := range p.Executions {
		if ex.Node == id {
			return true
		}
	}
	return false
}

func containsCause(errs []*RuntimeError, cause error) bool {
	for _, e := range errs {
		if error(e) == cause {
			return true
		}
	}
	return false
}
