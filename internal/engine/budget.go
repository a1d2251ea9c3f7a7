package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/graphite/internal/graph"
)

// DefaultMaxReentry is the default number of times a node inside a cyclic
// component may be re-entered from its own component in one pass.
const DefaultMaxReentry = 16

// DefaultMaxSteps is the default maximum number of node executions per pass.
// This prevents runaway passes on very large graphs.
const DefaultMaxSteps = 10000

// passBudget tracks node executions within one pass and enforces both the
// per-node re-entry bound and the per-pass step quota.
//
// CRITICAL DISTINCTION:
//   - Re-entry bound: catches feedback loops (A → B → A → ...)
//   - Step quota: catches linear explosions over huge graphs
//
// Together they guarantee every pass terminates.
//
// A budget belongs to exactly one pass and is only touched while the kernel
// lock is held, so it needs no locking of its own.
type passBudget struct {
	maxSteps   int
	maxReentry int

	steps int
	runs  map[graph.NodeID]int
}

func newPassBudget(maxSteps, maxReentry int) *passBudget {
	return &passBudget{
		maxSteps:   maxSteps,
		maxReentry: maxReentry,
		runs:       make(map[graph.NodeID]int),
	}
}

// Charge counts one execution of id against the step quota.
// Returns StepsExceededError when the quota is exhausted.
func (b *passBudget) Charge(triggerID string, id graph.NodeID) error {
	b.steps++
	if b.steps > b.maxSteps {
		return &StepsExceededError{
			TriggerID: triggerID,
			Steps:     b.steps,
			Limit:     b.maxSteps,
		}
	}
	b.runs[id]++
	return nil
}

// Runs returns how many times id has executed in this pass.
func (b *passBudget) Runs(id graph.NodeID) int {
	return b.runs[id]
}

// WouldOverflow reports whether one more re-entry of id exceeds the bound.
// The first execution of a node is not a re-entry.
func (b *passBudget) WouldOverflow(id graph.NodeID) bool {
	return b.runs[id] > b.maxReentry
}

// Steps returns the number of executions charged so far.
func (b *passBudget) Steps() int {
	return b.steps
}

// StepsExceededError is returned when a pass exceeds the step quota.
//
// Unlike a step failure, which only stops one node, this aborts the pass.
type StepsExceededError struct {
	TriggerID string // The pass that exceeded the quota
	Steps     int    // Number of executions attempted
	Limit     int    // Maximum allowed executions
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("trigger %s exceeded max steps quota: %d steps > %d limit",
		e.TriggerID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
