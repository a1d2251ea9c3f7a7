package engine

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/graphite/internal/graph"
)

var (
	// ErrKernelClosed is returned by operations on a closed kernel.
	ErrKernelClosed = errors.New("kernel closed")

	// ErrNestedPropagate is returned when Propagate or Settled is called from
	// inside a running pass. Use Launch to start a follow-up trigger instead.
	ErrNestedPropagate = errors.New("propagate called from inside a pass; use Launch")
)

// RuntimeError is one record on the kernel's error channel.
//
// Runtime errors include:
//   - Step failure: a pipeline step or watcher returned an error or panicked
//   - Cycle overflow: a cyclic component re-entered past the bound
//   - Quota exceeded: a pass executed more nodes than allowed
//   - Structural violation: a deferred mutation could not be applied
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Phase says where in the pass the error happened.
	Phase Phase

	// Message is a human-readable description.
	Message string

	// TriggerID identifies the affected pass (empty outside a pass).
	TriggerID string

	// NodeID identifies the offending node.
	NodeID graph.NodeID

	// NodeName is the offending node's name, if any.
	NodeName string

	// Step is the label of the failing step (step failures only).
	Step string

	// Cause is the underlying error.
	Cause error

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStepFailure indicates a step or watcher failed; only that node's propagation stops.
	ErrCodeStepFailure RuntimeErrorCode = "STEP_FAILURE"

	// ErrCodeCycleOverflow indicates a cyclic component exceeded the re-entry bound.
	ErrCodeCycleOverflow RuntimeErrorCode = "CYCLE_OVERFLOW"

	// ErrCodeQuotaExceeded indicates a pass exceeded its execution budget.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeStructural indicates a mutation referencing an unknown node.
	ErrCodeStructural RuntimeErrorCode = "STRUCTURAL_VIOLATION"
)

// Phase names the part of a pass that produced an error.
type Phase string

const (
	PhaseStep      Phase = "step"
	PhaseWatch     Phase = "watch"
	PhaseEffect    Phase = "effect"
	PhaseSchedule  Phase = "schedule"
	PhaseStructure Phase = "structure"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	node := ""
	if e.NodeID != 0 {
		node = e.NodeID.String()
		if e.NodeName != "" {
			node = e.NodeName + "/" + node
		}
	}
	switch {
	case e.TriggerID != "" && node != "":
		return fmt.Sprintf("%s: %s (trigger=%s, node=%s)", e.Code, e.Message, e.TriggerID, node)
	case node != "":
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, node)
	case e.TriggerID != "":
		return fmt.Sprintf("%s: %s (trigger=%s)", e.Code, e.Message, e.TriggerID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// IsStepFailure returns true if err is a step failure.
// Uses errors.As to handle wrapped errors.
func IsStepFailure(err error) bool {
	return hasCode(err, ErrCodeStepFailure)
}

// IsCycleOverflow returns true if err is a cycle overflow.
func IsCycleOverflow(err error) bool {
	return hasCode(err, ErrCodeCycleOverflow)
}

// IsQuotaError returns true if err is a quota error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// hasCode matches any RuntimeError in err's chain, including every member
// of an aggregated pass error.
func hasCode(err error, code RuntimeErrorCode) bool {
	var me *multierror.Error
	if errors.As(err, &me) {
		for _, e := range me.Errors {
			if hasCode(e, code) {
				return true
			}
		}
		return false
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewStepFailure creates a RuntimeError for a failing step or watcher.
func NewStepFailure(node *graph.Node, phase Phase, step string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeStepFailure,
		Phase:    phase,
		Message:  fmt.Sprintf("%s %q failed: %v", phase, step, cause),
		NodeID:   node.ID(),
		NodeName: node.Name(),
		Step:     step,
		Cause:    cause,
	}
}

// NewCycleOverflow creates a RuntimeError for a component re-entered too often.
func NewCycleOverflow(triggerID string, node *graph.Node, component graph.ComponentID, reentries, limit int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeCycleOverflow,
		Phase:     PhaseSchedule,
		Message:   fmt.Sprintf("cyclic component re-entered %d times (limit %d)", reentries, limit),
		TriggerID: triggerID,
		NodeID:    node.ID(),
		NodeName:  node.Name(),
		Details: map[string]string{
			"component": fmt.Sprintf("%d", component),
			"reentries": fmt.Sprintf("%d", reentries),
			"limit":     fmt.Sprintf("%d", limit),
		},
	}
}

// NewStructuralViolation wraps a mutation failure for the error channel.
func NewStructuralViolation(cause error) *RuntimeError {
	re := &RuntimeError{
		Code:    ErrCodeStructural,
		Phase:   PhaseStructure,
		Message: cause.Error(),
		Cause:   cause,
	}
	var se *graph.StructuralError
	if errors.As(cause, &se) {
		re.NodeID = se.NodeID
	}
	return re
}
