package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNode is wrapped by StructuralError when an id does not name a live node.
	ErrUnknownNode = errors.New("unknown node")

	// ErrClosed is returned when subscribing to a list whose node has been removed.
	ErrClosed = errors.New("subscriber list closed")

	// ErrInvalidStep is wrapped when a step's function does not match its op.
	ErrInvalidStep = errors.New("invalid step")

	// ErrOwnershipCycle is wrapped when an adoption would make a node own
	// one of its own owners.
	ErrOwnershipCycle = errors.New("ownership cycle")
)

// StructuralError reports a graph-building operation that referenced an
// unknown node or otherwise could not be applied. It is always returned to
// the caller of the operation, never swallowed.
type StructuralError struct {
	// Op is the operation name ("link", "unlink", "remove", ...).
	Op string

	// NodeID is the offending node.
	NodeID NodeID

	// Err is the underlying cause (ErrUnknownNode, ErrInvalidStep, ...).
	Err error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: node %s: %v", e.Op, e.NodeID, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// IsStructuralError returns true if err is, or wraps, a StructuralError.
func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

func unknownNode(op string, id NodeID) *StructuralError {
	return &StructuralError{Op: op, NodeID: id, Err: ErrUnknownNode}
}
