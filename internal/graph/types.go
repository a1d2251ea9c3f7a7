package graph

import (
	"fmt"
	"strings"
)

// NodeID identifies a node for the lifetime of a graph. Zero is never a valid id.
type NodeID uint64

func (id NodeID) String() string {
	return fmt.Sprintf("n%d", uint64(id))
}

// Kind is the unit category of a node.
type Kind int

const (
	KindEvent Kind = iota + 1
	KindStore
	KindEffect
	KindDomain
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindStore:
		return "store"
	case KindEffect:
		return "effect"
	case KindDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// ParseKind maps a kind name ("event", "store", "effect", "domain") to a Kind.
// An empty string is treated as "event".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "event":
		return KindEvent, nil
	case "store":
		return KindStore, nil
	case "effect":
		return KindEffect, nil
	case "domain":
		return KindDomain, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", s)
	}
}

// Op is the operation tag of a pipeline step.
type Op int

const (
	// OpTransform replaces the in-flight value.
	OpTransform Op = iota + 1
	// OpFilter stops the node's pipeline, and its children, when the predicate is false.
	OpFilter
	// OpRun runs a side effect and passes its input through unchanged.
	OpRun
	// OpEmit stores the in-flight value as the node's local value.
	OpEmit
)

func (o Op) String() string {
	switch o {
	case OpTransform:
		return "transform"
	case OpFilter:
		return "filter"
	case OpRun:
		return "run"
	case OpEmit:
		return "emit"
	default:
		return "unknown"
	}
}

// ParseOp maps an operation name to an Op.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transform", "map":
		return OpTransform, nil
	case "filter":
		return OpFilter, nil
	case "run":
		return OpRun, nil
	case "emit":
		return OpEmit, nil
	default:
		return 0, fmt.Errorf("unknown step op %q", s)
	}
}

type (
	TransformFunc func(v any) (any, error)
	FilterFunc    func(v any) (bool, error)
	RunFunc       func(v any) error
)

// Step is one operation of a node's pipeline. Exactly one of the function
// fields is set, matching Op. Emit steps carry no function.
type Step struct {
	Op        Op
	Name      string
	Transform TransformFunc
	Filter    FilterFunc
	Run       RunFunc
}

// Transform returns a step that replaces the value with fn's result.
func Transform(name string, fn TransformFunc) Step {
	return Step{Op: OpTransform, Name: name, Transform: fn}
}

// Filter returns a step that halts propagation when fn returns false.
func Filter(name string, fn FilterFunc) Step {
	return Step{Op: OpFilter, Name: name, Filter: fn}
}

// Run returns a side-effect step.
func Run(name string, fn RunFunc) Step {
	return Step{Op: OpRun, Name: name, Run: fn}
}

// Emit returns a step that records the value as the node's local value.
func Emit() Step {
	return Step{Op: OpEmit, Name: "emit"}
}

// Label is the step's name, falling back to its op.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Op.String()
}

// Validate reports a step whose function does not match its op.
func (s Step) Validate() error {
	switch s.Op {
	case OpTransform:
		if s.Transform == nil {
			return fmt.Errorf("step %q: transform function is nil", s.Label())
		}
	case OpFilter:
		if s.Filter == nil {
			return fmt.Errorf("step %q: filter function is nil", s.Label())
		}
	case OpRun:
		if s.Run == nil {
			return fmt.Errorf("step %q: run function is nil", s.Label())
		}
	case OpEmit:
	default:
		return fmt.Errorf("step %q: unknown op %d", s.Label(), int(s.Op))
	}
	return nil
}
