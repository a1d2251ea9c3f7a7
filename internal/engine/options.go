package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// MergePolicy decides what happens when a value arrives for a node that is
// already waiting in the current pass's frontier.
type MergePolicy int

const (
	// MergeFirst keeps the queued value. Edges fire in declaration order, so
	// the first-declared dependent edge wins.
	MergeFirst MergePolicy = iota
	// MergeLast replaces the queued value with the newest one; the node keeps
	// its original place in the frontier.
	MergeLast
)

func (m MergePolicy) String() string {
	switch m {
	case MergeFirst:
		return "first"
	case MergeLast:
		return "last"
	default:
		return "unknown"
	}
}

// ParseMergePolicy maps "first" or "last" to a MergePolicy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return MergeFirst, nil
	case "last":
		return MergeLast, nil
	default:
		return 0, fmt.Errorf("unknown merge policy %q (want first|last)", s)
	}
}

// ErrorHandler receives every record reported on the error channel.
type ErrorHandler func(err *RuntimeError)

// KernelOption allows configuration of kernel parameters.
type KernelOption func(*Kernel)

// WithMaxReentry sets how many times a node in a cyclic component may be
// re-entered from its own component in one pass.
//
// Default: 16 (DefaultMaxReentry)
func WithMaxReentry(n int) KernelOption {
	return func(k *Kernel) {
		if n >= 0 {
			k.maxReentry = n
		}
	}
}

// WithMaxSteps sets the maximum node executions per pass.
//
// Default: 10000 (DefaultMaxSteps)
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(n int) KernelOption {
	return func(k *Kernel) {
		if n > 0 {
			k.maxSteps = n
		}
	}
}

// WithMergePolicy sets the tie-break rule for values arriving at an
// already-queued node.
func WithMergePolicy(m MergePolicy) KernelOption {
	return func(k *Kernel) {
		k.merge = m
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) KernelOption {
	return func(k *Kernel) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithTracer installs a pass tracer (see internal/store).
func WithTracer(t Tracer) KernelOption {
	return func(k *Kernel) {
		if t != nil {
			k.tracer = t
		}
	}
}

// WithErrorHandler registers a handler on the error channel.
// May be given more than once.
func WithErrorHandler(h ErrorHandler) KernelOption {
	return func(k *Kernel) {
		if h != nil {
			k.handlers = append(k.handlers, h)
		}
	}
}

// WithTriggerIDs overrides the trigger id generator (UUIDv7 by default).
func WithTriggerIDs(g TriggerIDGenerator) KernelOption {
	return func(k *Kernel) {
		if g != nil {
			k.ids = g
		}
	}
}

// WithClock sets the logical clock, e.g. to resume a stored sequence.
func WithClock(c *Clock) KernelOption {
	return func(k *Kernel) {
		if c != nil {
			k.clock = c
		}
	}
}

// WithContext sets the parent context of effect handlers and launched
// triggers. Cancelling it cancels in-flight effects.
func WithContext(ctx context.Context) KernelOption {
	return func(k *Kernel) {
		if ctx != nil {
			k.parent = ctx
		}
	}
}
