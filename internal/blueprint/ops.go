package blueprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/roach88/graphite/internal/engine"
	"github.com/roach88/graphite/internal/graph"
)

// ErrNotInteger is returned by steps that receive a non-integer value.
var ErrNotInteger = errors.New("value is not an integer")

// ErrFailStep is the error returned by the "fail" run operator.
var ErrFailStep = errors.New("fail step")

type operator struct {
	needsArg bool
	build    func(arg int64) graph.Step
}

var transforms = map[string]operator{
	"identity": {build: func(int64) graph.Step { return intTransform("identity", func(v int64) int64 { return v }) }},
	"neg":      {build: func(int64) graph.Step { return intTransform("neg", func(v int64) int64 { return -v }) }},
	"abs": {build: func(int64) graph.Step {
		return intTransform("abs", func(v int64) int64 {
			if v < 0 {
				return -v
			}
			return v
		})
	}},
	"add": {needsArg: true, build: func(a int64) graph.Step {
		return intTransform(label("add", a), func(v int64) int64 { return v + a })
	}},
	"sub": {needsArg: true, build: func(a int64) graph.Step {
		return intTransform(label("sub", a), func(v int64) int64 { return v - a })
	}},
	"mul": {needsArg: true, build: func(a int64) graph.Step {
		return intTransform(label("mul", a), func(v int64) int64 { return v * a })
	}},
	"div": {needsArg: true, build: func(a int64) graph.Step {
		return intTransform(label("div", a), func(v int64) int64 { return v / a })
	}},
	"mod": {needsArg: true, build: func(a int64) graph.Step {
		return intTransform(label("mod", a), func(v int64) int64 { return v % a })
	}},
}

var filters = map[string]operator{
	"gt":   {needsArg: true, build: func(a int64) graph.Step { return intFilter(label("gt", a), func(v int64) bool { return v > a }) }},
	"ge":   {needsArg: true, build: func(a int64) graph.Step { return intFilter(label("ge", a), func(v int64) bool { return v >= a }) }},
	"lt":   {needsArg: true, build: func(a int64) graph.Step { return intFilter(label("lt", a), func(v int64) bool { return v < a }) }},
	"le":   {needsArg: true, build: func(a int64) graph.Step { return intFilter(label("le", a), func(v int64) bool { return v <= a }) }},
	"eq":   {needsArg: true, build: func(a int64) graph.Step { return intFilter(label("eq", a), func(v int64) bool { return v == a }) }},
	"ne":   {needsArg: true, build: func(a int64) graph.Step { return intFilter(label("ne", a), func(v int64) bool { return v != a }) }},
	"even": {build: func(int64) graph.Step { return intFilter("even", func(v int64) bool { return v%2 == 0 }) }},
	"odd":  {build: func(int64) graph.Step { return intFilter("odd", func(v int64) bool { return v%2 != 0 }) }},
}

var runs = map[string]operator{
	"log": {build: func(int64) graph.Step {
		return graph.Run("log", func(v any) error {
			slog.Info("blueprint log step", "value", v)
			return nil
		})
	}},
	"fail": {build: func(int64) graph.Step {
		return graph.Run("fail", func(any) error { return ErrFailStep })
	}},
	"panic": {build: func(int64) graph.Step {
		return graph.Run("panic", func(v any) error { panic(fmt.Sprintf("panic step at value %v", v)) })
	}},
}

var handlers = map[string]engine.EffectHandler{
	"echo": func(_ context.Context, v any) (any, error) { return v, nil },
	"double": func(_ context.Context, v any) (any, error) {
		n, err := ToInt(v)
		if err != nil {
			return nil, err
		}
		return n * 2, nil
	},
	"fail": func(context.Context, any) (any, error) { return nil, errors.New("effect handler failed") },
}

// BuildStep turns a step declaration into an executable step.
func BuildStep(s StepSpec) (graph.Step, error) {
	op, err := graph.ParseOp(s.Op)
	if err != nil {
		return graph.Step{}, err
	}

	if op == graph.OpEmit {
		if s.Fn != "" || s.Arg != nil {
			return graph.Step{}, fmt.Errorf("emit takes no fn or arg")
		}
		return graph.Emit(), nil
	}

	vocab := vocabulary(op)
	o, ok := vocab[s.Fn]
	if !ok {
		return graph.Step{}, fmt.Errorf("unknown %s operator %q (want one of %v)", op, s.Fn, names(vocab))
	}

	var arg int64
	switch {
	case o.needsArg && s.Arg == nil:
		return graph.Step{}, fmt.Errorf("%s %q requires arg", op, s.Fn)
	case !o.needsArg && s.Arg != nil:
		return graph.Step{}, fmt.Errorf("%s %q takes no arg", op, s.Fn)
	case s.Arg != nil:
		arg = *s.Arg
	}
	if (s.Fn == "div" || s.Fn == "mod") && arg == 0 {
		return graph.Step{}, fmt.Errorf("%s by zero", s.Fn)
	}

	return o.build(arg), nil
}

// BuildSteps builds every step of a node, in order.
func BuildSteps(specs []StepSpec) ([]graph.Step, error) {
	steps := make([]graph.Step, 0, len(specs))
	for i, s := range specs {
		step, err := BuildStep(s)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Handler returns the built-in effect handler called name.
func Handler(name string) (engine.EffectHandler, bool) {
	h, ok := handlers[name]
	return h, ok
}

// HandlerNames lists the built-in effect handlers, sorted.
func HandlerNames() []string {
	out := make([]string, 0, len(handlers))
	for n := range handlers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ToInt converts a propagated value to int64. Integral floats (as produced
// by JSON decoding) are accepted when they fit in an int64.
func ToInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < -math.MinInt64 {
			return int64(n), nil
		}
	}
	return 0, fmt.Errorf("%w: %T(%v)", ErrNotInteger, v, v)
}

func intTransform(name string, fn func(int64) int64) graph.Step {
	return graph.Transform(name, func(v any) (any, error) {
		n, err := ToInt(v)
		if err != nil {
			return nil, err
		}
		return fn(n), nil
	})
}

func intFilter(name string, fn func(int64) bool) graph.Step {
	return graph.Filter(name, func(v any) (bool, error) {
		n, err := ToInt(v)
		if err != nil {
			return false, err
		}
		return fn(n), nil
	})
}

func label(fn string, arg int64) string {
	return fmt.Sprintf("%s(%d)", fn, arg)
}

func vocabulary(op graph.Op) map[string]operator {
	switch op {
	case graph.OpTransform:
		return transforms
	case graph.OpFilter:
		return filters
	case graph.OpRun:
		return runs
	default:
		return nil
	}
}

func names(vocab map[string]operator) []string {
	out := make([]string, 0, len(vocab))
	for n := range vocab {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
