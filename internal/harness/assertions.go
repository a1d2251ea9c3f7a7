package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/graphite/internal/canon"
)

// AssertionError is returned when an assertion fails.
// It includes the executed trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		switch ev.Type {
		case EventExecute:
			fmt.Fprintf(&buf, "  [%d] %s %s in=%s", i+1, ev.TriggerID, ev.Node, canon.String(ev.Input))
			if ev.Produced {
				fmt.Fprintf(&buf, " out=%s", canon.String(ev.Output))
			}
			buf.WriteByte('\n')
		case EventError:
			fmt.Fprintf(&buf, "  [%d] %s error %s at %s\n", i+1, ev.TriggerID, ev.Code, ev.Node)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertObserved:
		return assertObserved(result, a)
	case AssertNotObserved:
		return assertNotObserved(result, a)
	case AssertExecutionOrder:
		return assertExecutionOrder(result, a)
	case AssertExecutionCount:
		return assertExecutionCount(result, a)
	case AssertErrorCount:
		return assertErrorCount(result, a)
	case AssertAborted:
		return assertAborted(result, a)
	case AssertFinalValue:
		return assertFinalValue(result, a)
	case AssertStoredPasses:
		return assertStoredPasses(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertObserved(result *Result, a Assertion) error {
	got := canon.String(result.Observed(a.Node))
	want := canon.String(a.Values)
	if got != want {
		return &AssertionError{
			Type:     AssertObserved,
			Expected: fmt.Sprintf("%s observes %s", a.Node, want),
			Actual:   got,
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertNotObserved(result *Result, a Assertion) error {
	if got := result.Observed(a.Node); len(got) > 0 {
		return &AssertionError{
			Type:     AssertNotObserved,
			Expected: fmt.Sprintf("%s observes nothing", a.Node),
			Actual:   canon.String(got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertExecutionOrder(result *Result, a Assertion) error {
	if a.Pass >= len(result.Passes) {
		return fmt.Errorf("pass %d does not exist (%d passes ran)", a.Pass, len(result.Passes))
	}
	got := result.Executed(a.Pass)
	if strings.Join(got, ",") != strings.Join(a.Nodes, ",") {
		return &AssertionError{
			Type:     AssertExecutionOrder,
			Expected: fmt.Sprintf("pass %d executes %v", a.Pass, a.Nodes),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertExecutionCount(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.Trace {
		if ev.Type == EventExecute && ev.Node == a.Node {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertExecutionCount,
			Expected: fmt.Sprintf("%s executes %d times", a.Node, *a.Count),
			Actual:   fmt.Sprintf("%d times", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertErrorCount(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.Trace {
		if ev.Type == EventError && (a.Code == "" || ev.Code == a.Code) {
			count++
		}
	}
	if count != *a.Count {
		what := "errors"
		if a.Code != "" {
			what = a.Code + " errors"
		}
		return &AssertionError{
			Type:     AssertErrorCount,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertAborted(result *Result, a Assertion) error {
	if a.Pass >= len(result.Passes) {
		return fmt.Errorf("pass %d does not exist (%d passes ran)", a.Pass, len(result.Passes))
	}
	if got := result.Passes[a.Pass].Aborted; got != *a.Expect {
		return &AssertionError{
			Type:     AssertAborted,
			Expected: fmt.Sprintf("pass %d aborted=%t", a.Pass, *a.Expect),
			Actual:   fmt.Sprintf("aborted=%t", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertFinalValue(result *Result, a Assertion) error {
	v, ok := result.Final[a.Node]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("%s holds %s", a.Node, canon.String(a.Value)),
			Actual:   "no value (node never emitted)",
			Trace:    result.Trace,
		}
	}
	if got, want := canon.String(v), canon.String(a.Value); got != want {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("%s holds %s", a.Node, want),
			Actual:   got,
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertStoredPasses(result *Result, a Assertion) error {
	if result.Stored != *a.Count {
		return &AssertionError{
			Type:     AssertStoredPasses,
			Expected: fmt.Sprintf("%d stored passes", *a.Count),
			Actual:   fmt.Sprintf("%d", result.Stored),
			Trace:    result.Trace,
		}
	}
	return nil
}
