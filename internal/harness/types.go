package harness

import "github.com/roach88/graphite/internal/engine"

// Trace event types.
const (
	EventPass    = "pass"
	EventExecute = "execute"
	EventObserve = "observe"
	EventError   = "error"
	EventFinish  = "finish"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Type      string `json:"type"`
	TriggerID string `json:"trigger_id,omitempty"`
	Seq       int64  `json:"seq,omitempty"`
	Node      string `json:"node,omitempty"`
	Input     any    `json:"input,omitempty"`
	Output    any    `json:"output,omitempty"`
	Produced  bool   `json:"produced,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Reentry   int    `json:"reentry,omitempty"`
	Code      string `json:"code,omitempty"`
	Aborted   bool   `json:"aborted,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Trace lists pass boundaries, executions, observations and errors in
	// the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`

	// Passes are the kernel passes in the order they ran.
	Passes []*engine.Pass `json:"-"`

	// Final maps node names to their local value at the end of the run.
	Final map[string]any `json:"final,omitempty"`

	// Stored is the number of passes in the trace store.
	Stored int `json:"stored"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  make(map[string]any),
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Observed returns the values node's watcher saw, in order.
func (r *Result) Observed(node string) []any {
	out := []any{}
	for _, ev := range r.Trace {
		if ev.Type == EventObserve && ev.Node == node {
			out = append(out, ev.Output)
		}
	}
	return out
}

// Executed returns the node names pass executed, in order.
func (r *Result) Executed(pass int) []string {
	out := []string{}
	if pass < 0 || pass >= len(r.Passes) {
		return out
	}
	id := r.Passes[pass].TriggerID
	for _, ev := range r.Trace {
		if ev.Type == EventExecute && ev.TriggerID == id {
			out = append(out, ev.Node)
		}
	}
	return out
}
