package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/graphite/internal/blueprint"
	"github.com/roach88/graphite/internal/engine"
	"github.com/roach88/graphite/internal/graph"
	"github.com/roach88/graphite/internal/store"
	"github.com/roach88/graphite/internal/testutil"
)

// SettleTimeout bounds how long a run waits for effects after each trigger.
const SettleTimeout = 5 * time.Second

// Harness is one scenario run: a fresh kernel, clock and trace store.
type Harness struct {
	scenario *Scenario
	bp       *blueprint.Blueprint
	kernel   *engine.Kernel
	compiled *blueprint.Compiled
	store    *store.Store
	logger   *slog.Logger

	mu     sync.Mutex
	result *Result
}

var _ engine.Tracer = (*Harness)(nil)

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Load the blueprint and apply the scenario's settings
// 2. Open an in-memory trace store and build a deterministic kernel
// 3. Compile the blueprint and subscribe to the watched nodes
// 4. Fire each trigger and wait for its effects to settle
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	if err := h.fire(ctx); err != nil {
		return nil, err
	}

	result, err := h.finish(ctx)
	if err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	bp, err := blueprint.Load(scenario.Blueprint)
	if err != nil {
		return nil, fmt.Errorf("failed to load blueprint: %w", err)
	}
	if scenario.Settings != nil {
		bp.Settings = mergeSettings(bp.Settings, *scenario.Settings)
	}

	hash, err := bp.Hash()
	if err != nil {
		return nil, fmt.Errorf("failed to hash blueprint: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		bp:       bp,
		store:    st,
		logger:   testutil.DiscardLogger(),
		result:   NewResult(),
	}

	prefix := scenario.TriggerPrefix
	if prefix == "" {
		prefix = "t"
	}

	tracer := st.Tracer(
		store.WithMeta(store.Meta{Blueprint: bp.Name, BlueprintHash: hash}),
		store.WithNodeNames(h.nodeName),
		store.WithTracerLogger(h.logger),
	)

	k, err := blueprint.NewKernel(bp,
		engine.WithTriggerIDs(engine.NewSequenceGenerator(prefix)),
		engine.WithClock(engine.NewClock()),
		engine.WithLogger(h.logger),
		engine.WithTracer(engine.Tracers(h, tracer)),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	h.kernel = k

	compiled, err := blueprint.Compile(bp, k)
	if err != nil {
		h.close()
		return nil, err
	}
	h.compiled = compiled

	if err := h.subscribe(); err != nil {
		h.close()
		return nil, err
	}
	return h, nil
}

func (h *Harness) close() {
	if h.kernel != nil {
		_ = h.kernel.Close()
	}
	_ = h.store.Close()
}

// mergeSettings overlays the fields set in over onto base.
func mergeSettings(base, over blueprint.Settings) blueprint.Settings {
	if over.MaxReentry != nil {
		base.MaxReentry = over.MaxReentry
	}
	if over.MaxSteps != nil {
		base.MaxSteps = over.MaxSteps
	}
	if over.Merge != "" {
		base.Merge = over.Merge
	}
	return base
}

func (h *Harness) subscribe() error {
	watch := h.scenario.Watch
	if len(watch) == 0 {
		watch = h.compiled.Names()
	}
	for _, name := range watch {
		id, ok := h.compiled.ID(name)
		if !ok {
			return fmt.Errorf("watch: unknown node %q", name)
		}
		if _, err := h.kernel.Subscribe(id, h.observer(name)); err != nil {
			return fmt.Errorf("watch %q: %w", name, err)
		}
	}
	return nil
}

func (h *Harness) observer(name string) func(any) {
	return func(v any) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.result.Trace = append(h.result.Trace, TraceEvent{
			Type:      EventObserve,
			TriggerID: h.currentTrigger(),
			Node:      name,
			Output:    v,
		})
	}
}

// currentTrigger is the trigger id of the pass being recorded. Caller holds mu.
func (h *Harness) currentTrigger() string {
	if n := len(h.result.Passes); n > 0 {
		return h.result.Passes[n-1].TriggerID
	}
	return ""
}

func (h *Harness) fire(ctx context.Context) error {
	triggers := h.scenario.Triggers
	if len(triggers) == 0 {
		triggers = h.bp.Triggers
	}
	if len(triggers) == 0 {
		return fmt.Errorf("scenario %q: no triggers (set triggers in the scenario or blueprint)", h.scenario.Name)
	}

	for i, tr := range triggers {
		p, err := h.compiled.Fire(ctx, h.kernel, tr)
		if p == nil && err != nil {
			return fmt.Errorf("triggers[%d]: %w", i, err)
		}

		settleCtx, cancel := context.WithTimeout(ctx, SettleTimeout)
		err = h.kernel.Settled(settleCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("triggers[%d]: effects did not settle: %w", i, err)
		}
	}
	return nil
}

func (h *Harness) finish(ctx context.Context) (*Result, error) {
	h.mu.Lock()
	result := h.result
	h.mu.Unlock()

	for _, name := range h.compiled.Names() {
		if v, ok := h.kernel.Value(h.compiled.MustID(name)); ok {
			result.Final[name] = v
		}
	}

	passes, err := h.store.ListPasses(ctx, store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read trace store: %w", err)
	}
	result.Stored = len(passes)

	return result, nil
}

func (h *Harness) nodeName(id graph.NodeID) string {
	if h.compiled == nil {
		return id.String()
	}
	return h.compiled.Name(id)
}

// PassStarted records a pass boundary.
func (h *Harness) PassStarted(p *engine.Pass) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result.Passes = append(h.result.Passes, p)
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Type:      EventPass,
		TriggerID: p.TriggerID,
		Seq:       p.Seq,
		Node:      h.nodeName(p.Trigger.Node),
		Input:     p.Trigger.Payload,
	})
}

// NodeExecuted records an execution.
func (h *Harness) NodeExecuted(p *engine.Pass, ex engine.Execution) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev := TraceEvent{
		Type:      EventExecute,
		TriggerID: p.TriggerID,
		Seq:       ex.Seq,
		Node:      h.nodeName(ex.Node),
		Input:     ex.Input,
		Produced:  ex.Produced,
		Failed:    ex.Failed,
		Reentry:   ex.Reentry,
	}
	if ex.Produced {
		ev.Output = ex.Output
	}
	h.result.Trace = append(h.result.Trace, ev)
}

// ErrorReported records a runtime error. p is nil for errors outside a pass.
func (h *Harness) ErrorReported(p *engine.Pass, err *engine.RuntimeError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev := TraceEvent{
		Type: EventError,
		Code: string(err.Code),
	}
	if p != nil {
		ev.TriggerID = p.TriggerID
	}
	if err.NodeID != 0 {
		ev.Node = h.nodeName(err.NodeID)
	}
	h.result.Trace = append(h.result.Trace, ev)
}

// PassFinished records the end of a pass.
func (h *Harness) PassFinished(p *engine.Pass) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Type:      EventFinish,
		TriggerID: p.TriggerID,
		Aborted:   p.Aborted,
	})
}
