package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/roach88/graphite/internal/graph"
)

// Kernel owns a dataflow graph and propagates triggers through it.
//
// Thread-safety model:
//   - Propagate, Settled and the structural methods: safe from any goroutine
//   - Launch: safe from any goroutine, never blocks on a running pass
//   - Watcher.Dispose: safe from anywhere, never takes the kernel lock
//
// INVARIANTS:
//   - at most one pass runs at a time (mu)
//   - the graph is never mutated while a pass walks it; mutations requested
//     from inside a pass are applied when that pass ends
//   - every goroutine that releases mu calls drain afterwards, so a launched
//     trigger is never stranded in the queue
type Kernel struct {
	mu    sync.Mutex
	graph *graph.Graph

	// passG is the goroutine id of the running pass, 0 when idle.
	passG atomic.Int64

	// Only touched by the pass goroutine while mu is held.
	reserved map[graph.NodeID]struct{}
	deferred []deferredOp

	queue    *launchQueue
	inflight atomic.Int64
	signal   chan struct{}

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	maxReentry int
	maxSteps   int
	merge      MergePolicy
	logger     *slog.Logger
	tracer     Tracer
	ids        TriggerIDGenerator
	clock      *Clock

	hmu      sync.RWMutex
	handlers []ErrorHandler
}

// deferredOp is a structural mutation requested during a pass.
type deferredOp struct {
	op    string
	apply func(g *graph.Graph) error
}

// New creates a kernel with an empty graph.
//
// Options can be passed to configure the kernel (e.g., WithMaxReentry).
func New(opts ...KernelOption) *Kernel {
	k := &Kernel{
		graph:      graph.New(),
		reserved:   make(map[graph.NodeID]struct{}),
		queue:      newLaunchQueue(),
		signal:     make(chan struct{}, 1),
		parent:     context.Background(),
		maxReentry: DefaultMaxReentry,
		maxSteps:   DefaultMaxSteps,
		merge:      MergeFirst,
		logger:     slog.Default(),
		tracer:     nopTracer{},
		ids:        UUIDv7Generator{},
		clock:      NewClock(),
	}

	for _, opt := range opts {
		opt(k)
	}

	k.ctx, k.cancel = context.WithCancel(k.parent)
	return k
}

// MaxReentry returns the configured re-entry bound.
func (k *Kernel) MaxReentry() int { return k.maxReentry }

// MaxSteps returns the configured per-pass execution quota.
func (k *Kernel) MaxSteps() int { return k.maxSteps }

// MergePolicy returns the configured tie-break rule.
func (k *Kernel) MergePolicy() MergePolicy { return k.merge }

// Clock returns the kernel's logical clock.
func (k *Kernel) Clock() *Clock { return k.clock }

// QueueLen returns the number of launched triggers waiting for a pass.
func (k *Kernel) QueueLen() int { return k.queue.Len() }

// OnError registers a handler on the error channel.
func (k *Kernel) OnError(h ErrorHandler) {
	if h == nil {
		return
	}
	k.hmu.Lock()
	k.handlers = append(k.handlers, h)
	k.hmu.Unlock()
}

// inPass reports whether the caller is running inside a pass, i.e. on the
// goroutine that currently holds the kernel for a walk.
func (k *Kernel) inPass() bool {
	g := k.passG.Load()
	return g != 0 && g == goid.Get()
}

// withGraph runs fn with exclusive access to the graph.
func (k *Kernel) withGraph(fn func(g *graph.Graph) error) error {
	if k.inPass() {
		return fn(k.graph)
	}
	k.mu.Lock()
	err := fn(k.graph)
	k.mu.Unlock()
	k.drain()
	return err
}

// View calls fn with read access to the graph. fn must not retain g.
func (k *Kernel) View(fn func(g *graph.Graph)) {
	_ = k.withGraph(func(g *graph.Graph) error {
		fn(g)
		return nil
	})
}

// Value returns the local value of a node, as last set by an emit step.
func (k *Kernel) Value(id graph.NodeID) (any, bool) {
	var (
		v  any
		ok bool
	)
	_ = k.withGraph(func(g *graph.Graph) error {
		if n, found := g.Node(id); found {
			v, ok = n.Value()
		}
		return nil
	})
	return v, ok
}

// Propagate runs one pass for payload at node and returns its outcome.
// Triggers launched during the pass run before Propagate returns.
//
// Errors:
//   - *graph.StructuralError if node is unknown (no pass is started)
//   - a cycle-overflow or quota *RuntimeError if the pass was aborted
//   - ctx.Err() if ctx was cancelled mid-pass
//   - ErrNestedPropagate when called from inside a pass
//   - ErrKernelClosed after Close
//
// Step failures do not make Propagate fail; they are on Pass.Errors.
func (k *Kernel) Propagate(ctx context.Context, node graph.NodeID, payload any) (*Pass, error) {
	if k.closed.Load() {
		return nil, ErrKernelClosed
	}
	if k.inPass() {
		return nil, ErrNestedPropagate
	}

	k.mu.Lock()
	p, err := k.runPass(ctx, Trigger{Node: node, Payload: payload})
	k.drainLocked()
	k.mu.Unlock()
	k.drain()

	return p, err
}

// Launch queues payload at node as a new independent trigger and returns
// immediately if another goroutine holds the kernel. Inside a pass the
// trigger runs after the current pass ends.
//
// Returns false if the kernel is closed.
func (k *Kernel) Launch(node graph.NodeID, payload any) bool {
	return k.launch(Trigger{Node: node, Payload: payload})
}

func (k *Kernel) launch(tr Trigger) bool {
	if k.closed.Load() {
		return false
	}
	if !k.queue.Enqueue(tr) {
		return false
	}
	if !k.inPass() {
		k.drain()
	}
	return true
}

// drain runs queued triggers if the kernel is free. If it is not, the
// current holder drains after releasing it.
func (k *Kernel) drain() {
	for k.queue.Len() > 0 {
		if !k.mu.TryLock() {
			return
		}
		k.drainLocked()
		k.mu.Unlock()
	}
	k.notifySettled()
}

// drainLocked runs every queued trigger. Caller must hold mu.
func (k *Kernel) drainLocked() {
	for {
		tr, ok := k.queue.TryDequeue()
		if !ok {
			return
		}
		if tr.Outcome && !k.graph.Has(tr.Node) {
			k.logger.Debug("effect outcome dropped: node removed",
				"node", tr.Node,
			)
			continue
		}
		if _, err := k.runPass(k.ctx, tr); err != nil {
			if graph.IsStructuralError(err) {
				k.report(nil, NewStructuralViolation(err))
				continue
			}
			k.logger.Warn("launched trigger aborted",
				"node", tr.Node,
				"error", err,
			)
		}
	}
}

// Settled blocks until no effect is in flight and no launched trigger is
// waiting, or ctx is done.
func (k *Kernel) Settled(ctx context.Context) error {
	if k.inPass() {
		return ErrNestedPropagate
	}

	for {
		k.mu.Lock()
		k.drainLocked()
		// inflight is read before the queue: an effect enqueues its result
		// before it stops counting as in flight.
		idle := k.inflight.Load() == 0 && k.queue.Len() == 0
		k.mu.Unlock()
		k.drain()

		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-k.signal:
		}
	}
}

func (k *Kernel) notifySettled() {
	select {
	case k.signal <- struct{}{}:
	default:
	}
}

// Close cancels in-flight effects and rejects further triggers.
// Triggers still queued are dropped. Close is idempotent.
func (k *Kernel) Close() error {
	if !k.closed.CompareAndSwap(false, true) {
		return nil
	}
	k.cancel()
	dropped := k.queue.Close()
	k.logger.Info("kernel closed",
		"dropped_triggers", dropped,
		"inflight_effects", k.inflight.Load(),
	)
	k.notifySettled()
	return nil
}

// runPass propagates one trigger. Caller must hold mu.
func (k *Kernel) runPass(ctx context.Context, tr Trigger) (*Pass, error) {
	if !k.graph.Has(tr.Node) {
		return nil, &graph.StructuralError{Op: "propagate", NodeID: tr.Node, Err: graph.ErrUnknownNode}
	}

	p := &Pass{
		TriggerID: k.ids.Generate(),
		Seq:       k.clock.Next(),
		Trigger:   tr,
	}

	k.tracer.PassStarted(p)
	k.logger.Info("pass started",
		"trigger_id", p.TriggerID,
		"node", tr.Node,
		"seq", p.Seq,
	)

	k.passG.Store(goid.Get())
	defer k.passG.Store(0)

	err := k.walk(ctx, p)
	k.applyDeferred(p)

	if err != nil {
		p.Aborted = true
		p.Cause = err
	}

	k.tracer.PassFinished(p)
	k.logger.Info("pass finished",
		"trigger_id", p.TriggerID,
		"executions", len(p.Executions),
		"errors", len(p.Errors),
		"aborted", p.Aborted,
	)

	return p, err
}

// walk drains the pass frontier breadth-first.
func (k *Kernel) walk(ctx context.Context, p *Pass) error {
	class := k.graph.Classification()
	budget := newPassBudget(k.maxSteps, k.maxReentry)

	f := newFrontier()
	f.push(&pending{node: p.Trigger.Node, value: p.Trigger.Payload})

	for {
		item, ok := f.pop()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			k.logger.Warn("pass cancelled",
				"trigger_id", p.TriggerID,
				"error", err,
			)
			return err
		}

		node, ok := k.graph.Node(item.node)
		if !ok {
			continue
		}

		if err := budget.Charge(p.TriggerID, item.node); err != nil {
			re := &RuntimeError{
				Code:      ErrCodeQuotaExceeded,
				Phase:     PhaseSchedule,
				Message:   err.Error(),
				TriggerID: p.TriggerID,
				NodeID:    node.ID(),
				NodeName:  node.Name(),
				Cause:     err,
			}
			k.report(p, re)
			return re
		}

		out, produced, failure := runPipeline(node, item.value)

		ex := Execution{
			Seq:      k.clock.Next(),
			Node:     node.ID(),
			Name:     node.Name(),
			Input:    item.value,
			Output:   out,
			Produced: produced,
			Failed:   failure != nil,
			Reentry:  item.reentry,
		}
		p.Executions = append(p.Executions, ex)
		k.tracer.NodeExecuted(p, ex)

		k.logger.Debug("node executed",
			"trigger_id", p.TriggerID,
			"node", node.Label(),
			"produced", produced,
			"reentry", item.reentry,
		)

		if failure != nil {
			failure.TriggerID = p.TriggerID
			k.report(p, failure)
			continue
		}
		if !produced {
			continue
		}

		k.notify(p, node, out)

		for _, child := range node.Next() {
			if err := k.schedule(p, class, budget, f, node, child, out); err != nil {
				return err
			}
		}
	}
}

// schedule decides whether child runs again in this pass with value v.
func (k *Kernel) schedule(p *Pass, class *graph.Classification, budget *passBudget, f *frontier, parent *graph.Node, child graph.NodeID, v any) error {
	if q, ok := f.queued[child]; ok {
		if k.merge == MergeLast {
			q.value = v
		}
		k.logger.Debug("arrival merged into queued node",
			"trigger_id", p.TriggerID,
			"node", child,
			"from", parent.ID(),
			"policy", k.merge.String(),
		)
		return nil
	}

	runs := budget.Runs(child)
	switch {
	case runs == 0:
	case class.IsCyclic(child) && class.SameComponent(parent.ID(), child):
		if budget.WouldOverflow(child) {
			n, _ := k.graph.Node(child)
			cid, _ := class.Component(child)
			re := NewCycleOverflow(p.TriggerID, n, cid, runs, k.maxReentry)
			k.report(p, re)
			return re
		}
	default:
		k.logger.Debug("arrival dropped: node already executed",
			"trigger_id", p.TriggerID,
			"node", child,
			"from", parent.ID(),
		)
		return nil
	}

	f.push(&pending{node: child, value: v, reentry: runs})
	return nil
}

// notify delivers v to a snapshot of node's watchers.
func (k *Kernel) notify(p *Pass, node *graph.Node, v any) {
	for _, sub := range node.Subscribers().Snapshot() {
		if err := deliver(sub.Fn, v); err != nil {
			re := NewStepFailure(node, PhaseWatch, fmt.Sprintf("watcher#%d", sub.Token), err)
			re.TriggerID = p.TriggerID
			k.report(p, re)
		}
	}
}

func deliver(fn func(any), v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn(v)
	return nil
}

// report sends re to the pass, the tracer, the log and every handler.
// p is nil for errors raised outside a pass.
func (k *Kernel) report(p *Pass, re *RuntimeError) {
	if p != nil {
		p.Errors = append(p.Errors, re)
		k.tracer.ErrorReported(p, re)
	}

	k.logger.Error("runtime error",
		"code", re.Code,
		"phase", re.Phase,
		"trigger_id", re.TriggerID,
		"node", re.NodeID,
		"step", re.Step,
		"error", re.Cause,
	)

	k.hmu.RLock()
	handlers := make([]ErrorHandler, len(k.handlers))
	copy(handlers, k.handlers)
	k.hmu.RUnlock()

	for _, h := range handlers {
		k.callHandler(h, re)
	}
}

func (k *Kernel) callHandler(h ErrorHandler, re *RuntimeError) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("error handler panicked",
				"code", re.Code,
				"panic", r,
			)
		}
	}()
	h(re)
}

// applyDeferred applies mutations requested during the pass, in request
// order. A mutation that no longer applies is reported, not returned.
func (k *Kernel) applyDeferred(p *Pass) {
	for len(k.deferred) > 0 {
		ops := k.deferred
		k.deferred = nil
		for _, d := range ops {
			if err := d.apply(k.graph); err != nil {
				re := NewStructuralViolation(err)
				re.TriggerID = p.TriggerID
				k.report(p, re)
				continue
			}
			k.logger.Debug("deferred mutation applied",
				"trigger_id", p.TriggerID,
				"op", d.op,
			)
		}
	}
	clear(k.reserved)
}

// mutate applies a structural change now, or validates it with check and
// defers it when called from inside a pass.
func (k *Kernel) mutate(op string, check func() error, apply func(g *graph.Graph) error) error {
	if k.closed.Load() {
		return ErrKernelClosed
	}
	if k.inPass() {
		if err := check(); err != nil {
			return err
		}
		k.deferred = append(k.deferred, deferredOp{op: op, apply: apply})
		return nil
	}

	k.mu.Lock()
	err := apply(k.graph)
	k.mu.Unlock()
	k.drain()
	return err
}

// known reports whether id names a live node or one reserved during the
// current pass.
func (k *Kernel) known(op string, ids ...graph.NodeID) error {
	for _, id := range ids {
		if k.graph.Has(id) {
			continue
		}
		if _, ok := k.reserved[id]; ok {
			continue
		}
		return &graph.StructuralError{Op: op, NodeID: id, Err: graph.ErrUnknownNode}
	}
	return nil
}

func checkSteps(op string, id graph.NodeID, steps []graph.Step) error {
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			return &graph.StructuralError{Op: op, NodeID: id, Err: fmt.Errorf("%w: %v", graph.ErrInvalidStep, err)}
		}
	}
	return nil
}

// CreateNode adds a root node. Inside a pass the id is allocated at once
// and the node appears when the pass ends.
func (k *Kernel) CreateNode(kind graph.Kind, name string, steps ...graph.Step) (graph.NodeID, error) {
	if k.closed.Load() {
		return 0, ErrKernelClosed
	}
	if k.inPass() {
		if err := checkSteps("create", 0, steps); err != nil {
			return 0, err
		}
		id := k.graph.Reserve()
		k.reserved[id] = struct{}{}
		k.deferred = append(k.deferred, deferredOp{op: "create", apply: func(g *graph.Graph) error {
			return g.Insert(id, kind, name, steps...)
		}})
		return id, nil
	}

	var id graph.NodeID
	err := k.withGraph(func(g *graph.Graph) error {
		var err error
		id, err = g.CreateNode(kind, name, steps...)
		return err
	})
	return id, err
}

// CreateDerived adds a node owned by owner and links owner → node.
func (k *Kernel) CreateDerived(owner graph.NodeID, kind graph.Kind, name string, steps ...graph.Step) (graph.NodeID, error) {
	if k.closed.Load() {
		return 0, ErrKernelClosed
	}
	if k.inPass() {
		if err := k.known("derive", owner); err != nil {
			return 0, err
		}
		if err := checkSteps("derive", 0, steps); err != nil {
			return 0, err
		}
		id := k.graph.Reserve()
		k.reserved[id] = struct{}{}
		k.deferred = append(k.deferred, deferredOp{op: "derive", apply: func(g *graph.Graph) error {
			if err := g.Insert(id, kind, name, steps...); err != nil {
				return err
			}
			if err := g.Adopt(owner, id); err != nil {
				_, _ = g.RemoveNode(id)
				return err
			}
			return g.Link(owner, id)
		}})
		return id, nil
	}

	var id graph.NodeID
	err := k.withGraph(func(g *graph.Graph) error {
		var err error
		id, err = g.CreateDerived(owner, kind, name, steps...)
		return err
	})
	return id, err
}

// Link adds the edge parent → child. Linking twice has no further effect.
func (k *Kernel) Link(parent, child graph.NodeID) error {
	return k.mutate("link",
		func() error { return k.known("link", parent, child) },
		func(g *graph.Graph) error { return g.Link(parent, child) },
	)
}

// Unlink removes the edge parent → child if present.
func (k *Kernel) Unlink(parent, child graph.NodeID) error {
	return k.mutate("unlink",
		func() error { return k.known("unlink", parent, child) },
		func(g *graph.Graph) error { return g.Unlink(parent, child) },
	)
}

// SetSteps replaces the pipeline of id.
func (k *Kernel) SetSteps(id graph.NodeID, steps ...graph.Step) error {
	return k.mutate("set-steps",
		func() error {
			if err := k.known("set-steps", id); err != nil {
				return err
			}
			return checkSteps("set-steps", id, steps)
		},
		func(g *graph.Graph) error { return g.SetSteps(id, steps...) },
	)
}

// Adopt makes owner the owner of id without linking them.
func (k *Kernel) Adopt(owner, id graph.NodeID) error {
	return k.mutate("adopt",
		func() error {
			if err := k.known("adopt", owner, id); err != nil {
				return err
			}
			if owner == id || k.graph.Owns(id, owner) {
				return &graph.StructuralError{Op: "adopt", NodeID: id, Err: graph.ErrOwnershipCycle}
			}
			return nil
		},
		func(g *graph.Graph) error { return g.Adopt(owner, id) },
	)
}

// RemoveNode removes id, its owned subtree, their edges and watchers.
// Outstanding watchers of removed nodes become no-ops.
func (k *Kernel) RemoveNode(id graph.NodeID) error {
	return k.mutate("remove",
		func() error { return k.known("remove", id) },
		func(g *graph.Graph) error {
			removed, err := g.RemoveNode(id)
			if err != nil {
				return err
			}
			k.logger.Debug("nodes removed",
				"root", id,
				"count", len(removed),
			)
			return nil
		},
	)
}

// Cycles returns the members of every cyclic component, in creation order.
func (k *Kernel) Cycles() [][]graph.NodeID {
	var out [][]graph.NodeID
	k.View(func(g *graph.Graph) {
		class := g.Classification()
		for _, cid := range class.Cyclic() {
			out = append(out, class.Members(cid))
		}
	})
	return out
}

// IsClosed reports whether Close has been called.
func (k *Kernel) IsClosed() bool { return k.closed.Load() }
