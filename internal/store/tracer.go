package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/graphite/internal/engine"
	"github.com/roach88/graphite/internal/graph"
)

// Tracer writes every finished pass to a Store. Install it with
// engine.WithTracer.
//
// Writes happen synchronously in PassFinished. A failed write is logged and
// remembered (see Err); it never fails the pass.
type Tracer struct {
	store  *Store
	meta   Meta
	names  func(graph.NodeID) string
	logger *slog.Logger

	mu      sync.Mutex
	err     error
	written int
}

var _ engine.Tracer = (*Tracer)(nil)

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithMeta labels written passes with a blueprint name and hash.
func WithMeta(m Meta) TracerOption {
	return func(t *Tracer) { t.meta = m }
}

// WithNodeNames resolves node ids to stored names. By default the kernel's
// node names are used.
func WithNodeNames(fn func(graph.NodeID) string) TracerOption {
	return func(t *Tracer) { t.names = fn }
}

// WithTracerLogger sets the logger for write failures.
func WithTracerLogger(l *slog.Logger) TracerOption {
	return func(t *Tracer) {
		if l != nil {
			t.logger = l
		}
	}
}

// Tracer returns a tracer writing to s.
func (s *Store) Tracer(opts ...TracerOption) *Tracer {
	t := &Tracer{store: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracer) PassStarted(*engine.Pass)                         {}
func (t *Tracer) NodeExecuted(*engine.Pass, engine.Execution)      {}
func (t *Tracer) ErrorReported(*engine.Pass, *engine.RuntimeError) {}

// PassFinished stores p.
func (t *Tracer) PassFinished(p *engine.Pass) {
	rec := NewPassRecord(p, t.meta, t.names)
	err := t.store.WritePass(context.Background(), rec)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.logger.Error("failed to store pass",
			"trigger_id", p.TriggerID,
			"error", err,
		)
		if t.err == nil {
			t.err = err
		}
		return
	}
	t.written++
}

// Err returns the first write failure, if any.
func (t *Tracer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Written returns the number of passes stored.
func (t *Tracer) Written() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written
}
