package engine

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/graphite/internal/graph"
)

// Trigger is one request to propagate payload from node.
type Trigger struct {
	Node    graph.NodeID
	Payload any

	// Outcome marks an effect result. It is dropped, not reported, if its
	// node was removed while the handler ran.
	Outcome bool
}

// TriggerIDGenerator generates correlation ids for passes.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type TriggerIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 trigger ids, so stored
// passes sort by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined trigger ids, then falls back to a
// numbered "<prefix>-N" sequence once they are exhausted.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	ids    []string
	idx    int
	prefix string
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("t-1", "t-2")
//	gen.Generate() // "t-1"
//	gen.Generate() // "t-2"
//	gen.Generate() // "trigger-3"
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids, prefix: "trigger"}
}

// NewSequenceGenerator returns a generator producing "<prefix>-1", "<prefix>-2", ...
func NewSequenceGenerator(prefix string) *FixedGenerator {
	return &FixedGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.idx++
	if g.idx <= len(g.ids) {
		return g.ids[g.idx-1]
	}
	return g.prefix + "-" + strconv.Itoa(g.idx)
}

// Clock is a monotonic logical clock stamping passes and node executions.
// Wall-clock time is never used for ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
// Used to continue a sequence persisted in a trace store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
