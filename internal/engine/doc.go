// Package engine implements the graphite propagation kernel.
//
// The kernel owns a graph.Graph and drives triggers through it. A trigger is
// a (node, payload) pair; propagating it is one pass.
//
// ARCHITECTURE:
//
// Single-Writer Passes:
// One mutex serialises passes and structural mutation. A pass runs to
// completion, including every watcher callback and side-effect step it
// reaches, before the next pass or mutation starts. This ensures:
// - Deterministic execution order for the same graph and trigger
// - No structural write races an in-flight walk
// - Simple reasoning about what a watcher can observe
//
// Pass Flow:
// 1. The trigger node is pushed onto a FIFO frontier
// 2. Each popped node runs its step pipeline (transform, filter, run, emit)
// 3. A produced value is delivered to a snapshot of the node's watchers
// 4. Children are enqueued in edge declaration order
// 5. Step failures are reported and stay local to the failing node
//
// Re-entrant Calls:
// Code running inside a pass (steps, watchers) runs on the pass goroutine,
// which already holds the kernel lock. Such calls are detected by goroutine
// id. Structural mutations are validated immediately and applied when the
// pass ends. Launch enqueues an independent trigger that runs after the
// current pass. Watcher disposal never takes the kernel lock.
//
// Async Effects:
// Effect units dispatch their handler on a goroutine and return to the pass
// immediately. The handler's result re-enters the graph as a new trigger on
// the effect's done or fail node.
//
// CRITICAL PATTERNS:
//
// Cycle Handling
// A node outside any cyclic component executes at most once per pass. A node
// inside one may re-execute only when the value comes from its own component,
// and at most WithMaxReentry times. Overflow aborts the pass.
//
// Deterministic Scheduling
// Children run in edge declaration order. The SCC classification follows node
// creation order and is rebuilt before any pass that follows a mutation.
package engine
