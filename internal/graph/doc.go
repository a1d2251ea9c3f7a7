// Package graph holds the in-memory dataflow graph walked by the kernel.
//
// The graph is an arena of nodes indexed by stable integer ids. Each node
// carries:
//   - an ordered step pipeline (transform, filter, run, emit)
//   - ordered forward edges to its dependents, plus reverse edges
//   - an optional owner, forming a derivation tree used for cascading removal
//   - a subscriber list holding watcher callbacks
//
// Edges are adjacency lists of ids, never pointers, so removing a node can
// always find and drop every edge that touches it. Ids are never reused.
//
// # Cycle analysis
//
// Classify runs Tarjan's strongly-connected-components algorithm over an
// edge set. It is a pure function: the same creation order and the same edge
// lists always yield the same component ids. Graph.Classification caches the
// result per graph version, so any structural change forces a rebuild before
// the next read.
//
// # Concurrency
//
// Graph is not safe for concurrent use. The engine serialises every access
// behind its own lock. SubscriberList is the exception: it has its own mutex
// because watchers may be disposed from any goroutine, including from inside
// a callback that the kernel is currently delivering.
package graph
