package engine

import (
	"sync"

	"github.com/roach88/graphite/internal/graph"
)

// WatcherState is the lifecycle state of a Watcher.
type WatcherState int

const (
	WatcherActive WatcherState = iota
	WatcherDisposed
)

func (s WatcherState) String() string {
	if s == WatcherActive {
		return "active"
	}
	return "disposed"
}

// Watcher is one subscriber's membership in a node's subscriber list.
//
// A watcher is bound to exactly one (list, token) pair. Dispose removes the
// entry by token and moves the watcher to WatcherDisposed; every later call
// is a no-op. Disposal never takes the kernel lock, so it is safe from
// inside a watcher callback or a pipeline step.
type Watcher struct {
	mu    sync.Mutex
	state WatcherState
	node  graph.NodeID
	list  *graph.SubscriberList
	token graph.Token
}

// Subscribe attaches fn to node. fn is called with every value node
// produces, on the pass goroutine, after node's pipeline finishes.
//
// Returns a *graph.StructuralError for an unknown node, including one
// created earlier in the same pass and not yet inserted.
func (k *Kernel) Subscribe(node graph.NodeID, fn func(v any)) (*Watcher, error) {
	var w *Watcher
	err := k.withGraph(func(g *graph.Graph) error {
		n, ok := g.Node(node)
		if !ok {
			return &graph.StructuralError{Op: "subscribe", NodeID: node, Err: graph.ErrUnknownNode}
		}
		token, err := n.Subscribers().Add(fn)
		if err != nil {
			return &graph.StructuralError{Op: "subscribe", NodeID: node, Err: err}
		}
		w = &Watcher{
			state: WatcherActive,
			node:  node,
			list:  n.Subscribers(),
			token: token,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Dispose detaches the watcher. Safe to call any number of times, and after
// the node has been removed.
func (w *Watcher) Dispose() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == WatcherDisposed {
		return
	}
	w.list.Remove(w.token)
	w.state = WatcherDisposed
	w.list = nil
}

// Unsubscribe is an alias for Dispose.
func (w *Watcher) Unsubscribe() { w.Dispose() }

// Active reports whether the watcher is still attached. A watcher whose
// node was removed reports false even before Dispose is called.
func (w *Watcher) Active() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == WatcherActive && w.list.Contains(w.token)
}

// State returns the lifecycle state. A watcher whose node was removed is
// disposed.
func (w *Watcher) State() WatcherState {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WatcherActive && w.list.Closed() {
		return WatcherDisposed
	}
	return w.state
}

// Node returns the watched node.
func (w *Watcher) Node() graph.NodeID { return w.node }

// Token returns the subscriber-list token of the watcher.
func (w *Watcher) Token() graph.Token { return w.token }
