package graph

import "sync"

// Node is a vertex of the dataflow graph.
//
// Structure (steps, edges, ownership) is only mutated through Graph methods
// and is read by the kernel under its lock. The local value has its own lock
// because readers may poll it from outside a pass.
type Node struct {
	id    NodeID
	kind  Kind
	name  string
	steps []Step

	next []NodeID // forward edges, in declaration order
	prev []NodeID // reverse edges, in declaration order

	owner NodeID   // 0 when the node is a root
	owned []NodeID // derived nodes torn down with this one

	subscribers *SubscriberList

	valueMu  sync.RWMutex
	value    any
	hasValue bool
}

func newNode(id NodeID, kind Kind, name string, steps []Step) *Node {
	return &Node{
		id:          id,
		kind:        kind,
		name:        name,
		steps:       cloneSteps(steps),
		subscribers: NewSubscriberList(),
	}
}

func (n *Node) ID() NodeID   { return n.id }
func (n *Node) Kind() Kind   { return n.kind }
func (n *Node) Name() string { return n.name }

// Label is the node's name, falling back to its id.
func (n *Node) Label() string {
	if n.name != "" {
		return n.name
	}
	return n.id.String()
}

// Steps returns the pipeline. The slice must not be modified.
func (n *Node) Steps() []Step { return n.steps }

// Next returns a copy of the forward edges in declaration order.
func (n *Node) Next() []NodeID { return cloneIDs(n.next) }

// Prev returns a copy of the reverse edges in declaration order.
func (n *Node) Prev() []NodeID { return cloneIDs(n.prev) }

// Owner returns the owning node, or 0.
func (n *Node) Owner() NodeID { return n.owner }

// Owned returns a copy of the nodes derived from this one.
func (n *Node) Owned() []NodeID { return cloneIDs(n.owned) }

// Subscribers returns the node's subscriber list.
func (n *Node) Subscribers() *SubscriberList { return n.subscribers }

// Value returns the last value recorded by an emit step.
func (n *Node) Value() (any, bool) {
	n.valueMu.RLock()
	defer n.valueMu.RUnlock()
	return n.value, n.hasValue
}

// SetValue records v as the node's local value.
func (n *Node) SetValue(v any) {
	n.valueMu.Lock()
	defer n.valueMu.Unlock()
	n.value = v
	n.hasValue = true
}

func cloneIDs(ids []NodeID) []NodeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]NodeID, len(ids))
	copy(out, ids)
	return out
}

func cloneSteps(steps []Step) []Step {
	if len(steps) == 0 {
		return nil
	}
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	for i, v := range ids {
		if v == id {
			copy(ids[i:], ids[i+1:])
			return ids[:len(ids)-1]
		}
	}
	return ids
}

func containsID(ids []NodeID, id NodeID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
