package graph

import "fmt"

// Graph is an arena of nodes indexed by NodeID.
//
// INVARIANTS:
//   - every id in any node's next/prev/owned lists names a live node
//   - next and prev are mirror images of each other
//   - order lists live nodes in creation order
//   - version increases on every structural change
//
// Not safe for concurrent use.
type Graph struct {
	nodes  map[NodeID]*Node
	order  []NodeID
	nextID NodeID

	version uint64

	classified   *Classification
	classifiedAt uint64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node),
	}
}

// Reserve allocates an id without inserting a node. Used by callers that must
// hand out an id now and insert the node later (see Insert).
func (g *Graph) Reserve() NodeID {
	g.nextID++
	return g.nextID
}

// Insert adds a node under an id obtained from Reserve.
func (g *Graph) Insert(id NodeID, kind Kind, name string, steps ...Step) error {
	if id == 0 || id > g.nextID {
		return unknownNode("insert", id)
	}
	if _, exists := g.nodes[id]; exists {
		return &StructuralError{Op: "insert", NodeID: id, Err: fmt.Errorf("node already exists")}
	}
	if err := validateSteps("insert", id, steps); err != nil {
		return err
	}

	g.nodes[id] = newNode(id, kind, name, steps)
	g.order = append(g.order, id)
	g.version++
	return nil
}

// CreateNode allocates a new root node and returns its id.
// Steps with a function that does not match their op are rejected.
func (g *Graph) CreateNode(kind Kind, name string, steps ...Step) (NodeID, error) {
	id := g.Reserve()
	if err := g.Insert(id, kind, name, steps...); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateDerived creates a node owned by owner and links owner → node.
// Removing owner later removes the derived node too.
func (g *Graph) CreateDerived(owner NodeID, kind Kind, name string, steps ...Step) (NodeID, error) {
	parent, ok := g.nodes[owner]
	if !ok {
		return 0, unknownNode("derive", owner)
	}

	id, err := g.CreateNode(kind, name, steps...)
	if err != nil {
		return 0, err
	}

	child := g.nodes[id]
	child.owner = owner
	parent.owned = append(parent.owned, id)

	if err := g.Link(owner, id); err != nil {
		return 0, err
	}
	return id, nil
}

// Adopt records owner as the owner of id, so removing owner cascades to id.
func (g *Graph) Adopt(owner, id NodeID) error {
	parent, ok := g.nodes[owner]
	if !ok {
		return unknownNode("adopt", owner)
	}
	child, ok := g.nodes[id]
	if !ok {
		return unknownNode("adopt", id)
	}
	if owner == id || g.Owns(id, owner) {
		return &StructuralError{Op: "adopt", NodeID: id, Err: ErrOwnershipCycle}
	}
	if child.owner == owner {
		return nil
	}
	if child.owner != 0 {
		if prevOwner, ok := g.nodes[child.owner]; ok {
			prevOwner.owned = removeID(prevOwner.owned, id)
		}
	}
	child.owner = owner
	parent.owned = append(parent.owned, id)
	g.version++
	return nil
}

// Owns reports whether ancestor transitively owns id.
func (g *Graph) Owns(ancestor, id NodeID) bool {
	seen := make(map[NodeID]bool)
	for n, ok := g.nodes[id]; ok && n.owner != 0; n, ok = g.nodes[n.owner] {
		if n.owner == ancestor {
			return true
		}
		if seen[n.owner] {
			return false
		}
		seen[n.owner] = true
	}
	return false
}

// Has reports whether id names a live node.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns live node ids in creation order.
func (g *Graph) Nodes() []NodeID {
	return cloneIDs(g.order)
}

// Children returns the forward edges of id in declaration order.
func (g *Graph) Children(id NodeID) []NodeID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return cloneIDs(n.next)
}

// Version returns a counter that changes on every structural mutation.
func (g *Graph) Version() uint64 {
	return g.version
}

// Link adds the edge parent → child. Linking an existing edge is a no-op.
func (g *Graph) Link(parent, child NodeID) error {
	p, ok := g.nodes[parent]
	if !ok {
		return unknownNode("link", parent)
	}
	c, ok := g.nodes[child]
	if !ok {
		return unknownNode("link", child)
	}

	if containsID(p.next, child) {
		return nil
	}

	p.next = append(p.next, child)
	c.prev = append(c.prev, parent)
	g.version++
	return nil
}

// Unlink removes the edge parent → child. A missing edge is a no-op.
func (g *Graph) Unlink(parent, child NodeID) error {
	p, ok := g.nodes[parent]
	if !ok {
		return unknownNode("unlink", parent)
	}
	c, ok := g.nodes[child]
	if !ok {
		return unknownNode("unlink", child)
	}

	if !containsID(p.next, child) {
		return nil
	}

	p.next = removeID(p.next, child)
	c.prev = removeID(c.prev, parent)
	g.version++
	return nil
}

// SetSteps replaces the pipeline of id.
func (g *Graph) SetSteps(id NodeID, steps ...Step) error {
	n, ok := g.nodes[id]
	if !ok {
		return unknownNode("set-steps", id)
	}
	if err := validateSteps("set-steps", id, steps); err != nil {
		return err
	}
	n.steps = cloneSteps(steps)
	g.version++
	return nil
}

// RemoveNode removes id and every node it transitively owns. All edges
// touching removed nodes are dropped and their subscriber lists are closed.
// Returns the removed ids, owner first.
func (g *Graph) RemoveNode(id NodeID) ([]NodeID, error) {
	root, ok := g.nodes[id]
	if !ok {
		return nil, unknownNode("remove", id)
	}

	// Collect the ownership subtree before touching anything.
	var doomed []NodeID
	visited := make(map[NodeID]bool)
	var collect func(n *Node)
	collect = func(n *Node) {
		if visited[n.id] {
			return
		}
		visited[n.id] = true
		doomed = append(doomed, n.id)
		for _, child := range n.owned {
			if c, ok := g.nodes[child]; ok {
				collect(c)
			}
		}
	}
	collect(root)

	if root.owner != 0 {
		if o, ok := g.nodes[root.owner]; ok {
			o.owned = removeID(o.owned, id)
		}
	}

	for _, d := range doomed {
		n := g.nodes[d]
		for _, child := range n.next {
			if c, ok := g.nodes[child]; ok {
				c.prev = removeID(c.prev, d)
			}
		}
		for _, parent := range n.prev {
			if p, ok := g.nodes[parent]; ok {
				p.next = removeID(p.next, d)
			}
		}
		n.next = nil
		n.prev = nil
		n.owned = nil
		n.subscribers.Close()
		delete(g.nodes, d)
	}

	live := g.order[:0]
	for _, n := range g.order {
		if _, ok := g.nodes[n]; ok {
			live = append(live, n)
		}
	}
	g.order = live
	g.version++

	return doomed, nil
}

// Edges returns the forward adjacency of every live node.
func (g *Graph) Edges() map[NodeID][]NodeID {
	edges := make(map[NodeID][]NodeID, len(g.nodes))
	for id, n := range g.nodes {
		edges[id] = cloneIDs(n.next)
	}
	return edges
}

// Classification returns the SCC classification of the current edge set,
// recomputing it if the graph changed since the last call.
func (g *Graph) Classification() *Classification {
	if g.classified == nil || g.classifiedAt != g.version {
		g.classified = Classify(g.order, g.Edges())
		g.classifiedAt = g.version
	}
	return g.classified
}

func validateSteps(op string, id NodeID, steps []Step) error {
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			return &StructuralError{Op: op, NodeID: id, Err: fmt.Errorf("%w: %v", ErrInvalidStep, err)}
		}
	}
	return nil
}
