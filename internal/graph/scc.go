package graph

// ComponentID identifies a strongly connected component within one
// Classification. Ids are assigned in the order Tarjan's algorithm completes
// components, which is a reverse topological order of the condensed graph.
type ComponentID int

// Classification maps every node to its strongly connected component.
//
// Two nodes share a component if and only if each is reachable from the
// other. A component is cyclic if it has more than one member or its single
// member has a self-loop.
type Classification struct {
	component map[NodeID]ComponentID
	members   [][]NodeID
	cyclic    []bool
}

// Classify runs Tarjan's algorithm over edges.
//
// order fixes the DFS root order (creation order in practice) and edges lists
// successors in declaration order, so the result is fully determined by its
// inputs. Successors that do not appear in order are ignored. Runs in
// O(nodes + edges).
func Classify(order []NodeID, edges map[NodeID][]NodeID) *Classification {
	var (
		index   = 0
		stack   []NodeID
		indices = make(map[NodeID]int, len(order))
		lowlink = make(map[NodeID]int, len(order))
		onStack = make(map[NodeID]bool, len(order))
		known   = make(map[NodeID]int, len(order))
	)

	for i, id := range order {
		known[id] = i
	}

	c := &Classification{
		component: make(map[NodeID]ComponentID, len(order)),
	}

	var strongConnect func(NodeID)
	strongConnect = func(v NodeID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, ok := known[w]; !ok {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] != indices[v] {
			return
		}

		// v is a root: pop its component.
		cid := ComponentID(len(c.members))
		var scc []NodeID
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			c.component[w] = cid
			scc = append(scc, w)
			if w == v {
				break
			}
		}

		sortByPosition(scc, known)
		c.members = append(c.members, scc)
		c.cyclic = append(c.cyclic, len(scc) > 1 || hasSelfLoop(v, edges))
	}

	for _, id := range order {
		if _, visited := indices[id]; !visited {
			strongConnect(id)
		}
	}

	return c
}

// Component returns the component of id.
func (c *Classification) Component(id NodeID) (ComponentID, bool) {
	cid, ok := c.component[id]
	return cid, ok
}

// IsCyclic reports whether id belongs to a cyclic component.
func (c *Classification) IsCyclic(id NodeID) bool {
	cid, ok := c.component[id]
	if !ok {
		return false
	}
	return c.cyclic[cid]
}

// SameComponent reports whether a and b are mutually reachable.
func (c *Classification) SameComponent(a, b NodeID) bool {
	ca, ok := c.component[a]
	if !ok {
		return false
	}
	cb, ok := c.component[b]
	return ok && ca == cb
}

// Members returns the nodes of cid in creation order.
func (c *Classification) Members(cid ComponentID) []NodeID {
	if int(cid) < 0 || int(cid) >= len(c.members) {
		return nil
	}
	return cloneIDs(c.members[cid])
}

// Len returns the number of components.
func (c *Classification) Len() int {
	return len(c.members)
}

// Cyclic returns the ids of every cyclic component in ascending order.
func (c *Classification) Cyclic() []ComponentID {
	var out []ComponentID
	for i, cyc := range c.cyclic {
		if cyc {
			out = append(out, ComponentID(i))
		}
	}
	return out
}

func hasSelfLoop(id NodeID, edges map[NodeID][]NodeID) bool {
	return containsID(edges[id], id)
}

// sortByPosition orders ids by their position in the creation order.
// Components are small in practice; insertion sort keeps this allocation-free.
func sortByPosition(ids []NodeID, pos map[NodeID]int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && pos[ids[j]] < pos[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}
