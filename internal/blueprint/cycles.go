package blueprint

import (
	"fmt"
	"strings"

	"github.com/roach88/graphite/internal/graph"
)

// CycleWarning reports a cyclic component of a blueprint's graph.
//
// Cycles are warnings, not errors: a feedback loop whose filter eventually
// rejects the value converges within the re-entry bound. Unbounded loops are
// caught at run time as cycle overflows.
type CycleWarning struct {
	Path    []string `json:"path"`    // e.g. ["a", "b", "c", "a"]
	Members []string `json:"members"` // component members in declaration order
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning"
}

// Cycles classifies bp's graph the same way the kernel does and reports
// every cyclic component. A valid DAG returns an empty slice.
//
// Names that are not declared are ignored; run Validate first.
func Cycles(bp *Blueprint) []CycleWarning {
	var (
		order []graph.NodeID
		ids   = make(map[string]graph.NodeID)
		names = make(map[graph.NodeID]string)
		edges = make(map[graph.NodeID][]graph.NodeID)
	)

	declare := func(name string) {
		if _, dup := ids[name]; dup || name == "" {
			return
		}
		id := graph.NodeID(len(order) + 1)
		ids[name] = id
		names[id] = name
		order = append(order, id)
	}
	link := func(from, to string) {
		f, ok1 := ids[from]
		t, ok2 := ids[to]
		if !ok1 || !ok2 {
			return
		}
		for _, existing := range edges[f] {
			if existing == t {
				return
			}
		}
		edges[f] = append(edges[f], t)
	}

	for _, n := range bp.Nodes {
		declare(n.Name)
		if kind, _ := graph.ParseKind(n.Kind); kind == graph.KindEffect {
			declare(n.Name + DoneSuffix)
			declare(n.Name + FailSuffix)
		}
		if n.Owner != "" {
			link(n.Owner, n.Name)
		}
	}
	for _, l := range bp.Links {
		link(l.From, l.To)
	}

	class := graph.Classify(order, edges)

	warnings := []CycleWarning{}
	for _, cid := range class.Cyclic() {
		members := class.Members(cid)
		path := cyclePath(members, edges)

		w := CycleWarning{
			Path:    toNames(path, names),
			Members: toNames(members, names),
			Level:   "warning",
		}
		if len(members) == 1 {
			w.Message = fmt.Sprintf("self-loop on %s", w.Members[0])
		} else {
			w.Message = fmt.Sprintf("cycle: %s", strings.Join(w.Path, " → "))
		}
		warnings = append(warnings, w)
	}
	return warnings
}

// cyclePath returns a shortest closed walk from the first member back to
// itself, staying inside the component.
func cyclePath(members []graph.NodeID, edges map[graph.NodeID][]graph.NodeID) []graph.NodeID {
	start := members[0]
	in := make(map[graph.NodeID]bool, len(members))
	for _, m := range members {
		in[m] = true
	}

	parent := map[graph.NodeID]graph.NodeID{}
	queue := []graph.NodeID{start}
	seen := map[graph.NodeID]bool{start: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if next == start {
				path := []graph.NodeID{start}
				for n := cur; n != start; n = parent[n] {
					path = append(path, 0)
					copy(path[2:], path[1:])
					path[1] = n
				}
				return append(path, start)
			}
			if in[next] && !seen[next] {
				seen[next] = true
				parent[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return []graph.NodeID{start, start}
}

func toNames(ids []graph.NodeID, names map[graph.NodeID]string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = names[id]
	}
	return out
}
