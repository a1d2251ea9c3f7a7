package engine

import (
	"fmt"

	"github.com/roach88/graphite/internal/graph"
)

// runPipeline executes node's steps in order on value.
//
// Returns produced=false when a filter rejected the value or a step failed;
// the kernel then does not propagate to node's children. A failing or
// panicking step yields a StepFailure tagged with the node and step.
// A node without steps passes its input through.
func runPipeline(node *graph.Node, value any) (out any, produced bool, failure *RuntimeError) {
	v := value
	for _, s := range node.Steps() {
		next, keep, err := execStep(node, s, v)
		if err != nil {
			return nil, false, NewStepFailure(node, PhaseStep, s.Label(), err)
		}
		if !keep {
			return nil, false, nil
		}
		v = next
	}
	return v, true, nil
}

// execStep runs one step, converting a panic into an error.
func execStep(node *graph.Node, s graph.Step, v any) (out any, keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, keep, err = nil, false, fmt.Errorf("panic: %v", r)
		}
	}()

	switch s.Op {
	case graph.OpTransform:
		out, err = s.Transform(v)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil

	case graph.OpFilter:
		ok, ferr := s.Filter(v)
		if ferr != nil {
			return nil, false, ferr
		}
		return v, ok, nil

	case graph.OpRun:
		if rerr := s.Run(v); rerr != nil {
			return nil, false, rerr
		}
		return v, true, nil

	case graph.OpEmit:
		node.SetValue(v)
		return v, true, nil

	default:
		return nil, false, fmt.Errorf("%w: unknown op %d", graph.ErrInvalidStep, int(s.Op))
	}
}

// pending is a node waiting in the pass frontier.
type pending struct {
	node    graph.NodeID
	value   any
	reentry int
}

// frontier is the FIFO work list of one pass. A node is in queued while it
// waits, so later arrivals can be merged into its entry.
type frontier struct {
	items  []*pending
	queued map[graph.NodeID]*pending
}

func newFrontier() *frontier {
	return &frontier{
		items:  make([]*pending, 0, 16),
		queued: make(map[graph.NodeID]*pending),
	}
}

func (f *frontier) push(p *pending) {
	f.items = append(f.items, p)
	f.queued[p.node] = p
}

func (f *frontier) pop() (*pending, bool) {
	if len(f.items) == 0 {
		return nil, false
	}
	p := f.items[0]
	f.items[0] = nil
	f.items = f.items[1:]
	delete(f.queued, p.node)
	return p, true
}
