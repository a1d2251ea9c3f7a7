package blueprint

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/graphite/internal/engine"
	"github.com/roach88/graphite/internal/graph"
)

// Compiled maps a blueprint's names to the node ids created for it.
type Compiled struct {
	Blueprint *Blueprint

	ids     map[string]graph.NodeID
	names   map[graph.NodeID]string
	effects map[string]*engine.EffectUnit
}

// Compile validates bp and builds its graph on k: nodes in declaration
// order, then links in declaration order. Triggers are not fired.
//
// Validation problems are returned together as one aggregated error.
func Compile(bp *Blueprint, k *engine.Kernel) (*Compiled, error) {
	if err := validationErr(Validate(bp)); err != nil {
		return nil, fmt.Errorf("invalid blueprint %q: %w", bp.Name, err)
	}

	c := &Compiled{
		Blueprint: bp,
		ids:       make(map[string]graph.NodeID),
		names:     make(map[graph.NodeID]string),
		effects:   make(map[string]*engine.EffectUnit),
	}

	for _, n := range bp.Nodes {
		if err := c.createNode(k, n); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
	}

	for i, l := range bp.Links {
		if err := k.Link(c.ids[l.From], c.ids[l.To]); err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
	}

	slog.Debug("blueprint compiled",
		"blueprint", bp.Name,
		"nodes", len(c.ids),
		"links", len(bp.Links),
	)

	return c, nil
}

func (c *Compiled) createNode(k *engine.Kernel, n NodeSpec) error {
	kind, err := graph.ParseKind(n.Kind)
	if err != nil {
		return err
	}

	if kind == graph.KindEffect {
		h, _ := Handler(n.Handler)
		unit, err := k.Effect(n.Name, h)
		if err != nil {
			return err
		}
		if n.Owner != "" {
			owner := c.ids[n.Owner]
			if err := k.Adopt(owner, unit.Node); err != nil {
				return err
			}
			if err := k.Link(owner, unit.Node); err != nil {
				return err
			}
		}
		c.effects[n.Name] = unit
		c.record(n.Name, unit.Node)
		c.record(n.Name+DoneSuffix, unit.Done)
		c.record(n.Name+FailSuffix, unit.Fail)
		return nil
	}

	steps, err := BuildSteps(n.Steps)
	if err != nil {
		return err
	}

	var id graph.NodeID
	if n.Owner != "" {
		id, err = k.CreateDerived(c.ids[n.Owner], kind, n.Name, steps...)
	} else {
		id, err = k.CreateNode(kind, n.Name, steps...)
	}
	if err != nil {
		return err
	}
	c.record(n.Name, id)
	return nil
}

func (c *Compiled) record(name string, id graph.NodeID) {
	c.ids[name] = id
	c.names[id] = name
}

// ID returns the node id for name.
func (c *Compiled) ID(name string) (graph.NodeID, bool) {
	id, ok := c.ids[name]
	return id, ok
}

// MustID returns the node id for name, panicking if it is unknown.
func (c *Compiled) MustID(name string) graph.NodeID {
	id, ok := c.ids[name]
	if !ok {
		panic(fmt.Sprintf("blueprint: unknown node %q", name))
	}
	return id
}

// Name returns the blueprint name of id, or id's default label.
func (c *Compiled) Name(id graph.NodeID) string {
	if n, ok := c.names[id]; ok {
		return n
	}
	return id.String()
}

// Names lists every addressable node name, sorted.
func (c *Compiled) Names() []string {
	out := make([]string, 0, len(c.ids))
	for n := range c.ids {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Effect returns the effect unit declared as name.
func (c *Compiled) Effect(name string) (*engine.EffectUnit, bool) {
	u, ok := c.effects[name]
	return u, ok
}

// Fire propagates tr on k.
func (c *Compiled) Fire(ctx context.Context, k *engine.Kernel, tr TriggerSpec) (*engine.Pass, error) {
	id, ok := c.ids[tr.Node]
	if !ok {
		return nil, fmt.Errorf("unknown trigger node %q", tr.Node)
	}
	return k.Propagate(ctx, id, tr.Value)
}

// NewKernel builds a kernel configured by bp's settings, with extra options
// applied after them.
func NewKernel(bp *Blueprint, extra ...engine.KernelOption) (*engine.Kernel, error) {
	opts, err := bp.Settings.KernelOptions()
	if err != nil {
		return nil, err
	}
	return engine.New(append(opts, extra...)...), nil
}
