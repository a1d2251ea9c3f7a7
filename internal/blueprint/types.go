package blueprint

import (
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/roach88/graphite/internal/canon"
	"github.com/roach88/graphite/internal/engine"
)

// Blueprint is a declarative graph definition.
type Blueprint struct {
	// Name identifies the blueprint. Defaults to the file's base name.
	Name string `yaml:"name" json:"name"`

	// Settings configure the kernel the blueprint runs on.
	Settings Settings `yaml:"settings,omitempty" json:"settings,omitempty"`

	// Nodes in declaration order. Creation order drives cycle classification,
	// so the order is significant.
	Nodes []NodeSpec `yaml:"nodes" json:"nodes"`

	// Links in declaration order; a parent's children run in this order.
	Links []LinkSpec `yaml:"links,omitempty" json:"links,omitempty"`

	// Triggers fired, in order, by "graphite run".
	Triggers []TriggerSpec `yaml:"triggers,omitempty" json:"triggers,omitempty"`

	// Source is the file the blueprint was loaded from.
	Source string `yaml:"-" json:"-"`
}

// Hash is the blueprint's content hash. It ignores where the blueprint was
// loaded from and source positions, so the CUE and YAML forms of the same
// graph hash alike.
func (bp *Blueprint) Hash() (string, error) {
	return canon.Hash(canon.DomainBlueprint, bp)
}

// Settings are the kernel options a blueprint may set.
type Settings struct {
	MaxReentry *int   `yaml:"max_reentry,omitempty" json:"max_reentry,omitempty"`
	MaxSteps   *int   `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`
	Merge      string `yaml:"merge,omitempty" json:"merge,omitempty"`
}

// KernelOptions converts settings to kernel options.
func (s Settings) KernelOptions() ([]engine.KernelOption, error) {
	var opts []engine.KernelOption
	if s.MaxReentry != nil {
		if *s.MaxReentry < 0 {
			return nil, fmt.Errorf("max_reentry must be >= 0, got %d", *s.MaxReentry)
		}
		opts = append(opts, engine.WithMaxReentry(*s.MaxReentry))
	}
	if s.MaxSteps != nil {
		if *s.MaxSteps <= 0 {
			return nil, fmt.Errorf("max_steps must be > 0, got %d", *s.MaxSteps)
		}
		opts = append(opts, engine.WithMaxSteps(*s.MaxSteps))
	}
	if s.Merge != "" {
		m, err := engine.ParseMergePolicy(s.Merge)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithMergePolicy(m))
	}
	return opts, nil
}

// NodeSpec declares one node.
type NodeSpec struct {
	Name string `yaml:"name" json:"name"`

	// Kind is event (default), store, effect or domain.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Owner makes this a derived node: owner → node is linked and removing
	// owner removes this node. The owner must be declared earlier.
	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`

	Steps []StepSpec `yaml:"steps,omitempty" json:"steps,omitempty"`

	// Handler names the built-in handler of an effect node.
	Handler string `yaml:"handler,omitempty" json:"handler,omitempty"`

	// Pos is the node's position in a CUE source, if known.
	Pos token.Pos `yaml:"-" json:"-"`
}

// StepSpec declares one pipeline step.
type StepSpec struct {
	// Op is transform, filter, run or emit ("map" is accepted for transform).
	Op string `yaml:"op" json:"op"`

	// Fn names the operator within Op's vocabulary. Emit takes none.
	Fn string `yaml:"fn,omitempty" json:"fn,omitempty"`

	// Arg is the operand of binary operators.
	Arg *int64 `yaml:"arg,omitempty" json:"arg,omitempty"`
}

// LinkSpec declares the edge From → To.
type LinkSpec struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// TriggerSpec is one (node, value) trigger.
type TriggerSpec struct {
	Node  string `yaml:"node" json:"node"`
	Value int64  `yaml:"value" json:"value"`
}

// Outcome node name suffixes of effect nodes.
const (
	DoneSuffix = ".done"
	FailSuffix = ".fail"
)
