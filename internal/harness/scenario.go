package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/graphite/internal/blueprint"
)

// Scenario defines a contract test over one blueprint.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Blueprint is the path of the blueprint to run. Relative paths are
	// resolved against the scenario file's directory by LoadScenario.
	Blueprint string `yaml:"blueprint"`

	// Settings override the blueprint's own settings field by field.
	Settings *blueprint.Settings `yaml:"settings,omitempty"`

	// Triggers fired in order. Defaults to the blueprint's triggers.
	Triggers []blueprint.TriggerSpec `yaml:"triggers,omitempty"`

	// Watch lists the nodes to subscribe to. Defaults to every node.
	Watch []string `yaml:"watch,omitempty"`

	// Assertions validate the run.
	Assertions []Assertion `yaml:"assertions"`

	// TriggerPrefix prefixes the sequence trigger ids ("t" gives t-1, t-2, ...).
	TriggerPrefix string `yaml:"trigger_prefix,omitempty"`
}

// Assertion validates one aspect of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Node is the subject node (observed, not_observed, execution_count,
	// final_value).
	Node string `yaml:"node,omitempty"`

	// Values are the expected observations, in order (observed).
	Values []any `yaml:"values,omitempty"`

	// Nodes is the expected execution order (execution_order).
	Nodes []string `yaml:"nodes,omitempty"`

	// Pass selects a pass by run order (execution_order, aborted).
	// Defaults to 0.
	Pass int `yaml:"pass,omitempty"`

	// Code restricts error_count to one runtime error code.
	Code string `yaml:"code,omitempty"`

	// Count is the expected number (execution_count, error_count,
	// stored_passes).
	Count *int `yaml:"count,omitempty"`

	// Value is the expected local value (final_value).
	Value any `yaml:"value,omitempty"`

	// Expect is the expected flag (aborted).
	Expect *bool `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertObserved       = "observed"
	AssertNotObserved    = "not_observed"
	AssertExecutionOrder = "execution_order"
	AssertExecutionCount = "execution_count"
	AssertErrorCount     = "error_count"
	AssertAborted        = "aborted"
	AssertFinalValue     = "final_value"
	AssertStoredPasses   = "stored_passes"
)

// LoadScenario reads and parses a scenario YAML file, resolving the
// blueprint path against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative blueprint path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Blueprint != "" && !filepath.IsAbs(scenario.Blueprint) && basePath != "" {
		scenario.Blueprint = filepath.Join(basePath, scenario.Blueprint)
	}

	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML. Blueprint paths are
// left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Blueprint == "" {
		return fmt.Errorf("blueprint is required")
	}
	for i, tr := range s.Triggers {
		if tr.Node == "" {
			return fmt.Errorf("triggers[%d]: node is required", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needNode := func() error {
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for %s", index, a.Type)
		}
		return nil
	}
	needCount := func() error {
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		return nil
	}

	if a.Pass < 0 {
		return fmt.Errorf("assertions[%d]: pass must be non-negative", index)
	}

	switch a.Type {
	case AssertObserved:
		if err := needNode(); err != nil {
			return err
		}
		if a.Values == nil {
			return fmt.Errorf("assertions[%d]: values are required for observed (use not_observed for none)", index)
		}
	case AssertNotObserved, AssertFinalValue:
		return needNode()
	case AssertExecutionOrder:
		if len(a.Nodes) == 0 {
			return fmt.Errorf("assertions[%d]: nodes list is required for execution_order", index)
		}
	case AssertExecutionCount:
		if err := needNode(); err != nil {
			return err
		}
		return needCount()
	case AssertErrorCount, AssertStoredPasses:
		return needCount()
	case AssertAborted:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for aborted", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
