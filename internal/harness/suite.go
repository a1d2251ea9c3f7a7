package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes running several scenario files.
type SuiteResult struct {
	Total     int               `json:"total"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Failures  []SuiteFailure    `json:"failures,omitempty"`
}

// ScenarioOutcome is the result of one scenario file, in run order.
type ScenarioOutcome struct {
	Path      string   `json:"path"`
	Name      string   `json:"name,omitempty"`
	Pass      bool     `json:"pass"`
	TraceHash string   `json:"trace_hash,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// Check inspects a completed run and returns extra failure messages.
// The CLI uses it for golden trace comparison.
type Check func(path string, scenario *Scenario, result *Result) []string

// SuiteFailure is one scenario that failed to load, run, or hold.
type SuiteFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	Scenario     string   `json:"scenario,omitempty"`
	Errors       []string `json:"errors"`
}

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios expands path into scenario files: a file is returned as
// is, a directory yields its *.yaml and *.yml files sorted by name.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunFiles loads and runs each scenario file, then applies checks to every
// run that completed. A failing scenario does not stop the suite.
func RunFiles(ctx context.Context, paths []string, checks ...Check) *SuiteResult {
	res := &SuiteResult{Scenarios: []ScenarioOutcome{}}
	for _, path := range paths {
		res.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			res.fail(path, "", err.Error())
			continue
		}

		result, err := RunContext(ctx, scenario)
		if err != nil {
			res.fail(path, scenario.Name, err.Error())
			continue
		}
		errs := append([]string(nil), result.Errors...)
		for _, check := range checks {
			errs = append(errs, check(path, scenario, result)...)
		}
		hash, err := TraceHash(scenario.Name, result)
		if err != nil {
			errs = append(errs, fmt.Sprintf("failed to hash trace: %v", err))
		}
		if len(errs) > 0 {
			res.fail(path, scenario.Name, errs...)
			res.Scenarios[len(res.Scenarios)-1].TraceHash = hash
			continue
		}
		res.Passed++
		res.Scenarios = append(res.Scenarios, ScenarioOutcome{
			Path:      path,
			Name:      scenario.Name,
			Pass:      true,
			TraceHash: hash,
		})
	}
	return res
}

func (r *SuiteResult) fail(path, name string, errs ...string) {
	r.Failed++
	r.Scenarios = append(r.Scenarios, ScenarioOutcome{
		Path:   path,
		Name:   name,
		Errors: errs,
	})
	r.Failures = append(r.Failures, SuiteFailure{
		ScenarioPath: path,
		Scenario:     name,
		Errors:       errs,
	})
}
