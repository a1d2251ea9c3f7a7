package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/graphite/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run scenario contract tests",
		Long: `Run blueprint scenarios through the harness.

Each scenario runs on a fresh kernel with a deterministic clock and trigger
ids, then its assertions are checked. When golden/<scenario>.golden exists
next to the scenario file the trace must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  graphite test ./scenarios
  graphite test ./scenarios --filter "feedback_*"
  graphite test ./scenarios --update
  graphite test ./scenarios/feedback_converges.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	files, err := harness.FindScenarios(path)
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenarios not found: %s", path))
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "bad --filter", err)
	}

	if len(files) == 0 {
		if formatter.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: &harness.SuiteResult{Scenarios: []harness.ScenarioOutcome{}}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	check := compareGolden
	if opts.Update {
		check = updateGolden
	}
	result := harness.RunFiles(commandContext(cmd), files, check)

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if result.Failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_TEST_FAILED",
				Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
			}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else {
		printTests(formatter, result, opts.Update)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// filterScenarios keeps files whose base name (without extension) matches
// the glob pattern. An empty pattern keeps everything.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var out []string
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, f)
		}
	}
	return out, nil
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// compareGolden fails a scenario whose trace differs from its golden file.
// Scenarios without a golden file rely on assertions only.
func compareGolden(path string, scenario *harness.Scenario, result *harness.Result) []string {
	goldenPath := goldenFilePath(path)
	want, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("failed to read golden file: %v", err)}
	}

	got, err := harness.MarshalTrace(scenario.Name, result)
	if err != nil {
		return []string{fmt.Sprintf("failed to marshal trace: %v", err)}
	}
	if !bytes.Equal(bytes.TrimSpace(want), got) {
		return []string{"trace does not match golden file (run with --update to regenerate)"}
	}
	return nil
}

// updateGolden writes the run's trace as the scenario's golden file.
func updateGolden(path string, scenario *harness.Scenario, result *harness.Result) []string {
	goldenPath := goldenFilePath(path)
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return []string{fmt.Sprintf("failed to create golden directory: %v", err)}
	}

	data, err := harness.MarshalTrace(scenario.Name, result)
	if err != nil {
		return []string{fmt.Sprintf("failed to marshal trace: %v", err)}
	}
	if err := os.WriteFile(goldenPath, data, 0644); err != nil {
		return []string{fmt.Sprintf("failed to write golden file: %v", err)}
	}
	return nil
}

func printTests(f *OutputFormatter, result *harness.SuiteResult, updated bool) {
	w := f.Writer
	for _, s := range result.Scenarios {
		name := s.Name
		if name == "" {
			name = filepath.Base(s.Path)
		}
		if !s.Pass {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
			continue
		}
		if updated {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", name)
		} else {
			fmt.Fprintf(w, "✓ %s\n", name)
		}
		f.VerboseLog("  trace %s", s.TraceHash)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
