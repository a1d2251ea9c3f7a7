package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/graphite/internal/blueprint"
)

// ValidationResult holds validation results for every blueprint checked.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Blueprints []BlueprintReport `json:"blueprints"`
}

// BlueprintReport is the validation outcome of one blueprint file.
type BlueprintReport struct {
	Path     string                      `json:"path"`
	Name     string                      `json:"name,omitempty"`
	Hash     string                      `json:"hash,omitempty"`
	Errors   []blueprint.ValidationError `json:"errors,omitempty"`
	Warnings []blueprint.CycleWarning    `json:"warnings,omitempty"`
}

// Valid reports whether the blueprint has no errors. Warnings do not count.
func (r BlueprintReport) Valid() bool {
	return len(r.Errors) == 0
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <blueprint|dir>",
		Short: "Validate blueprints without running them",
		Long: `Validate blueprint files without running them.

Checks syntax, unknown fields, node and link declarations, step operators
and settings. Feedback loops are reported as warnings: they are legal as
long as a filter eventually stops them within the re-entry bound.

Exit codes:
  0 - All blueprints valid (warnings allowed)
  1 - One or more blueprints invalid
  2 - Command error (path not found, no blueprint files)

Examples:
  graphite validate ./blueprints/feedback.yaml
  graphite validate ./blueprints --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, loadErrs := LoadBlueprints(path)
	if len(loaded) == 0 && len(loadErrs) == 1 {
		code := errorCode(loadErrs[0])
		if code == ErrCodeNotFound || code == ErrCodeNoFiles || code == ErrCodeScanError {
			_ = formatter.Error(code, loadErrs[0].Error(), nil)
			return WrapExitError(ExitCommandError, "cannot load blueprints", loadErrs[0])
		}
	}

	result := ValidationResult{Valid: true}
	for _, err := range loadErrs {
		report := BlueprintReport{Errors: []blueprint.ValidationError{loadValidationError(err)}}
		if le, ok := err.(*LoadError); ok {
			report.Path = le.Path
		}
		result.Blueprints = append(result.Blueprints, report)
	}
	for _, lb := range loaded {
		formatter.VerboseLog("Validating %s", lb.Path)
		result.Blueprints = append(result.Blueprints, validateBlueprint(lb))
	}
	for _, r := range result.Blueprints {
		if !r.Valid() {
			result.Valid = false
		}
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			first := firstValidationError(result)
			resp.Status = "error"
			resp.Error = &CLIError{Code: first.Code, Message: first.Message}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else {
		printValidation(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", countValidationErrors(result)))
	}
	return nil
}

func validateBlueprint(lb LoadedBlueprint) BlueprintReport {
	report := BlueprintReport{
		Path:   lb.Path,
		Name:   lb.Blueprint.Name,
		Errors: blueprint.Validate(lb.Blueprint),
	}
	if len(report.Errors) > 0 {
		return report
	}
	report.Warnings = blueprint.Cycles(lb.Blueprint)
	if hash, err := lb.Blueprint.Hash(); err == nil {
		report.Hash = hash
	}
	return report
}

// loadValidationError reports a load failure in validation-error shape.
func loadValidationError(err error) blueprint.ValidationError {
	if le, ok := err.(*LoadError); ok {
		return blueprint.ValidationError{
			Field:   "load",
			Message: le.Message,
			Code:    le.Code,
			Line:    le.Line(),
		}
	}
	return blueprint.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

func firstValidationError(result ValidationResult) blueprint.ValidationError {
	for _, r := range result.Blueprints {
		if len(r.Errors) > 0 {
			return r.Errors[0]
		}
	}
	return blueprint.ValidationError{}
}

func countValidationErrors(result ValidationResult) int {
	n := 0
	for _, r := range result.Blueprints {
		n += len(r.Errors)
	}
	return n
}

func printValidation(f *OutputFormatter, result ValidationResult) {
	w := f.Writer
	for _, r := range result.Blueprints {
		label := r.Path
		if r.Name != "" {
			label = fmt.Sprintf("%s (%s)", r.Name, r.Path)
		}

		if !r.Valid() {
			fmt.Fprintf(w, "✗ %s\n", label)
			for _, e := range r.Errors {
				if e.Line > 0 {
					fmt.Fprintf(w, "  line %d: %s: %s\n", e.Line, e.Code, e.Message)
				} else {
					fmt.Fprintf(w, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
				}
			}
			continue
		}

		fmt.Fprintf(w, "✓ %s\n", label)
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  %s: %s\n", warn.Level, warn.Message)
		}
		if r.Hash != "" {
			f.VerboseLog("  hash %s", r.Hash)
		}
	}

	if result.Valid {
		fmt.Fprintln(w, "✓ All blueprints valid")
	} else {
		fmt.Fprintln(w, "✗ Validation failed")
	}
}
