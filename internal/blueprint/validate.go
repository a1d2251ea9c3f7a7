package blueprint

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/graphite/internal/graph"
)

// Validation error codes (E200-E299)
const (
	ErrNoNodes         = "E201" // at least one node required
	ErrNodeName        = "E202" // node name missing or reserved
	ErrDuplicateNode   = "E203" // node declared twice
	ErrUnknownKind     = "E204" // kind not in event|store|effect|domain
	ErrUnknownOwner    = "E205" // owner missing or declared later
	ErrEffectHandler   = "E206" // effect without a known handler
	ErrEffectShape     = "E207" // effect with steps, or handler on a non-effect
	ErrInvalidStep     = "E208" // unknown op/fn, bad arg, division by zero
	ErrUnknownLinkNode = "E209" // link endpoint not declared
	ErrUnknownTrigger  = "E210" // trigger node not declared
	ErrInvalidSettings = "E211" // settings out of range
)

// ValidationError is one problem found in a blueprint.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a blueprint and returns every problem found
// (does not fail-fast).
func Validate(bp *Blueprint) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := bp.Settings.KernelOptions(); err != nil {
		add(ErrInvalidSettings, "settings", "%v", err)
	}

	if len(bp.Nodes) == 0 {
		add(ErrNoNodes, "nodes", "at least one node is required")
	}

	declared := make(map[string]bool, len(bp.Nodes))
	for i, n := range bp.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		if n.Name != "" {
			field = "nodes." + n.Name
		}
		line := n.Pos.Line()

		switch {
		case n.Name == "":
			errs = append(errs, ValidationError{Code: ErrNodeName, Field: field, Message: "name is required", Line: line})
		case isOutcomeName(n.Name):
			errs = append(errs, ValidationError{Code: ErrNodeName, Field: field,
				Message: fmt.Sprintf("names ending in %q or %q are reserved for effect outcomes", DoneSuffix, FailSuffix), Line: line})
		case declared[n.Name]:
			errs = append(errs, ValidationError{Code: ErrDuplicateNode, Field: field, Message: "node declared more than once", Line: line})
		}

		kind, err := graph.ParseKind(n.Kind)
		if err != nil {
			errs = append(errs, ValidationError{Code: ErrUnknownKind, Field: field + ".kind", Message: err.Error(), Line: line})
		}

		if n.Owner != "" && !declared[n.Owner] {
			errs = append(errs, ValidationError{Code: ErrUnknownOwner, Field: field + ".owner",
				Message: fmt.Sprintf("owner %q must be declared before %q", n.Owner, n.Name), Line: line})
		}

		if kind == graph.KindEffect {
			if _, ok := Handler(n.Handler); !ok {
				errs = append(errs, ValidationError{Code: ErrEffectHandler, Field: field + ".handler",
					Message: fmt.Sprintf("unknown effect handler %q (want one of %v)", n.Handler, HandlerNames()), Line: line})
			}
			if len(n.Steps) > 0 {
				errs = append(errs, ValidationError{Code: ErrEffectShape, Field: field + ".steps",
					Message: "effect nodes take a handler, not steps", Line: line})
			}
		} else if n.Handler != "" {
			errs = append(errs, ValidationError{Code: ErrEffectShape, Field: field + ".handler",
				Message: "handler is only valid on effect nodes", Line: line})
		}

		for j, s := range n.Steps {
			if _, err := BuildStep(s); err != nil {
				errs = append(errs, ValidationError{Code: ErrInvalidStep, Field: fmt.Sprintf("%s.steps[%d]", field, j),
					Message: err.Error(), Line: line})
			}
		}

		if n.Name != "" {
			declared[n.Name] = true
			if kind == graph.KindEffect {
				declared[n.Name+DoneSuffix] = true
				declared[n.Name+FailSuffix] = true
			}
		}
	}

	for i, l := range bp.Links {
		for _, end := range []string{l.From, l.To} {
			if !declared[end] {
				add(ErrUnknownLinkNode, fmt.Sprintf("links[%d]", i), "unknown node %q", end)
			}
		}
	}

	for i, tr := range bp.Triggers {
		if !declared[tr.Node] {
			add(ErrUnknownTrigger, fmt.Sprintf("triggers[%d]", i), "unknown node %q", tr.Node)
		}
	}

	return errs
}

// validationErr folds validation errors into one error, or nil.
func validationErr(errs []ValidationError) error {
	var result *multierror.Error
	for _, e := range errs {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}

func isOutcomeName(name string) bool {
	return strings.HasSuffix(name, DoneSuffix) || strings.HasSuffix(name, FailSuffix)
}
