package blueprint

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// LoadError is a blueprint that could not be read or decoded.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a blueprint from path. The format follows the extension:
// .cue, or .yaml/.yml.
func Load(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprint: %w", err)
	}

	var bp *Blueprint
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		bp, err = ParseCUE(data, path)
	case ".yaml", ".yml":
		bp, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported blueprint format %q (want .cue, .yaml or .yml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	bp.Source = path
	if bp.Name == "" {
		bp.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return bp, nil
}

// ParseYAML decodes a YAML blueprint. Unknown fields are rejected so typos
// ("link:" for "links:") fail loudly.
func ParseYAML(data []byte) (*Blueprint, error) {
	var bp Blueprint
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bp); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &bp, nil
}

// ParseCUE evaluates a CUE blueprint. Nodes are declared as a struct keyed by
// node name; field order is declaration order.
func ParseCUE(data []byte, filename string) (*Blueprint, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if err := checkFields(v, "", "name", "settings", "nodes", "links", "triggers"); err != nil {
		return nil, err
	}

	bp := &Blueprint{}

	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		bp.Name = name
	}

	if sv := v.LookupPath(cue.ParsePath("settings")); sv.Exists() {
		if err := checkFields(sv, "settings", "max_reentry", "max_steps", "merge"); err != nil {
			return nil, err
		}
		if err := sv.Decode(&bp.Settings); err != nil {
			return nil, formatCUEError(err)
		}
	}

	nodes, err := parseNodes(v)
	if err != nil {
		return nil, err
	}
	bp.Nodes = nodes

	if lv := v.LookupPath(cue.ParsePath("links")); lv.Exists() {
		if err := lv.Decode(&bp.Links); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if tv := v.LookupPath(cue.ParsePath("triggers")); tv.Exists() {
		if err := tv.Decode(&bp.Triggers); err != nil {
			return nil, formatCUEError(err)
		}
	}

	return bp, nil
}

// parseNodes reads the nodes struct in field order.
func parseNodes(v cue.Value) ([]NodeSpec, error) {
	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil, nil
	}

	iter, err := nodesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []NodeSpec
	for iter.Next() {
		name := iter.Label()
		nv := iter.Value()

		if err := checkFields(nv, "nodes."+name, "kind", "owner", "steps", "handler"); err != nil {
			return nil, err
		}

		var n NodeSpec
		if err := nv.Decode(&n); err != nil {
			return nil, formatCUEError(err)
		}
		n.Name = name
		n.Pos = nv.Pos()
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// checkFields rejects labels of v outside allowed, mirroring the YAML
// decoder's KnownFields.
func checkFields(v cue.Value, field string, allowed ...string) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Label()
		known := false
		for _, a := range allowed {
			if label == a {
				known = true
				break
			}
		}
		if !known {
			f := label
			if field != "" {
				f = field + "." + label
			}
			return &LoadError{
				Field:   f,
				Message: fmt.Sprintf("unknown field %q", label),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
