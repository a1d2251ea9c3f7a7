package blueprint

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Validation Tests
// =============================================================================

func TestValidate_Valid(t *testing.T) {
	bp := &Blueprint{
		Name: "ok",
		Nodes: []NodeSpec{
			{Name: "in"},
			{Name: "sq", Kind: "store", Owner: "in", Steps: []StepSpec{{Op: "transform", Fn: "mul", Arg: i64(2)}}},
			{Name: "fx", Kind: "effect", Handler: "echo"},
		},
		Links:    []LinkSpec{{From: "sq", To: "fx"}, {From: "fx.done", To: "in"}},
		Triggers: []TriggerSpec{{Node: "in", Value: 1}, {Node: "fx.fail", Value: 0}},
	}

	assert.Empty(t, Validate(bp))
}

func TestValidate_CollectsAll(t *testing.T) {
	bp, err := Load("testdata/invalid.cue")
	require.NoError(t, err)

	errs := Validate(bp)
	assert.ElementsMatch(t,
		[]string{ErrUnknownKind, ErrEffectHandler, ErrUnknownOwner, ErrInvalidStep, ErrUnknownLinkNode, ErrUnknownTrigger},
		codes(errs),
	)
	for _, e := range errs {
		if e.Field == "links[0]" || e.Field == "triggers[0]" {
			continue
		}
		assert.Positive(t, e.Line, "node errors carry a line: %v", e)
	}
}

func TestValidate_Names(t *testing.T) {
	tests := []struct {
		name  string
		nodes []NodeSpec
		code  string
	}{
		{"missing name", []NodeSpec{{}}, ErrNodeName},
		{"reserved done suffix", []NodeSpec{{Name: "x.done"}}, ErrNodeName},
		{"reserved fail suffix", []NodeSpec{{Name: "x.fail"}}, ErrNodeName},
		{"duplicate", []NodeSpec{{Name: "a"}, {Name: "a"}}, ErrDuplicateNode},
		{"unknown kind", []NodeSpec{{Name: "a", Kind: "widget"}}, ErrUnknownKind},
		{"owner declared later", []NodeSpec{{Name: "a", Owner: "b"}, {Name: "b"}}, ErrUnknownOwner},
		{"self owner", []NodeSpec{{Name: "a", Owner: "a"}}, ErrUnknownOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&Blueprint{Nodes: tt.nodes})
			require.Len(t, errs, 1, "%v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestValidate_EffectShape(t *testing.T) {
	tests := []struct {
		name string
		node NodeSpec
		want []string
	}{
		{"missing handler", NodeSpec{Name: "fx", Kind: "effect"}, []string{ErrEffectHandler}},
		{"unknown handler", NodeSpec{Name: "fx", Kind: "effect", Handler: "nope"}, []string{ErrEffectHandler}},
		{"effect with steps", NodeSpec{Name: "fx", Kind: "effect", Handler: "echo", Steps: []StepSpec{{Op: "emit"}}}, []string{ErrEffectShape}},
		{"handler on event", NodeSpec{Name: "e", Handler: "echo"}, []string{ErrEffectShape}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&Blueprint{Nodes: []NodeSpec{tt.node}})
			assert.Equal(t, tt.want, codes(errs))
		})
	}
}

func TestValidate_Settings(t *testing.T) {
	neg := -1
	zero := 0

	tests := []struct {
		name     string
		settings Settings
		valid    bool
	}{
		{"empty", Settings{}, true},
		{"zero reentry", Settings{MaxReentry: &zero}, true},
		{"negative reentry", Settings{MaxReentry: &neg}, false},
		{"zero steps", Settings{MaxSteps: &zero}, false},
		{"merge last", Settings{Merge: "last"}, true},
		{"merge unknown", Settings{Merge: "middle"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&Blueprint{Settings: tt.settings, Nodes: []NodeSpec{{Name: "a"}}})
			if tt.valid {
				assert.Empty(t, errs)
			} else {
				assert.Equal(t, []string{ErrInvalidSettings}, codes(errs))
			}
		})
	}
}

func TestValidate_OutcomeNodesAddressable(t *testing.T) {
	bp := &Blueprint{
		Nodes: []NodeSpec{{Name: "log"}},
		Links: []LinkSpec{{From: "fx.done", To: "log"}},
	}
	errs := Validate(bp)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownLinkNode, errs[0].Code, "outcome nodes exist only for declared effects")
}

func TestValidationErr_Aggregates(t *testing.T) {
	assert.NoError(t, validationErr(nil))

	err := validationErr([]ValidationError{
		{Code: ErrNoNodes, Field: "nodes", Message: "x"},
		{Code: ErrUnknownTrigger, Field: "triggers[0]", Message: "y"},
	})
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
}

func TestValidationError_Format(t *testing.T) {
	assert.Equal(t, "[E201] nodes: msg", ValidationError{Code: ErrNoNodes, Field: "nodes", Message: "msg"}.Error())
	assert.Equal(t, "[E203] line 4: nodes.a: msg", ValidationError{Code: ErrDuplicateNode, Field: "nodes.a", Message: "msg", Line: 4}.Error())
}

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func i64(v int64) *int64 { return &v }
