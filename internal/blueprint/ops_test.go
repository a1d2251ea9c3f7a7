package blueprint

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphite/internal/graph"
)

func TestBuildStep_Transforms(t *testing.T) {
	tests := []struct {
		fn    string
		arg   *int64
		in    any
		want  int64
		label string
	}{
		{"identity", nil, int64(5), 5, "identity"},
		{"neg", nil, 5, -5, "neg"},
		{"abs", nil, int64(-5), 5, "abs"},
		{"add", i64(3), int64(4), 7, "add(3)"},
		{"sub", i64(3), int64(4), 1, "sub(3)"},
		{"mul", i64(3), int32(4), 12, "mul(3)"},
		{"div", i64(2), int64(7), 3, "div(2)"},
		{"mod", i64(2), int64(7), 1, "mod(2)"},
		{"add", i64(1), float64(2), 3, "add(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			step, err := BuildStep(StepSpec{Op: "transform", Fn: tt.fn, Arg: tt.arg})
			require.NoError(t, err)
			assert.Equal(t, graph.OpTransform, step.Op)
			assert.Equal(t, tt.label, step.Name)

			out, err := step.Transform(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestBuildStep_Filters(t *testing.T) {
	tests := []struct {
		fn   string
		arg  *int64
		in   int64
		want bool
	}{
		{"gt", i64(0), 1, true},
		{"gt", i64(0), 0, false},
		{"ge", i64(0), 0, true},
		{"lt", i64(3), 3, false},
		{"le", i64(3), 3, true},
		{"eq", i64(3), 3, true},
		{"ne", i64(3), 3, false},
		{"even", nil, 4, true},
		{"odd", nil, 4, false},
	}

	for _, tt := range tests {
		step, err := BuildStep(StepSpec{Op: "filter", Fn: tt.fn, Arg: tt.arg})
		require.NoError(t, err, tt.fn)

		keep, err := step.Filter(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, keep, "%s(%v) on %d", tt.fn, tt.arg, tt.in)
	}
}

func TestBuildStep_MapAlias(t *testing.T) {
	step, err := BuildStep(StepSpec{Op: "map", Fn: "neg"})
	require.NoError(t, err)
	assert.Equal(t, graph.OpTransform, step.Op)
}

func TestBuildStep_Run(t *testing.T) {
	step, err := BuildStep(StepSpec{Op: "run", Fn: "fail"})
	require.NoError(t, err)
	assert.ErrorIs(t, step.Run(1), ErrFailStep)

	step, err = BuildStep(StepSpec{Op: "run", Fn: "log"})
	require.NoError(t, err)
	assert.NoError(t, step.Run(1))

	step, err = BuildStep(StepSpec{Op: "run", Fn: "panic"})
	require.NoError(t, err)
	assert.Panics(t, func() { _ = step.Run(1) })
}

func TestBuildStep_Emit(t *testing.T) {
	step, err := BuildStep(StepSpec{Op: "emit"})
	require.NoError(t, err)
	assert.Equal(t, graph.OpEmit, step.Op)

	_, err = BuildStep(StepSpec{Op: "emit", Fn: "x"})
	assert.Error(t, err)
}

func TestBuildStep_Rejects(t *testing.T) {
	tests := []struct {
		name string
		spec StepSpec
		msg  string
	}{
		{"unknown op", StepSpec{Op: "fold"}, "fold"},
		{"unknown fn", StepSpec{Op: "transform", Fn: "sqrt"}, "unknown transform operator"},
		{"missing arg", StepSpec{Op: "transform", Fn: "add"}, "requires arg"},
		{"extra arg", StepSpec{Op: "filter", Fn: "even", Arg: i64(2)}, "takes no arg"},
		{"div by zero", StepSpec{Op: "transform", Fn: "div", Arg: i64(0)}, "div by zero"},
		{"mod by zero", StepSpec{Op: "transform", Fn: "mod", Arg: i64(0)}, "mod by zero"},
		{"fn from other op", StepSpec{Op: "filter", Fn: "add", Arg: i64(1)}, "unknown filter operator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildStep(tt.spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestBuildSteps_IndexInError(t *testing.T) {
	_, err := BuildSteps([]StepSpec{{Op: "emit"}, {Op: "transform", Fn: "nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[1]")
}

func TestStep_NonInteger(t *testing.T) {
	step, err := BuildStep(StepSpec{Op: "transform", Fn: "neg"})
	require.NoError(t, err)

	_, err = step.Transform("seven")
	assert.ErrorIs(t, err, ErrNotInteger)

	filter, err := BuildStep(StepSpec{Op: "filter", Fn: "odd"})
	require.NoError(t, err)
	_, err = filter.Filter(1.5)
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestToInt(t *testing.T) {
	for _, v := range []any{int64(3), 3, int32(3), uint32(3), 3.0} {
		n, err := ToInt(v)
		require.NoError(t, err, "%T", v)
		assert.Equal(t, int64(3), n)
	}

	for _, v := range []any{"3", 3.5, nil, true} {
		_, err := ToInt(v)
		assert.ErrorIs(t, err, ErrNotInteger, "%T", v)
	}
}

func TestToInt_FloatRange(t *testing.T) {
	n, err := ToInt(float64(math.MinInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), n)

	for _, f := range []float64{1e30, -1e30, 9223372036854775808.0, math.Inf(1), math.Inf(-1), math.NaN()} {
		_, err := ToInt(f)
		assert.ErrorIs(t, err, ErrNotInteger, "%v", f)
	}
}

func TestHandlers(t *testing.T) {
	assert.Equal(t, []string{"double", "echo", "fail"}, HandlerNames())

	echo, ok := Handler("echo")
	require.True(t, ok)
	out, err := echo(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "x", out)

	double, ok := Handler("double")
	require.True(t, ok)
	out, err = double(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, int64(42), out)

	_, err = double(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrNotInteger))

	fail, ok := Handler("fail")
	require.True(t, ok)
	_, err = fail(context.Background(), 1)
	assert.Error(t, err)

	_, ok = Handler("nope")
	assert.False(t, ok)
}
