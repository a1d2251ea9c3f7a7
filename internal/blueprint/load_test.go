package blueprint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CUE(t *testing.T) {
	bp, err := Load("testdata/doubler.cue")
	require.NoError(t, err)

	assert.Equal(t, "doubler", bp.Name)
	assert.Equal(t, "testdata/doubler.cue", bp.Source)

	require.NotNil(t, bp.Settings.MaxReentry)
	assert.Equal(t, 2, *bp.Settings.MaxReentry)
	assert.Nil(t, bp.Settings.MaxSteps)
	assert.Equal(t, "first", bp.Settings.Merge)

	require.Len(t, bp.Nodes, 3)
	assert.Equal(t, []string{"in", "twice", "fx"}, nodeNames(bp), "field order is declaration order")

	twice := bp.Nodes[1]
	assert.Equal(t, "store", twice.Kind)
	require.Len(t, twice.Steps, 2)
	assert.Equal(t, "transform", twice.Steps[0].Op)
	assert.Equal(t, "mul", twice.Steps[0].Fn)
	require.NotNil(t, twice.Steps[0].Arg)
	assert.Equal(t, int64(2), *twice.Steps[0].Arg)
	assert.Equal(t, "emit", twice.Steps[1].Op)
	assert.True(t, twice.Pos.IsValid())

	assert.Equal(t, "effect", bp.Nodes[2].Kind)
	assert.Equal(t, "double", bp.Nodes[2].Handler)

	assert.Equal(t, []LinkSpec{{From: "in", To: "twice"}, {From: "twice", To: "fx"}}, bp.Links)
	assert.Equal(t, []TriggerSpec{{Node: "in", Value: 21}}, bp.Triggers)

	assert.Empty(t, Validate(bp))
}

func TestLoad_YAML(t *testing.T) {
	bp, err := Load("testdata/feedback.yaml")
	require.NoError(t, err)

	assert.Equal(t, "feedback", bp.Name)
	assert.Equal(t, []string{"a", "b", "c", "d"}, nodeNames(bp))
	require.NotNil(t, bp.Settings.MaxReentry)
	assert.Equal(t, 3, *bp.Settings.MaxReentry)
	assert.Len(t, bp.Links, 4)
	assert.Equal(t, []TriggerSpec{{Node: "a", Value: 0}}, bp.Triggers)

	assert.Empty(t, Validate(bp))
}

func TestLoad_NameDefaultsToFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anon.yml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - name: a\n"), 0o644))

	bp, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anon", bp.Name)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported blueprint format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.cue")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_YAMLUnknownField(t *testing.T) {
	_, err := Load("testdata/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link")
}

func TestLoad_CUEUnknownField(t *testing.T) {
	_, err := Load("testdata/unknown_field.cue")
	require.Error(t, err)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "nodes.a.stpes", le.Field)
	assert.True(t, le.Pos.IsValid())
	assert.Contains(t, le.Error(), "unknown_field.cue:3:")
}

func TestLoad_CUESyntaxError(t *testing.T) {
	_, err := Load("testdata/syntax.cue")
	require.Error(t, err)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.True(t, le.Pos.IsValid())
}

func TestParseCUE_TopLevelUnknownField(t *testing.T) {
	_, err := ParseCUE([]byte(`name: "x"
nodes: {a: {}}
extra: 1
`), "inline.cue")
	require.Error(t, err)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "extra", le.Field)
}

func TestParseCUE_EmptyNodes(t *testing.T) {
	bp, err := ParseCUE([]byte(`name: "empty"`), "inline.cue")
	require.NoError(t, err)
	assert.Empty(t, bp.Nodes)

	errs := Validate(bp)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNoNodes, errs[0].Code)
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Field: "nodes", Message: "bad"}
	assert.Equal(t, "nodes: bad", err.Error())
}

func nodeNames(bp *Blueprint) []string {
	out := make([]string, len(bp.Nodes))
	for i, n := range bp.Nodes {
		out[i] = n.Name
	}
	return out
}
