package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycles_DAG(t *testing.T) {
	bp, err := Load("testdata/doubler.cue")
	require.NoError(t, err)

	warnings := Cycles(bp)
	assert.NotNil(t, warnings)
	assert.Empty(t, warnings)
}

func TestCycles_Feedback(t *testing.T) {
	bp, err := Load("testdata/feedback.yaml")
	require.NoError(t, err)

	warnings := Cycles(bp)
	require.Len(t, warnings, 1)

	w := warnings[0]
	assert.Equal(t, []string{"a", "b", "c"}, w.Members)
	assert.Equal(t, []string{"a", "b", "c", "a"}, w.Path)
	assert.Equal(t, "warning", w.Level)
	assert.Equal(t, "cycle: a → b → c → a", w.Message)
}

func TestCycles_SelfLoop(t *testing.T) {
	bp := &Blueprint{
		Nodes: []NodeSpec{{Name: "s"}},
		Links: []LinkSpec{{From: "s", To: "s"}},
	}

	warnings := Cycles(bp)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"s", "s"}, warnings[0].Path)
	assert.Equal(t, "self-loop on s", warnings[0].Message)
}

func TestCycles_ThroughEffectOutcome(t *testing.T) {
	bp := &Blueprint{
		Nodes: []NodeSpec{
			{Name: "in"},
			{Name: "fx", Kind: "effect", Handler: "echo"},
		},
		Links: []LinkSpec{
			{From: "in", To: "fx"},
			{From: "fx.done", To: "in"},
		},
	}

	assert.Empty(t, Cycles(bp), "outcomes are adopted, not linked")

	bp.Links = append(bp.Links, LinkSpec{From: "fx", To: "fx.done"})
	warnings := Cycles(bp)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"in", "fx", "fx.done"}, warnings[0].Members)
	assert.Equal(t, []string{"in", "fx", "fx.done", "in"}, warnings[0].Path)
}

func TestCycles_ShortestPathAndOrder(t *testing.T) {
	// Two components; the second has a shortcut back to its first member.
	bp := &Blueprint{
		Nodes: []NodeSpec{{Name: "p"}, {Name: "q"}, {Name: "x"}, {Name: "y"}, {Name: "z"}},
		Links: []LinkSpec{
			{From: "p", To: "q"}, {From: "q", To: "p"},
			{From: "x", To: "y"}, {From: "y", To: "z"}, {From: "z", To: "x"}, {From: "y", To: "x"},
		},
	}

	warnings := Cycles(bp)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"p", "q", "p"}, warnings[0].Path)
	assert.Equal(t, []string{"x", "y", "x"}, warnings[1].Path)
	assert.Equal(t, []string{"x", "y", "z"}, warnings[1].Members)
}

func TestCycles_OwnerEdges(t *testing.T) {
	bp := &Blueprint{
		Nodes: []NodeSpec{{Name: "a"}, {Name: "b", Owner: "a"}},
		Links: []LinkSpec{{From: "b", To: "a"}},
	}

	warnings := Cycles(bp)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
}
