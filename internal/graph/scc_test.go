package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassify_Empty tests that an empty edge set yields no components.
func TestClassify_Empty(t *testing.T) {
	c := Classify(nil, nil)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Cyclic())
}

// TestClassify_DAG tests that every node of an acyclic graph is a singleton acyclic component.
func TestClassify_DAG(t *testing.T) {
	order := []NodeID{1, 2, 3, 4}
	edges := map[NodeID][]NodeID{
		1: {2, 3},
		2: {4},
		3: {4},
	}

	c := Classify(order, edges)

	require.Equal(t, 4, c.Len())
	seen := map[ComponentID]bool{}
	for _, id := range order {
		cid, ok := c.Component(id)
		require.True(t, ok)
		assert.False(t, seen[cid], "node %s shares a component", id)
		seen[cid] = true
		assert.False(t, c.IsCyclic(id))
		assert.Equal(t, []NodeID{id}, c.Members(cid))
	}
	assert.Empty(t, c.Cyclic())
}

// TestClassify_Cycle tests that all k nodes of a directed cycle share one component.
func TestClassify_Cycle(t *testing.T) {
	for k := 2; k <= 6; k++ {
		order := make([]NodeID, k)
		edges := map[NodeID][]NodeID{}
		for i := 0; i < k; i++ {
			order[i] = NodeID(i + 1)
			edges[NodeID(i+1)] = []NodeID{NodeID((i+1)%k + 1)}
		}

		c := Classify(order, edges)

		first, _ := c.Component(1)
		for _, id := range order {
			cid, ok := c.Component(id)
			require.True(t, ok)
			assert.Equal(t, first, cid, "k=%d node=%s", k, id)
			assert.True(t, c.IsCyclic(id))
		}
		assert.Equal(t, order, c.Members(first), "members are in creation order")
		assert.Equal(t, []ComponentID{first}, c.Cyclic())
	}
}

// TestClassify_SelfLoop tests that a single node with a self-loop is cyclic.
func TestClassify_SelfLoop(t *testing.T) {
	c := Classify([]NodeID{1, 2}, map[NodeID][]NodeID{1: {1, 2}})

	assert.True(t, c.IsCyclic(1))
	assert.False(t, c.IsCyclic(2))
	assert.False(t, c.SameComponent(1, 2))
}

// TestClassify_CycleWithTail tests a cycle feeding an acyclic tail.
func TestClassify_CycleWithTail(t *testing.T) {
	// 1 → 2 → 3 → 1, 3 → 4, 5 → 1
	order := []NodeID{5, 1, 2, 3, 4}
	edges := map[NodeID][]NodeID{
		5: {1},
		1: {2},
		2: {3},
		3: {1, 4},
	}

	c := Classify(order, edges)

	assert.True(t, c.SameComponent(1, 2))
	assert.True(t, c.SameComponent(2, 3))
	assert.False(t, c.SameComponent(3, 4))
	assert.False(t, c.SameComponent(5, 1))
	assert.False(t, c.IsCyclic(4))
	assert.False(t, c.IsCyclic(5))
	assert.Len(t, c.Cyclic(), 1)
	assert.Equal(t, 3, c.Len())
}

// TestClassify_TwoCycles tests two disjoint cycles get distinct components.
func TestClassify_TwoCycles(t *testing.T) {
	order := []NodeID{1, 2, 3, 4}
	edges := map[NodeID][]NodeID{
		1: {2},
		2: {1, 3},
		3: {4},
		4: {3},
	}

	c := Classify(order, edges)

	assert.True(t, c.SameComponent(1, 2))
	assert.True(t, c.SameComponent(3, 4))
	assert.False(t, c.SameComponent(2, 3))
	assert.Len(t, c.Cyclic(), 2)
}

// TestClassify_Deterministic tests that the same inputs yield identical component ids.
func TestClassify_Deterministic(t *testing.T) {
	order := []NodeID{1, 2, 3, 4, 5, 6}
	edges := map[NodeID][]NodeID{
		1: {2, 4},
		2: {3},
		3: {1},
		4: {5},
		5: {6},
		6: {4},
	}

	first := Classify(order, edges)
	for i := 0; i < 20; i++ {
		again := Classify(order, edges)
		for _, id := range order {
			a, _ := first.Component(id)
			b, _ := again.Component(id)
			assert.Equal(t, a, b, "node %s", id)
		}
	}
}

// TestClassify_IgnoresUnknownSuccessors tests that edges to ids outside order are skipped.
func TestClassify_IgnoresUnknownSuccessors(t *testing.T) {
	c := Classify([]NodeID{1}, map[NodeID][]NodeID{1: {99}})

	assert.Equal(t, 1, c.Len())
	_, ok := c.Component(99)
	assert.False(t, ok)
}

func TestClassification_MembersOutOfRange(t *testing.T) {
	c := Classify([]NodeID{1}, nil)
	assert.Nil(t, c.Members(-1))
	assert.Nil(t, c.Members(5))
}
