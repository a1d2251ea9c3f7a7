package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphite/internal/engine"
	"github.com/roach88/graphite/internal/graph"
)

func TestRecorder_OrderAndReset(t *testing.T) {
	r := &Recorder{}
	r.Observe(1)
	r.Observe("two")

	assert.Equal(t, []any{1, "two"}, r.Values())
	assert.Equal(t, 2, r.Len())

	r.Reset()
	assert.Empty(t, r.Values())
	assert.Zero(t, r.Len())
}

func TestRecorder_ValuesIsACopy(t *testing.T) {
	r := &Recorder{}
	r.Observe(1)

	vals := r.Values()
	vals[0] = 99

	assert.Equal(t, []any{1}, r.Values())
}

func TestRecorder_ConcurrentObserve(t *testing.T) {
	r := &Recorder{}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			r.Observe(v)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Len())
}

func TestConstantTriggerID(t *testing.T) {
	id := ConstantTriggerID("fixed")
	assert.Equal(t, "fixed", id.Generate())
	assert.Equal(t, "fixed", id.Generate())

	assert.Equal(t, "test-trigger", ConstantTriggerID("").Generate())

	var _ engine.TriggerIDGenerator = id
}

func TestNewKernel_Deterministic(t *testing.T) {
	k := NewKernel(t)
	id, err := k.CreateNode(graph.KindEvent, "a")
	require.NoError(t, err)

	p1, err := k.Propagate(context.Background(), id, 1)
	require.NoError(t, err)
	p2, err := k.Propagate(context.Background(), id, 2)
	require.NoError(t, err)

	assert.Equal(t, "t-1", p1.TriggerID)
	assert.Equal(t, "t-2", p2.TriggerID)
}

func TestNewKernel_OptionsOverride(t *testing.T) {
	k := NewKernel(t, engine.WithTriggerIDs(ConstantTriggerID("x")), engine.WithMaxReentry(3))
	id, err := k.CreateNode(graph.KindEvent, "a")
	require.NoError(t, err)

	p, err := k.Propagate(context.Background(), id, 1)
	require.NoError(t, err)
	assert.Equal(t, "x", p.TriggerID)
	assert.Equal(t, 3, k.MaxReentry())
}

func TestSettle_RunsEffects(t *testing.T) {
	k := NewKernel(t)
	unit, err := k.Effect("fx", func(_ context.Context, v any) (any, error) { return v, nil })
	require.NoError(t, err)

	r := &Recorder{}
	_, err = k.Subscribe(unit.Done, r.Observe)
	require.NoError(t, err)

	_, err = k.Propagate(context.Background(), unit.Node, "hello")
	require.NoError(t, err)
	Settle(t, k)

	assert.Equal(t, []any{"hello"}, r.Values())
}
