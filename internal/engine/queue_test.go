package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphite/internal/graph"
)

func TestLaunchQueue_EnqueueDequeue(t *testing.T) {
	q := newLaunchQueue()

	ok := q.Enqueue(Trigger{Node: 7, Payload: "x"})
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, graph.NodeID(7), got.Node)
	assert.Equal(t, "x", got.Payload)
}

func TestLaunchQueue_FIFO(t *testing.T) {
	q := newLaunchQueue()

	for i := 1; i <= 3; i++ {
		q.Enqueue(Trigger{Node: graph.NodeID(i)})
	}

	for i := 1; i <= 3; i++ {
		tr, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, graph.NodeID(i), tr.Node)
	}
}

func TestLaunchQueue_TryDequeue_Empty(t *testing.T) {
	q := newLaunchQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestLaunchQueue_Close(t *testing.T) {
	q := newLaunchQueue()
	q.Enqueue(Trigger{Node: 1})
	q.Enqueue(Trigger{Node: 2})

	assert.Equal(t, 2, q.Close(), "close drops pending triggers")
	assert.Equal(t, 0, q.Close(), "second close is a no-op")
	assert.False(t, q.Enqueue(Trigger{Node: 3}), "enqueue after close should fail")
	assert.Equal(t, 0, q.Len())
}

func TestLaunchQueue_Len(t *testing.T) {
	q := newLaunchQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(Trigger{Node: 1})
	q.Enqueue(Trigger{Node: 2})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestLaunchQueue_ThreadSafe(t *testing.T) {
	q := newLaunchQueue()

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(Trigger{Node: graph.NodeID(i + 1)})
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}
