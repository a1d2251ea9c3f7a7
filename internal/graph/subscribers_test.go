package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberList_AddRemove(t *testing.T) {
	l := NewSubscriberList()

	t1, err := l.Add(func(any) {})
	require.NoError(t, err)
	t2, err := l.Add(func(any) {})
	require.NoError(t, err)

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 0, l.IndexOf(t1))
	assert.Equal(t, 1, l.IndexOf(t2))

	assert.True(t, l.Remove(t1))
	assert.Equal(t, 0, l.IndexOf(t2), "t2 shifted into the vacated slot")
	assert.False(t, l.Remove(t1), "second removal is a no-op")
	assert.Equal(t, 1, l.Len())
}

// TestSubscriberList_StaleTokenNeverMatchesReusedSlot tests that a token of a
// removed entry cannot remove an entry that later occupies the same position.
func TestSubscriberList_StaleTokenNeverMatchesReusedSlot(t *testing.T) {
	l := NewSubscriberList()

	old, _ := l.Add(func(any) {})
	require.True(t, l.Remove(old))

	fresh, _ := l.Add(func(any) {})
	assert.NotEqual(t, old, fresh)
	assert.Equal(t, 0, l.IndexOf(fresh))

	assert.False(t, l.Remove(old))
	assert.True(t, l.Contains(fresh))
}

// TestSubscriberList_SnapshotIsolation tests that removals after a snapshot do
// not change the snapshot being iterated.
func TestSubscriberList_SnapshotIsolation(t *testing.T) {
	l := NewSubscriberList()
	var calls []string

	var t1 Token
	t1, _ = l.Add(func(any) {
		calls = append(calls, "first")
		l.Remove(t1)
	})
	_, _ = l.Add(func(any) { calls = append(calls, "second") })

	for _, s := range l.Snapshot() {
		s.Fn(nil)
	}

	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 1, l.Len())
}

func TestSubscriberList_Close(t *testing.T) {
	l := NewSubscriberList()
	_, _ = l.Add(func(any) {})
	_, _ = l.Add(func(any) {})

	assert.Equal(t, 2, l.Close())
	assert.Equal(t, 0, l.Close(), "closing twice is a no-op")
	assert.True(t, l.Closed())
	assert.Nil(t, l.Snapshot())

	_, err := l.Add(func(any) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscriberList_ThreadSafe(t *testing.T) {
	l := NewSubscriberList()
	const n = 50

	tokens := make([]Token, n)
	for i := range tokens {
		tokens[i], _ = l.Add(func(any) {})
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(tok Token) {
			defer wg.Done()
			l.Remove(tok)
		}(tokens[i])
		go func() {
			defer wg.Done()
			_ = l.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, l.Len())
}
