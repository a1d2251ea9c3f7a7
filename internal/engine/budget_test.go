package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassBudget_Charge_CountsRuns(t *testing.T) {
	b := newPassBudget(10, 2)

	require.NoError(t, b.Charge("t-1", 1))
	require.NoError(t, b.Charge("t-1", 1))
	require.NoError(t, b.Charge("t-1", 2))

	assert.Equal(t, 2, b.Runs(1))
	assert.Equal(t, 1, b.Runs(2))
	assert.Equal(t, 0, b.Runs(3))
	assert.Equal(t, 3, b.Steps())
}

func TestPassBudget_Charge_Quota(t *testing.T) {
	b := newPassBudget(2, DefaultMaxReentry)

	require.NoError(t, b.Charge("t-1", 1))
	require.NoError(t, b.Charge("t-1", 2))

	err := b.Charge("t-1", 3)
	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))
	assert.True(t, IsQuotaError(err))

	var se *StepsExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "t-1", se.TriggerID)
	assert.Equal(t, 3, se.Steps)
	assert.Equal(t, 2, se.Limit)
	assert.Equal(t, 0, b.Runs(3), "rejected execution is not counted as a run")
}

func TestPassBudget_WouldOverflow(t *testing.T) {
	b := newPassBudget(100, 2)

	// First execution plus two re-entries fit; the third re-entry does not.
	for i := 0; i < 3; i++ {
		assert.False(t, b.WouldOverflow(1), "run %d", i)
		require.NoError(t, b.Charge("t", 1))
	}
	assert.True(t, b.WouldOverflow(1))
}

func TestPassBudget_ZeroReentry(t *testing.T) {
	b := newPassBudget(100, 0)
	require.NoError(t, b.Charge("t", 1))
	assert.True(t, b.WouldOverflow(1), "bound 0 forbids any re-entry")
}

func TestStepsExceededError_Wrapped(t *testing.T) {
	err := fmt.Errorf("pass: %w", &StepsExceededError{TriggerID: "t", Steps: 5, Limit: 4})
	assert.True(t, IsStepsExceededError(err))
	assert.Contains(t, err.Error(), "5 steps > 4 limit")
	assert.False(t, IsStepsExceededError(fmt.Errorf("other")))
}
