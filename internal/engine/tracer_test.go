package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracers_FanOut(t *testing.T) {
	first := &recordingTracer{}
	second := &recordingTracer{}
	k := newTestKernel(t, WithTracer(Tracers(first, nil, second)))

	a := mustNode(t, k, "a", failing("boom"))

	_, err := k.Propagate(context.Background(), a, 1)
	require.NoError(t, err)

	want := []string{"start t-1", "exec a", "error STEP_FAILURE", "finish t-1"}
	assert.Equal(t, want, first.Events())
	assert.Equal(t, want, second.Events())
}

func TestTracers_Empty(t *testing.T) {
	tr := Tracers()
	assert.NotPanics(t, func() {
		tr.PassStarted(&Pass{})
		tr.NodeExecuted(&Pass{}, Execution{})
		tr.ErrorReported(nil, &RuntimeError{})
		tr.PassFinished(&Pass{})
	})
}
