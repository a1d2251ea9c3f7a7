package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphite/internal/cli"
)

func TestRun_Validate(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, []string{"validate", "../../testdata/blueprints/feedback.yaml"})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "✓ All blueprints valid")
}

func TestRun_ExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, []string{"run", "../../testdata/blueprints/missing.yaml"})
	require.Error(t, err)
	assert.Equal(t, cli.ExitCommandError, cli.GetExitCode(err))
}
