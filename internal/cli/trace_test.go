package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphite/internal/engine"
	"github.com/roach88/graphite/internal/store"
)

// seedDatabase runs the feedback and doubler blueprints into a fresh store.
func seedDatabase(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	_, err := executeRun(t, "text", engine.NewSequenceGenerator("f"), filepath.Join(blueprintDir, "feedback.yaml"), "--db", dbPath)
	require.NoError(t, err)
	_, err = executeRun(t, "text", engine.NewSequenceGenerator("d"), filepath.Join(blueprintDir, "doubler.cue"), "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}

func executeTrace(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTraceCommand_ListPasses(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := executeTrace(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "     1  f-1  feedback  a=0  ok\n")
	assert.Contains(t, out, "    12  d-1  doubler  in=21  ok\n")
	assert.Contains(t, out, "    16  d-2  doubler  fx.done=84  ok\n")
}

func TestTraceCommand_ListFilteredJSON(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := executeTrace(t, "json", "--db", dbPath, "--blueprint", "feedback")
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   []store.PassRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "f-1", resp.Data[0].TriggerID)
	assert.Equal(t, "a", resp.Data[0].TriggerName)
}

func TestTraceCommand_Pass(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := executeTrace(t, "text", "--db", dbPath, "--trigger", "f-1")
	require.NoError(t, err)
	assert.Contains(t, out, "pass f-1 (seq 1)")
	assert.Contains(t, out, "blueprint feedback")
	assert.Contains(t, out, "trigger a = 0")
	assert.Contains(t, out, "     5  a            in=1 out=1 reentry=1\n")
	assert.Contains(t, out, "    11  c            in=3 (no output) reentry=2\n")
}

func TestTraceCommand_PassNotFound(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := executeTrace(t, "text", "--db", dbPath, "--trigger", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "pass not found")
}

func TestTraceCommand_Node(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := executeTrace(t, "json", "--db", dbPath, "--node", "a")
	require.NoError(t, err)

	var resp struct {
		Data NodeTimeline `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "a", resp.Data.Node)
	require.Len(t, resp.Data.Executions, 3)
	for i, ex := range resp.Data.Executions {
		assert.Equal(t, "f-1", ex.TriggerID)
		assert.Equal(t, i, ex.Reentry)
	}
}

func TestTraceCommand_NodeWithoutExecutions(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := executeTrace(t, "text", "--db", dbPath, "--node", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "No executions stored for node: ghost")
}

func TestTraceCommand_DatabaseNotFound(t *testing.T) {
	_, err := executeTrace(t, "text", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestTraceCommand_RequiresDB(t *testing.T) {
	_, err := executeTrace(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceCommand_TriggerAndNodeExclusive(t *testing.T) {
	_, err := executeTrace(t, "text", "--db", "x.db", "--trigger", "t-1", "--node", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}
