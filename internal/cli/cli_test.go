package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logvault/logvault/internal/conn"
	"github.com/logvault/logvault/internal/sink"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateUp_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lv.db")

	out, err := execute(t, "migrate", "up", "--index", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "applied 001_create_log_lines")
	assert.Contains(t, out, "applied 102_index_metrics_path_ts")

	// A second run finds nothing to do.
	out, err = execute(t, "migrate", "up", "--index", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")
}

func TestMigrateDown_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lv.db")

	_, err := execute(t, "migrate", "up", "--db", path)
	require.NoError(t, err)

	out, err := execute(t, "migrate", "down", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "reverted 002_create_metrics")
}

func TestStatus_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lv.db")

	_, err := execute(t, "migrate", "up", "--db", path)
	require.NoError(t, err)

	out, err := execute(t, "status", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "core steps applied: 2")
	assert.Contains(t, out, "index steps applied: 0")
	assert.Contains(t, out, "log lines: 0")
}

func TestStatus_EmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lv.db")

	out, err := execute(t, "status", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "core steps applied: 0")
}

func TestSend_WritesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lv.db")
	input := `{"kind":"log","message":"hello world","level":"info"}
{"kind":"metric","path":"web01.app.signin","value":3,"type":"counter"}
`

	out, err := executeWithInput(t, input, "send", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "accepted 2, written 2")

	h, err := conn.Open(conn.ModeFile, path)
	require.NoError(t, err)
	defer h.Close()

	ctx := context.Background()
	logs, err := sink.CountLogLines(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 1, logs)

	metrics, err := sink.CountMetrics(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics)
}

func TestSend_HostFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lv.db")
	input := `{"kind":"log","message":"m"}` + "\n"

	_, err := executeWithInput(t, input, "send", "--db", path, "--host", "edge01")
	require.NoError(t, err)

	h, err := conn.Open(conn.ModeFile, path)
	require.NoError(t, err)
	defer h.Close()

	recs, err := sink.ReadLogLines(context.Background(), h)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "edge01", recs[0].Host)
}

func TestSend_RejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lv.db")
	_, err := executeWithInput(t, `{"kind":"trace"}`+"\n", "send", "--db", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event kind")
}
