package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(`
target: pipeline-sink
mode: shared
store: metrics-store
batch_size: 128
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "pipeline-sink", cfg.Target)
	assert.Equal(t, "shared", cfg.Mode)
	assert.Equal(t, "metrics-store", cfg.Store)
	assert.Equal(t, 128, cfg.BatchSize)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestParse_DefaultsApply(t *testing.T) {
	cfg, err := Parse([]byte(`target: minimal`))
	require.NoError(t, err)

	assert.Equal(t, "minimal", cfg.Target)
	assert.Equal(t, "isolated", cfg.Mode)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse_UnknownMode(t *testing.T) {
	_, err := Parse([]byte(`mode: pooled`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestParse_NonPositiveBatchSize(t *testing.T) {
	_, err := Parse([]byte(`batch_size: 0`))
	require.Error(t, err)
}

func TestParse_SharedRequiresStore(t *testing.T) {
	_, err := Parse([]byte(`mode: shared`))
	require.Error(t, err)
}

func TestParse_FileRequiresStore(t *testing.T) {
	_, err := Parse([]byte(`mode: file`))
	require.Error(t, err)
}

func TestParse_BadLogLevel(t *testing.T) {
	_, err := Parse([]byte(`log_level: loud`))
	require.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: file\nstore: /tmp/lv.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Mode)
	assert.Equal(t, "/tmp/lv.db", cfg.Store)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConnMode(t *testing.T) {
	cfg := Default()
	mode, err := cfg.ConnMode()
	require.NoError(t, err)
	assert.Equal(t, "isolated", mode.String())
}
