package conn

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_IsolatedAlwaysFresh(t *testing.T) {
	ctx := context.Background()

	// Identical identifiers must still yield private stores.
	h1, err := Open(ModeIsolated, "same")
	require.NoError(t, err)
	defer h1.Close()

	h2, err := Open(ModeIsolated, "same")
	require.NoError(t, err)
	defer h2.Close()

	_, err = h1.ExecContext(ctx, `CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)
	_, err = h1.ExecContext(ctx, `INSERT INTO t (v) VALUES ('a')`)
	require.NoError(t, err)

	var n int
	err = h2.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='t'`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n, "isolated handles must not observe each other")

	// Each handle carries its own generated store name.
	assert.Equal(t, ModeIsolated, h1.Mode())
	assert.NotEmpty(t, h1.Name())
	assert.NotEqual(t, h1.Name(), h2.Name())
}

func TestOpen_SharedObservesWrites(t *testing.T) {
	ctx := context.Background()
	store := "shared-" + uuid.NewString()

	h1, err := Open(ModeShared, store)
	require.NoError(t, err)
	defer h1.Close()

	h2, err := Open(ModeShared, store)
	require.NoError(t, err)
	defer h2.Close()

	_, err = h1.ExecContext(ctx, `CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)
	_, err = h1.ExecContext(ctx, `INSERT INTO t (v) VALUES ('a')`)
	require.NoError(t, err)

	var v string
	err = h2.QueryRowContext(ctx, `SELECT v FROM t`).Scan(&v)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestOpen_SharedSurvivesOtherHandleClose(t *testing.T) {
	// Lifetime policy: the store is reference-counted and lives while at
	// least one handle on the identifier remains open.
	ctx := context.Background()
	store := "shared-" + uuid.NewString()

	anchor, err := Open(ModeShared, store)
	require.NoError(t, err)
	defer anchor.Close()

	writer, err := Open(ModeShared, store)
	require.NoError(t, err)
	_, err = writer.ExecContext(ctx, `CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)
	_, err = writer.ExecContext(ctx, `INSERT INTO t (v) VALUES ('kept')`)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	var v string
	err = anchor.QueryRowContext(ctx, `SELECT v FROM t`).Scan(&v)
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
}

func TestOpen_SharedRequiresIdentifier(t *testing.T) {
	_, err := Open(ModeShared, "")
	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, ModeShared, connErr.Mode)
}

func TestOpen_FileInvalidPath(t *testing.T) {
	_, err := Open(ModeFile, "/nonexistent/dir/test.db")
	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
}

func TestOpen_File(t *testing.T) {
	path := t.TempDir() + "/test.db"

	h, err := Open(ModeFile, path)
	require.NoError(t, err)
	defer h.Close()

	ctx := context.Background()
	_, err = h.ExecContext(ctx, `CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)

	var mode string
	err = h.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	assert.Equal(t, ModeFile, h.Mode())
	assert.Equal(t, path, h.Name())
}

func TestNonClosing_CloseIsNoOp(t *testing.T) {
	ctx := context.Background()

	h, err := Open(ModeIsolated, "")
	require.NoError(t, err)
	defer h.Close()

	_, err = h.ExecContext(ctx, `CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)

	wrapped := NonClosing(h)
	require.NoError(t, wrapped.Close())

	// The real handle must still be usable after the wrapper's close.
	_, err = h.ExecContext(ctx, `INSERT INTO t (v) VALUES ('still here')`)
	require.NoError(t, err)

	var v string
	err = wrapped.QueryRowContext(ctx, `SELECT v FROM t`).Scan(&v)
	require.NoError(t, err)
	assert.Equal(t, "still here", v)
}

func TestParseMode(t *testing.T) {
	for name, want := range map[string]Mode{
		"isolated": ModeIsolated,
		"shared":   ModeShared,
		"file":     ModeFile,
	} {
		got, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("pooled")
	assert.Error(t, err)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "isolated", ModeIsolated.String())
	assert.Equal(t, "shared", ModeShared.String())
	assert.Equal(t, "file", ModeFile.String())
}
