// Package conn produces and manages database handles for the sink and the
// migration runner.
//
// Three modes are supported:
//
//   - ModeIsolated: a private in-memory store. Every Open yields a fresh,
//     empty database regardless of identifier; closing the handle destroys
//     the data.
//   - ModeShared: a named shared-cache in-memory store. Handles opened with
//     the same identifier observe each other's writes. Lifetime policy:
//     reference-counted by SQLite's shared cache - the store lives while at
//     least one handle on that identifier is open and is destroyed when the
//     last one closes. Callers that need data to survive across Open calls
//     must hold an anchor handle.
//   - ModeFile: a path-backed database configured with WAL mode and the
//     pragmas production deployments need.
//
// Every handle pins exactly one physical connection so that a sequence of
// migration statements and sink writes observe the same session. This
// matters for in-memory stores, where losing the connection loses the data,
// and sidesteps SQLite's single-writer constraint for file stores.
package conn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Mode selects the storage ownership model for a handle.
type Mode int

const (
	// ModeIsolated yields a fresh private in-memory store per Open.
	ModeIsolated Mode = iota + 1
	// ModeShared yields a view onto the named shared in-memory store.
	ModeShared
	// ModeFile opens a path-backed database.
	ModeFile
)

// String returns the mode name used in configuration and diagnostics.
func (m Mode) String() string {
	switch m {
	case ModeIsolated:
		return "isolated"
	case ModeShared:
		return "shared"
	case ModeFile:
		return "file"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "isolated":
		return ModeIsolated, nil
	case "shared":
		return ModeShared, nil
	case "file":
		return ModeFile, nil
	default:
		return 0, fmt.Errorf("unknown connection mode %q", s)
	}
}

// Handle is an open database session. The concrete type is *DB; NonClosing
// returns a decorated Handle whose Close is a no-op.
type Handle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// DB is a database handle pinned to a single physical connection.
type DB struct {
	db   *sql.DB
	mode Mode
	name string
}

// Open allocates a handle in the given mode.
//
// For ModeIsolated the identifier is ignored; a unique store name is
// generated so two isolated handles can never collide. For ModeShared the
// identifier names the shared store and must be non-empty. For ModeFile the
// identifier is the database file path.
//
// Failures are reported as *ConnectionError.
func Open(mode Mode, identifier string) (*DB, error) {
	var dsn, name string
	switch mode {
	case ModeIsolated:
		name = uuid.NewString()
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=private", name)
	case ModeShared:
		if identifier == "" {
			return nil, &ConnectionError{Mode: mode, Identifier: identifier,
				Err: fmt.Errorf("shared mode requires a store identifier")}
		}
		name = identifier
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", identifier)
	case ModeFile:
		if identifier == "" {
			return nil, &ConnectionError{Mode: mode, Identifier: identifier,
				Err: fmt.Errorf("file mode requires a database path")}
		}
		name = identifier
		dsn = "file:" + identifier
	default:
		return nil, &ConnectionError{Mode: mode, Identifier: identifier,
			Err: fmt.Errorf("unknown mode %d", int(mode))}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &ConnectionError{Mode: mode, Identifier: identifier, Err: err}
	}

	// Pin one physical connection. In-memory stores live and die with it;
	// file stores get a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if mode == ModeFile {
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, &ConnectionError{Mode: mode, Identifier: identifier, Err: err}
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &ConnectionError{Mode: mode, Identifier: identifier, Err: err}
	}

	return &DB{db: db, mode: mode, name: name}, nil
}

// applyPragmas sets the file-store SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Mode returns the mode the handle was opened in.
func (d *DB) Mode() Mode { return d.mode }

// Name returns the store identifier: the generated name for isolated
// handles, the shared store name, or the file path.
func (d *DB) Name() string { return d.name }

// ExecContext executes a statement on the pinned connection.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the pinned connection.
// Callers are responsible for closing the returned rows.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the pinned connection.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction on the pinned connection.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, opts)
}

// Close releases the handle. For isolated stores this destroys the data;
// for shared stores the underlying store survives while other handles on
// the same identifier remain open.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// NonClosing wraps a handle so that Close becomes a no-op while every other
// operation is forwarded. Collaborators that close connections they are
// handed (the migration runner closes its handle at the end of a run) can
// then be given a view of a handle whose lifetime the real owner retains.
// The owner calls Close on the original handle when it is actually done.
func NonClosing(h Handle) Handle {
	return nonClosing{h}
}

type nonClosing struct {
	Handle
}

// Close is a deliberate no-op.
func (nonClosing) Close() error { return nil }

// ConnectionError reports that a store could not be allocated or located.
// Fatal to the calling operation; not retried internally.
type ConnectionError struct {
	Mode       Mode
	Identifier string
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("open %s store %q: %v", e.Mode, e.Identifier, e.Err)
	}
	return fmt.Sprintf("open %s store: %v", e.Mode, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
