// Package migrate brings a database schema to a desired version by applying
// an ordered list of reversible steps, tracked in a schema_versions table
// inside the store being migrated.
//
// Core schema steps and read-optimization index steps are separate lists
// recorded under distinct namespaces, so toggling indices never changes the
// core schema's recorded version.
//
// Ownership: Up and Down take ownership of the handle they are given and
// close it when the run completes, mirroring migration frameworks that tear
// down connections between operations. Callers that need the handle
// afterwards pass conn.NonClosing(h) and close the real handle themselves.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/logvault/logvault/internal/conn"
)

// Namespaces under which applied steps are recorded.
const (
	nsCore  = "core"
	nsIndex = "index"
)

// Step is one reversible schema change: an up statement, a down statement,
// and a unique identifier.
//
// Requires, set on index steps, names the core step whose table the index
// is built on. Reverting that core step destroys the index implicitly
// (dropping a table drops its indices), so the index step's bookkeeping is
// removed in the same transaction.
type Step struct {
	ID       string
	Up       string
	Down     string
	Requires string
}

// Runner applies and reverts schema steps against a handle.
type Runner struct {
	steps []Step
	index []Step
	log   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// New builds a Runner over the given core and index step lists.
// Step identifiers must be unique across both lists; a duplicate is a
// construction-time *DuplicateStepError.
func New(steps, index []Step, opts ...Option) (*Runner, error) {
	seen := make(map[string]bool, len(steps)+len(index))
	for _, s := range append(append([]Step{}, steps...), index...) {
		if s.ID == "" {
			return nil, fmt.Errorf("migration step with empty identifier")
		}
		if seen[s.ID] {
			return nil, &DuplicateStepError{ID: s.ID}
		}
		seen[s.ID] = true
	}

	coreIDs := make(map[string]bool, len(steps))
	for _, s := range steps {
		coreIDs[s.ID] = true
	}
	for _, s := range index {
		if s.Requires != "" && !coreIDs[s.Requires] {
			return nil, fmt.Errorf("index step %q requires unknown step %q", s.ID, s.Requires)
		}
	}

	r := &Runner{
		steps: append([]Step{}, steps...),
		index: append([]Step{}, index...),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Up applies every core step not yet recorded as applied, in declared
// order, then the index steps when includeIndex is set. Each step's
// statement and its bookkeeping row are committed in one transaction, so a
// failure mid-step leaves that step unrecorded and retryable. A step
// failure surfaces as *StepError and halts the run.
//
// Returns the identifiers of the steps applied by this call; calling Up
// again with no new steps registered performs no writes.
func (r *Runner) Up(ctx context.Context, h conn.Handle, includeIndex bool) ([]string, error) {
	defer h.Close()

	if err := ensureVersionTable(ctx, h); err != nil {
		return nil, fmt.Errorf("ensure schema_versions: %w", err)
	}

	applied, err := r.applyPending(ctx, h, r.steps, nsCore)
	if err != nil {
		return applied, err
	}

	if includeIndex {
		idx, err := r.applyPending(ctx, h, r.index, nsIndex)
		applied = append(applied, idx...)
		if err != nil {
			return applied, err
		}
	}

	return applied, nil
}

// Down reverts the single most-recently-applied core step, and additionally
// the most-recently-applied index step when includeIndex is set. Index
// steps revert before core steps so indices never outlive their tables.
// Reverts nothing if no steps are applied.
//
// Reverting a core step also unrecords the index steps built on its table
// (see Step.Requires); their identifiers are included in the returned list
// so recorded state always tracks the actual schema.
func (r *Runner) Down(ctx context.Context, h conn.Handle, includeIndex bool) ([]string, error) {
	defer h.Close()

	if err := ensureVersionTable(ctx, h); err != nil {
		return nil, fmt.Errorf("ensure schema_versions: %w", err)
	}

	var reverted []string

	if includeIndex {
		id, _, err := r.revertLatest(ctx, h, r.index, nsIndex)
		if err != nil {
			return reverted, err
		}
		if id != "" {
			reverted = append(reverted, id)
		}
	}

	id, cascaded, err := r.revertLatest(ctx, h, r.steps, nsCore)
	if err != nil {
		return reverted, err
	}
	if id != "" {
		reverted = append(reverted, id)
		reverted = append(reverted, cascaded...)
	}

	return reverted, nil
}

// Applied reports the applied step identifiers in each namespace.
// Unlike Up and Down it does not close the handle.
func (r *Runner) Applied(ctx context.Context, h conn.Handle) (core, index []string, err error) {
	if err := ensureVersionTable(ctx, h); err != nil {
		return nil, nil, fmt.Errorf("ensure schema_versions: %w", err)
	}

	coreSet, err := appliedSet(ctx, h, nsCore)
	if err != nil {
		return nil, nil, err
	}
	indexSet, err := appliedSet(ctx, h, nsIndex)
	if err != nil {
		return nil, nil, err
	}

	// Report in declared order, not insertion order.
	for _, s := range r.steps {
		if coreSet[s.ID] {
			core = append(core, s.ID)
		}
	}
	for _, s := range r.index {
		if indexSet[s.ID] {
			index = append(index, s.ID)
		}
	}
	return core, index, nil
}

// applyPending applies unapplied steps from the list, in declared order.
func (r *Runner) applyPending(ctx context.Context, h conn.Handle, steps []Step, namespace string) ([]string, error) {
	applied, err := appliedSet(ctx, h, namespace)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, step := range steps {
		if applied[step.ID] {
			r.log.Debug("step already applied", "step", step.ID, "namespace", namespace)
			continue
		}
		if err := r.applyStep(ctx, h, step, namespace); err != nil {
			return done, &StepError{ID: step.ID, Err: err}
		}
		r.log.Info("step applied", "step", step.ID, "namespace", namespace)
		done = append(done, step.ID)
	}
	return done, nil
}

// applyStep executes a step's up statement and records it, atomically.
func (r *Runner) applyStep(ctx context.Context, h conn.Handle, step Step, namespace string) error {
	tx, err := h.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, step.Up); err != nil {
		return fmt.Errorf("execute up: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_versions (step_id, namespace, applied_at) VALUES (?, ?, ?)`,
		step.ID, namespace, time.Now().UTC().UnixNano(),
	); err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return tx.Commit()
}

// revertLatest reverts the last applied step of the list, in reverse
// declared order, and reports any index steps unrecorded alongside it.
// Returns "" if nothing is applied.
func (r *Runner) revertLatest(ctx context.Context, h conn.Handle, steps []Step, namespace string) (string, []string, error) {
	applied, err := appliedSet(ctx, h, namespace)
	if err != nil {
		return "", nil, err
	}

	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if !applied[step.ID] {
			continue
		}
		cascaded, err := r.revertStep(ctx, h, step, namespace)
		if err != nil {
			return "", nil, &StepError{ID: step.ID, Err: err}
		}
		r.log.Info("step reverted", "step", step.ID, "namespace", namespace)
		return step.ID, cascaded, nil
	}
	return "", nil, nil
}

// revertStep executes a step's down statement and removes its bookkeeping
// row, atomically. Core steps additionally unrecord dependent index steps
// within the same transaction.
func (r *Runner) revertStep(ctx context.Context, h conn.Handle, step Step, namespace string) ([]string, error) {
	tx, err := h.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, step.Down); err != nil {
		return nil, fmt.Errorf("execute down: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_versions WHERE step_id = ? AND namespace = ?`,
		step.ID, namespace,
	); err != nil {
		return nil, fmt.Errorf("unrecord step: %w", err)
	}

	var cascaded []string
	if namespace == nsCore {
		cascaded, err = r.cascadeUnrecord(ctx, tx, step)
		if err != nil {
			return nil, err
		}
	}
	return cascaded, tx.Commit()
}

// cascadeUnrecord removes the bookkeeping of index steps built on the table
// the reverted core step just dropped.
func (r *Runner) cascadeUnrecord(ctx context.Context, tx *sql.Tx, step Step) ([]string, error) {
	var cascaded []string
	for _, idx := range r.index {
		if idx.Requires != step.ID {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM schema_versions WHERE step_id = ? AND namespace = ?`,
			idx.ID, nsIndex)
		if err != nil {
			return nil, fmt.Errorf("unrecord dependent step %s: %w", idx.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			r.log.Info("dependent index step unrecorded", "step", idx.ID, "with", step.ID)
			cascaded = append(cascaded, idx.ID)
		}
	}
	return cascaded, nil
}

func ensureVersionTable(ctx context.Context, h conn.Handle) error {
	_, err := h.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			step_id    TEXT NOT NULL,
			namespace  TEXT NOT NULL,
			applied_at INTEGER NOT NULL,
			PRIMARY KEY (step_id, namespace)
		)
	`)
	return err
}

func appliedSet(ctx context.Context, h conn.Handle, namespace string) (map[string]bool, error) {
	rows, err := h.QueryContext(ctx,
		`SELECT step_id FROM schema_versions WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, fmt.Errorf("query applied steps: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan step id: %w", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

// DuplicateStepError reports a step identifier registered twice.
// Construction-time, fatal: indicates a programming error in registration.
type DuplicateStepError struct {
	ID string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("duplicate migration step id %q", e.ID)
}

// StepError reports a failure while executing one step's up or down
// operation. The schema is left at the last successfully applied step;
// re-invoking Up retries the failed step.
type StepError struct {
	ID  string
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("migration step %q: %v", e.ID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
