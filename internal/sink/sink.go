// Package sink implements the persistent target of the logging pipeline: a
// message-driven writer that serializes concurrent log and metric
// submissions into batched row writes against a single database handle.
//
// Thread-safety model:
//   - SubmitLog / SubmitMetric: safe from any goroutine; non-blocking enqueue.
//   - Flush / Shutdown: safe from any goroutine; block until the writer has
//     delivered their completion signal.
//   - All store writes happen in the single writer goroutine, so row
//     insertion order matches submission order per sink instance.
package sink

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/logvault/logvault/internal/codec"
	"github.com/logvault/logvault/internal/conn"
	"github.com/logvault/logvault/internal/migrate"
	"github.com/logvault/logvault/internal/record"
)

// State is the lifecycle state of a Sink.
type State int

const (
	StateUninitialized State = iota
	StateMigrating
	StateReady
	StateDraining
	StateClosed
)

// String returns the state name for diagnostics.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateMigrating:
		return "migrating"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultBatchSize is the pending-row high-water mark at which the writer
// commits a batch without waiting for a flush.
const DefaultBatchSize = 64

// Factory produces the sink's database handle. Acquisition is deferred to
// sink construction so wiring code can describe a connection without
// opening it.
type Factory func() (conn.Handle, error)

// Sink is the durable target. Construct with New; submit with SubmitLog and
// SubmitMetric; make writes durable with Flush; release with Shutdown.
type Sink struct {
	name      string
	id        string
	host      string
	batchSize int
	runner    *migrate.Runner
	log       *slog.Logger

	mbox *mailbox
	h    conn.Handle

	mu    sync.Mutex
	state State

	shutdownOnce sync.Once
	shutdownErr  error

	accepted atomic.Uint64
	written  atomic.Uint64
}

// Option configures a Sink.
type Option func(*Sink)

// WithName sets the target name used in diagnostics.
func WithName(name string) Option {
	return func(s *Sink) { s.name = name }
}

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Sink) { s.log = log }
}

// WithBatchSize sets the pending-row high-water mark.
func WithBatchSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithHost overrides the default host stamped onto records that carry none.
// Defaults to os.Hostname.
func WithHost(host string) Option {
	return func(s *Sink) { s.host = host }
}

// WithRunner overrides the migration runner. Defaults to a runner over
// migrate.Schema().
func WithRunner(r *migrate.Runner) Option {
	return func(s *Sink) { s.runner = r }
}

// New constructs a sink and brings it to Ready.
//
// Construction obtains a handle from the factory, wraps it non-closing, and
// drives the migration runner's Up over it (index steps included); the
// wrapper is then discarded so the sink's own Close of the handle is real.
// On any failure the sink never reaches Ready and the error is an
// *InitError.
func New(factory Factory, opts ...Option) (*Sink, error) {
	s := &Sink{
		name:      "logvault",
		id:        uuid.NewString(),
		batchSize: DefaultBatchSize,
		log:       slog.Default(),
		mbox:      newMailbox(),
		state:     StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.host == "" {
		if host, err := os.Hostname(); err == nil {
			s.host = host
		} else {
			s.host = "localhost"
		}
	}

	if s.runner == nil {
		steps, index := migrate.Schema()
		runner, err := migrate.New(steps, index, migrate.WithLogger(s.log))
		if err != nil {
			return nil, &InitError{Err: err}
		}
		s.runner = runner
	}

	s.setState(StateMigrating)

	h, err := factory()
	if err != nil {
		return nil, &InitError{Err: err}
	}

	// The runner closes the handle it is handed at the end of the run;
	// the non-closing wrapper keeps ours alive.
	if _, err := s.runner.Up(context.Background(), conn.NonClosing(h), true); err != nil {
		h.Close()
		return nil, &InitError{Err: err}
	}

	s.h = h
	s.setState(StateReady)
	s.log.Info("sink ready", "target", s.name, "sink_id", s.id, "host", s.host)

	go s.run()

	return s, nil
}

// SubmitLog encodes and enqueues a log line. Non-blocking; durability is
// guaranteed only after a subsequent Flush completes successfully.
// Fails with ErrTargetClosed once Shutdown has been invoked.
func (s *Sink) SubmitLog(rec record.LogRecord) error {
	if rec.Host == "" {
		rec.Host = s.host
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	if rec.Level == 0 {
		rec.Level = record.LevelInfo
	}

	row, err := codec.EncodeLog(rec)
	if err != nil {
		return err
	}
	return s.submit(row)
}

// SubmitMetric encodes and enqueues a metric point. Same contract as
// SubmitLog for the metrics row family.
func (s *Sink) SubmitMetric(rec record.MetricRecord) error {
	if rec.Host == "" {
		rec.Host = s.host
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}

	row, err := codec.EncodeMetric(rec)
	if err != nil {
		return err
	}
	return s.submit(row)
}

// Flush blocks until every message enqueued strictly before this call has
// been durably written. Messages enqueued concurrently with or after the
// call are not guaranteed to be included. Fails with ErrTargetClosed after
// Shutdown.
func (s *Sink) Flush() error {
	done := make(chan error, 1)
	if !s.mbox.Enqueue(message{kind: msgFlush, done: done}) {
		return ErrTargetClosed
	}
	if err := <-done; err != nil {
		return &FlushError{Target: s.name, Err: err}
	}
	return nil
}

// Shutdown drains all previously enqueued messages, closes the underlying
// handle, and transitions to Closed. Subsequent submissions fail with
// ErrTargetClosed; a second Shutdown is a no-op success.
func (s *Sink) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.setState(StateDraining)

		done := make(chan error, 1)
		// Appending the shutdown message and closing intake happen under
		// one mailbox lock, so the shutdown message is the last the writer
		// ever sees: everything enqueued before it is flushed first, FIFO,
		// and nothing can slip in behind it.
		if !s.mbox.CloseWith(message{kind: msgShutdown, done: done}) {
			s.setState(StateClosed)
			return
		}
		s.shutdownErr = <-done
	})

	if s.shutdownErr != nil {
		return &ShutdownError{Target: s.name, Err: s.shutdownErr}
	}
	return nil
}

// State returns the sink's lifecycle state.
func (s *Sink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Name returns the diagnostic target name.
func (s *Sink) Name() string { return s.name }

// Stats reports submission counters: accepted into the mailbox and durably
// written.
func (s *Sink) Stats() (accepted, written uint64) {
	return s.accepted.Load(), s.written.Load()
}

func (s *Sink) submit(row codec.Row) error {
	if !s.mbox.Enqueue(message{kind: msgRow, row: row}) {
		return ErrTargetClosed
	}
	s.accepted.Add(1)
	return nil
}

func (s *Sink) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
