package sink

import (
	"errors"
	"fmt"
)

// ErrTargetClosed is returned for submissions and flushes after Shutdown
// has been invoked. Rejected events are not written; callers needing
// guaranteed delivery must Flush before Shutdown.
var ErrTargetClosed = errors.New("sink: target closed")

// InitError reports that the sink failed to start and never reached Ready.
// Callers must not submit events to a sink whose construction failed.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("sink initialization: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// FlushError wraps a write failure surfaced to a Flush caller. Rows
// already durably written remain written.
type FlushError struct {
	Target string
	Err    error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush %s: %v", e.Target, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }

// ShutdownError wraps a write or close failure surfaced to a Shutdown
// caller. The sink is Closed regardless; rows already durably written
// remain written.
type ShutdownError struct {
	Target string
	Err    error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown %s: %v", e.Target, e.Err)
}

func (e *ShutdownError) Unwrap() error { return e.Err }
