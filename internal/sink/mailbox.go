package sink

import (
	"sync"

	"github.com/logvault/logvault/internal/codec"
)

// msgKind distinguishes mailbox message kinds.
type msgKind int

const (
	// msgRow carries one encoded row to persist.
	msgRow msgKind = iota + 1
	// msgFlush asks the writer to make all prior rows durable.
	msgFlush
	// msgShutdown asks the writer to drain, close the store, and exit.
	msgShutdown
)

// message is one mailbox entry. Row is set for msgRow; done is the reply
// channel for msgFlush and msgShutdown and must have capacity 1 so the
// writer never blocks on delivery.
type message struct {
	kind msgKind
	row  codec.Row
	done chan error
}

// mailbox is a thread-safe FIFO consumed by the single writer goroutine.
//
// The mailbox is unbounded so producers never stall behind slow writes.
// Thread-safety covers external enqueuing from any goroutine while the
// writer dequeues.
//
// A buffered signal channel enables blocking waits in the writer loop;
// Close closes it so waiters wake and drain the remaining entries.
type mailbox struct {
	mu     sync.Mutex
	msgs   []message
	closed bool
	signal chan struct{} // signals message availability (buffered, size 1)
}

func newMailbox() *mailbox {
	return &mailbox{
		msgs:   make([]message, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a message. Returns false if the mailbox is closed.
// Safe from any goroutine.
func (m *mailbox) Enqueue(msg message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	m.msgs = append(m.msgs, msg)

	// Non-blocking signal; the size-1 buffer coalesces bursts.
	select {
	case m.signal <- struct{}{}:
	default:
	}

	return true
}

// Dequeue removes and returns the front message, blocking until one is
// available. Returns (message{}, false) once the mailbox is closed and
// fully drained.
func (m *mailbox) Dequeue() (message, bool) {
	for {
		if msg, ok := m.TryDequeue(); ok {
			return msg, true
		}

		m.mu.Lock()
		if m.closed && len(m.msgs) == 0 {
			m.mu.Unlock()
			return message{}, false
		}
		m.mu.Unlock()

		<-m.signal
	}
}

// TryDequeue attempts to dequeue without blocking.
func (m *mailbox) TryDequeue() (message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.msgs) == 0 {
		return message{}, false
	}

	msg := m.msgs[0]

	// Nil out the slot so the backing array does not retain the row's
	// references until reallocation.
	m.msgs[0] = message{}

	if len(m.msgs) == 1 {
		m.msgs = m.msgs[:0]
	} else {
		m.msgs = m.msgs[1:]
	}

	return msg, true
}

// Len returns the number of pending messages.
func (m *mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// CloseWith appends msg and rejects further enqueues in one critical
// section, so msg is guaranteed to be the last message the consumer ever
// dequeues. Returns false, without enqueuing, if the mailbox is already
// closed.
func (m *mailbox) CloseWith(msg message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	m.msgs = append(m.msgs, msg)
	m.closed = true
	close(m.signal)
	return true
}

// Close rejects further enqueues and wakes the writer. Messages already
// enqueued remain dequeueable so the writer can drain them.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true
	close(m.signal)
}
