package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logvault/logvault/internal/codec"
)

func rowMsg(table string) message {
	return message{kind: msgRow, row: codec.Row{Table: table}}
}

func TestMailbox_FIFO(t *testing.T) {
	m := newMailbox()

	require.True(t, m.Enqueue(rowMsg("a")))
	require.True(t, m.Enqueue(rowMsg("b")))
	require.True(t, m.Enqueue(rowMsg("c")))
	assert.Equal(t, 3, m.Len())

	for _, want := range []string{"a", "b", "c"} {
		msg, ok := m.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, msg.row.Table)
	}

	_, ok := m.TryDequeue()
	assert.False(t, ok)
}

func TestMailbox_EnqueueAfterCloseFails(t *testing.T) {
	m := newMailbox()
	m.Close()

	assert.False(t, m.Enqueue(rowMsg("a")))
}

func TestMailbox_DrainsAfterClose(t *testing.T) {
	m := newMailbox()
	require.True(t, m.Enqueue(rowMsg("a")))
	m.Close()

	// Entries enqueued before Close remain dequeueable.
	msg, ok := m.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "a", msg.row.Table)

	_, ok = m.Dequeue()
	assert.False(t, ok)
}

func TestMailbox_CloseWithAppendsFinalMessage(t *testing.T) {
	m := newMailbox()
	require.True(t, m.Enqueue(rowMsg("a")))
	require.True(t, m.CloseWith(message{kind: msgShutdown}))

	// Nothing can land behind the closing message.
	assert.False(t, m.Enqueue(rowMsg("late")))
	assert.False(t, m.CloseWith(message{kind: msgShutdown}))

	msg, ok := m.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "a", msg.row.Table)

	msg, ok = m.Dequeue()
	require.True(t, ok)
	assert.Equal(t, msgShutdown, msg.kind)

	_, ok = m.Dequeue()
	assert.False(t, ok)
}

func TestMailbox_CloseIdempotent(t *testing.T) {
	m := newMailbox()
	m.Close()
	m.Close()
}

func TestMailbox_DequeueBlocksUntilEnqueue(t *testing.T) {
	m := newMailbox()

	got := make(chan message, 1)
	go func() {
		msg, ok := m.Dequeue()
		if ok {
			got <- msg
		}
	}()

	require.True(t, m.Enqueue(rowMsg("late")))
	msg := <-got
	assert.Equal(t, "late", msg.row.Table)
}
