package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundQueueFIFO(t *testing.T) {
	q := NewOutboundQueue()
	require.NoError(t, q.Push(TextMessage([]byte("a"))))
	require.NoError(t, q.Push(TextMessage([]byte("b"))))
	require.NoError(t, q.Push(BinaryMessage([]byte("c"))))

	for _, want := range []string{"a", "b", "c"} {
		msg, ok := q.Next()
		require.True(t, ok)
		assert.Equal(t, want, string(msg.Payload))
	}
	assert.Equal(t, 0, q.Len())
}

func TestOutboundQueueNextBlocksUntilPush(t *testing.T) {
	q := NewOutboundQueue()

	done := make(chan Message, 1)
	go func() {
		if msg, ok := q.Next(); ok {
			done <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(TextMessage([]byte("late"))))

	select {
	case msg := <-done:
		assert.Equal(t, "late", string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not wake after Push")
	}
}

func TestOutboundQueueDrainsBacklogAfterClose(t *testing.T) {
	q := NewOutboundQueue()
	require.NoError(t, q.Push(TextMessage([]byte("x"))))
	require.NoError(t, q.Push(TextMessage([]byte("y"))))
	q.Close()

	msg, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "x", string(msg.Payload))

	msg, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, "y", string(msg.Payload))

	_, ok = q.Next()
	assert.False(t, ok)
}

func TestOutboundQueuePushAfterClose(t *testing.T) {
	q := NewOutboundQueue()
	q.Close()
	q.Close() // idempotent

	err := q.Push(PingMessage())
	require.ErrorIs(t, err, ErrQueueClosed)
	assert.True(t, q.Closed())
}

func TestOutboundQueueNextUnblocksOnClose(t *testing.T) {
	q := NewOutboundQueue()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Next()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not unblock after Close")
	}
}

func TestOutboundQueueConcurrentProducers(t *testing.T) {
	q := NewOutboundQueue()

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Go(func() {
			for j := 0; j < perProducer; j++ {
				_ = q.Push(BinaryMessage([]byte{byte(j)}))
			}
		})
	}

	go func() {
		wg.Wait()
		q.Close()
	}()

	received := 0
	for {
		if _, ok := q.Next(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*perProducer, received)
}
