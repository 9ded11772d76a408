package hub

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrQueueClosed is the canonical dead-connection signal. Producers that
// observe it must treat the connection as gone and prune it.
var ErrQueueClosed = errors.New("outbound queue closed")

// OutboundQueue is the unbounded FIFO feeding one socket's writer.
// Producers never block; the single consumer is the connection's writer
// goroutine. Closing the queue is how any side announces the connection
// is dead.
type OutboundQueue struct {
	mu     sync.Mutex
	items  *queue.Queue
	wake   chan struct{} // capacity 1, nudges a parked consumer
	closed bool
}

func NewOutboundQueue() *OutboundQueue {
	return &OutboundQueue{
		items: queue.New(),
		wake:  make(chan struct{}, 1),
	}
}

// Push appends msg in FIFO order. It never blocks. After Close it returns
// ErrQueueClosed.
func (q *OutboundQueue) Push(msg Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items.Add(msg)
	q.mu.Unlock()
	q.notify()
	return nil
}

// Next blocks until a message is available or the queue is closed and
// drained. Messages pushed before Close remain readable, so the writer can
// flush the backlog. The boolean reports whether a message was returned;
// false means closed and empty.
func (q *OutboundQueue) Next() (Message, bool) {
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			msg := q.items.Remove().(Message)
			q.mu.Unlock()
			return msg, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Message{}, false
		}
		// Spurious wakeups are fine, the loop re-checks under the lock.
		<-q.wake
	}
}

// Close marks the queue closed and wakes a parked consumer. Idempotent.
func (q *OutboundQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// Closed reports whether Close has been called.
func (q *OutboundQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued messages.
func (q *OutboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

func (q *OutboundQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
