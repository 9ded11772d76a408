package hub

import (
	"time"

	"github.com/google/uuid"
)

// ReplySlot is one outstanding ping-pong request waiting for the
// subscriber's next data frame. The channel is buffered with capacity one
// so delivery from the reader never blocks, even when the waiting
// publisher already timed out or its request was cancelled.
//
// Exactly one of three things happens to every slot: it is popped and
// delivered to by the reader, closed by disconnect cleanup, or removed by
// the publisher's own timeout cleanup. A popped slot is never closed and a
// closed slot is never delivered to; both transitions happen under the
// registry shard lock.
type ReplySlot struct {
	ID        string
	CreatedAt time.Time
	ch        chan []byte
}

func NewReplySlot() *ReplySlot {
	return &ReplySlot{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		ch:        make(chan []byte, 1),
	}
}

// Deliver hands the reply body to the waiting publisher. Called by the
// reader on a slot popped from the FIFO.
func (s *ReplySlot) Deliver(body []byte) {
	s.ch <- body
}

// Wait returns the reply channel. A receive yields the reply body; a
// closed channel means the subscriber disconnected with the slot pending.
func (s *ReplySlot) Wait() <-chan []byte {
	return s.ch
}

// drop closes the channel, signaling "subscriber gone" to the waiting
// publisher.
func (s *ReplySlot) drop() {
	close(s.ch)
}
