package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConn(id uint64) *SubscriberConn {
	return &SubscriberConn{ID: id, Queue: NewOutboundQueue()}
}

func TestSingleRegistryAddRemove(t *testing.T) {
	r := NewSingleRegistry()

	r.Add("alpha", newConn(1))
	r.Add("alpha", newConn(2))
	assert.Equal(t, 2, r.Count("alpha"))

	r.Remove("alpha", 1)
	assert.Equal(t, 1, r.Count("alpha"))

	r.Remove("alpha", 2)
	assert.Equal(t, 0, r.Count("alpha"))
	assert.Empty(t, r.Snapshot("alpha"))

	// The entry is gone entirely: no slot can be parked on it anymore.
	assert.False(t, r.PushSlot("alpha", NewReplySlot()))

	ids, conns := r.Totals()
	assert.Equal(t, 0, ids)
	assert.Equal(t, 0, conns)
}

func TestSingleRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewSingleRegistry()
	r.Add("a", newConn(7))
	r.Remove("a", 7)
	r.Remove("a", 7)
	r.Remove("missing", 99)
	assert.Equal(t, 0, r.Count("a"))
}

func TestSingleRegistryLastRemoveDropsPendingSlots(t *testing.T) {
	r := NewSingleRegistry()
	r.Add("a", newConn(1))

	s1 := NewReplySlot()
	s2 := NewReplySlot()
	require.True(t, r.PushSlot("a", s1))
	require.True(t, r.PushSlot("a", s2))
	assert.Equal(t, 2, r.PendingReplies("a"))

	r.Remove("a", 1)

	// Both waiters observe a closed channel rather than hanging.
	_, ok := <-s1.Wait()
	assert.False(t, ok)
	_, ok = <-s2.Wait()
	assert.False(t, ok)
	assert.Equal(t, 0, r.PendingReplies("a"))
}

func TestSingleRegistrySlotFIFO(t *testing.T) {
	r := NewSingleRegistry()
	r.Add("a", newConn(1))

	s1, s2, s3 := NewReplySlot(), NewReplySlot(), NewReplySlot()
	require.True(t, r.PushSlot("a", s1))
	require.True(t, r.PushSlot("a", s2))
	require.True(t, r.PushSlot("a", s3))

	got, ok := r.PopSlot("a")
	require.True(t, ok)
	assert.Same(t, s1, got)

	// Removing a queued slot keeps the remainder in order.
	r.RemoveSlot("a", s3.ID)
	got, ok = r.PopSlot("a")
	require.True(t, ok)
	assert.Same(t, s2, got)

	_, ok = r.PopSlot("a")
	assert.False(t, ok)
}

func TestSingleRegistryPopSlotUnknownID(t *testing.T) {
	r := NewSingleRegistry()
	_, ok := r.PopSlot("nobody")
	assert.False(t, ok)
}

func TestReplySlotDeliver(t *testing.T) {
	s := NewReplySlot()
	require.NotEmpty(t, s.ID)

	// Buffered: delivery completes before anyone waits.
	s.Deliver([]byte("pong"))

	body, ok := <-s.Wait()
	require.True(t, ok)
	assert.Equal(t, "pong", string(body))
}

func TestBroadcastRegistryAddRemove(t *testing.T) {
	r := NewBroadcastRegistry()

	r.Add("room", newConn(1))
	r.Add("room", newConn(2))
	assert.Equal(t, 2, r.Count("room"))

	r.Remove("room", 1)
	assert.Equal(t, 1, r.Count("room"))

	snap := r.Snapshot("room")
	require.Len(t, snap, 1)
	assert.Equal(t, uint64(2), snap[0].ID)

	r.Remove("room", 2)
	assert.Equal(t, 0, r.Count("room"))

	ids, conns := r.Totals()
	assert.Equal(t, 0, ids)
	assert.Equal(t, 0, conns)
}

func TestBroadcastRegistryPruneMany(t *testing.T) {
	r := NewBroadcastRegistry()
	r.Add("room", newConn(1))
	r.Add("room", newConn(2))
	r.Add("room", newConn(3))

	r.PruneMany("room", []uint64{1, 3})
	snap := r.Snapshot("room")
	require.Len(t, snap, 1)
	assert.Equal(t, uint64(2), snap[0].ID)

	r.PruneMany("room", []uint64{2})
	assert.Equal(t, 0, r.Count("room"))

	// No-ops on empty sets and unknown identifiers.
	r.PruneMany("room", nil)
	r.PruneMany("ghost", []uint64{5})
}

func TestRegistriesConcurrentChurn(t *testing.T) {
	single := NewSingleRegistry()
	broadcast := NewBroadcastRegistry()

	const workers = 8
	const iterations = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Go(func() {
			for i := 0; i < iterations; i++ {
				id := fmt.Sprintf("id-%d", i%10)
				connID := uint64(w*iterations + i)

				single.Add(id, newConn(connID))
				single.Snapshot(id)
				single.Remove(id, connID)

				broadcast.Add(id, newConn(connID))
				broadcast.Snapshot(id)
				broadcast.Remove(id, connID)
			}
		})
	}
	wg.Wait()

	ids, conns := single.Totals()
	assert.Equal(t, 0, ids)
	assert.Equal(t, 0, conns)

	ids, conns = broadcast.Totals()
	assert.Equal(t, 0, ids)
	assert.Equal(t, 0, conns)
}
