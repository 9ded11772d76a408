package hub

import "sync"

// singleEntry holds one identifier's live connections and its pending
// reply FIFO. Both live in the same entry so the emptiness rule (the FIFO
// goes when the last connection goes) is enforced under one lock.
type singleEntry struct {
	conns   map[uint64]*SubscriberConn
	pending []*ReplySlot
}

type singleShard struct {
	mu      sync.RWMutex
	entries map[string]*singleEntry
}

// SingleRegistry maps identifiers to their unicast subscribers plus the
// per-identifier FIFO of pending reply slots. Sharded by identifier hash;
// no I/O happens under any shard lock.
type SingleRegistry struct {
	shards [shardCount]*singleShard
}

func NewSingleRegistry() *SingleRegistry {
	r := &SingleRegistry{}
	for i := range r.shards {
		r.shards[i] = &singleShard{entries: make(map[string]*singleEntry)}
	}
	return r
}

func (r *SingleRegistry) shard(id string) *singleShard {
	return r.shards[shardIndex(id)]
}

// Add registers conn under id, creating the identifier entry on first use.
func (r *SingleRegistry) Add(id string, conn *SubscriberConn) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &singleEntry{conns: make(map[uint64]*SubscriberConn)}
		s.entries[id] = e
	}
	e.conns[conn.ID] = conn
}

// Remove deletes one connection. Removing a connection that is already
// gone is a no-op, so the clean disconnect path and the lazy publish-time
// prune can race freely. When the last connection of an identifier goes,
// the identifier entry is deleted and every pending slot is closed,
// unblocking its publisher with the channel-closed signal.
func (r *SingleRegistry) Remove(id string, connID uint64) {
	s := r.shard(id)
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(e.conns, connID)
	var orphaned []*ReplySlot
	if len(e.conns) == 0 {
		orphaned = e.pending
		delete(s.entries, id)
	}
	s.mu.Unlock()

	// The slots left the FIFO under the lock, so the reader can no longer
	// pop them; closing outside the lock races nothing.
	for _, slot := range orphaned {
		slot.drop()
	}
}

// Snapshot returns the identifier's connections at this instant. Map
// iteration order makes the first element an arbitrary live subscriber,
// which is exactly the unicast selection rule.
func (r *SingleRegistry) Snapshot(id string) []*SubscriberConn {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	conns := make([]*SubscriberConn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	return conns
}

// Count returns the number of live connections registered under id.
func (r *SingleRegistry) Count(id string) int {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return 0
	}
	return len(e.conns)
}

// PushSlot appends a pending reply slot to the identifier's FIFO. It
// refuses (returns false) when the identifier has no live connection, so
// a slot can never outlive the disconnect cleanup that would close it.
func (r *SingleRegistry) PushSlot(id string, slot *ReplySlot) bool {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.pending = append(e.pending, slot)
	return true
}

// PopSlot removes and returns the head of the identifier's reply FIFO.
func (r *SingleRegistry) PopSlot(id string) (*ReplySlot, bool) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || len(e.pending) == 0 {
		return nil, false
	}
	slot := e.pending[0]
	e.pending = e.pending[1:]
	if len(e.pending) == 0 {
		e.pending = nil
	}
	return slot, true
}

// RemoveSlot deletes one pending slot by id, preserving the order of the
// rest. Used by the publisher's timeout cleanup; the slot may already be
// gone when a late frame consumed it, and that is fine.
func (r *SingleRegistry) RemoveSlot(id, slotID string) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	for i, slot := range e.pending {
		if slot.ID == slotID {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// PendingReplies returns the depth of the identifier's reply FIFO.
func (r *SingleRegistry) PendingReplies(id string) int {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return 0
	}
	return len(e.pending)
}

// Totals returns the number of identifiers and connections across all
// shards. Used by the health endpoint and the shutdown drain.
func (r *SingleRegistry) Totals() (identifiers, conns int) {
	for _, s := range r.shards {
		s.mu.RLock()
		identifiers += len(s.entries)
		for _, e := range s.entries {
			conns += len(e.conns)
		}
		s.mu.RUnlock()
	}
	return identifiers, conns
}

// CloseAllQueues appends closing to every registered connection's queue,
// then closes the queue. Writers flush their backlog, send the close frame,
// and close the sockets; readers observe the close and deregister through
// the normal path. A queue that is already closed skips the push.
func (r *SingleRegistry) CloseAllQueues(closing Message) {
	for _, s := range r.shards {
		s.mu.RLock()
		var conns []*SubscriberConn
		for _, e := range s.entries {
			for _, c := range e.conns {
				conns = append(conns, c)
			}
		}
		s.mu.RUnlock()
		for _, c := range conns {
			c.Queue.Push(closing)
			c.Queue.Close()
		}
	}
}
