package hub

import "sync"

type broadcastShard struct {
	mu      sync.RWMutex
	entries map[string][]*SubscriberConn
}

// BroadcastRegistry maps identifiers to the ordered list of subscribers a
// broadcast publish fans out to. Same sharding discipline as the single
// registry; there is no reply machinery here.
type BroadcastRegistry struct {
	shards [shardCount]*broadcastShard
}

func NewBroadcastRegistry() *BroadcastRegistry {
	r := &BroadcastRegistry{}
	for i := range r.shards {
		r.shards[i] = &broadcastShard{entries: make(map[string][]*SubscriberConn)}
	}
	return r
}

func (r *BroadcastRegistry) shard(id string) *broadcastShard {
	return r.shards[shardIndex(id)]
}

// Add appends conn to the identifier's subscriber list.
func (r *BroadcastRegistry) Add(id string, conn *SubscriberConn) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = append(s.entries[id], conn)
}

// Remove deletes one connection from the identifier's list. Idempotent;
// the identifier entry is deleted when its list empties.
func (r *BroadcastRegistry) Remove(id string, connID uint64) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	conns, ok := s.entries[id]
	if !ok {
		return
	}
	kept := conns[:0]
	for _, c := range conns {
		if c.ID != connID {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(s.entries, id)
		return
	}
	s.entries[id] = kept
}

// Snapshot returns a copy of the identifier's subscriber list.
func (r *BroadcastRegistry) Snapshot(id string) []*SubscriberConn {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	conns, ok := s.entries[id]
	if !ok {
		return nil
	}
	out := make([]*SubscriberConn, len(conns))
	copy(out, conns)
	return out
}

// Count returns the number of subscribers registered under id.
func (r *BroadcastRegistry) Count(id string) int {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[id])
}

// PruneMany removes every connection whose id is in failed, in one
// write-locked pass. The publish fan-out collects failures outside the
// lock and hands them here afterwards.
func (r *BroadcastRegistry) PruneMany(id string, failed []uint64) {
	if len(failed) == 0 {
		return
	}
	dead := make(map[uint64]struct{}, len(failed))
	for _, connID := range failed {
		dead[connID] = struct{}{}
	}

	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	conns, ok := s.entries[id]
	if !ok {
		return
	}
	kept := conns[:0]
	for _, c := range conns {
		if _, gone := dead[c.ID]; !gone {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(s.entries, id)
		return
	}
	s.entries[id] = kept
}

// Totals returns the number of identifiers and connections across all
// shards.
func (r *BroadcastRegistry) Totals() (identifiers, conns int) {
	for _, s := range r.shards {
		s.mu.RLock()
		identifiers += len(s.entries)
		for _, list := range s.entries {
			conns += len(list)
		}
		s.mu.RUnlock()
	}
	return identifiers, conns
}

// CloseAllQueues appends closing to every registered connection's queue and
// closes it, same contract as the single registry's.
func (r *BroadcastRegistry) CloseAllQueues(closing Message) {
	for _, s := range r.shards {
		s.mu.RLock()
		var conns []*SubscriberConn
		for _, list := range s.entries {
			conns = append(conns, list...)
		}
		s.mu.RUnlock()
		for _, c := range conns {
			c.Queue.Push(closing)
			c.Queue.Close()
		}
	}
}
