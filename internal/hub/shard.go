package hub

import "hash/fnv"

// shardCount is a power of two so the index reduces to a mask. 32 shards
// keep identifier contention negligible at this hub's scale.
const shardCount = 32

// shardIndex picks the shard for an identifier by FNV-1a hash. Publish
// lookups and subscribe inserts on distinct identifiers land on distinct
// shards almost always, which is what makes the fine-grained locking pay.
func shardIndex(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32() & (shardCount - 1)
}
