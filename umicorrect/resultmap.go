package umicorrect

import (
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/unsafe"
)

const numResultMapShards = 256

type resultEntry struct {
	correction Correction
	group      int
}

type resultMapShard struct {
	mu      sync.Mutex
	entries map[string]resultEntry
}

// resultMap is a sharded, thread-safe map from read id to Correction. It
// collects the output of all groups of a partition.
type resultMap struct {
	shards [numResultMapShards]resultMapShard
}

func newResultMap() *resultMap {
	m := &resultMap{}
	for i := 0; i < len(m.shards); i++ {
		m.shards[i].entries = make(map[string]resultEntry)
	}
	return m
}

// insert stores c for readID, on behalf of the group with index group. If
// readID is already present, the map is left unchanged and insert returns
// the group that stored it and false.
func (m *resultMap) insert(readID string, c Correction, group int) (int, bool) {
	h := seahash.Sum64(unsafe.StringToBytes(readID))
	shard := &m.shards[int(h%uint64(numResultMapShards))]

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if prev, ok := shard.entries[readID]; ok {
		return prev.group, false
	}
	shard.entries[readID] = resultEntry{correction: c, group: group}
	return group, true
}

// result flattens m into a Result. It must not be called concurrently with
// insert.
func (m *resultMap) result() Result {
	n := 0
	for i := range m.shards {
		n += len(m.shards[i].entries)
	}
	r := make(Result, n)
	for i := range m.shards {
		for id, e := range m.shards[i].entries {
			r[id] = e.correction
		}
	}
	return r
}
