package hnsw

import "sync"

// lockStrategy implements the phase-3 structural-mutation lock: either one
// index-wide exclusive lock, or a fixed-count bucket scheme where a write
// locks only the buckets its touched rows hash into.
//
// Grounded on the sharded-lock idea in the pack's vex/internal/storage
// (per-key shard with its own sync.RWMutex); generalized here from a
// key-sharded map to a row-index-sharded bucket scheme for graph writes.
type lockStrategy interface {
	rLock()
	rUnlock()
	// lockRows acquires exclusive access over the buckets the given rows
	// fall into, in ascending bucket order to prevent deadlock between
	// concurrent writers touching overlapping bucket sets.
	lockRows(rows []int32) func()
}

// singleLock is one sync.RWMutex guarding the whole graph's structural
// state — the default scheme.
type singleLock struct {
	mu sync.RWMutex
}

func newSingleLock() *singleLock { return &singleLock{} }

func (l *singleLock) rLock()   { l.mu.RLock() }
func (l *singleLock) rUnlock() { l.mu.RUnlock() }

func (l *singleLock) lockRows(rows []int32) func() {
	l.mu.Lock()
	return l.mu.Unlock
}

// shardedLock splits phase-3 writes across a fixed number of buckets, each
// with its own RWMutex padded to a cache line to avoid false sharing
// between cores touching adjacent buckets. Two writers touching disjoint
// bucket sets proceed concurrently; the only hard requirement is that
// writers never deadlock each other (ascending-index acquisition), so
// readers here take every bucket's read lock — giving up read/write
// parallelism within this scheme in exchange for write/write parallelism,
// the property this bucket scheme exists to provide.
type shardedLock struct {
	buckets []shardBucket
	n       int
}

type shardBucket struct {
	mu sync.RWMutex
	_  [56]byte // pad to a 64-byte cache line alongside the mutex
}

func newShardedLock(buckets int) *shardedLock {
	if buckets < 1 {
		buckets = 1
	}
	return &shardedLock{buckets: make([]shardBucket, buckets), n: buckets}
}

func (l *shardedLock) rLock() {
	for i := range l.buckets {
		l.buckets[i].mu.RLock()
	}
}

func (l *shardedLock) rUnlock() {
	for i := len(l.buckets) - 1; i >= 0; i-- {
		l.buckets[i].mu.RUnlock()
	}
}

func (l *shardedLock) lockRows(rows []int32) func() {
	idxSet := make(map[int]struct{}, len(rows))
	for _, row := range rows {
		idxSet[int(row)%l.n] = struct{}{}
	}

	ordered := make([]int, 0, len(idxSet))
	for i := range idxSet {
		ordered = append(ordered, i)
	}
	// ascending bucket order prevents deadlock across overlapping writers.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j] < ordered[j-1]; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	for _, idx := range ordered {
		l.buckets[idx].mu.Lock()
	}

	return func() {
		for _, idx := range ordered {
			l.buckets[idx].mu.Unlock()
		}
	}
}
