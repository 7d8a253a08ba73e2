package hnsw

import "sync"

// visited is a generation-stamped membership set over row indices. Reusing
// one array across searches and bumping a generation counter instead of
// reallocating a fresh map avoids per-search allocation, which matters
// because beam search calls this on every query.
type visited struct {
	gen   []uint32
	stamp uint32
}

func newVisited(capacity int) *visited {
	return &visited{gen: make([]uint32, capacity)}
}

// reset begins a new search generation. O(1): no clearing required.
func (v *visited) reset(capacity int) {
	if len(v.gen) < capacity {
		grown := make([]uint32, capacity)
		copy(grown, v.gen)
		v.gen = grown
	}
	v.stamp++
	if v.stamp == 0 {
		// wrapped around: force a real clear, once in 2^32 searches.
		for i := range v.gen {
			v.gen[i] = 0
		}
		v.stamp = 1
	}
}

func (v *visited) seen(row int32) bool {
	return v.gen[row] == v.stamp
}

func (v *visited) mark(row int32) {
	v.gen[row] = v.stamp
}

// visitedPool hands out per-goroutine visited sets so concurrent searches
// don't contend on a single scratch buffer — one per worker goroutine.
type visitedPool struct {
	pool sync.Pool
}

func newVisitedPool() *visitedPool {
	return &visitedPool{
		pool: sync.Pool{New: func() any { return newVisited(0) }},
	}
}

func (p *visitedPool) get(capacity int) *visited {
	v := p.pool.Get().(*visited)
	v.reset(capacity)
	return v
}

func (p *visitedPool) put(v *visited) {
	p.pool.Put(v)
}
