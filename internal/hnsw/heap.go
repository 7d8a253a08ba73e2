package hnsw

import "container/heap"

// candidate is one entry in the beam-search priority queues: a graph row
// and its distance to the active query.
type candidate struct {
	row  int32
	dist float32
}

// minHeap pops the candidate nearest the query first; it drives beam
// search's expansion frontier.
type minHeap []candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxHeap pops the candidate farthest from the query first; it holds the
// current best-ef results so the worst one can be evicted in O(log ef).
type maxHeap []candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h maxHeap) peek() (candidate, bool) {
	if len(h) == 0 {
		return candidate{}, false
	}
	return h[0], true
}

// sortedAscending drains a maxHeap into a slice ordered nearest-first.
func sortedAscending(h *maxHeap) []candidate {
	out := make([]candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(candidate)
	}
	return out
}
