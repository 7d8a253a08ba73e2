// Package hnsw implements a Hierarchical Navigable Small World graph:
// per-node multi-level adjacency, level sampling, greedy descent, beam
// search, and a diversity-aware neighbor selection heuristic.
//
// Grounded on pkg/hnsw (index.go, node.go, insert.go, search.go),
// restructured so nodes live in a contiguous slice indexed by internal
// row index, with adjacency as a flat []int32 of row indices rather than
// a map[uint64]*Node with []uint64 neighbor lists, because the hot loops
// here are "iterate neighbors, read their vectors by row" and a
// map-of-pointers defeats that access pattern.
package hnsw

// node holds one graph vertex's level and per-layer adjacency. The vector
// payload itself lives in the coordinator's vector store, addressed by the
// same row index used here — the graph never owns vector data.
type node struct {
	level     int
	adjacency [][]int32 // adjacency[layer] = neighbor row indices
	deleted   bool
}

func newNode(level int) *node {
	adj := make([][]int32, level+1)
	for l := range adj {
		adj[l] = make([]int32, 0, 8)
	}
	return &node{level: level, adjacency: adj}
}

func (n *node) hasNeighbor(layer int, row int32) bool {
	for _, id := range n.adjacency[layer] {
		if id == row {
			return true
		}
	}
	return false
}

func (n *node) addNeighbor(layer int, row int32) {
	if n.hasNeighbor(layer, row) {
		return
	}
	n.adjacency[layer] = append(n.adjacency[layer], row)
}

func (n *node) removeNeighbor(layer int, row int32) {
	adj := n.adjacency[layer]
	for i, id := range adj {
		if id == row {
			adj[i] = adj[len(adj)-1]
			n.adjacency[layer] = adj[:len(adj)-1]
			return
		}
	}
}

func (n *node) setNeighbors(layer int, rows []int32) {
	cp := make([]int32, len(rows))
	copy(cp, rows)
	n.adjacency[layer] = cp
}
