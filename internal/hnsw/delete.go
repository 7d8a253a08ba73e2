package hnsw

// Delete logically removes row from the graph: it is marked deleted, purged
// from every neighbor's adjacency lists at every layer it appeared in, and
// if it was the entry point the live node with the highest level takes
// over (or the graph is marked empty if none remain). Deleted rows are
// never reused — the vector store that owns row's slot is the caller's
// concern, not this package's.
func (g *Graph) Delete(row int32) {
	node := g.nodeAt(row)
	if node == nil || node.deleted {
		return
	}

	touched := make([]int32, 0, 1)
	for layer := range node.adjacency {
		touched = append(touched, node.adjacency[layer]...)
	}
	touched = append(touched, row)

	unlock := g.lock.lockRows(touched)
	defer unlock()

	for layer := range node.adjacency {
		for _, nb := range node.adjacency[layer] {
			if nbNode := g.nodeAt(nb); nbNode != nil {
				nbNode.removeNeighbor(layer, row)
			}
		}
	}
	node.deleted = true

	if g.entry == row {
		g.reassignEntry(row)
	}
}

// reassignEntry picks a replacement entry point after removing old: the
// live survivor with the highest level, so level(entry) >= level(u) for
// every remaining u keeps holding. old's own top-layer neighbors are not
// preferred over this scan — a node can survive at a higher level than
// anything old was linked to at its own top layer.
func (g *Graph) reassignEntry(old int32) {
	best := int32(-1)
	bestLevel := -1
	for row, nd := range g.nodes {
		if nd == nil || nd.deleted || int32(row) == old {
			continue
		}
		if nd.level > bestLevel {
			best = int32(row)
			bestLevel = nd.level
		}
	}

	g.entry = best
	if best < 0 {
		g.maxLevel = 0
	} else {
		g.maxLevel = bestLevel
	}
}
