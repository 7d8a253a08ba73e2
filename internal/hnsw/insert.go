package hnsw

import (
	"container/heap"
	"math"
)

// Insert runs the full structural-mutation protocol for one new vector
// already appended to the caller's vector store at row. dist must return
// the exact distance from that vector to any existing row, and rowDist
// the exact distance between any two existing rows — build always uses
// the exact oracle, never PQ's approximation, since training the graph
// against a lossy distance degrades its quality for every later query.
//
// Insert performs its own level sampling and returns the assigned level.
func (g *Graph) Insert(row int32, dist DistanceFunc, rowDist RowDistanceFunc) int {
	level := g.randomLevel()

	g.mu.Lock()
	for int32(len(g.nodes)) <= row {
		g.nodes = append(g.nodes, nil)
	}
	g.nodes[row] = newNode(level)
	g.mu.Unlock()

	g.lock.rLock()
	entry := g.entry
	topLevel := g.maxLevel
	g.lock.rUnlock()

	if entry < 0 {
		unlock := g.lock.lockRows([]int32{row})
		g.entry = row
		g.maxLevel = level
		unlock()
		return level
	}

	// Phase 2 (read phase): greedy-descend from the current entry down to
	// level+1, then beam-search each layer from level down to 0 to collect
	// this vector's neighbor candidates. Held under the shared lock since
	// it only walks existing adjacency.
	g.lock.rLock()
	cur := entry
	for l := topLevel; l > level; l-- {
		cur = g.greedyStep(cur, l, dist)
	}

	type layerResult struct {
		layer     int
		neighbors []int32
	}
	var results []layerResult

	searchLevel := min(level, topLevel)
	for l := searchLevel; l >= 0; l-- {
		candidates := g.searchLayerLocked(cur, g.cfg.EfConstruction, l, dist)
		selected := g.selectNeighbors(candidates, g.degreeCap(l), rowDist)
		results = append(results, layerResult{layer: l, neighbors: selected})
		if len(candidates) > 0 {
			cur = candidates[0].row
		}
	}
	g.lock.rUnlock()

	// Phase 3 (write phase): link row bidirectionally at every layer it
	// occupies, pruning any neighbor whose degree cap is now exceeded.
	touched := make([]int32, 0, len(results)+1)
	for _, r := range results {
		touched = append(touched, r.neighbors...)
	}
	touched = append(touched, row)
	unlock := g.lock.lockRows(touched)
	defer unlock()

	self := g.nodeAt(row)
	for _, r := range results {
		self.setNeighbors(r.layer, r.neighbors)
		for _, nb := range r.neighbors {
			nbNode := g.nodeAt(nb)
			if nbNode == nil || nbNode.deleted {
				continue
			}
			nbNode.addNeighbor(r.layer, row)
			if len(nbNode.adjacency[r.layer]) > g.degreeCap(r.layer) {
				g.pruneNeighbors(nb, r.layer, rowDist)
			}
		}
	}

	if level > topLevel {
		g.entry = row
		g.maxLevel = level
	}

	return level
}

// greedyStep descends one layer from cur toward the nearest local minimum
// reachable by following adjacency edges. Must run under at least a read
// lock.
func (g *Graph) greedyStep(cur int32, layer int, dist DistanceFunc) int32 {
	best := cur
	bestDist := dist(cur)
	improved := true
	for improved {
		improved = false
		node := g.nodeAt(best)
		if node == nil || layer >= len(node.adjacency) {
			break
		}
		for _, nb := range node.adjacency[layer] {
			nbNode := g.nodeAt(nb)
			if nbNode == nil || nbNode.deleted {
				continue
			}
			d := dist(nb)
			if d < bestDist {
				bestDist = d
				best = nb
				improved = true
			}
		}
	}
	return best
}

// searchLayerLocked runs the beam search of candidates at layer starting
// from entry, returning up to ef results sorted nearest-first. Must run
// under at least a read lock.
func (g *Graph) searchLayerLocked(entry int32, ef int, layer int, dist DistanceFunc) []candidate {
	v := g.visited.get(len(g.nodes))
	defer g.visited.put(v)

	entryDist := dist(entry)
	v.mark(entry)

	candidates := &minHeap{{row: entry, dist: entryDist}}
	heap.Init(candidates)
	results := &maxHeap{{row: entry, dist: entryDist}}
	heap.Init(results)

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candidate)
		if worst, ok := results.peek(); ok && results.Len() >= ef && c.dist > worst.dist {
			break
		}

		node := g.nodeAt(c.row)
		if node == nil || layer >= len(node.adjacency) {
			continue
		}
		for _, nb := range node.adjacency[layer] {
			if v.seen(nb) {
				continue
			}
			v.mark(nb)
			nbNode := g.nodeAt(nb)
			if nbNode == nil || nbNode.deleted {
				continue
			}
			d := dist(nb)
			worst, ok := results.peek()
			if results.Len() < ef || !ok || d < worst.dist {
				heap.Push(candidates, candidate{row: nb, dist: d})
				heap.Push(results, candidate{row: nb, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	return sortedAscending(results)
}

// neighborWorkingSetMult bounds the working set considered by
// selectNeighbors to k*neighborWorkingSetMult candidates (candidates is
// already sorted by distance to the insertee, so this keeps only the
// nearest slice of the pool before diversity scoring runs).
const neighborWorkingSetMult = 6

// diversityWeight and diversityCap control the diversity term of the
// neighbor score: 0.3 * min(diversity, diversityCap) / diversityCap.
const (
	diversityWeight = 0.3
	diversityCap    = 10.0
)

// selectNeighbors applies the diversity-scored heuristic: cap the working
// set to the nearest k*neighborWorkingSetMult candidates, then greedily
// pick the unselected candidate with the highest score = 1/(1+d_to_v) +
// diversityWeight*min(diversity,diversityCap)/diversityCap, where
// diversity is that candidate's minimum distance to any already-selected
// candidate. This favors close candidates but breaks ties toward ones
// that spread edges across distinct directions instead of clustering them
// all on one side of the insertee.
func (g *Graph) selectNeighbors(candidates []candidate, cap int, rowDist RowDistanceFunc) []int32 {
	if len(candidates) <= cap {
		selected := make([]int32, len(candidates))
		for i, c := range candidates {
			selected[i] = c.row
		}
		return selected
	}

	working := candidates
	if limit := cap * neighborWorkingSetMult; limit < len(working) {
		working = working[:limit]
	}

	selected := make([]int32, 0, cap)
	chosen := make([]bool, len(working))
	for len(selected) < cap {
		bestIdx := -1
		bestScore := float32(-1)
		for i, c := range working {
			if chosen[i] {
				continue
			}
			diversity := float32(math.MaxFloat32)
			if len(selected) == 0 {
				diversity = diversityCap
			} else {
				for _, s := range selected {
					if d := rowDist(c.row, s); d < diversity {
						diversity = d
					}
				}
			}
			if diversity > diversityCap {
				diversity = diversityCap
			}
			score := 1/(1+c.dist) + diversityWeight*diversity/diversityCap
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		chosen[bestIdx] = true
		selected = append(selected, working[bestIdx].row)
	}
	return selected
}

// pruneNeighbors re-applies the selection heuristic to a node whose
// adjacency at layer has grown past its degree cap after a new
// bidirectional link was added. Every link it drops is removed from both
// ends, so adjacency stays bidirectional. Must run with the row already
// locked for writing.
func (g *Graph) pruneNeighbors(row int32, layer int, rowDist RowDistanceFunc) {
	node := g.nodeAt(row)
	if node == nil {
		return
	}
	cands := make([]candidate, 0, len(node.adjacency[layer]))
	for _, nb := range node.adjacency[layer] {
		cands = append(cands, candidate{row: nb, dist: rowDist(row, nb)})
	}
	sortCandidatesAscending(cands)
	selected := g.selectNeighbors(cands, g.degreeCap(layer), rowDist)
	kept := make(map[int32]bool, len(selected))
	for _, s := range selected {
		kept[s] = true
	}
	for _, c := range cands {
		if dropped := g.nodeAt(c.row); !kept[c.row] && dropped != nil && layer < len(dropped.adjacency) {
			dropped.removeNeighbor(layer, row)
		}
	}
	node.setNeighbors(layer, selected)
}

func sortCandidatesAscending(c []candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].dist < c[j-1].dist; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
