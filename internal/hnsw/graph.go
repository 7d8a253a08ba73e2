package hnsw

import (
	"math"
	"math/rand"
	"sync"

	"github.com/therealutkarshpriyadarshi/anncore/config"
)

// DistanceFunc returns the active query's distance to the vector stored at
// row. The graph never reads raw vectors itself — callers close over
// whichever oracle is appropriate for the phase (exact from the vector
// store during build and upper-layer descent; PQ's ADC during the
// layer-0 candidate-pool phase once trained).
type DistanceFunc func(row int32) float32

// RowDistanceFunc returns the distance between two stored rows, used by
// the neighbor selection heuristic to compare candidates against each
// other rather than against the active query.
type RowDistanceFunc func(a, b int32) float32

// Graph is the HNSW adjacency structure: per-node multi-level neighbor
// lists, a random level sampler, and the entry point. It holds no vector
// data — only row indices into whatever vector store the coordinator
// pairs it with.
type Graph struct {
	cfg config.HNSWConfig

	mu    sync.Mutex // protects nodes slice growth; not the hot-path lock
	nodes []*node

	entry    int32 // -1 when empty
	maxLevel int

	lock    lockStrategy
	visited *visitedPool

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewGraph constructs an empty graph for the given configuration and
// initial capacity hint.
func NewGraph(cfg config.HNSWConfig, capacityHint int, seed int64) *Graph {
	var ls lockStrategy
	if cfg.ShardedLocks > 0 {
		ls = newShardedLock(cfg.ShardedLocks)
	} else {
		ls = newSingleLock()
	}

	return &Graph{
		cfg:     cfg,
		nodes:   make([]*node, 0, capacityHint),
		entry:   -1,
		lock:    ls,
		visited: newVisitedPool(),
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

// Size returns the number of live (non-deleted) nodes.
func (g *Graph) Size() int {
	g.lock.rLock()
	defer g.lock.rUnlock()

	n := 0
	for _, nd := range g.nodes {
		if nd != nil && !nd.deleted {
			n++
		}
	}
	return n
}

// EntryPoint returns the current entry row, or -1 if the graph is empty.
func (g *Graph) EntryPoint() int32 {
	g.lock.rLock()
	defer g.lock.rUnlock()
	return g.entry
}

// MaxLevel returns the highest occupied layer.
func (g *Graph) MaxLevel() int {
	g.lock.rLock()
	defer g.lock.rUnlock()
	return g.maxLevel
}

// degreeCap returns the adjacency cap for layer: 2M at layer 0, M above.
func (g *Graph) degreeCap(layer int) int {
	if layer == 0 {
		return 2 * g.cfg.M
	}
	return g.cfg.M
}

// randomLevel draws ⌊-ln(u)·levelMultiplier⌋ capped at MaxLevel.
func (g *Graph) randomLevel() int {
	g.rndMu.Lock()
	u := g.rnd.Float64()
	g.rndMu.Unlock()

	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	level := int(math.Floor(-math.Log(u) * g.cfg.LevelMultiplier()))
	if level > g.cfg.MaxLevel {
		level = g.cfg.MaxLevel
	}
	return level
}

// allocateRow appends a fresh node at the given level and returns its row
// index. Must be called with the structural write lock held.
func (g *Graph) allocateRow(level int) int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	row := int32(len(g.nodes))
	g.nodes = append(g.nodes, newNode(level))
	return row
}

func (g *Graph) nodeAt(row int32) *node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes[row]
}
