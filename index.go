// Package ann is a hybrid approximate-nearest-neighbor index: an HNSW
// proximity graph over vectors compressed with a Product Quantization
// codec, coordinated behind a narrow Add/Search/Remove/Rebuild surface.
//
// Grounded on pkg/hnsw.Index as the top-level object combining graph,
// config, and locking — generalized here to also own the PQ codec and
// vector store, since the coordinator is the only component allowed to
// see all four pieces at once.
package ann

import (
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/anncore/config"
	annerr "github.com/therealutkarshpriyadarshi/anncore/errors"
	"github.com/therealutkarshpriyadarshi/anncore/internal/hnsw"
	"github.com/therealutkarshpriyadarshi/anncore/internal/pq"
	"github.com/therealutkarshpriyadarshi/anncore/internal/simd"
	"github.com/therealutkarshpriyadarshi/anncore/internal/store"
	"github.com/therealutkarshpriyadarshi/anncore/observability"
)

// refineMult sizes the exact re-rank window drawn from the layer-0
// candidate pool. poolMult is not applied: the pool is the beam search's
// own result set, bounded by ef, which kMult/ratio/baseEf/maxEf in the
// hnsw package's EfParams size.
const (
	poolMult   = 200
	refineMult = 20
)

// Result is one search hit: an external id and its distance to the query.
type Result struct {
	ID       int32
	Distance float32
}

// Stats summarizes an index's current state.
type Stats struct {
	Size             int
	Capacity         int
	Dimension        int
	MaxLevel         int
	EntryPoint       int32 // -1 if empty
	PQEnabled        bool
	PQTrained        bool
	CompressionRatio float32 // 0 when PQ is disabled or untrained
}

// bufferedVector is one training-buffer entry awaiting PQ training.
type bufferedVector struct {
	id  int32
	row int
}

// Index is the hybrid coordinator. It owns the vector store, the PQ
// codec (optional), the graph, and the id<->row mapping; every other
// component in this module holds only non-owning read handles into it.
type Index struct {
	cfg config.Config

	store *store.Store
	codec *pq.Codec // nil when PQ is disabled
	graph *hnsw.Graph

	// mu guards phase 1 of Add/Remove: the id<->row map, the code table,
	// and the PQ training buffer. It is held only long enough to commit
	// the vector store append and bookkeeping — the graph's own
	// phase-2/3 locking protects structural mutation independently.
	mu      sync.Mutex
	idToRow map[int32]int
	codes   [][]byte // codes[row], valid only once codec is trained
	trainBuf []bufferedVector

	metrics *observability.Metrics
	logger  *observability.Logger
}

// New constructs an empty index from cfg. PQ is enabled iff cfg.PQ is
// non-nil.
func New(cfg config.Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var codec *pq.Codec
	seed := int64(42)
	if cfg.PQ != nil {
		codec = pq.New(cfg.PQ.MSub, cfg.PQ.BitsPerSub, cfg.PQ.Seed)
		seed = cfg.PQ.Seed
	}

	return &Index{
		cfg:     cfg,
		store:   store.New(cfg.D, cfg.Nmax),
		codec:   codec,
		graph:   hnsw.NewGraph(cfg.HNSW, cfg.Nmax, seed),
		idToRow: make(map[int32]int, cfg.Nmax),
	}, nil
}

// WithObservability attaches metrics and logging; either argument may be
// nil.
func (idx *Index) WithObservability(m *observability.Metrics, l *observability.Logger) *Index {
	idx.metrics = m
	idx.logger = l
	return idx
}

// Size returns the number of live vectors in the index.
func (idx *Index) Size() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.idToRow)
}

// exactDist returns a DistanceFunc reading full-precision vectors from
// the store, the oracle used for build and for upper-layer descent.
func (idx *Index) exactDist(q []float32) hnsw.DistanceFunc {
	return func(row int32) float32 { return simd.EuclidSq(q, idx.store.Row(int(row))) }
}

func (idx *Index) exactRowDist() hnsw.RowDistanceFunc {
	return func(a, b int32) float32 {
		return simd.EuclidSq(idx.store.Row(int(a)), idx.store.Row(int(b)))
	}
}

// Add inserts v under id. Returns ErrInvalidDimension, ErrAlreadyPresent,
// or ErrFull without mutating the index; otherwise nil.
func (idx *Index) Add(id int32, v []float32) error {
	if len(v) != idx.cfg.D {
		return annerr.ErrInvalidDimension
	}

	idx.mu.Lock()
	if _, exists := idx.idToRow[id]; exists {
		idx.mu.Unlock()
		return annerr.ErrAlreadyPresent
	}
	if len(idx.idToRow) >= idx.cfg.Nmax {
		idx.mu.Unlock()
		return annerr.ErrFull
	}

	row := idx.store.Add(id, v)
	idx.idToRow[id] = row
	idx.codes = append(idx.codes, nil)

	if idx.codec == nil {
		idx.mu.Unlock()
		idx.graph.Insert(int32(row), idx.exactDist(v), idx.exactRowDist())
		idx.recordInsert()
		return nil
	}

	if !idx.codec.Trained() {
		idx.trainBuf = append(idx.trainBuf, bufferedVector{id: id, row: row})
		readyToTrain := len(idx.trainBuf) >= idx.cfg.PQ.TrainingSampleTarget
		var toInsert []bufferedVector
		if readyToTrain {
			toInsert = idx.trainLocked()
		}
		idx.mu.Unlock()

		for _, bv := range toInsert {
			bvVec := idx.store.Row(bv.row)
			idx.graph.Insert(int32(bv.row), idx.exactDist(bvVec), idx.exactRowDist())
			idx.recordInsert()
		}
		return nil
	}

	code, err := idx.codec.Encode(v)
	if err != nil {
		idx.mu.Unlock()
		return err
	}
	idx.codes[row] = code
	idx.mu.Unlock()

	idx.graph.Insert(int32(row), idx.exactDist(v), idx.exactRowDist())
	idx.recordInsert()
	return nil
}

// trainLocked trains the codec on the buffered sample, encodes every
// buffered vector, and returns them for graph insertion. Must be called
// with mu held; releases nothing itself.
func (idx *Index) trainLocked() []bufferedVector {
	samples := make([][]float32, len(idx.trainBuf))
	for i, bv := range idx.trainBuf {
		samples[i] = idx.store.Row(bv.row)
	}

	if err := idx.codec.Train(samples, idx.cfg.PQ.Iterations); err != nil {
		// Defensive: Train only fails on empty sample or re-train, neither
		// reachable here (trainBuf is non-empty and Trained() was false).
		return nil
	}

	toInsert := idx.trainBuf
	for _, bv := range toInsert {
		code, err := idx.codec.Encode(idx.store.Row(bv.row))
		if err == nil {
			idx.codes[bv.row] = code
		}
	}
	idx.trainBuf = nil

	if idx.metrics != nil {
		idx.metrics.SetTrained("default", true)
	}
	if idx.logger != nil {
		idx.logger.Info("pq codec trained", map[string]any{
			"samples": len(toInsert),
			"m_sub":   idx.codec.MSub(),
		})
	}
	return toInsert
}

func (idx *Index) recordInsert() {
	if idx.metrics != nil {
		idx.metrics.RecordInsert("default", idx.Size())
		idx.metrics.SetMaxLevel("default", idx.graph.MaxLevel())
	}
}

// Remove deletes id's vector and graph entry. Returns ErrNotFound if id
// is absent.
func (idx *Index) Remove(id int32) error {
	idx.mu.Lock()
	row, exists := idx.idToRow[id]
	if !exists {
		idx.mu.Unlock()
		return annerr.ErrNotFound
	}
	delete(idx.idToRow, id)
	buffered := false
	for i, bv := range idx.trainBuf {
		if bv.id == id {
			idx.trainBuf = append(idx.trainBuf[:i], idx.trainBuf[i+1:]...)
			buffered = true
			break
		}
	}
	idx.mu.Unlock()

	if !buffered {
		idx.graph.Delete(int32(row))
	}
	if idx.metrics != nil {
		idx.metrics.RecordRemove("default", idx.Size())
	}
	return nil
}

// Search returns up to k nearest results to q in ascending distance
// order. Returns ErrInvalidDimension if len(q) != D. An empty index
// returns zero results, never an error.
func (idx *Index) Search(q []float32, k int) ([]Result, error) {
	if len(q) != idx.cfg.D {
		return nil, annerr.ErrInvalidDimension
	}
	if k <= 0 {
		return nil, nil
	}

	n := idx.Size()
	if n == 0 {
		return nil, nil
	}

	start := time.Now()

	ef := hnsw.DefaultEfParams.EffectiveEf(k, n)

	exact := idx.exactDist(q)
	poolDist := exact
	var table []float32
	if idx.codec != nil && idx.codec.Trained() {
		t, err := idx.codec.BuildTable(q)
		if err == nil {
			table = t
			idx.mu.Lock()
			codes := idx.codes
			idx.mu.Unlock()
			poolDist = func(row int32) float32 { return idx.codec.Distance(table, codes[row]) }
		}
	}

	pool := idx.graph.Search(ef, exact, poolDist)

	refineWidth := k * refineMult
	if refineWidth > len(pool) {
		refineWidth = len(pool)
	}
	candidates := pool[:refineWidth]

	type scored struct {
		row  int32
		dist float32
	}
	rescored := make([]scored, len(candidates))
	for i, c := range candidates {
		rescored[i] = scored{row: c.row, dist: exact(c.row)}
	}
	for i := 1; i < len(rescored); i++ {
		for j := i; j > 0 && rescored[j].dist < rescored[j-1].dist; j-- {
			rescored[j], rescored[j-1] = rescored[j-1], rescored[j]
		}
	}

	if k > len(rescored) {
		k = len(rescored)
	}
	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = Result{
			ID:       idx.store.ID(int(rescored[i].row)),
			Distance: rescored[i].dist,
		}
	}

	if idx.metrics != nil {
		idx.metrics.RecordSearch(time.Since(start))
	}
	return results, nil
}

// SearchExact is a brute-force baseline: exhaustive linear scan against
// every live vector, sorted ascending. Exposed as a correctness escape
// hatch and as a ground truth for comparing Search results.
func (idx *Index) SearchExact(q []float32, k int) ([]Result, error) {
	if len(q) != idx.cfg.D {
		return nil, annerr.ErrInvalidDimension
	}

	idx.mu.Lock()
	rows := make([]int, 0, len(idx.idToRow))
	ids := make([]int32, 0, len(idx.idToRow))
	for id, row := range idx.idToRow {
		rows = append(rows, row)
		ids = append(ids, id)
	}
	idx.mu.Unlock()

	type scored struct {
		id   int32
		dist float32
	}
	all := make([]scored, len(rows))
	for i, row := range rows {
		all[i] = scored{id: ids[i], dist: simd.EuclidSq(q, idx.store.Row(row))}
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].dist < all[j-1].dist; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}

	if k > len(all) {
		k = len(all)
	}
	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = Result{ID: all[i].id, Distance: all[i].dist}
	}
	return results, nil
}

// Rebuild drains the current graph and re-inserts every stored vector in
// ascending id order. It does not retrain the PQ codebook.
func (idx *Index) Rebuild() error {
	idx.mu.Lock()
	ids := make([]int32, 0, len(idx.idToRow))
	for id := range idx.idToRow {
		ids = append(ids, id)
	}
	idx.mu.Unlock()
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}

	idx.graph = hnsw.NewGraph(idx.cfg.HNSW, idx.cfg.Nmax, idx.rebuildSeed())
	for _, id := range ids {
		idx.mu.Lock()
		row := idx.idToRow[id]
		idx.mu.Unlock()
		v := idx.store.Row(row)
		idx.graph.Insert(int32(row), idx.exactDist(v), idx.exactRowDist())
	}
	return nil
}

func (idx *Index) rebuildSeed() int64 {
	if idx.cfg.PQ != nil {
		return idx.cfg.PQ.Seed
	}
	return 1
}

// Stats reports the index's current size, graph shape, and PQ state.
func (idx *Index) Stats() Stats {
	idx.mu.Lock()
	size := len(idx.idToRow)
	idx.mu.Unlock()

	s := Stats{
		Size:       size,
		Capacity:   idx.cfg.Nmax,
		Dimension:  idx.cfg.D,
		MaxLevel:   idx.graph.MaxLevel(),
		EntryPoint: idx.graph.EntryPoint(),
	}
	if idx.codec != nil {
		s.PQEnabled = true
		s.PQTrained = idx.codec.Trained()
		if s.PQTrained {
			s.CompressionRatio = float32(idx.cfg.D*4) / float32(idx.codec.MSub())
		}
	}
	return s
}
