package hnsw

import "math"

// EfParams controls how the layer-0 beam width scales with k and the
// graph's current size.
type EfParams struct {
	KMult  int     // ef grows at least this many times k
	Ratio  float64 // ef also grows with N*Ratio
	BaseEf int     // floor, regardless of k or N
	MaxEf  int     // ceiling
}

// DefaultEfParams: recall rises steeply with the fraction of the dataset
// visited until roughly 10-15%, then plateaus, so ef tracks N·ratio in
// that band; MaxEf bounds tail latency on huge N.
var DefaultEfParams = EfParams{KMult: 100, Ratio: 0.12, BaseEf: 50, MaxEf: 5000}

// EffectiveEf computes the beam width for a query requesting k results
// against a graph of n live nodes.
func (p EfParams) EffectiveEf(k, n int) int {
	ef := k * p.KMult
	if byRatio := int(math.Ceil(float64(n) * p.Ratio)); byRatio > ef {
		ef = byRatio
	}
	if ef < p.BaseEf {
		ef = p.BaseEf
	}
	if ef > p.MaxEf {
		ef = p.MaxEf
	}
	if ef > n {
		ef = n
	}
	return ef
}

// Search descends the upper layers using exactDist (the same oracle build
// used, so the descent lands wherever the graph's own training actually
// placed the query's neighborhood), then beam-searches layer 0 using
// poolDist — the trained PQ codec's asymmetric distance when available,
// or exactDist again before training completes — to gather a candidate
// pool. It returns that pool sorted by poolDist ascending, up to ef
// entries; the caller re-ranks a leading slice of it by exact distance
// and keeps the top k.
func (g *Graph) Search(ef int, exactDist, poolDist DistanceFunc) []candidate {
	g.lock.rLock()
	defer g.lock.rUnlock()

	entry := g.entry
	if entry < 0 {
		return nil
	}
	topLevel := g.maxLevel

	cur := entry
	for l := topLevel; l > 0; l-- {
		cur = g.greedyStep(cur, l, exactDist)
	}

	return g.searchLayerLocked(cur, ef, 0, poolDist)
}
