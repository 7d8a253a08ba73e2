// Package config holds the immutable-after-construction configuration
// envelope for an ANN core index: dimensionality/capacity, HNSW graph
// parameters, and the optional PQ codec parameters.
//
// This deliberately omits gRPC server, TLS, and on-disk database knobs:
// those belong to a wire-protocol and persistence layer outside this
// core's scope. Only the fields the graph builder and codec need are
// kept here.
package config

import (
	"fmt"
	"math"
)

// HNSWConfig holds the graph-builder parameters.
type HNSWConfig struct {
	// M is the max degree at level > 0. Level 0 holds up to 2*M.
	M int
	// EfConstruction is the beam width used while inserting.
	EfConstruction int
	// MaxLevel caps the random level sampler.
	MaxLevel int
	// ShardedLocks, when > 0, selects the optional fine-grained bucket
	// locking scheme for the graph's write phase, using this many buckets.
	// Zero selects the single index-wide lock.
	ShardedLocks int
}

// LevelMultiplier returns 1/ln(M), the normalization factor the level
// sampler uses.
func (c HNSWConfig) LevelMultiplier() float64 {
	return 1.0 / math.Log(float64(c.M))
}

// PQConfig holds Product Quantization training parameters. A nil
// *PQConfig on Config disables PQ entirely: vectors are stored and
// searched at full precision, and the graph is built/searched against the
// exact distance oracle throughout.
type PQConfig struct {
	// MSub is the subspace count; D must be divisible by MSub.
	MSub int
	// BitsPerSub is typically 8 (256 centroids per subspace).
	BitsPerSub int
	// Iterations bounds the k-means refinement passes per subspace.
	Iterations int
	// TrainingSampleTarget is the size of the buffered sample collected
	// before training fires.
	TrainingSampleTarget int
	// Seed is the base RNG seed; per-subspace seeds derive from it
	// deterministically so training is reproducible.
	Seed int64
}

// Centroids returns 2^BitsPerSub, the number of centroids per subspace.
func (c PQConfig) Centroids() int {
	return 1 << c.BitsPerSub
}

// Config is the full, immutable configuration of one index.
type Config struct {
	D    int // vector dimensionality
	Nmax int // capacity

	HNSW HNSWConfig
	PQ   *PQConfig // nil disables PQ
}

// NewConfig returns recommended defaults for a D-dimensional index with
// capacity nmax and PQ disabled. Callers enable PQ with WithPQ or by
// setting Config.PQ directly (AutoPQConfig is the recommended source).
func NewConfig(d, nmax int) Config {
	return Config{
		D:    d,
		Nmax: nmax,
		HNSW: HNSWConfig{
			M:              16,
			EfConstruction: 200,
			MaxLevel:       16,
		},
	}
}

// WithPQ returns a copy of c with PQ enabled using the given config.
func (c Config) WithPQ(pq PQConfig) Config {
	c.PQ = &pq
	return c
}

// AutoPQConfig derives a recommended PQConfig for dimension d: it picks
// MSub so that sub_dim = d/MSub falls in [4, 16], trying 8, 16, 4, 32 and
// 2 subspaces in that order, and otherwise the smallest divisor m >= 2 of
// d whose quotient is in range. When no such divisor exists (d prime or
// small) it falls back to the degenerate MSub = d (sub_dim = 1).
func AutoPQConfig(d int) PQConfig {
	msub := autoMSub(d)
	return PQConfig{
		MSub:                 msub,
		BitsPerSub:           8,
		Iterations:           25,
		TrainingSampleTarget: 10000,
		Seed:                 42,
	}
}

func autoMSub(d int) int {
	if d <= 0 {
		return 1
	}
	preferred := []int{8, 16, 4, 32, 2}
	for _, m := range preferred {
		if m <= d && d%m == 0 {
			sub := d / m
			if sub >= 4 && sub <= 16 {
				return m
			}
		}
	}
	for m := 2; m <= d; m++ {
		if d%m != 0 {
			continue
		}
		sub := d / m
		if sub >= 4 && sub <= 16 {
			return m
		}
	}
	return d
}

// Validate checks the configuration's internal consistency.
func (c Config) Validate() error {
	if c.D <= 0 {
		return fmt.Errorf("anncore: invalid dimension %d", c.D)
	}
	if c.Nmax <= 0 {
		return fmt.Errorf("anncore: invalid capacity %d", c.Nmax)
	}
	if c.HNSW.M < 2 {
		return fmt.Errorf("anncore: invalid HNSW M %d (must be >= 2)", c.HNSW.M)
	}
	if c.HNSW.EfConstruction < c.HNSW.M {
		return fmt.Errorf("anncore: invalid efConstruction %d (must be >= M)", c.HNSW.EfConstruction)
	}
	if c.PQ != nil {
		if c.PQ.MSub <= 0 || c.D%c.PQ.MSub != 0 {
			return fmt.Errorf("anncore: D (%d) must be divisible by MSub (%d)", c.D, c.PQ.MSub)
		}
		if c.PQ.BitsPerSub <= 0 || c.PQ.BitsPerSub > 8 {
			return fmt.Errorf("anncore: invalid bitsPerSub %d", c.PQ.BitsPerSub)
		}
	}
	return nil
}
