// Package pq implements a Product Quantization codec: per-subspace
// K-means++ training, per-vector encoding, per-query distance-table
// construction, and asymmetric distance computation.
//
// Grounded on internal/quantization/product.go, restructured so codebooks
// are one contiguous []float32 of shape [mSub][centroids][subDim] rather
// than a [][][]float32 of per-subspace slices, so a subspace's whole
// codebook is one cache-friendly slice instead of a slice-of-slices
// chasing pointers.
package pq

import (
	"math"
	"math/rand"

	annerr "github.com/therealutkarshpriyadarshi/anncore/errors"
	"github.com/therealutkarshpriyadarshi/anncore/internal/simd"
)

// Codec is a trained-once Product Quantizer over vectors of dimension
// mSub*subDim.
type Codec struct {
	mSub       int
	bitsPerSub int
	centroids  int // 2^bitsPerSub
	subDim     int
	seed       int64

	codebooks []float32 // flat [mSub][centroids][subDim]
	trained   bool
}

// New constructs an untrained codec. dim must equal mSub*subDim once
// training data arrives; subDim is derived from the first training batch.
func New(mSub, bitsPerSub int, seed int64) *Codec {
	return &Codec{
		mSub:       mSub,
		bitsPerSub: bitsPerSub,
		centroids:  1 << bitsPerSub,
		seed:       seed,
	}
}

// Trained reports whether Train has completed successfully.
func (c *Codec) Trained() bool { return c.trained }

// MSub returns the configured subspace count.
func (c *Codec) MSub() int { return c.mSub }

// Centroids returns the number of centroids per subspace.
func (c *Codec) Centroids() int { return c.centroids }

// Train runs independent per-subspace K-means++ on samples and freezes the
// resulting codebooks. Fails with ErrPreconditionFailed if already
// trained, or ErrEmptySample if samples is empty.
func (c *Codec) Train(samples [][]float32, iterations int) error {
	if c.trained {
		return annerr.ErrPreconditionFailed
	}
	if len(samples) == 0 {
		return annerr.ErrEmptySample
	}
	if iterations <= 0 {
		iterations = 25
	}

	dim := len(samples[0])
	c.subDim = dim / c.mSub

	codebooks := make([]float32, c.mSub*c.centroids*c.subDim)

	for j := 0; j < c.mSub; j++ {
		sub := extractSubspace(samples, j, c.subDim)
		// Deterministic per-subspace seed keeps training reproducible.
		r := rand.New(rand.NewSource(c.seed*1_000_003 + int64(j)))
		centroids := kmeansPlusPlus(sub, c.centroids, iterations, r)

		base := j * c.centroids * c.subDim
		for code, centroid := range centroids {
			copy(codebooks[base+code*c.subDim:base+(code+1)*c.subDim], centroid)
		}
	}

	c.codebooks = codebooks
	c.trained = true
	return nil
}

func extractSubspace(samples [][]float32, j, subDim int) [][]float32 {
	start := j * subDim
	end := start + subDim
	out := make([][]float32, len(samples))
	for i, v := range samples {
		sub := make([]float32, subDim)
		copy(sub, v[start:end])
		out[i] = sub
	}
	return out
}

// Encode returns the m_sub-byte code for v: for each subspace, the index
// of the nearest centroid.
func (c *Codec) Encode(v []float32) ([]byte, error) {
	if !c.trained {
		return nil, annerr.ErrPQUntrained
	}

	codes := make([]byte, c.mSub)
	for j := 0; j < c.mSub; j++ {
		start := j * c.subDim
		sub := v[start : start+c.subDim]
		codes[j] = byte(c.nearestCentroid(j, sub))
	}
	return codes, nil
}

func (c *Codec) nearestCentroid(subspace int, v []float32) int {
	base := subspace * c.centroids * c.subDim
	best := 0
	bestDist := float32(math.MaxFloat32)
	for code := 0; code < c.centroids; code++ {
		centroid := c.codebooks[base+code*c.subDim : base+(code+1)*c.subDim]
		d := simd.EuclidSq(v, centroid)
		if d < bestDist {
			bestDist = d
			best = code
		}
	}
	return best
}

// BuildTable precomputes, for each subspace j and centroid c,
// ‖q_j − μ_{j,c}‖², returning the flat [mSub*centroids] table ADC reads.
func (c *Codec) BuildTable(q []float32) ([]float32, error) {
	if !c.trained {
		return nil, annerr.ErrPQUntrained
	}

	table := make([]float32, c.mSub*c.centroids)
	for j := 0; j < c.mSub; j++ {
		start := j * c.subDim
		qSub := q[start : start+c.subDim]
		base := j * c.centroids * c.subDim
		for code := 0; code < c.centroids; code++ {
			centroid := c.codebooks[base+code*c.subDim : base+(code+1)*c.subDim]
			table[j*c.centroids+code] = simd.EuclidSq(qSub, centroid)
		}
	}
	return table, nil
}

// Distance evaluates the asymmetric distance: the sum of per-subspace
// table lookups for codes.
func (c *Codec) Distance(table []float32, codes []byte) float32 {
	return simd.ADC(table, codes, c.mSub, c.centroids)
}
