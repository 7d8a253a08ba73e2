package pq

import (
	"math/rand"

	"github.com/therealutkarshpriyadarshi/anncore/internal/simd"
)

// kmeansPlusPlus clusters vectors into k centroids using K-means++ seeding
// followed by Lloyd's-algorithm refinement, grounded on
// internal/quantization.KMeansPlusPlus. Empty clusters retain their
// previous centroid, and the loop exits early once an iteration leaves
// every assignment unchanged.
func kmeansPlusPlus(vectors [][]float32, k, iterations int, r *rand.Rand) [][]float32 {
	dim := len(vectors[0])
	centroids := make([][]float32, k)

	// Seed centroid 0 uniformly at random.
	centroids[0] = cloneVec(vectors[r.Intn(len(vectors))])

	// Seed 1..k-1 with probability proportional to squared distance from
	// the nearest already-chosen centroid.
	for c := 1; c < k; c++ {
		dist := make([]float32, len(vectors))
		var total float32
		for i, v := range vectors {
			min := nearestDistSq(v, centroids[:c])
			dist[i] = min
			total += min
		}

		if total > 0 {
			target := r.Float32() * total
			var cum float32
			chosen := len(vectors) - 1
			for i, d := range dist {
				cum += d
				if cum >= target {
					chosen = i
					break
				}
			}
			centroids[c] = cloneVec(vectors[chosen])
		} else {
			centroids[c] = cloneVec(vectors[r.Intn(len(vectors))])
		}
	}

	assign := make([]int, len(vectors))
	for iter := 0; iter < iterations; iter++ {
		changed := false

		for i, v := range vectors {
			best := nearestCentroidIdx(v, centroids)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}

		sums := make([][]float32, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += v[d]
			}
		}

		for c := range centroids {
			if counts[c] == 0 {
				continue // retain previous centroid
			}
			for d := 0; d < dim; d++ {
				sums[c][d] /= float32(counts[c])
			}
			centroids[c] = sums[c]
		}

		if iter > 0 && !changed {
			break
		}
	}

	return centroids
}

func nearestDistSq(v []float32, centroids [][]float32) float32 {
	min := simd.EuclidSq(v, centroids[0])
	for _, c := range centroids[1:] {
		if d := simd.EuclidSq(v, c); d < min {
			min = d
		}
	}
	return min
}

func nearestCentroidIdx(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := simd.EuclidSq(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		if d := simd.EuclidSq(v, centroids[i]); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
