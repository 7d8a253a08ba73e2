// Package simd provides the distance kernels the graph and PQ codec run in
// their hot loops: squared Euclidean, cosine distance, a batched
// query-to-many form, and the asymmetric distance-table reduction.
//
// Go has no portable SIMD intrinsics in the standard toolchain, so — like
// the rest of the corpus — these kernels rely on an 8-lane manually
// unrolled loop plus a scalar tail, which the compiler auto-vectorizes on
// amd64/arm64 far more reliably than a straight-line range loop.
package simd

// EuclidSq returns the squared Euclidean distance between a and b. The
// caller is responsible for ensuring len(a) == len(b); on mismatched
// lengths it silently compares only the first min(len(a), len(b))
// elements.
func EuclidSq(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var sum float32
	limit := n - (n % 8)

	for i := 0; i < limit; i += 8 {
		d0, d1 := a[i]-b[i], a[i+1]-b[i+1]
		d2, d3 := a[i+2]-b[i+2], a[i+3]-b[i+3]
		d4, d5 := a[i+4]-b[i+4], a[i+5]-b[i+5]
		d6, d7 := a[i+6]-b[i+6], a[i+7]-b[i+7]
		sum += d0*d0 + d1*d1 + d2*d2 + d3*d3 + d4*d4 + d5*d5 + d6*d6 + d7*d7
	}
	for i := limit; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// CosineDist returns 1 - dot(a, b). Callers are expected to pre-normalize
// both vectors; this kernel does not divide by norms.
func CosineDist(a, b []float32) float32 {
	return 1 - dot(a, b)
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var sum float32
	limit := n - (n % 8)

	for i := 0; i < limit; i += 8 {
		sum += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3] +
			a[i+4]*b[i+4] + a[i+5]*b[i+5] + a[i+6]*b[i+6] + a[i+7]*b[i+7]
	}
	for i := limit; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// BatchEuclidSq fills out[i] with the squared Euclidean distance from q to
// rows[i], for i in [0, len(rows)). When normsSq is non-nil it is expected
// to hold the precomputed Σrows[i][j]² and the factorization
// ‖q−v‖² = ‖q‖² + ‖v‖² − 2·q·v is used instead of a fresh subtraction loop
// per row, trading one extra dot product for one fewer array of
// subtractions — a net win when rows are reused across many queries so
// their norms are computed once.
func BatchEuclidSq(q []float32, rows [][]float32, normsSq []float32, out []float32) {
	if normsSq == nil {
		for i, row := range rows {
			out[i] = EuclidSq(q, row)
		}
		return
	}

	var qNormSq float32
	for _, x := range q {
		qNormSq += x * x
	}

	for i, row := range rows {
		out[i] = qNormSq + normsSq[i] - 2*dot(q, row)
	}
}

// ADC computes the asymmetric distance of an encoded vector against a
// per-query distance table: Σ_j table[j*centroids + codes[j]].
func ADC(table []float32, codes []byte, mSub, centroids int) float32 {
	var sum float32
	for j := 0; j < mSub; j++ {
		sum += table[j*centroids+int(codes[j])]
	}
	return sum
}
