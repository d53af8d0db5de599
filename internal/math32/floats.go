// Package math32 provides float32 vector primitives for distance
// reconstruction. This is an internal package - external users should go
// through the kernel package.
package math32

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}

// SquaredL2 calculates the squared L2 distance between two vectors.
func SquaredL2(a, b []float32) float32 {
	var distance float32
	for i := range a {
		distance += (a[i] - b[i]) * (a[i] - b[i])
	}

	return distance
}

// AdcLookup computes the sum of per-subspace distances from a precomputed
// lookup table.
// table: M x K floats (flattened), codes: M bytes, k: centroids per subspace.
func AdcLookup(table []float32, codes []byte, k int) float32 {
	var distance float32
	for m, c := range codes {
		distance += table[m*k+int(c)]
	}

	return distance
}
