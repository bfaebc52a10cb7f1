package testutil

// UnitVector returns a dims-long vector with 1 at position i, so notes built
// from distinct positions are mutually orthogonal.
func UnitVector(dims, i int) []float32 {
	v := make([]float32, dims)
	v[i%dims] = 1
	return v
}

// Blend returns a normalized-enough mix of two unit positions, weighted w on a.
func Blend(dims, a, b int, w float32) []float32 {
	v := make([]float32, dims)
	v[a%dims] = w
	v[b%dims] += 1 - w
	return v
}
