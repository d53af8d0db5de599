package math32

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSquaredL2(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 6, 3}

	assert.InDelta(t, 25.0, SquaredL2(a, b), 1e-6)
	assert.Zero(t, SquaredL2(a, a))
}

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}

	assert.InDelta(t, 32.0, Dot(a, b), 1e-6)
}

func TestAdcLookup(t *testing.T) {
	// 2 subspaces, 4 centroids each.
	table := []float32{
		0.5, 1.5, 2.5, 3.5,
		10, 20, 30, 40,
	}

	assert.InDelta(t, 0.5+10, AdcLookup(table, []byte{0, 0}, 4), 1e-6)
	assert.InDelta(t, 3.5+30, AdcLookup(table, []byte{3, 2}, 4), 1e-6)
}
