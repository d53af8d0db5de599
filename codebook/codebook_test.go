package codebook

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomCodebook(m, k, subDim int) Codebook {
	cb := make(Codebook, m)
	for s := range cb {
		cb[s] = make([][]float32, k)
		for c := range cb[s] {
			cb[s][c] = make([]float32, subDim)
			for d := range cb[s][c] {
				cb[s][c][d] = rand.Float32()
			}
		}
	}
	return cb
}

func TestFlattenRoundTrip(t *testing.T) {
	const (
		m      = 4
		k      = 16
		subDim = 3
	)

	cb := randomCodebook(m, k, subDim)

	flat, err := Flatten(cb)
	require.NoError(t, err)

	assert.Equal(t, Shape{NumSubspaces: m, NumCentroids: k, SubspaceDim: subDim}, flat.Shape)
	assert.Len(t, flat.Data, m*k*subDim)
	assert.Equal(t, m*subDim, flat.Shape.Dim())

	for s := 0; s < m; s++ {
		for c := 0; c < k; c++ {
			for d := 0; d < subDim; d++ {
				assert.Equal(t, cb[s][c][d], flat.Data[(s*k+c)*subDim+d])
			}
		}
	}
}

func TestFlattenCentroidAccessor(t *testing.T) {
	cb := randomCodebook(2, 4, 2)

	flat, err := Flatten(cb)
	require.NoError(t, err)

	for s := 0; s < 2; s++ {
		for c := 0; c < 4; c++ {
			assert.Equal(t, cb[s][c], flat.Centroid(s, c))
		}
	}
}

func TestFlattenRagged(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := Flatten(Codebook{})
		var se *ShapeError
		require.ErrorAs(t, err, &se)
	})

	t.Run("UnevenCentroidCount", func(t *testing.T) {
		cb := randomCodebook(3, 8, 2)
		cb[1] = cb[1][:5]

		_, err := Flatten(cb)
		var se *ShapeError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 1, se.Subspace)
	})

	t.Run("UnevenCentroidDim", func(t *testing.T) {
		cb := randomCodebook(3, 8, 4)
		cb[2][7] = cb[2][7][:3]

		_, err := Flatten(cb)
		var se *ShapeError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 2, se.Subspace)
	})
}
