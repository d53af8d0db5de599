package kernel

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pqscan/codebook"
	"github.com/hupe1980/pqscan/internal/math32"
)

func testFlat(t *testing.T, m, k, subDim int) *codebook.Flat {
	t.Helper()

	cb := make(codebook.Codebook, m)
	for s := range cb {
		cb[s] = make([][]float32, k)
		for c := range cb[s] {
			cb[s][c] = make([]float32, subDim)
			for d := range cb[s][c] {
				cb[s][c][d] = rand.Float32()
			}
		}
	}

	flat, err := codebook.Flatten(cb)
	require.NoError(t, err)
	return flat
}

// bruteForce computes the ADC distance directly from the nested definition.
func bruteForce(query []float32, flat *codebook.Flat, codes []byte) float32 {
	shape := flat.Shape

	var dist float32
	for s := 0; s < shape.NumSubspaces; s++ {
		start := s * shape.SubspaceDim
		querySub := query[start : start+shape.SubspaceDim]
		dist += math32.SquaredL2(querySub, flat.Centroid(s, int(codes[s])))
	}
	return dist
}

func TestADCDistanceTile(t *testing.T) {
	const (
		m       = 4
		k       = 16
		subDim  = 3
		tileLen = 32
	)

	ctx := context.Background()
	flat := testFlat(t, m, k, subDim)

	query := make([]float32, flat.Shape.Dim())
	for i := range query {
		query[i] = rand.Float32()
	}

	tile, err := NewADC().Prepare(ctx, query, flat)
	require.NoError(t, err)

	codes := make([]byte, tileLen*m)
	for i := range codes {
		codes[i] = byte(rand.Intn(k))
	}

	out := make([]float32, tileLen)
	require.NoError(t, tile.DistanceTile(ctx, codes, out))

	for j := 0; j < tileLen; j++ {
		want := bruteForce(query, flat, codes[j*m:(j+1)*m])
		assert.InDelta(t, want, out[j], 1e-4, "item %d", j)
	}
}

func TestADCDeterminism(t *testing.T) {
	ctx := context.Background()
	flat := testFlat(t, 2, 8, 4)

	query := make([]float32, flat.Shape.Dim())
	for i := range query {
		query[i] = rand.Float32()
	}

	codes := []byte{1, 7, 0, 3, 5, 5}
	out1 := make([]float32, 3)
	out2 := make([]float32, 3)

	tile1, err := NewADC().Prepare(ctx, query, flat)
	require.NoError(t, err)
	require.NoError(t, tile1.DistanceTile(ctx, codes, out1))

	tile2, err := NewADC().Prepare(ctx, query, flat)
	require.NoError(t, err)
	require.NoError(t, tile2.DistanceTile(ctx, codes, out2))

	assert.Equal(t, out1, out2)
}

func TestADCShapeMismatch(t *testing.T) {
	ctx := context.Background()
	flat := testFlat(t, 2, 4, 2)

	t.Run("Query", func(t *testing.T) {
		_, err := NewADC().Prepare(ctx, make([]float32, 3), flat)
		var sm *ShapeMismatchError
		require.ErrorAs(t, err, &sm)
		assert.Equal(t, "query", sm.What)
		assert.Equal(t, 4, sm.Expected)
		assert.Equal(t, 3, sm.Actual)
	})

	t.Run("Codes", func(t *testing.T) {
		tile, err := NewADC().Prepare(ctx, make([]float32, 4), flat)
		require.NoError(t, err)

		err = tile.DistanceTile(ctx, make([]byte, 5), make([]float32, 3))
		var sm *ShapeMismatchError
		require.ErrorAs(t, err, &sm)
		assert.Equal(t, "codes", sm.What)
	})
}
