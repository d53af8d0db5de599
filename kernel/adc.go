package kernel

import (
	"context"

	"github.com/hupe1980/pqscan/codebook"
	"github.com/hupe1980/pqscan/internal/math32"
)

// ADC is the reference CPU kernel using asymmetric distance computation:
// the query stays full precision, database items stay quantized.
//
// Prepare builds a lookup table of size M*K holding the squared L2 distance
// from each query subvector to each centroid; tile evaluation is then a
// table gather per item. The metric must match the one the codebook was
// trained under; squared Euclidean is what the bundled training pipelines
// produce.
type ADC struct{}

// NewADC creates the reference ADC kernel.
func NewADC() *ADC {
	return &ADC{}
}

// Prepare implements Kernel.
func (a *ADC) Prepare(_ context.Context, query []float32, flat *codebook.Flat) (TileKernel, error) {
	shape := flat.Shape
	if len(query) != shape.Dim() {
		return nil, &ShapeMismatchError{What: "query", Expected: shape.Dim(), Actual: len(query)}
	}

	table := make([]float32, shape.TableSize())
	for m := 0; m < shape.NumSubspaces; m++ {
		start := m * shape.SubspaceDim
		querySub := query[start : start+shape.SubspaceDim]

		for k := 0; k < shape.NumCentroids; k++ {
			table[m*shape.NumCentroids+k] = math32.SquaredL2(querySub, flat.Centroid(m, k))
		}
	}

	return &adcTile{table: table, shape: shape}, nil
}

type adcTile struct {
	table []float32
	shape codebook.Shape
}

// DistanceTile implements TileKernel.
func (t *adcTile) DistanceTile(_ context.Context, codes []byte, out []float32) error {
	m := t.shape.NumSubspaces
	if len(codes) != len(out)*m {
		return &ShapeMismatchError{What: "codes", Expected: len(out) * m, Actual: len(codes)}
	}

	k := t.shape.NumCentroids
	for j := range out {
		out[j] = math32.AdcLookup(t.table, codes[j*m:(j+1)*m], k)
	}

	return nil
}
