// Package codebook holds the product-quantization codebook used to
// reconstruct approximate distances from quantized codes.
//
// A codebook is pre-built by an external training pipeline and supplied to
// pqscan as input; this package only validates and reshapes it.
package codebook

import (
	"fmt"
)

// Codebook is the nested PQ model: one group of centroids per subspace.
// Shape: [numSubspaces][numCentroids][subspaceDim].
//
// Codebooks are immutable once constructed. They are borrowed read-only for
// the duration of a query and may be shared across concurrent queries.
type Codebook [][][]float32

// Shape describes the dimensions of a flattened codebook.
type Shape struct {
	NumSubspaces int // M: number of subspaces
	NumCentroids int // K: centroids per subspace (typically 256 for uint8 codes)
	SubspaceDim  int // D/M: dimensions per subspace
}

// Dim returns the embedding dimensionality D = M * SubspaceDim.
func (s Shape) Dim() int {
	return s.NumSubspaces * s.SubspaceDim
}

// TableSize returns the number of entries in a per-query ADC lookup table.
func (s Shape) TableSize() int {
	return s.NumSubspaces * s.NumCentroids
}

// ShapeError indicates a codebook that is not rectangular.
type ShapeError struct {
	Subspace int
	Reason   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("codebook shape error at subspace %d: %s", e.Subspace, e.Reason)
}

// Flat is a codebook flattened into a single row-major buffer:
//
//	Data[(s*NumCentroids + c)*SubspaceDim + d] = codebook[s][c][d]
//
// Flattening is done once per codebook; the result may be cached and reused
// across many queries.
type Flat struct {
	Data  []float32
	Shape Shape
}

// Centroid returns the centroid vector for subspace s, index c.
// The returned slice aliases Data and must not be mutated.
func (f *Flat) Centroid(s, c int) []float32 {
	start := (s*f.Shape.NumCentroids + c) * f.Shape.SubspaceDim
	return f.Data[start : start+f.Shape.SubspaceDim]
}

// Flatten converts a nested codebook into its flat row-major form.
// It is pure and deterministic. Returns a *ShapeError if the codebook is
// ragged: groups of differing centroid counts, or centroids of differing
// dimension.
func Flatten(cb Codebook) (*Flat, error) {
	if len(cb) == 0 {
		return nil, &ShapeError{Subspace: 0, Reason: "no subspaces"}
	}
	if len(cb[0]) == 0 {
		return nil, &ShapeError{Subspace: 0, Reason: "no centroids"}
	}

	shape := Shape{
		NumSubspaces: len(cb),
		NumCentroids: len(cb[0]),
		SubspaceDim:  len(cb[0][0]),
	}
	if shape.SubspaceDim == 0 {
		return nil, &ShapeError{Subspace: 0, Reason: "zero-dimensional centroids"}
	}

	for s, group := range cb {
		if len(group) != shape.NumCentroids {
			return nil, &ShapeError{
				Subspace: s,
				Reason:   fmt.Sprintf("expected %d centroids, got %d", shape.NumCentroids, len(group)),
			}
		}
		for _, centroid := range group {
			if len(centroid) != shape.SubspaceDim {
				return nil, &ShapeError{
					Subspace: s,
					Reason:   fmt.Sprintf("expected centroid dimension %d, got %d", shape.SubspaceDim, len(centroid)),
				}
			}
		}
	}

	data := make([]float32, shape.NumSubspaces*shape.NumCentroids*shape.SubspaceDim)
	for s, group := range cb {
		for c, centroid := range group {
			start := (s*shape.NumCentroids + c) * shape.SubspaceDim
			copy(data[start:start+shape.SubspaceDim], centroid)
		}
	}

	return &Flat{Data: data, Shape: shape}, nil
}
