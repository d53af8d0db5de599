// Package kernel defines the distance-kernel boundary of the scan engine.
//
// A kernel reconstructs one approximate distance per item in a tile of
// quantized codes. The engine only relies on the contract below; any backend
// satisfying it (scalar CPU code, SIMD, GPU, an external inference runtime)
// is substitutable. The reference implementation is ADC.
package kernel

import (
	"context"
	"fmt"

	"github.com/hupe1980/pqscan/codebook"
)

// Kernel prepares per-query state for tile evaluation.
//
// Prepare is called once per query session; the returned TileKernel is then
// invoked once per chunk. Implementations must be deterministic and
// side-effect free: identical inputs yield identical distances.
type Kernel interface {
	// Prepare precomputes whatever the backend needs for this query
	// (e.g. an ADC lookup table, or uploading the query to a device).
	// Returns a *ShapeMismatchError if len(query) != flat.Shape.Dim().
	Prepare(ctx context.Context, query []float32, flat *codebook.Flat) (TileKernel, error)
}

// TileKernel evaluates tiles of quantized codes for a single prepared query.
type TileKernel interface {
	// DistanceTile computes out[j] = sum over subspaces s of the
	// sub-distance between the query and centroid codes[j*M+s] of
	// subspace s, for each item j in the tile.
	//
	// The tile size is len(out); codes must hold exactly
	// len(out)*numSubspaces bytes, otherwise a *ShapeMismatchError is
	// returned. Blocking backends should honor ctx.
	DistanceTile(ctx context.Context, codes []byte, out []float32) error
}

// ShapeMismatchError indicates query or code buffer lengths that do not
// match the codebook's declared dimensions.
type ShapeMismatchError struct {
	What     string
	Expected int
	Actual   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s length mismatch: expected %d, got %d", e.What, e.Expected, e.Actual)
}
