// Package coverage tracks which logical items of a distance array hold
// valid, fully computed distances. This is an internal package.
//
// A scan populates the distance array chunk by chunk; unprocessed entries
// hold a sentinel and must never be treated as distances. The bitmap makes
// the populated set explicit instead of relying on sentinel semantics alone.
package coverage

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmap is a set of populated item indices backed by a roaring bitmap.
// It is owned by a single scan session and is not safe for concurrent
// mutation.
type Bitmap struct {
	rb *roaring.Bitmap
}

// New creates an empty coverage bitmap.
func New() *Bitmap {
	return &Bitmap{rb: roaring.New()}
}

// AddRange marks the half-open item range [start, end) as populated.
func (b *Bitmap) AddRange(start, end int) {
	if end <= start {
		return
	}
	b.rb.AddRange(uint64(start), uint64(end))
}

// Contains reports whether item i is populated.
func (b *Bitmap) Contains(i int) bool {
	return b.rb.Contains(uint32(i))
}

// Count returns the number of populated items.
func (b *Bitmap) Count() int {
	return int(b.rb.GetCardinality())
}

// IsEmpty returns true if nothing is populated.
func (b *Bitmap) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Clone returns a deep copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{rb: b.rb.Clone()}
}

// Iterator yields populated item indices in ascending order.
func (b *Bitmap) Iterator() iter.Seq[int] {
	return func(yield func(int) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(int(it.Next())) {
				return
			}
		}
	}
}
