package pqscan

import (
	"fmt"
	"sort"
)

// Shard is a contiguous block of quantized embedding codes, one byte per
// subspace per item, together with its position in the logical item space.
//
// Shards are pre-built by an external pipeline and are read-only to the
// engine; they may be shared across concurrent sessions.
type Shard struct {
	// Codes holds Count*numSubspaces bytes, item-major.
	Codes []byte

	// Offset is the index of the shard's first item in the logical item
	// space.
	Offset int

	// Count is the number of items in the shard. Must be a multiple of
	// the engine's chunk size.
	Count int
}

// End returns the exclusive end of the shard's item range.
func (s Shard) End() int {
	return s.Offset + s.Count
}

// FacetColumn is a per-item scalar attribute aligned 1:1 with the logical
// item space, used to filter top-k candidates. Read-only to the engine.
type FacetColumn []float32

// validateShards checks shard preconditions eagerly: positive counts, code
// buffers sized to the codebook, chunk divisibility, and disjoint ranges.
// Returns the total logical item span (gaps between shards are allowed and
// simply stay uncovered).
func validateShards(shards []Shard, numSubspaces, chunkSize int) (int, error) {
	if len(shards) == 0 {
		return 0, ErrNoShards
	}

	total := 0
	for i, sh := range shards {
		if sh.Offset < 0 {
			return 0, &ShardError{Index: i, Reason: fmt.Sprintf("negative offset %d", sh.Offset)}
		}
		if sh.Count <= 0 {
			return 0, &ShardError{Index: i, Reason: fmt.Sprintf("non-positive item count %d", sh.Count)}
		}
		if sh.Count%chunkSize != 0 {
			return 0, &ShardError{
				Index:  i,
				Reason: fmt.Sprintf("item count %d is not a multiple of chunk size %d", sh.Count, chunkSize),
			}
		}
		if want := sh.Count * numSubspaces; len(sh.Codes) != want {
			return 0, &ShardError{
				Index:  i,
				Reason: fmt.Sprintf("code buffer holds %d bytes, expected %d", len(sh.Codes), want),
			}
		}
		if sh.End() > total {
			total = sh.End()
		}
	}

	// Overlap check on a copy sorted by offset; scan order stays the
	// caller's.
	byOffset := make([]int, len(shards))
	for i := range byOffset {
		byOffset[i] = i
	}
	sort.Slice(byOffset, func(a, b int) bool {
		return shards[byOffset[a]].Offset < shards[byOffset[b]].Offset
	})
	for i := 1; i < len(byOffset); i++ {
		prev, cur := byOffset[i-1], byOffset[i]
		if shards[prev].End() > shards[cur].Offset {
			return 0, &ShardError{
				Index:  cur,
				Reason: fmt.Sprintf("range [%d,%d) overlaps shard %d", shards[cur].Offset, shards[cur].End(), prev),
			}
		}
	}

	return total, nil
}
