package pqscan

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pqscan/topk"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNoShards is returned when an engine is constructed without shards.
	ErrNoShards = errors.New("no shards provided")
)

// ShardError indicates an invalid shard at construction time.
//
// Shard preconditions (item count a multiple of the chunk size, code buffer
// sized to count*numSubspaces, non-overlapping ranges) are checked eagerly
// by New rather than surfacing as corrupted offsets mid-scan.
type ShardError struct {
	Index  int
	Reason string
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %d: %s", e.Index, e.Reason)
}

// AlignmentError indicates a facet column whose length does not match the
// logical item space spanned by the shards.
type AlignmentError struct {
	Items  int
	Facets int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("facet column misaligned: %d items, %d facet values", e.Items, e.Facets)
}

// KernelError wraps a failure of the distance kernel backend. Kernel
// failures are fatal to the scan session and are never retried, since they
// typically indicate a configuration error that would recur identically.
//
// The backend's original error can be accessed via errors.Unwrap.
type KernelError struct {
	Op    string // "prepare" or "tile"
	cause error
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel %s failed: %v", e.Op, e.cause)
}

func (e *KernelError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, topk.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	return err
}
