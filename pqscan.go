package pqscan

import (
	"github.com/hupe1980/pqscan/codebook"
)

// Engine scans one or more shards of product-quantized embeddings for the
// approximate nearest neighbors of a query vector, streaming progress and
// faceted top-k snapshots as it goes.
//
// An Engine is immutable after construction and safe for concurrent use;
// each query runs in its own session with an exclusively owned distance
// array. The codebook, shards and facet column are shared read-only.
type Engine struct {
	flat   *codebook.Flat
	shards []Shard
	facets FacetColumn
	total  int
	opts   options
}

// New creates an Engine from a nested codebook, flattening it once.
// Shards must satisfy the documented preconditions (counts a multiple of the
// chunk size, disjoint ranges, code buffers sized to the codebook); facets
// must cover the full logical item span. All of this is validated eagerly.
func New(cb codebook.Codebook, shards []Shard, facets FacetColumn, optFns ...Option) (*Engine, error) {
	flat, err := codebook.Flatten(cb)
	if err != nil {
		return nil, err
	}
	return NewFromFlat(flat, shards, facets, optFns...)
}

// NewFromFlat creates an Engine from an already-flattened codebook, allowing
// the flatten result to be cached and shared across engines and queries.
func NewFromFlat(flat *codebook.Flat, shards []Shard, facets FacetColumn, optFns ...Option) (*Engine, error) {
	opts := applyOptions(optFns)

	total, err := validateShards(shards, flat.Shape.NumSubspaces, opts.chunkSize)
	if err != nil {
		return nil, err
	}
	if len(facets) != total {
		return nil, &AlignmentError{Items: total, Facets: len(facets)}
	}

	return &Engine{
		flat:   flat,
		shards: shards,
		facets: facets,
		total:  total,
		opts:   opts,
	}, nil
}

// TotalItems returns the size of the logical item space.
func (e *Engine) TotalItems() int {
	return e.total
}

// Shape returns the codebook shape the engine was built with.
func (e *Engine) Shape() codebook.Shape {
	return e.flat.Shape
}
