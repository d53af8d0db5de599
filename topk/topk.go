// Package topk selects the k smallest distances from a distance array,
// restricted to items whose facet value satisfies a predicate.
//
// Selection is stateless and recomputed from scratch on every call; the scan
// engine treats results as ephemeral snapshots. The package itself has no
// notion of "not yet computed" entries - callers working over partially
// populated arrays restrict the candidate set via SelectCovered.
package topk

import (
	"container/heap"
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// SizeMismatchError indicates that the distance array and the facet column
// disagree in length.
type SizeMismatchError struct {
	Dists  int
	Facets int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: %d distances vs %d facet values", e.Dists, e.Facets)
}

// MatchMode selects the facet predicate.
type MatchMode int

const (
	// MatchAny disables facet filtering; every item is a candidate.
	MatchAny MatchMode = iota
	// MatchValue restricts candidates to items whose facet value equals
	// the filter value within the shim tolerance.
	MatchValue
)

// Filter is the facet predicate applied during selection.
//
// With MatchValue, an item i matches when |facet[i] - Value| <= Shim. A zero
// Shim means exact float equality; a small positive shim keeps the predicate
// stable for facet columns that went through lossy encodings.
type Filter struct {
	Value float32
	Mode  MatchMode
	Shim  float32
}

// Matches reports whether a facet value satisfies the filter.
func (f Filter) Matches(facet float32) bool {
	if f.Mode == MatchAny {
		return true
	}

	d := facet - f.Value
	if d < 0 {
		d = -d
	}
	return d <= f.Shim
}

// Candidate is one selected item.
type Candidate struct {
	Index    int
	Distance float32
}

// Select returns up to k candidates ascending by distance, ties broken by
// ascending item index, restricted to items whose facet value matches f.
//
// dists and facets must have equal length (facets may be nil with MatchAny,
// in which case no column is consulted). k <= 0 is ErrInvalidK; k larger
// than the item count is clamped rather than rejected, so callers may pass
// their display size without sizing it to the corpus.
func Select(dists, facets []float32, f Filter, k int) ([]Candidate, error) {
	if err := validate(dists, facets, f, k); err != nil {
		return nil, err
	}

	return selectSeq(dists, facets, f, k, func(yield func(int) bool) {
		for i := range dists {
			if !yield(i) {
				return
			}
		}
	}), nil
}

// SelectCovered is Select restricted to the item indices yielded by covered.
// This is the caller-protocol entry point for partially populated distance
// arrays: indices outside the covered set are never considered, regardless
// of the placeholder values they hold.
func SelectCovered(dists, facets []float32, f Filter, k int, covered iter.Seq[int]) ([]Candidate, error) {
	if err := validate(dists, facets, f, k); err != nil {
		return nil, err
	}

	return selectSeq(dists, facets, f, k, covered), nil
}

func validate(dists, facets []float32, f Filter, k int) error {
	if k <= 0 {
		return ErrInvalidK
	}
	if facets == nil && f.Mode == MatchAny {
		return nil
	}
	if len(dists) != len(facets) {
		return &SizeMismatchError{Dists: len(dists), Facets: len(facets)}
	}
	return nil
}

func selectSeq(dists, facets []float32, f Filter, k int, indices iter.Seq[int]) []Candidate {
	if k > len(dists) {
		k = len(dists)
	}

	// Bounded max-heap: the worst kept candidate is on top and is evicted
	// when a better one arrives.
	q := &candidateQueue{Max: true, Items: make([]Candidate, 0, k)}
	for i := range indices {
		if facets != nil && !f.Matches(facets[i]) {
			continue
		}

		c := Candidate{Index: i, Distance: dists[i]}
		if q.Len() < k {
			heap.Push(q, c)
			continue
		}

		worst := q.Top()
		if c.Distance < worst.Distance || (c.Distance == worst.Distance && c.Index < worst.Index) {
			q.Items[0] = c
			heap.Fix(q, 0)
		}
	}

	// Pop worst-first, fill the result back to front.
	out := make([]Candidate, q.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = heap.Pop(q).(Candidate)
	}

	return out
}
