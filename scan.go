// Package pqscan provides functionality for an incremental approximate
// nearest-neighbor scan engine over product-quantized embeddings.
//
// This file implements the fluent query API and the tiled incremental
// scheduler driving shards through the distance kernel.
package pqscan

import (
	"context"
	"errors"
	"iter"
	"math"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/pqscan/internal/coverage"
	"github.com/hupe1980/pqscan/topk"
)

// Event is a progress snapshot emitted by a scan session.
//
// Distances and Timings alias session-owned buffers that are reused for the
// remainder of the scan; consumers that hold on to an event past the next
// chunk must copy what they need. Distance entries are only valid for items
// counted by Covered; everything else holds the +Inf placeholder.
type Event struct {
	// Distances is the full distance array, updated in place chunk by
	// chunk.
	Distances []float32

	// Covered is the number of items whose distances are valid.
	Covered int

	// ChunkElapsed is the kernel wall time for the chunk that produced
	// this event.
	ChunkElapsed time.Duration

	// Timings holds the kernel wall time of every chunk so far.
	Timings []time.Duration

	// LastEmit is when the previous event was emitted (zero for the
	// first event).
	LastEmit time.Time

	// TopK is the recomputed top-k result, or nil if this event did not
	// include a recomputation.
	TopK []topk.Candidate

	// Final marks the terminal snapshot of a completed scan.
	Final bool
}

// errStreamStopped signals that the consumer broke out of a Stream loop.
var errStreamStopped = errors.New("stream stopped")

// Query starts building a scan for the given query vector.
//
// Example:
//
//	results, err := engine.Query(vec).
//	    KNN(10).
//	    FacetValue(3).
//	    Execute(ctx)
func (e *Engine) Query(query []float32) *QueryBuilder {
	return &QueryBuilder{
		e:     e,
		query: query,
		k:     10, // Default k
	}
}

// QueryBuilder is a fluent builder for one scan session.
type QueryBuilder struct {
	e      *Engine
	query  []float32
	k      int
	filter topk.Filter
	onProg func(Event)
}

// KNN sets the number of nearest neighbors to return.
func (qb *QueryBuilder) KNN(k int) *QueryBuilder {
	qb.k = k
	return qb
}

// FacetValue restricts results to items whose facet value matches v.
func (qb *QueryBuilder) FacetValue(v float32) *QueryBuilder {
	qb.filter.Mode = topk.MatchValue
	qb.filter.Value = v
	return qb
}

// Shim sets the tolerance for facet matching; |facet - value| <= shim
// counts as a match. Zero (the default) means exact equality.
func (qb *QueryBuilder) Shim(shim float32) *QueryBuilder {
	qb.filter.Shim = shim
	return qb
}

// Unfiltered removes any facet restriction.
func (qb *QueryBuilder) Unfiltered() *QueryBuilder {
	qb.filter = topk.Filter{Mode: topk.MatchAny}
	return qb
}

// OnProgress registers a synchronous progress callback. It runs on the
// scan's own goroutine and must not block indefinitely.
func (qb *QueryBuilder) OnProgress(fn func(Event)) *QueryBuilder {
	qb.onProg = fn
	return qb
}

// Execute runs the scan to completion and returns the final top-k result.
// Progress events go to the OnProgress callback if one is registered.
// On cancellation the context error is returned and no final result is
// produced.
func (qb *QueryBuilder) Execute(ctx context.Context) ([]topk.Candidate, error) {
	emit := func(Event) bool { return true }
	if qb.onProg != nil {
		fn := qb.onProg
		emit = func(ev Event) bool {
			fn(ev)
			return true
		}
	}
	return qb.run(ctx, emit)
}

// MustExecute runs the scan, panicking on error.
// Use this only in tests or when you're certain the inputs are valid.
func (qb *QueryBuilder) MustExecute(ctx context.Context) []topk.Candidate {
	results, err := qb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// Stream runs the scan and yields every progress event in order. The final
// event of a completed scan carries Final=true and the terminal top-k.
// Breaking out of the loop cancels the scan at the next chunk boundary.
//
// Example:
//
//	for ev, err := range engine.Query(vec).KNN(10).Stream(ctx) {
//	    if err != nil { return err }
//	    render(ev)
//	}
func (qb *QueryBuilder) Stream(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		_, err := qb.run(ctx, func(ev Event) bool {
			return yield(ev, nil)
		})
		if err != nil && !errors.Is(err, errStreamStopped) {
			yield(Event{}, err)
		}
	}
}

// session is the transient state of one scan: the distance array, coverage,
// timings and the recomputation gate. Destroyed when run returns.
type session struct {
	dists   []float32
	cov     *coverage.Bitmap
	timings []time.Duration
	gate    rate.Sometimes
	last    time.Time
}

func (qb *QueryBuilder) run(ctx context.Context, emit func(Event) bool) (final []topk.Candidate, err error) {
	e := qb.e
	logger := e.opts.logger.WithK(qb.k).WithChunkSize(e.opts.chunkSize)
	started := time.Now()

	s := &session{
		cov:  coverage.New(),
		gate: rate.Sometimes{First: 1, Interval: e.opts.maxTick},
	}

	defer func() {
		if !errors.Is(err, errStreamStopped) {
			e.opts.metrics.RecordScan(s.cov.Count(), time.Since(started), err)
			logger.LogScan(ctx, qb.k, s.cov.Count(), time.Since(started), err)
		}
	}()

	if qb.k <= 0 {
		return nil, ErrInvalidK
	}

	if rc := e.opts.resources; rc != nil {
		if err := rc.AcquireScan(ctx); err != nil {
			return nil, err
		}
		defer rc.ReleaseScan()

		memBytes := int64(e.total) * 4
		if err := rc.AcquireMemory(ctx, memBytes); err != nil {
			return nil, err
		}
		defer rc.ReleaseMemory(memBytes)
	}

	tile, err := e.opts.kernel.Prepare(ctx, qb.query, e.flat)
	if err != nil {
		return nil, &KernelError{Op: "prepare", cause: err}
	}

	// Unprocessed entries hold +Inf so they can never masquerade as valid
	// distances; coverage makes the populated set explicit on top.
	s.dists = make([]float32, e.total)
	inf := float32(math.Inf(1))
	for i := range s.dists {
		s.dists[i] = inf
	}

	numSub := e.flat.Shape.NumSubspaces
	chunk := e.opts.chunkSize

	for si, sh := range e.shards {
		for i := 0; i < sh.Count; i += chunk {
			// Cancellation is cooperative: checked once per chunk,
			// a running kernel call always completes.
			if cerr := ctx.Err(); cerr != nil {
				logger.LogCancel(ctx, s.cov.Count())
				return nil, cerr
			}
			if err := e.opts.resources.ThrottleChunk(ctx); err != nil {
				return nil, err
			}

			abs := sh.Offset + i
			codes := sh.Codes[i*numSub : (i+chunk)*numSub]

			chunkStart := time.Now()
			if kerr := tile.DistanceTile(ctx, codes, s.dists[abs:abs+chunk]); kerr != nil {
				return nil, &KernelError{Op: "tile", cause: kerr}
			}
			elapsed := time.Since(chunkStart)

			s.cov.AddRange(abs, abs+chunk)
			s.timings = append(s.timings, elapsed)
			e.opts.metrics.RecordChunk(chunk, elapsed)
			logger.LogChunk(ctx, si, abs, chunk, elapsed)

			ev := Event{
				Distances:    s.dists,
				Covered:      s.cov.Count(),
				ChunkElapsed: elapsed,
				Timings:      s.timings,
				LastEmit:     s.last,
			}

			// Recompute top-k on the first chunk and then at most
			// once per tick budget; the gate resets its clock each
			// time it fires.
			var topkErr error
			s.gate.Do(func() {
				ev.TopK, topkErr = qb.recompute(ctx, s)
			})
			if topkErr != nil {
				return nil, topkErr
			}

			s.last = time.Now()
			if !emit(ev) {
				return nil, errStreamStopped
			}

			if ev.TopK != nil {
				// Let other ready work run before the next chunk.
				runtime.Gosched()
			}
		}
	}

	// Terminal snapshot, independent of the tick budget.
	result, err := qb.recompute(ctx, s)
	if err != nil {
		return nil, err
	}

	ev := Event{
		Distances: s.dists,
		Covered:   s.cov.Count(),
		Timings:   s.timings,
		LastEmit:  s.last,
		TopK:      result,
		Final:     true,
	}
	if !emit(ev) {
		return nil, errStreamStopped
	}

	return result, nil
}

func (qb *QueryBuilder) recompute(ctx context.Context, s *session) ([]topk.Candidate, error) {
	start := time.Now()

	result, err := topk.SelectCovered(s.dists, qb.e.facets, qb.filter, qb.k, s.cov.Iterator())
	if err != nil {
		return nil, translateError(err)
	}

	qb.e.opts.metrics.RecordTopK(len(result), time.Since(start))
	qb.e.opts.logger.LogTopK(ctx, len(result), s.cov.Count(), time.Since(start))

	return result, nil
}
