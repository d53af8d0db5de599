// Package pqscan is a tiled incremental query engine for approximate
// nearest-neighbor search over product-quantized embeddings.
//
// It reconstructs approximate distances from quantized code shards using a
// pre-built codebook, streams the computation in bounded-size chunks,
// periodically recomputes a faceted top-k result under a wall-clock tick
// budget, and reports progress as it goes - trading recall for the ability
// to scan millions of items interactively on a single device.
//
// # Quick Start
//
//	engine, err := pqscan.New(cb, shards, facets)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := engine.Query(vec).
//	    KNN(10).
//	    FacetValue(3).
//	    Execute(ctx)
//
// Or stream incremental snapshots:
//
//	for ev, err := range engine.Query(vec).KNN(10).Stream(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    render(ev.TopK) // nil unless this event recomputed top-k
//	}
//
// # Model
//
// The codebook (codebook package) and the quantized shards are pre-built by
// an external training pipeline; pqscan only scans them. Distances are
// reconstructed by a pluggable kernel (kernel package, reference ADC
// implementation included); top-k selection lives in the topk package.
// Pre-built artifacts can be fetched through the blobstore, shardio and
// manifest packages, which stay outside the scan core.
//
// # Concurrency
//
// A scan session is single-threaded and cooperative: kernel calls are
// awaited in place, cancellation is checked at chunk boundaries, and a
// zero-duration yield follows every top-k recomputation. Engines are
// immutable and safe for concurrent queries; each session owns its distance
// array exclusively.
package pqscan
