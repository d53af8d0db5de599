package pqscan

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordChunk is called after each distance-kernel chunk.
	// items is the chunk size, duration the kernel call wall time.
	RecordChunk(items int, duration time.Duration)

	// RecordTopK is called after each top-k recomputation.
	// results is the number of candidates returned.
	RecordTopK(results int, duration time.Duration)

	// RecordScan is called once per scan session.
	// items is the number of items covered, err is nil on a completed scan.
	RecordScan(items int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordChunk(int, time.Duration)       {}
func (NoopMetricsCollector) RecordTopK(int, time.Duration)        {}
func (NoopMetricsCollector) RecordScan(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ChunkCount      atomic.Int64
	ChunkItems      atomic.Int64
	ChunkTotalNanos atomic.Int64
	TopKCount       atomic.Int64
	TopKTotalNanos  atomic.Int64
	ScanCount       atomic.Int64
	ScanErrors      atomic.Int64
	ScanTotalNanos  atomic.Int64
}

// RecordChunk implements MetricsCollector.
func (b *BasicMetricsCollector) RecordChunk(items int, duration time.Duration) {
	b.ChunkCount.Add(1)
	b.ChunkItems.Add(int64(items))
	b.ChunkTotalNanos.Add(duration.Nanoseconds())
}

// RecordTopK implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTopK(_ int, duration time.Duration) {
	b.TopKCount.Add(1)
	b.TopKTotalNanos.Add(duration.Nanoseconds())
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(_ int, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ChunkCount:    b.ChunkCount.Load(),
		ChunkItems:    b.ChunkItems.Load(),
		ChunkAvgNanos: avg(b.ChunkTotalNanos.Load(), b.ChunkCount.Load()),
		TopKCount:     b.TopKCount.Load(),
		TopKAvgNanos:  avg(b.TopKTotalNanos.Load(), b.TopKCount.Load()),
		ScanCount:     b.ScanCount.Load(),
		ScanErrors:    b.ScanErrors.Load(),
		ScanAvgNanos:  avg(b.ScanTotalNanos.Load(), b.ScanCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ChunkCount    int64
	ChunkItems    int64
	ChunkAvgNanos int64
	TopKCount     int64
	TopKAvgNanos  int64
	ScanCount     int64
	ScanErrors    int64
	ScanAvgNanos  int64
}
