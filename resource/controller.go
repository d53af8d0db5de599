// Package resource bounds what concurrent scan sessions may consume.
//
// Each session owns a distance array of 4 bytes per logical item, and each
// chunk is a burst of CPU work; hosts running several interactive queries at
// once use a Controller to cap concurrent sessions, managed memory, and
// chunk throughput.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentScans is the maximum number of simultaneous scan
	// sessions. If 0, defaults to 1.
	MaxConcurrentScans int64

	// MemoryLimitBytes is the hard limit for managed memory (distance
	// arrays). If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// ChunkLimitPerSec is the maximum number of kernel chunks started per
	// second across all sessions. If 0, unlimited.
	ChunkLimitPerSec float64
}

// Controller manages global resources (scan slots, memory, throughput).
type Controller struct {
	cfg Config

	scanSem *semaphore.Weighted

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	chunkLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentScans <= 0 {
		cfg.MaxConcurrentScans = 1
	}

	c := &Controller{
		cfg:     cfg,
		scanSem: semaphore.NewWeighted(cfg.MaxConcurrentScans),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.ChunkLimitPerSec > 0 {
		c.chunkLimiter = rate.NewLimiter(rate.Limit(cfg.ChunkLimitPerSec), 1)
	}

	return c
}

// AcquireScan reserves a scan slot, blocking until one is available or ctx
// is canceled. A nil controller admits everything.
func (c *Controller) AcquireScan(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.scanSem.Acquire(ctx, 1)
}

// ReleaseScan releases a scan slot.
func (c *Controller) ReleaseScan() {
	if c == nil {
		return
	}
	c.scanSem.Release(1)
}

// AcquireMemory attempts to reserve memory.
// If a hard limit is configured and usage would exceed it,
// this blocks until memory is available or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current managed memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// ThrottleChunk blocks until the next chunk may start under the configured
// throughput limit, or ctx is canceled.
func (c *Controller) ThrottleChunk(ctx context.Context) error {
	if c == nil || c.chunkLimiter == nil {
		return nil
	}
	return c.chunkLimiter.Wait(ctx)
}
