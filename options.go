package pqscan

import (
	"log/slog"
	"time"

	"github.com/hupe1980/pqscan/kernel"
	"github.com/hupe1980/pqscan/resource"
)

const (
	// DefaultChunkSize is the number of items per distance-kernel call.
	DefaultChunkSize = 100000

	// DefaultMaxTick is the wall-clock budget between two top-k
	// recomputations during a scan.
	DefaultMaxTick = 30 * time.Millisecond
)

type options struct {
	chunkSize int
	maxTick   time.Duration
	kernel    kernel.Kernel
	logger    *Logger
	metrics   MetricsCollector
	resources *resource.Controller
}

// Option configures Engine construction.
type Option func(*options)

// WithChunkSize sets the number of items per distance-kernel call.
// Every shard's item count must be a multiple of the chunk size; New fails
// otherwise. Larger chunks amortize kernel call overhead, smaller chunks
// tighten cancellation latency.
func WithChunkSize(chunkSize int) Option {
	return func(o *options) {
		if chunkSize > 0 {
			o.chunkSize = chunkSize
		}
	}
}

// WithMaxTick sets the wall-clock budget between top-k recomputations.
// The first chunk always triggers a recomputation regardless of the budget,
// so callers see an early result; the final recomputation at scan end is
// likewise unconditional.
func WithMaxTick(maxTick time.Duration) Option {
	return func(o *options) {
		if maxTick > 0 {
			o.maxTick = maxTick
		}
	}
}

// WithKernel replaces the distance kernel backend.
// The default is the reference CPU ADC kernel.
func WithKernel(k kernel.Kernel) Option {
	return func(o *options) {
		if k != nil {
			o.kernel = k
		}
	}
}

// WithLogger configures structured logging for scans.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring scans.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metrics = mc
		}
	}
}

// WithResources attaches a resource controller bounding concurrent
// sessions, distance-array memory, and chunk throughput.
func WithResources(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		chunkSize: DefaultChunkSize,
		maxTick:   DefaultMaxTick,
		kernel:    kernel.NewADC(),
		logger:    NoopLogger(),
		metrics:   NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
