package pqscan

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with pqscan-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithK adds a k (result count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithShard adds a shard index field to the logger.
func (l *Logger) WithShard(shard int) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", shard),
	}
}

// WithChunkSize adds a chunk size field to the logger.
func (l *Logger) WithChunkSize(chunkSize int) *Logger {
	return &Logger{
		Logger: l.Logger.With("chunk_size", chunkSize),
	}
}

// LogChunk logs completion of one distance-kernel chunk.
func (l *Logger) LogChunk(ctx context.Context, shard, offset, count int, elapsed time.Duration) {
	l.DebugContext(ctx, "chunk completed",
		"shard", shard,
		"offset", offset,
		"count", count,
		"elapsed", elapsed,
	)
}

// LogTopK logs a top-k recomputation.
func (l *Logger) LogTopK(ctx context.Context, results, covered int, elapsed time.Duration) {
	l.DebugContext(ctx, "topk recomputed",
		"results", results,
		"covered", covered,
		"elapsed", elapsed,
	)
}

// LogScan logs the outcome of a scan.
func (l *Logger) LogScan(ctx context.Context, k, covered int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"k", k,
			"covered", covered,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "scan completed",
			"k", k,
			"covered", covered,
			"elapsed", elapsed,
		)
	}
}

// LogCancel logs a scan stopped at a chunk boundary by cancellation.
func (l *Logger) LogCancel(ctx context.Context, covered int) {
	l.InfoContext(ctx, "scan cancelled",
		"covered", covered,
	)
}
