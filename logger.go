package spinshell

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with operator-specific context.
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
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithSpins adds a chain-length field to the logger.
func (l *Logger) WithSpins(spins int) *Logger {
	return &Logger{
		Logger: l.Logger.With("spins", spins),
	}
}

// WithRank adds a rank field to the logger (useful when fanning work
// out across process ranks).
func (l *Logger) WithRank(rank int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rank", rank),
	}
}

// LogBuild logs an operator build.
func (l *Logger) LogBuild(ctx context.Context, stats Stats, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "operator built",
		"rows", stats.Rows,
		"cols", stats.Cols,
		"masks", stats.Masks,
		"masks_local", stats.MasksLocal,
		"terms", stats.Terms,
		"ranks", stats.Ranks,
		"device", stats.Device,
		"reserved_bytes", stats.ReservedBytes,
		"duration", duration,
	)
}

// LogMultiply logs a multiply.
func (l *Logger) LogMultiply(ctx context.Context, rows int64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "multiply failed",
			"rows", rows,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "multiply completed",
			"rows", rows,
			"duration", duration,
		)
	}
}

// LogSlowMultiply warns about a multiply that exceeded the slow
// threshold. Callers rate-limit it; every slow call in a hot loop would
// flood the handler.
func (l *Logger) LogSlowMultiply(ctx context.Context, rows int64, duration, threshold time.Duration) {
	l.WarnContext(ctx, "slow multiply",
		"rows", rows,
		"duration", duration,
		"threshold", threshold,
	)
}

// LogNorm logs a norm computation.
func (l *Logger) LogNorm(ctx context.Context, t NormType, norm float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "norm failed",
			"type", t.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "norm completed",
			"type", t.String(),
			"norm", norm,
		)
	}
}

// LogSnapshot logs an encoding snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"op", op,
			"filename", filename,
		)
	}
}

// LogClose logs an operator close.
func (l *Logger) LogClose(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "operator closed")
	}
}
