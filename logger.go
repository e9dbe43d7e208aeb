package exemplar

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with clustering-specific helpers.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithRun tags records with the run id, algorithm and worker rank.
func (l *Logger) WithRun(runID, algorithm string, rank int) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", runID, "algorithm", algorithm, "rank", rank),
	}
}

// LogCenterAdmitted logs a new center during seeding.
func (l *Logger) LogCenterAdmitted(ctx context.Context, label int, id ItemID, maxDistance float64) {
	l.DebugContext(ctx, "center admitted",
		"label", label,
		"center_rank", id.Rank,
		"center_index", id.Index,
		"max_distance", maxDistance,
	)
}

// LogSeedingDone logs the end of K-Centers seeding.
func (l *Logger) LogSeedingDone(ctx context.Context, centers int, maxDistance float64, reason string, elapsed time.Duration) {
	l.InfoContext(ctx, "seeding completed",
		"centers", centers,
		"max_distance", maxDistance,
		"stop_reason", reason,
		"elapsed", elapsed,
	)
}

// LogMedoidRound logs one K-Medoids refinement round.
func (l *Logger) LogMedoidRound(ctx context.Context, round, proposed, accepted int, maxDistance float64) {
	l.InfoContext(ctx, "medoid round completed",
		"round", round,
		"proposed", proposed,
		"accepted", accepted,
		"max_distance", maxDistance,
	)
}

// LogPredict logs a prediction against fixed centers.
func (l *Logger) LogPredict(ctx context.Context, items, centers int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "predict failed",
			"items", items,
			"centers", centers,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "predict completed",
			"items", items,
			"centers", centers,
		)
	}
}

// LogRun logs the outcome of a top-level clustering call.
func (l *Logger) LogRun(ctx context.Context, items, centers int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "clustering failed",
			"items", items,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "clustering completed",
			"items", items,
			"centers", centers,
			"elapsed", elapsed,
		)
	}
}
