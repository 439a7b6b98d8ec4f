package bovw

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with pipeline-specific helpers. It provides
// structured logging with consistent field names.
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

// WithImageID adds an image_id field to the logger.
func (l *Logger) WithImageID(id uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("image_id", id),
	}
}

// LogStartup logs a successful service startup.
func (l *Logger) LogStartup(vocabCount int, indexPath, outputDir string) {
	l.Info("service ready",
		"vocabulary_words", vocabCount,
		"index", indexPath,
		"output_dir", outputDir,
	)
}

// LogProcess logs one processed image request.
func (l *Logger) LogProcess(ctx context.Context, imageID uint32, outcome Outcome, records int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "process failed",
			"image_id", imageID,
			"outcome", outcome.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "process completed",
			"image_id", imageID,
			"outcome", outcome.String(),
			"records", records,
			"duration", duration,
		)
	}
}

// LogBatch logs a batch processing run.
func (l *Logger) LogBatch(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "batch completed",
			"count", count,
		)
	}
}

// LogShip logs a hit-file upload.
func (l *Logger) LogShip(ctx context.Context, imageID uint32, key string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ship failed",
			"image_id", imageID,
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "ship completed",
			"image_id", imageID,
			"key", key,
		)
	}
}
