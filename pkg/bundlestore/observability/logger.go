// Package observability provides structured logging, metrics and tracing
// for bundle store operations.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// NewLogger builds a slog.Logger writing to w.
// Level is one of debug, info, warn, error (default info); format is
// "json" or "text" (default text).
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil && level != "" {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unsupported log format: %s", format)
}

// EnrichLogger adds bundle context to a logger.
// Returns a new logger with bundle_id and operation fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "prices", "save")
//	enriched.Info("archiving") // includes bundle_id, operation
func EnrichLogger(logger *slog.Logger, bundleID, op string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("bundle_id", bundleID),
		slog.String("operation", op),
	)
}

// LogSave logs a committed version.
func LogSave(logger *slog.Logger, bundleID, path string, archived int, sizeBytes int64, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("bundle version saved",
		slog.String("bundle_id", bundleID),
		slog.String("path", path),
		slog.Int("archived", archived),
		slog.Int64("size_bytes", sizeBytes),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogLoad logs a successful load.
func LogLoad(logger *slog.Logger, bundleID, path string, rows int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("bundle loaded",
		slog.String("bundle_id", bundleID),
		slog.String("path", path),
		slog.Int("rows", rows),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRemove logs a removal.
func LogRemove(logger *slog.Logger, bundleID, path string, archiveOnly bool) {
	if logger == nil {
		return
	}
	logger.Info("bundle removed",
		slog.String("bundle_id", bundleID),
		slog.String("path", path),
		slog.Bool("archive_only", archiveOnly),
	)
}

// LogRemoveNoOp logs a removal whose target did not exist.
func LogRemoveNoOp(logger *slog.Logger, bundleID, path string, archiveOnly bool) {
	if logger == nil {
		return
	}
	logger.Warn("removal was a no-op",
		slog.String("bundle_id", bundleID),
		slog.String("path", path),
		slog.Bool("archive_only", archiveOnly),
	)
}

// LogOpError logs a failed operation.
func LogOpError(logger *slog.Logger, bundleID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Error("bundle operation failed",
		slog.String("bundle_id", bundleID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogCatalogError logs a catalog failure (non-fatal).
func LogCatalogError(logger *slog.Logger, bundleID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("catalog update failed",
		slog.String("bundle_id", bundleID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
