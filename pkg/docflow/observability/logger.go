// Package observability provides logging helpers, OpenTelemetry metrics and
// tracing, and the progress reporter used by docflow nodes.
//
// Every helper accepts a nil logger or recorder and does nothing in that case,
// so callers never need to guard observability calls.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger adds workflow context to a logger.
// Returns a new logger with session_id, node_id, and attempt fields.
func EnrichLogger(logger *slog.Logger, sessionID, nodeID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
	)
}

// LogRunStart logs the start of a workflow run.
func LogRunStart(logger *slog.Logger, sessionID, outputType string) {
	if logger == nil {
		return
	}
	logger.Info("workflow run starting",
		slog.String("session_id", sessionID),
		slog.String("output_type", outputType),
	)
}

// LogRunComplete logs the end of a workflow run. A run that recorded errors
// still completes; the error count tells the two apart.
func LogRunComplete(logger *slog.Logger, sessionID string, durationMs float64, nodeCount, errorCount int) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	if errorCount > 0 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "workflow run completed",
		slog.String("session_id", sessionID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
		slog.Int("errors", errorCount),
	)
}

// LogRunError logs an engine-level run failure.
func LogRunError(logger *slog.Logger, sessionID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("workflow run failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting", slog.String("node_id", nodeID))
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs a node failure recorded into state.
func LogNodeError(logger *slog.Logger, nodeID string, msg string) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", msg),
	)
}

// LogNodeSkipped logs a shared node bypassed because source processing was skipped.
func LogNodeSkipped(logger *slog.Logger, nodeID, reason string) {
	if logger == nil {
		return
	}
	logger.Info("node skipped",
		slog.String("node_id", nodeID),
		slog.String("reason", reason),
	)
}

// LogRetry logs a retry of a node.
func LogRetry(logger *slog.Logger, nodeID string, attempt, maxRetries int, lastError string) {
	if logger == nil {
		return
	}
	logger.Warn("retrying node",
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
		slog.Int("max_retries", maxRetries),
		slog.String("last_error", lastError),
	)
}

// LogCheckpoint logs a checkpoint write.
func LogCheckpoint(logger *slog.Logger, sessionID, ns string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("session_id", sessionID),
		slog.String("namespace", ns),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs a checkpoint failure. Checkpoint failures are never fatal.
func LogCheckpointError(logger *slog.Logger, sessionID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("session_id", sessionID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
