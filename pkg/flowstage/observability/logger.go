package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run and node fields to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "double")
//	enriched.Info("doing work") // includes run_id, node_id
func EnrichLogger(logger *slog.Logger, runID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
	)
}

// LogRunStart logs the start of a supervised pipeline run.
func LogRunStart(logger *slog.Logger, runID string, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run starting",
		slog.String("run_id", runID),
		slog.Int("nodes", nodeCount),
	)
}

// LogRunComplete logs successful pipeline completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_completed", nodeCount),
	)
}

// LogRunError logs a pipeline run in which at least one node aborted.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, failed int) {
	if logger == nil {
		return
	}
	logger.Error("pipeline run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_failed", failed),
	)
}

// LogNodeStart logs a node entering its receive loop.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeDrain logs the first observation of a corked upstream.
func LogNodeDrain(logger *slog.Logger, nodeID string, received int64) {
	if logger == nil {
		return
	}
	logger.Debug("node draining",
		slog.String("node_id", nodeID),
		slog.Int64("items_received", received),
	)
}

// LogNodeComplete logs a node returning normally.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64, received, emitted int64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
		slog.Int64("items_received", received),
		slog.Int64("items_emitted", emitted),
	)
}

// LogNodeFault logs a fatal channel fault just before the worker aborts.
func LogNodeFault(logger *slog.Logger, nodeID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node fault",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogNodeAbort logs a worker the supervisor observed terminating abnormally.
func LogNodeAbort(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node aborted",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogSendDropped logs an output discarded because the downstream send failed.
func LogSendDropped(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("send failed, item dropped",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}

// LogJournalError logs a failed journal write (non-fatal).
func LogJournalError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}
