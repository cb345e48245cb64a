package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records flowstage metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordItem records one transform invocation for a received item and
	// whether it produced output.
	RecordItem(ctx context.Context, nodeID string, duration time.Duration, emitted bool)

	// RecordDropped records an output discarded after a failed send.
	RecordDropped(ctx context.Context, nodeID string)

	// RecordFault records a fatal channel fault. op is "receive" or "send".
	RecordFault(ctx context.Context, nodeID, op string)

	// RecordNodeRun records a node's Run returning or aborting.
	RecordNodeRun(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordPipelineRun records a supervised run completion.
	RecordPipelineRun(ctx context.Context, success bool, duration time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	itemsReceived    metric.Int64Counter
	itemsEmitted     metric.Int64Counter
	itemsDropped     metric.Int64Counter
	transformLatency metric.Float64Histogram
	faults           metric.Int64Counter
	nodeRuns         metric.Int64Counter
	nodeLatency      metric.Float64Histogram
	pipelineRuns     metric.Int64Counter
	pipelineLatency  metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter("flowstage"))
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates instruments on meter.
func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	itemsReceived, err := meter.Int64Counter("flowstage.node.items_received",
		metric.WithDescription("Number of items received from upstream"),
	)
	if err != nil {
		return nil, err
	}

	itemsEmitted, err := meter.Int64Counter("flowstage.node.items_emitted",
		metric.WithDescription("Number of items sent downstream"),
	)
	if err != nil {
		return nil, err
	}

	itemsDropped, err := meter.Int64Counter("flowstage.node.items_dropped",
		metric.WithDescription("Number of outputs discarded after a failed send"),
	)
	if err != nil {
		return nil, err
	}

	transformLatency, err := meter.Float64Histogram("flowstage.node.transform_latency_ms",
		metric.WithDescription("Transform latency per item in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	faults, err := meter.Int64Counter("flowstage.node.faults",
		metric.WithDescription("Number of fatal channel faults"),
	)
	if err != nil {
		return nil, err
	}

	nodeRuns, err := meter.Int64Counter("flowstage.node.runs",
		metric.WithDescription("Number of node runs"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("flowstage.node.run_latency_ms",
		metric.WithDescription("Node run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	pipelineRuns, err := meter.Int64Counter("flowstage.pipeline.runs",
		metric.WithDescription("Number of supervised pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	pipelineLatency, err := meter.Float64Histogram("flowstage.pipeline.latency_ms",
		metric.WithDescription("Pipeline run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		itemsReceived:    itemsReceived,
		itemsEmitted:     itemsEmitted,
		itemsDropped:     itemsDropped,
		transformLatency: transformLatency,
		faults:           faults,
		nodeRuns:         nodeRuns,
		nodeLatency:      nodeLatency,
		pipelineRuns:     pipelineRuns,
		pipelineLatency:  pipelineLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder is created once, on the global OTel meter provider current
// at the first call. Configure the provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
//
// Use Telemetry.Metrics for a recorder bound to a specific provider.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordItem records one transform call.
func (m *otelMetrics) RecordItem(ctx context.Context, nodeID string, duration time.Duration, emitted bool) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))

	m.itemsReceived.Add(ctx, 1, attrs)
	m.transformLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if emitted {
		m.itemsEmitted.Add(ctx, 1, attrs)
	}
}

// RecordDropped records a dropped output.
func (m *otelMetrics) RecordDropped(ctx context.Context, nodeID string) {
	m.itemsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

// RecordFault records a channel fault.
func (m *otelMetrics) RecordFault(ctx context.Context, nodeID, op string) {
	m.faults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.String("operation", op),
	))
}

// RecordNodeRun records a node run.
func (m *otelMetrics) RecordNodeRun(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Bool("success", err == nil),
	)
	m.nodeRuns.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordPipelineRun records a pipeline run.
func (m *otelMetrics) RecordPipelineRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.pipelineRuns.Add(ctx, 1, attrs)
	m.pipelineLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}
