package observability

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry owns SDK providers installed as the OpenTelemetry globals.
// A zero Telemetry is valid and does nothing.
type Telemetry struct {
	reader *sdkmetric.ManualReader
	meters *sdkmetric.MeterProvider
	traces *sdktrace.TracerProvider
}

// Setup installs an in-process meter provider when metrics is true and a
// tracer provider that logs finished spans when tracing is true.
//
// Example:
//
//	tel := observability.Setup(logger, true, true)
//	defer tel.Shutdown(context.Background())
func Setup(logger *slog.Logger, metrics, tracing bool) *Telemetry {
	t := &Telemetry{}
	if metrics {
		t.reader = sdkmetric.NewManualReader()
		t.meters = sdkmetric.NewMeterProvider(sdkmetric.WithReader(t.reader))
		otel.SetMeterProvider(t.meters)
	}
	if tracing {
		t.traces = sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(NewLogSpanProcessor(logger)),
		)
		otel.SetTracerProvider(t.traces)
	}
	return t
}

// Metrics returns a recorder whose instruments live on this Telemetry's
// meter provider. Returns NoopMetrics when metrics are not enabled.
func (t *Telemetry) Metrics() MetricsRecorder {
	if t == nil || t.meters == nil {
		return NoopMetrics{}
	}
	m, err := newOtelMetrics(t.meters.Meter("flowstage"))
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// MetricPoint is one counter value broken down by node.
type MetricPoint struct {
	Name  string
	Node  string
	Value int64
}

// Counters collects every int64 counter, summed per (name, node_id).
// Returns nil when metrics are not enabled.
func (t *Telemetry) Counters(ctx context.Context) ([]MetricPoint, error) {
	if t == nil || t.reader == nil {
		return nil, nil
	}

	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	type key struct{ name, node string }
	totals := make(map[key]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				node, _ := dp.Attributes.Value(attribute.Key("node_id"))
				totals[key{m.Name, node.AsString()}] += dp.Value
			}
		}
	}

	points := make([]MetricPoint, 0, len(totals))
	for k, v := range totals {
		points = append(points, MetricPoint{Name: k.name, Node: k.node, Value: v})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Name != points[j].Name {
			return points[i].Name < points[j].Name
		}
		return points[i].Node < points[j].Node
	})
	return points, nil
}

// Shutdown flushes and stops the installed providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.traces != nil {
		errs = append(errs, t.traces.Shutdown(ctx))
	}
	if t.meters != nil {
		errs = append(errs, t.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// logSpanProcessor writes each finished span to a logger at DEBUG.
type logSpanProcessor struct {
	logger *slog.Logger
}

// NewLogSpanProcessor returns a span processor that logs finished spans.
// A nil logger discards them.
func NewLogSpanProcessor(logger *slog.Logger) sdktrace.SpanProcessor {
	return &logSpanProcessor{logger: logger}
}

func (p *logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if p.logger == nil {
		return
	}
	attrs := []any{
		slog.String("span", s.Name()),
		slog.String("trace_id", s.SpanContext().TraceID().String()),
		slog.Float64("duration_ms", float64(s.EndTime().Sub(s.StartTime()).Milliseconds())),
		slog.String("status", s.Status().Code.String()),
	}
	if desc := s.Status().Description; desc != "" {
		attrs = append(attrs, slog.String("error", desc))
	}
	p.logger.Debug("span finished", attrs...)
}

func (p *logSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *logSpanProcessor) ForceFlush(context.Context) error { return nil }
