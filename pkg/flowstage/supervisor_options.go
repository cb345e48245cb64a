package flowstage

import (
	"log/slog"

	"github.com/randalmurphal/flowstage/pkg/flowstage/journal"
	"github.com/randalmurphal/flowstage/pkg/flowstage/observability"
)

// supervisorConfig holds supervisor configuration.
type supervisorConfig struct {
	runID   string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	journal journal.Store
}

func defaultSupervisorConfig() supervisorConfig {
	return supervisorConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*supervisorConfig)

// WithRunID fixes the run identifier. If not set, a UUID is generated
// for every Run.
func WithRunID(id string) SupervisorOption {
	return func(c *supervisorConfig) {
		c.runID = id
	}
}

// WithRunLogger sets the logger for run and node lifecycle events.
// Each node's entries carry run_id and node_id.
func WithRunLogger(logger *slog.Logger) SupervisorOption {
	return func(c *supervisorConfig) {
		c.logger = logger
	}
}

// WithRunMetrics sets the metrics recorder for node and pipeline runs.
func WithRunMetrics(recorder observability.MetricsRecorder) SupervisorOption {
	return func(c *supervisorConfig) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithTracing enables OpenTelemetry spans for the run and each node.
// Uses the global tracer provider.
func WithTracing() SupervisorOption {
	return func(c *supervisorConfig) {
		c.spans = observability.NewSpanManager()
	}
}

// WithSpanManager sets the span manager used for run and node spans.
// Nil keeps the current one.
func WithSpanManager(spans observability.SpanManager) SupervisorOption {
	return func(c *supervisorConfig) {
		if spans != nil {
			c.spans = spans
		}
	}
}

// WithJournal records one journal.Record per node per run.
// Journal write failures are logged and do not fail the run.
func WithJournal(store journal.Store) SupervisorOption {
	return func(c *supervisorConfig) {
		c.journal = store
	}
}

// Endpoint is the part of a channel the supervisor manages: it corks a
// node's outputs when the node finishes and poisons its endpoints when
// the node aborts. *channel.Channel and *channel.Producer satisfy
// Endpoint. A channel fed by several nodes should be wired with one
// Producer per node, so the last one to finish corks it.
type Endpoint interface {
	Cork()
	Poison()
}

// worker is a registered node and the endpoints it is wired to.
type worker struct {
	node    Node
	inputs  []Endpoint
	outputs []Endpoint
}

// AddOption wires endpoints to a node registered with Supervisor.Add.
type AddOption func(*worker)

// Inputs declares the channels a node receives from. They are poisoned
// if the node aborts, so upstream senders fail instead of blocking.
func Inputs(eps ...Endpoint) AddOption {
	return func(w *worker) {
		w.inputs = append(w.inputs, eps...)
	}
}

// Outputs declares the channels a node sends to. They are corked when
// the node returns normally and poisoned if it aborts.
func Outputs(eps ...Endpoint) AddOption {
	return func(w *worker) {
		w.outputs = append(w.outputs, eps...)
	}
}
