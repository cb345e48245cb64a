package flowstage

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/flowstage/pkg/flowstage/observability"
)

// SendPolicy decides what a node does when the downstream send fails.
type SendPolicy int

const (
	// SendFatal aborts the worker, the same as a poisoned receive.
	SendFatal SendPolicy = iota
	// SendDiscard logs a warning, counts the item as dropped and continues.
	SendDiscard
)

// String returns the policy name.
func (p SendPolicy) String() string {
	switch p {
	case SendFatal:
		return "fatal"
	case SendDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// ParseSendPolicy converts "fatal" or "discard" to a SendPolicy.
// Unknown names map to SendFatal and false.
func ParseSendPolicy(name string) (SendPolicy, bool) {
	switch name {
	case "fatal", "":
		return SendFatal, true
	case "discard":
		return SendDiscard, true
	default:
		return SendFatal, false
	}
}

// nodeConfig holds optional node behavior.
type nodeConfig struct {
	ctx        context.Context
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	sendPolicy SendPolicy
}

func defaultNodeConfig() nodeConfig {
	return nodeConfig{
		ctx:        context.Background(),
		metrics:    observability.NoopMetrics{},
		sendPolicy: SendFatal,
	}
}

// NodeOption configures a compute node.
type NodeOption func(*nodeConfig)

// WithLogger sets the logger for node lifecycle events.
// A nil logger disables logging (the default).
func WithLogger(logger *slog.Logger) NodeOption {
	return func(c *nodeConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Nil keeps the no-op recorder.
//
// Example:
//
//	node := flowstage.NewComputeNode("double", in, out, double,
//	    flowstage.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(recorder observability.MetricsRecorder) NodeOption {
	return func(c *nodeConfig) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithSendPolicy sets the send failure policy. Default: SendFatal.
func WithSendPolicy(p SendPolicy) NodeOption {
	return func(c *nodeConfig) {
		c.sendPolicy = p
	}
}

// WithContext sets the context used to parent telemetry.
// Only its values are used; the node never observes its cancellation.
func WithContext(ctx context.Context) NodeOption {
	return func(c *nodeConfig) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}
