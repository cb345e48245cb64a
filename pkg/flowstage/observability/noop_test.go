package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordItem(ctx, "node", time.Millisecond, true)
		m.RecordDropped(ctx, "node")
		m.RecordFault(ctx, "node", "send")
		m.RecordNodeRun(ctx, "node", time.Millisecond, errors.New("test"))
		m.RecordPipelineRun(ctx, false, 0)
	})
}

func TestNoopSpanManager(t *testing.T) {
	m := NoopSpanManager{}
	ctx := context.Background()

	runCtx, runSpan := m.StartPipelineSpan(ctx, "p", "run")
	assert.Equal(t, ctx, runCtx)
	assert.False(t, runSpan.IsRecording())

	nodeCtx, nodeSpan := m.StartNodeSpan(ctx, "node")
	assert.Equal(t, ctx, nodeCtx)
	assert.False(t, nodeSpan.IsRecording())

	assert.NotPanics(t, func() {
		m.AddSpanEvent(ctx, "event", attribute.String("k", "v"))
		m.EndSpanWithError(nodeSpan, errors.New("test"))
	})
}
