package flowstage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/flowstage/pkg/flowstage/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMetrics records calls made by a node.
type fakeMetrics struct {
	mu       sync.Mutex
	items    int
	emitted  int
	dropped  int
	faultOps []string
}

func (f *fakeMetrics) RecordItem(_ context.Context, _ string, _ time.Duration, emitted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items++
	if emitted {
		f.emitted++
	}
}

func (f *fakeMetrics) RecordDropped(_ context.Context, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped++
}

func (f *fakeMetrics) RecordFault(_ context.Context, _, op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faultOps = append(f.faultOps, op)
}

func (f *fakeMetrics) RecordNodeRun(context.Context, string, time.Duration, error) {}

func (f *fakeMetrics) RecordPipelineRun(context.Context, bool, time.Duration) {}

func TestComputeNode_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		input []int
		fn    func() TransformFunc[int, int]
		want  []int
		calls int
	}{
		{
			name:  "double and forward",
			input: []int{1, 2, 3},
			fn:    func() TransformFunc[int, int] { return double },
			want:  []int{2, 4, 6},
			calls: 4,
		},
		{
			name:  "empty upstream",
			input: nil,
			fn:    func() TransformFunc[int, int] { return double },
			want:  nil,
			calls: 1,
		},
		{
			name:  "filter drops odd item",
			input: []int{5},
			fn:    func() TransformFunc[int, int] { return evens },
			want:  nil,
			calls: 2,
		},
		{
			name:  "running sum emitted on end",
			input: []int{1, 2},
			fn:    sumOnEnd,
			want:  []int{3},
			calls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := feed(tt.input...)
			out := channel.New[int](0)

			var calls []Input[int]
			node := NewComputeNode("stage", in, out, recordCalls(tt.fn(), &calls))

			require.NotPanics(t, node.Run)
			out.Cork()

			got, err := drain(out)
			assert.ErrorIs(t, err, channel.ErrCorked)
			assert.Equal(t, tt.want, got)
			assert.Len(t, calls, tt.calls)
			assert.Equal(t, StateDone, node.State())
		})
	}
}

func TestComputeNode_EndCalledOnceAndLast(t *testing.T) {
	in := feed(1, 2, 3)
	out := newRecordingSender[int]()

	var calls []Input[int]
	node := NewComputeNode("stage", in, out, recordCalls[int, int](double, &calls))
	node.Run()

	require.Len(t, calls, 4)
	ends := 0
	for i, c := range calls {
		if c.IsEnd() {
			ends++
			assert.Equal(t, len(calls)-1, i, "End must be the final call")
		}
	}
	assert.Equal(t, 1, ends)
}

func TestComputeNode_EmptyUpstreamCallsOnlyEnd(t *testing.T) {
	in := feed[int]()
	out := newRecordingSender[int]()

	var calls []Input[int]
	node := NewComputeNode("stage", in, out, recordCalls[int, int](double, &calls))
	node.Run()

	require.Len(t, calls, 1)
	assert.True(t, calls[0].IsEnd())
	assert.Empty(t, out.Sent())
}

func TestComputeNode_PoisonedUpstreamAborts(t *testing.T) {
	rx := newScriptedReceiver(channel.ErrPoisoned, 1)
	tx := newRecordingSender[int]()

	var calls []Input[int]
	node := NewComputeNode("doubler", rx, tx, recordCalls[int, int](double, &calls))

	r := runRecovering(node.Run)
	require.NotNil(t, r, "Run must not return normally")

	err, ok := r.(error)
	require.True(t, ok)
	var fe *FaultError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "doubler", fe.Node)
	assert.Equal(t, "receive", fe.Op)
	assert.ErrorIs(t, err, channel.ErrPoisoned)
	assert.Equal(t, "flowstage: node doubler: receive: channel poisoned", err.Error())

	// 1 was processed and sent; End was never delivered.
	assert.Equal(t, []int{2}, tx.Sent())
	require.Len(t, calls, 1)
	assert.False(t, calls[0].IsEnd())
	assert.Equal(t, StateFatal, node.State())
}

func TestComputeNode_UnknownReceiveErrorIsFatal(t *testing.T) {
	rx := newScriptedReceiver[int](errBoom)
	node := NewComputeNode("stage", rx, newRecordingSender[int](), double)

	r := runRecovering(node.Run)
	err, ok := r.(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, errBoom)
}

func TestComputeNode_SendFailure(t *testing.T) {
	t.Run("fatal by default", func(t *testing.T) {
		in := feed(1, 2, 3)
		tx := newFailingSender[int](1, channel.ErrPoisoned)
		metrics := &fakeMetrics{}

		node := NewComputeNode("stage", in, tx, double, WithMetrics(metrics))
		r := runRecovering(node.Run)

		err, ok := r.(error)
		require.True(t, ok)
		var fe *FaultError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "send", fe.Op)
		assert.Equal(t, []int{2}, tx.Sent())
		assert.Equal(t, []string{"send"}, metrics.faultOps)
		assert.Equal(t, StateFatal, node.State())
	})

	t.Run("discard continues", func(t *testing.T) {
		in := feed(1, 2, 3)
		tx := newFailingSender[int](1, channel.ErrCorked)
		metrics := &fakeMetrics{}
		logger, buf := bufferLogger()

		node := NewComputeNode("stage", in, tx, double,
			WithSendPolicy(SendDiscard),
			WithMetrics(metrics),
			WithLogger(logger))
		require.NotPanics(t, node.Run)

		assert.Equal(t, []int{2}, tx.Sent())
		stats := node.Stats()
		assert.Equal(t, int64(3), stats.Received)
		assert.Equal(t, int64(1), stats.Emitted)
		assert.Equal(t, int64(2), stats.Dropped)
		assert.Equal(t, 2, metrics.dropped)
		assert.Contains(t, buf.String(), "send failed, item dropped")
		assert.Equal(t, StateDone, node.State())
	})
}

func TestComputeNode_EndOutputSentBeforeReturn(t *testing.T) {
	in := feed(4, 5)
	out := channel.New[int](0)
	node := NewComputeNode("sum", in, out, sumOnEnd())

	node.Run()

	// Without cork the value must already be buffered.
	assert.Equal(t, 1, out.Len())
	v, err := out.Recv()
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestComputeNode_PreservesOrder(t *testing.T) {
	const n = 1000
	in := channel.New[int](8)
	out := channel.New[int](8)

	node := NewComputeNode("identity", in, out, func(in Input[int]) (int, bool) {
		return in.Value()
	})

	go func() {
		for i := 0; i < n; i++ {
			_ = in.Send(i)
		}
		in.Cork()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		node.Run()
		out.Cork()
	}()

	got, err := drain(out)
	<-done
	assert.ErrorIs(t, err, channel.ErrCorked)
	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestComputeNode_BackpressureBlocksUpstream(t *testing.T) {
	in := channel.New[int](0)
	out := channel.New[int](1)
	node := NewComputeNode("stage", in, out, double)

	for i := 1; i <= 3; i++ {
		require.NoError(t, in.Send(i))
	}

	go node.Run()

	// out holds one item; the node blocks sending the second.
	require.Eventually(t, func() bool {
		return out.Len() == 1 && in.Len() == 1 && node.Stats().Received == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, node.State())

	in.Cork()
	got := make([]int, 0, 3)
	for len(got) < 3 {
		v, err := out.Recv()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 4, 6}, got)
	require.Eventually(t, func() bool {
		return node.State() == StateDone
	}, time.Second, 5*time.Millisecond)
}

func TestComputeNode_RunTwicePanics(t *testing.T) {
	node := NewComputeNode("stage", feed(1), newRecordingSender[int](), double)
	node.Run()

	r := runRecovering(node.Run)
	err, ok := r.(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestComputeNode_FreshInstanceRunsAgain(t *testing.T) {
	out := newRecordingSender[int]()
	for _, batch := range [][]int{{1}, {2, 3}} {
		node := NewComputeNode("stage", feed(batch...), out, double)
		node.Run()
	}
	assert.Equal(t, []int{2, 4, 6}, out.Sent())
}

func TestNewComputeNode_NilArgumentsPanic(t *testing.T) {
	rx := feed[int]()
	tx := newRecordingSender[int]()

	assert.PanicsWithValue(t, "flowstage: receiver cannot be nil", func() {
		NewComputeNode[int, int]("x", nil, tx, double)
	})
	assert.PanicsWithValue(t, "flowstage: sender cannot be nil", func() {
		NewComputeNode[int, int]("x", rx, nil, double)
	})
	assert.PanicsWithValue(t, "flowstage: transform cannot be nil", func() {
		NewComputeNode[int, int]("x", rx, tx, nil)
	})
}

func TestComputeNode_ConstructionDoesNotRun(t *testing.T) {
	rx := newScriptedReceiver[int](channel.ErrCorked, 1)
	node := NewComputeNode("stage", rx, newRecordingSender[int](), double)

	assert.Equal(t, 0, rx.calls)
	assert.Equal(t, StateIdle, node.State())
	assert.Equal(t, "stage", node.Name())
	assert.Equal(t, "stage", node.String())
	assert.Equal(t, "stage", fmt.Sprint(node))
}

func TestComputeNode_StatsAndMetrics(t *testing.T) {
	metrics := &fakeMetrics{}
	out := newRecordingSender[int]()
	node := NewComputeNode("evens", feed(1, 2, 3, 4), out, evens, WithMetrics(metrics))
	node.Run()

	stats := node.Stats()
	assert.Equal(t, Stats{Received: 4, Emitted: 2, Filtered: 3}, stats, "End counts as a filtered call")
	assert.Equal(t, 4, metrics.items)
	assert.Equal(t, 2, metrics.emitted)
}

func TestComputeNode_Logging(t *testing.T) {
	t.Run("lifecycle", func(t *testing.T) {
		logger, buf := bufferLogger()
		node := NewComputeNode("logged", feed(1), newRecordingSender[int](), double, WithLogger(logger))
		node.Run()

		logs := buf.String()
		assert.Contains(t, logs, "node starting")
		assert.Contains(t, logs, "node draining")
		assert.Contains(t, logs, "node completed")
		assert.Contains(t, logs, `"node_id":"logged"`)
	})

	t.Run("fault", func(t *testing.T) {
		logger, buf := bufferLogger()
		rx := newScriptedReceiver[int](channel.ErrPoisoned)
		node := NewComputeNode("logged", rx, newRecordingSender[int](), double, WithLogger(logger))
		_ = runRecovering(node.Run)

		logs := buf.String()
		assert.Contains(t, logs, "node fault")
		assert.Contains(t, logs, `"operation":"receive"`)
		assert.Contains(t, logs, `"level":"ERROR"`)
	})
}

func TestComputeNode_TransformPanicPropagates(t *testing.T) {
	node := NewComputeNode("stage", feed(1), newRecordingSender[int](), func(Input[int]) (int, bool) {
		panic("transform exploded")
	})

	r := runRecovering(node.Run)
	assert.Equal(t, "transform exploded", r)
	assert.Equal(t, StateFatal, node.State())
}

func TestComputeNode_PanicOnEndLeavesFatal(t *testing.T) {
	node := NewComputeNode("stage", feed(1, 2), newRecordingSender[int](), func(in Input[int]) (int, bool) {
		if in.IsEnd() {
			panic("flush exploded")
		}
		return in.Value()
	})

	r := runRecovering(node.Run)
	assert.Equal(t, "flush exploded", r)
	assert.Equal(t, StateFatal, node.State())
	assert.Equal(t, int64(2), node.Stats().Emitted)
}

func TestFaultError_Unwrap(t *testing.T) {
	fe := &FaultError{Node: "n", Op: "send", Err: channel.ErrPoisoned}
	wrapped := fmt.Errorf("outer: %w", fe)

	assert.True(t, errors.Is(wrapped, channel.ErrPoisoned))
	var got *FaultError
	require.True(t, errors.As(wrapped, &got))
	assert.Equal(t, "n", got.Node)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateRunning, "running"},
		{StateDraining, "draining"},
		{StateDone, "done"},
		{StateFatal, "fatal"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestParseSendPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want SendPolicy
		ok   bool
	}{
		{"", SendFatal, true},
		{"fatal", SendFatal, true},
		{"discard", SendDiscard, true},
		{"retry", SendFatal, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSendPolicy(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
	assert.Equal(t, "fatal", SendFatal.String())
	assert.Equal(t, "discard", SendDiscard.String())
	assert.Equal(t, "unknown", SendPolicy(9).String())
}
