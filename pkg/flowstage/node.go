package flowstage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/flowstage/pkg/flowstage/channel"
	"github.com/randalmurphal/flowstage/pkg/flowstage/observability"
)

// Node is the capability an orchestrator schedules.
//
// Run blocks until the node's upstream is exhausted and then returns.
// A node that hits an unrecoverable channel fault does not return; it
// panics with a *FaultError, aborting the goroutine running it.
type Node interface {
	Name() string
	Run()
}

// ComputeNode applies a transform to every item received from one channel
// and forwards the outputs to another. See NewComputeNode.
//
// A ComputeNode runs at most once. It exclusively uses its receiver and
// sender while running and holds no item beyond the one being processed.
type ComputeNode[I, O any] struct {
	name string
	rx   channel.Receiver[I]
	tx   channel.Sender[O]
	fn   TransformFunc[I, O]
	cfg  nodeConfig

	state  atomic.Int32
	stats  counters
	logger *slog.Logger
}

// Compile-time interface check.
var _ Node = (*ComputeNode[int, int])(nil)

// NewComputeNode binds a name, an upstream receiver, a downstream sender
// and a transform. It does not start execution.
//
// Panics if rx, tx or fn is nil.
//
// Example:
//
//	in := channel.New[int](16)
//	out := channel.New[int](16)
//	node := flowstage.NewComputeNode("double", in, out,
//	    func(in flowstage.Input[int]) (int, bool) {
//	        n, ok := in.Value()
//	        return n * 2, ok
//	    })
//	go node.Run()
func NewComputeNode[I, O any](name string, rx channel.Receiver[I], tx channel.Sender[O], fn TransformFunc[I, O], opts ...NodeOption) *ComputeNode[I, O] {
	if rx == nil {
		panic("flowstage: receiver cannot be nil")
	}
	if tx == nil {
		panic("flowstage: sender cannot be nil")
	}
	if fn == nil {
		panic("flowstage: transform cannot be nil")
	}

	cfg := defaultNodeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	n := &ComputeNode[I, O]{
		name: name,
		rx:   rx,
		tx:   tx,
		fn:   fn,
		cfg:  cfg,
	}
	if cfg.logger != nil {
		n.logger = cfg.logger.With(slog.String("node_id", name))
	}
	return n
}

// Name returns the node's identity. Used for logging only.
func (n *ComputeNode[I, O]) Name() string {
	return n.name
}

// String implements fmt.Stringer.
func (n *ComputeNode[I, O]) String() string {
	return n.name
}

// State returns the node's current lifecycle state.
func (n *ComputeNode[I, O]) State() State {
	return State(n.state.Load())
}

// Stats returns a snapshot of the node's item counters.
func (n *ComputeNode[I, O]) Stats() Stats {
	return n.stats.snapshot()
}

// Run receives items until upstream is corked and drained, calling the
// transform with Present for each item and then exactly once with End.
// Outputs the transform produces are sent downstream in call order.
//
// A poisoned upstream, or a failed send under SendFatal, panics with a
// *FaultError. Calling Run twice panics with ErrAlreadyRun. If Run exits
// by any panic, including one raised by the transform, the node is left
// in StateFatal.
func (n *ComputeNode[I, O]) Run() {
	if !n.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		panic(fmt.Errorf("flowstage: node %s: %w", n.name, ErrAlreadyRun))
	}
	defer func() {
		if State(n.state.Load()) != StateDone {
			n.state.Store(int32(StateFatal))
		}
	}()

	done := observability.TimedOperation()
	observability.LogNodeStart(n.logger, n.name)

	for {
		item, err := n.rx.Recv()
		if err != nil {
			if !errors.Is(err, channel.ErrCorked) {
				n.fault("receive", err)
			}
			break
		}

		n.stats.received.Add(1)
		start := time.Now()
		out, ok := n.fn(Present(item))
		n.cfg.metrics.RecordItem(n.cfg.ctx, n.name, time.Since(start), ok)
		n.emit(out, ok)
	}

	n.state.Store(int32(StateDraining))
	observability.LogNodeDrain(n.logger, n.name, n.stats.received.Load())

	out, ok := n.fn(End[I]())
	n.emit(out, ok)

	n.state.Store(int32(StateDone))
	stats := n.stats.snapshot()
	observability.LogNodeComplete(n.logger, n.name, done(), stats.Received, stats.Emitted)
}

// emit forwards one transform result according to the send policy.
func (n *ComputeNode[I, O]) emit(out O, ok bool) {
	if !ok {
		n.stats.filtered.Add(1)
		return
	}

	if err := n.tx.Send(out); err != nil {
		if n.cfg.sendPolicy == SendDiscard {
			n.stats.dropped.Add(1)
			n.cfg.metrics.RecordDropped(n.cfg.ctx, n.name)
			observability.LogSendDropped(n.logger, n.name, err)
			return
		}
		n.fault("send", err)
	}
	n.stats.emitted.Add(1)
}

// fault marks the node fatal and aborts the worker.
func (n *ComputeNode[I, O]) fault(op string, err error) {
	n.state.Store(int32(StateFatal))
	n.cfg.metrics.RecordFault(n.cfg.ctx, n.name, op)
	observability.LogNodeFault(n.logger, n.name, op, err)
	panic(&FaultError{Node: n.name, Op: op, Err: err})
}
