package flowstage

import (
	"errors"
	"iter"
	"sync/atomic"

	"github.com/randalmurphal/flowstage/pkg/flowstage/channel"
)

// SourceNode feeds a pipeline from a sequence. It sends every value to
// its output and returns; the supervisor corks the output afterwards.
type SourceNode[T any] struct {
	name    string
	tx      channel.Sender[T]
	items   iter.Seq[T]
	emitted atomic.Int64
}

// NewSource creates a source node. Panics if tx or items is nil.
func NewSource[T any](name string, tx channel.Sender[T], items iter.Seq[T]) *SourceNode[T] {
	if tx == nil {
		panic("flowstage: sender cannot be nil")
	}
	if items == nil {
		panic("flowstage: source sequence cannot be nil")
	}
	return &SourceNode[T]{name: name, tx: tx, items: items}
}

// Name returns the node name.
func (s *SourceNode[T]) Name() string { return s.name }

// Stats reports the number of items sent.
func (s *SourceNode[T]) Stats() Stats {
	return Stats{Emitted: s.emitted.Load()}
}

// Run sends each value in order. A failed send panics with a *FaultError.
func (s *SourceNode[T]) Run() {
	for v := range s.items {
		if err := s.tx.Send(v); err != nil {
			panic(&FaultError{Node: s.name, Op: "send", Err: err})
		}
		s.emitted.Add(1)
	}
}

// SinkNode drains a channel into a callback until upstream is exhausted.
type SinkNode[T any] struct {
	name     string
	rx       channel.Receiver[T]
	fn       func(T)
	received atomic.Int64
}

// NewSink creates a sink node. Panics if rx or fn is nil.
func NewSink[T any](name string, rx channel.Receiver[T], fn func(T)) *SinkNode[T] {
	if rx == nil {
		panic("flowstage: receiver cannot be nil")
	}
	if fn == nil {
		panic("flowstage: sink function cannot be nil")
	}
	return &SinkNode[T]{name: name, rx: rx, fn: fn}
}

// Name returns the node name.
func (s *SinkNode[T]) Name() string { return s.name }

// Stats reports the number of items consumed.
func (s *SinkNode[T]) Stats() Stats {
	return Stats{Received: s.received.Load()}
}

// Run calls fn for every item until the input is corked and drained.
// A poisoned input panics with a *FaultError.
func (s *SinkNode[T]) Run() {
	for {
		v, err := s.rx.Recv()
		if errors.Is(err, channel.ErrCorked) {
			return
		}
		if err != nil {
			panic(&FaultError{Node: s.name, Op: "receive", Err: err})
		}
		s.received.Add(1)
		s.fn(v)
	}
}
