package flowstage

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"

	"github.com/randalmurphal/flowstage/pkg/flowstage/channel"
)

// Test doubles shared across tests

// scriptedReceiver yields items in order, then returns err forever.
type scriptedReceiver[T any] struct {
	mu    sync.Mutex
	items []T
	err   error
	calls int
}

func newScriptedReceiver[T any](err error, items ...T) *scriptedReceiver[T] {
	return &scriptedReceiver[T]{items: items, err: err}
}

func (r *scriptedReceiver[T]) Recv() (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.items) == 0 {
		var zero T
		return zero, r.err
	}
	v := r.items[0]
	r.items = r.items[1:]
	return v, nil
}

// recordingSender collects every sent item. If failAfter >= 0, sends beyond
// that many return err.
type recordingSender[T any] struct {
	mu        sync.Mutex
	sent      []T
	failAfter int
	err       error
}

func newRecordingSender[T any]() *recordingSender[T] {
	return &recordingSender[T]{failAfter: -1}
}

func newFailingSender[T any](failAfter int, err error) *recordingSender[T] {
	return &recordingSender[T]{failAfter: failAfter, err: err}
}

func (s *recordingSender[T]) Send(item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && len(s.sent) >= s.failAfter {
		return s.err
	}
	s.sent = append(s.sent, item)
	return nil
}

func (s *recordingSender[T]) Sent() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.sent...)
}

// Helper transforms

// double forwards n*2 and ignores End.
func double(in Input[int]) (int, bool) {
	n, ok := in.Value()
	return n * 2, ok
}

// evens forwards even numbers only.
func evens(in Input[int]) (int, bool) {
	n, ok := in.Value()
	return n, ok && n%2 == 0
}

// sumOnEnd buffers a running sum and emits it on End.
func sumOnEnd() TransformFunc[int, int] {
	sum := 0
	return func(in Input[int]) (int, bool) {
		if n, ok := in.Value(); ok {
			sum += n
			return 0, false
		}
		return sum, true
	}
}

// recordCalls wraps fn and records every input it sees.
func recordCalls[I, O any](fn TransformFunc[I, O], calls *[]Input[I]) TransformFunc[I, O] {
	return func(in Input[I]) (O, bool) {
		*calls = append(*calls, in)
		return fn(in)
	}
}

// feed creates a corked unbounded channel holding items.
func feed[T any](items ...T) *channel.Channel[T] {
	ch := channel.New[T](0)
	for _, v := range items {
		_ = ch.Send(v)
	}
	ch.Cork()
	return ch
}

// drain receives until the channel reports an error.
func drain[T any](ch *channel.Channel[T]) ([]T, error) {
	var out []T
	for {
		v, err := ch.Recv()
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// runRecovering runs fn and returns whatever it panicked with.
func runRecovering(fn func()) (recovered any) {
	defer func() {
		recovered = recover()
	}()
	fn()
	return nil
}

// bufferLogger returns a JSON logger writing to a buffer.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), &buf
}

var errBoom = errors.New("boom")
