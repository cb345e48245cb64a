// Package channel defines the endpoint contracts a compute node depends on
// and a reference multi-producer multi-consumer channel that satisfies them.
package channel

import (
	"errors"
	"sync"
)

// Sentinel errors reported by channel endpoints.
var (
	// ErrCorked indicates no more items will ever arrive (receive side)
	// or be accepted (send side). Buffered items are still delivered first.
	ErrCorked = errors.New("channel corked")

	// ErrPoisoned indicates a participant failed mid-operation and the
	// channel state can no longer be trusted.
	ErrPoisoned = errors.New("channel poisoned")
)

// Receiver is the receive half of a channel.
//
// Recv blocks until an item is available, the channel is corked and
// drained (ErrCorked), or the channel is poisoned (ErrPoisoned).
type Receiver[T any] interface {
	Recv() (T, error)
}

// Sender is the send half of a channel.
//
// Send may block while a bounded channel is full. It returns ErrCorked
// once the channel no longer accepts items and ErrPoisoned after poisoning.
type Sender[T any] interface {
	Send(item T) error
}

// Channel is a FIFO queue shared by any number of producers and consumers.
// A positive capacity bounds the queue and makes Send block while full;
// zero or negative capacity makes it unbounded.
//
// Channel is safe for concurrent use.
type Channel[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items    []T
	head     int
	capacity int

	corked    bool
	poisoned  bool
	producers int
}

// Compile-time interface checks.
var (
	_ Receiver[int] = (*Channel[int])(nil)
	_ Sender[int]   = (*Channel[int])(nil)
)

// New creates a channel. capacity <= 0 means unbounded.
func New[T any](capacity int) *Channel[T] {
	if capacity < 0 {
		capacity = 0
	}
	c := &Channel[T]{capacity: capacity}
	c.notEmpty = sync.NewCond(&c.mu)
	c.notFull = sync.NewCond(&c.mu)
	return c
}

// Send appends item to the queue, blocking while a bounded channel is full.
func (c *Channel[T]) Send(item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if c.poisoned {
			return ErrPoisoned
		}
		if c.corked {
			return ErrCorked
		}
		if c.capacity == 0 || c.lenLocked() < c.capacity {
			break
		}
		c.notFull.Wait()
	}

	c.items = append(c.items, item)
	c.notEmpty.Signal()
	return nil
}

// Recv removes and returns the oldest item, blocking while the channel is
// empty and still open.
func (c *Channel[T]) Recv() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	for {
		if c.poisoned {
			return zero, ErrPoisoned
		}
		if c.lenLocked() > 0 {
			break
		}
		if c.corked {
			return zero, ErrCorked
		}
		c.notEmpty.Wait()
	}

	item := c.items[c.head]
	c.items[c.head] = zero
	c.head++
	if c.head == len(c.items) {
		c.items = c.items[:0]
		c.head = 0
	}

	c.notFull.Signal()
	return item, nil
}

// Cork marks the channel closed for new data. Items already buffered are
// still delivered; once drained, Recv returns ErrCorked. Cork is idempotent.
func (c *Channel[T]) Cork() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.corked {
		return
	}
	c.corked = true
	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}

// Poison marks the channel as unusable. Buffered items are discarded and
// every blocked or subsequent call returns ErrPoisoned. Poison is sticky.
func (c *Channel[T]) Poison() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poisoned {
		return
	}
	c.poisoned = true
	c.items = nil
	c.head = 0
	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}

// Len returns the number of buffered items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked()
}

// Cap returns the configured capacity; 0 means unbounded.
func (c *Channel[T]) Cap() int {
	return c.capacity
}

// IsCorked reports whether Cork has been called.
func (c *Channel[T]) IsCorked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.corked
}

// IsPoisoned reports whether Poison has been called.
func (c *Channel[T]) IsPoisoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poisoned
}

func (c *Channel[T]) lenLocked() int {
	return len(c.items) - c.head
}
