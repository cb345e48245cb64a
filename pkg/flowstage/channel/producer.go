package channel

import "sync"

// Producer is a counted send handle. The channel corks itself when every
// Producer obtained from it has been closed.
type Producer[T any] struct {
	ch   *Channel[T]
	once sync.Once
}

// Producer registers a new producer on the channel.
// Registering on a corked or poisoned channel is allowed; Send will fail.
func (c *Channel[T]) Producer() *Producer[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.producers++
	return &Producer[T]{ch: c}
}

// Send forwards to the underlying channel.
func (p *Producer[T]) Send(item T) error {
	return p.ch.Send(item)
}

// Close releases the handle. Closing the last open handle corks the
// channel. Close is idempotent.
func (p *Producer[T]) Close() {
	p.once.Do(func() {
		c := p.ch
		c.mu.Lock()
		c.producers--
		last := c.producers == 0
		c.mu.Unlock()

		if last {
			c.Cork()
		}
	})
}

// Producers returns the number of open producer handles.
func (c *Channel[T]) Producers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.producers
}

// Cork releases the handle, so a shared channel is corked only after its
// last producer finishes.
func (p *Producer[T]) Cork() {
	p.Close()
}

// Poison poisons the underlying channel for every producer and consumer.
func (p *Producer[T]) Poison() {
	p.ch.Poison()
}
