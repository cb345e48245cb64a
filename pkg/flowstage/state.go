package flowstage

import "sync/atomic"

// State is a node's lifecycle state.
type State int32

const (
	// StateIdle means constructed, not yet run.
	StateIdle State = iota
	// StateRunning means inside the receive/transform/send loop.
	StateRunning
	// StateDraining means upstream reported corked and the End call is pending.
	StateDraining
	// StateDone means Run returned normally.
	StateDone
	// StateFatal means the worker aborted on a channel fault or a panic.
	StateFatal
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Stats are a node's item counters.
type Stats struct {
	// Received counts items taken from upstream.
	Received int64
	// Emitted counts items successfully sent downstream.
	Emitted int64
	// Filtered counts transform calls that produced no output.
	Filtered int64
	// Dropped counts outputs discarded because the send failed.
	Dropped int64
}

// counters is the lock-free backing store for Stats.
type counters struct {
	received atomic.Int64
	emitted  atomic.Int64
	filtered atomic.Int64
	dropped  atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received: c.received.Load(),
		Emitted:  c.emitted.Load(),
		Filtered: c.filtered.Load(),
		Dropped:  c.dropped.Load(),
	}
}
