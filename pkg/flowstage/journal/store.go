// Package journal records how each node of a supervised run ended.
package journal

import (
	"errors"
	"time"
)

// Outcome is how a node's worker ended.
type Outcome string

// Outcome values.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeCancelled Outcome = "cancelled"
)

// Record describes one node in one run.
type Record struct {
	RunID      string    `json:"run_id"`
	Node       string    `json:"node"`
	Sequence   int       `json:"sequence"`
	Outcome    Outcome   `json:"outcome"`
	Received   int64     `json:"received"`
	Emitted    int64     `json:"emitted"`
	Filtered   int64     `json:"filtered"`
	Dropped    int64     `json:"dropped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns how long the node ran.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists run records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a record, overwriting any record for (RunID, Node).
	// The store assigns Sequence in save order within the run.
	Save(rec Record) error

	// Load returns the record for a node in a run.
	// Returns ErrNotFound if it doesn't exist.
	Load(runID, node string) (Record, error)

	// List returns all records for a run ordered by sequence.
	// Returns an empty slice (not error) if the run is unknown.
	List(runID string) ([]Record, error)

	// Runs returns known run IDs, most recent first.
	Runs() ([]string, error)

	// DeleteRun removes all records for a run.
	DeleteRun(runID string) error

	// Close releases any resources.
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("journal record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
