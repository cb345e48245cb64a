package flowstage

import (
	"errors"
	"fmt"
)

// Sentinel errors for node lifecycle.
var (
	// ErrAlreadyRun indicates Run was called on a node that has already run.
	ErrAlreadyRun = errors.New("node already run")
)

// Sentinel errors for the supervisor.
var (
	// ErrNilNode indicates Add was called with a nil node.
	ErrNilNode = errors.New("node cannot be nil")

	// ErrDuplicateNode indicates a node name is already registered.
	ErrDuplicateNode = errors.New("duplicate node name")

	// ErrSupervisorRunning indicates Add or Run was called during a run.
	ErrSupervisorRunning = errors.New("supervisor already running")

	// ErrNilContext indicates Run was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")
)

// FaultError is the panic value a node raises when a channel endpoint
// reports an unrecoverable fault. It aborts the worker running the node.
type FaultError struct {
	// Node is the name of the node that observed the fault.
	Node string
	// Op is "receive" or "send".
	Op string
	// Err is the endpoint error, usually channel.ErrPoisoned.
	Err error
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	return fmt.Sprintf("flowstage: node %s: %s: %v", e.Node, e.Op, e.Err)
}

// Unwrap returns the endpoint error for errors.Is/As support.
func (e *FaultError) Unwrap() error {
	return e.Err
}

// PanicError captures a worker panic that was not a channel fault,
// typically a panicking transform.
type PanicError struct {
	// Node is the name of the node whose worker panicked.
	Node string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of recovery.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.Node, e.Value)
}

// Unwrap returns Value when the panic value was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// NodeError reports a node whose worker terminated abnormally under the
// supervisor. Err is a *FaultError or a *PanicError.
type NodeError struct {
	// Node is the name of the aborted node.
	Node string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s aborted: %v", e.Node, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// CancellationError reports a supervised run stopped by context
// cancellation. Aborted lists nodes that had not returned normally.
type CancellationError struct {
	// RunID identifies the cancelled run.
	RunID string
	// Aborted holds the names of nodes that did not finish normally.
	Aborted []string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("run %s cancelled with %d node(s) aborted: %v", e.RunID, len(e.Aborted), e.Cause)
}

// Unwrap returns the cancellation cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}
