/*
Package flowstage provides streaming compute stages for dataflow pipelines.

# Overview

A compute node consumes items from one upstream channel, applies a
transform to each, and forwards results to one downstream channel. It runs
on a dedicated goroutine until upstream is exhausted, then gives the
transform one last call so buffered state can be flushed.

Nodes never own their channels. They depend only on two small capability
interfaces from the channel package:

	type Receiver[T any] interface { Recv() (T, error) }
	type Sender[T any] interface   { Send(item T) error }

channel.Channel implements both, but any type that reports exhaustion with
channel.ErrCorked and faults with channel.ErrPoisoned will do.

# Basic Usage

	in := channel.New[int](16)
	out := channel.New[int](16)

	node := flowstage.NewComputeNode("double", in, out,
	    func(in flowstage.Input[int]) (int, bool) {
	        n, ok := in.Value()
	        return n * 2, ok
	    })

	go node.Run()

	for _, n := range []int{1, 2, 3} {
	    _ = in.Send(n)
	}
	in.Cork()
	// out receives 2, 4, 6

# Transforms and End

A transform receives an Input that is either Present(item) or End(). It
returns an output and a bool; false means "emit nothing for this call".
End arrives exactly once, after upstream has been corked and drained, even
when no items arrived at all. Buffering transforms use it to flush:

	var sum int
	total := func(in flowstage.Input[int]) (int, bool) {
	    if n, ok := in.Value(); ok {
	        sum += n
	        return 0, false
	    }
	    return sum, true
	}

The transform package has ready-made Map, Filter, Fold, Batch and friends.

# Failure

Exhaustion is not an error. A poisoned channel is: the node panics with a
*FaultError and does not return. By default a failed send is treated the
same way; WithSendPolicy(SendDiscard) counts and logs the item instead.

	defer func() {
	    if r := recover(); r != nil {
	        var fe *flowstage.FaultError
	        if err, ok := r.(error); ok && errors.As(err, &fe) {
	            log.Printf("node %s failed on %s", fe.Node, fe.Op)
	        }
	    }
	}()

# Supervision

A Supervisor runs nodes on their own goroutines and closes the loop the
node leaves open: it corks a node's outputs when it finishes, so the next
node drains and finishes in turn, and poisons a node's endpoints when it
aborts, so the fault reaches its neighbours instead of leaving them blocked.

	sup := flowstage.NewSupervisor("numbers",
	    flowstage.WithRunLogger(logger),
	    flowstage.WithTracing(),
	    flowstage.WithJournal(store))

	_ = sup.Add(source, flowstage.Outputs(src))
	_ = sup.Add(double, flowstage.Inputs(src), flowstage.Outputs(out))
	_ = sup.Add(sink, flowstage.Inputs(out))

	report, err := sup.Run(ctx)

Cancelling ctx poisons every registered endpoint and Run returns a
*CancellationError.

# Observability

Nodes and supervisors accept a *slog.Logger, an observability.MetricsRecorder
backed by OpenTelemetry, and optional tracing. All default to off.

# Thread Safety

A ComputeNode runs once and is used by a single goroutine during Run;
State and Stats may be read concurrently. channel.Channel and Supervisor
are safe for concurrent use.
*/
package flowstage
