package flowstage

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/flowstage/pkg/flowstage/journal"
	"github.com/randalmurphal/flowstage/pkg/flowstage/observability"
	"github.com/randalmurphal/flowstage/pkg/flowstage/registry"
	"go.opentelemetry.io/otel/attribute"
)

// StatsReporter is implemented by nodes that expose item counters.
type StatsReporter interface {
	Stats() Stats
}

// Supervisor runs registered nodes, one goroutine each, and handles what
// a node itself does not: closing its outputs when it finishes, poisoning
// its endpoints when it aborts, and reporting how every node ended.
//
// Example:
//
//	src := channel.New[int](8)
//	out := channel.New[int](8)
//	sup := flowstage.NewSupervisor("numbers")
//	_ = sup.Add(flowstage.NewSource("source", src, slices.Values(nums)), flowstage.Outputs(src))
//	_ = sup.Add(flowstage.NewComputeNode("double", src, out, double),
//	    flowstage.Inputs(src), flowstage.Outputs(out))
//	_ = sup.Add(flowstage.NewSink("print", out, func(n int) { fmt.Println(n) }), flowstage.Inputs(out))
//	report, err := sup.Run(ctx)
type Supervisor struct {
	name    string
	cfg     supervisorConfig
	workers *registry.Registry[string, *worker]
	running atomic.Bool
}

// NewSupervisor creates a supervisor for a named pipeline.
func NewSupervisor(name string, opts ...SupervisorOption) *Supervisor {
	cfg := defaultSupervisorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Supervisor{
		name:    name,
		cfg:     cfg,
		workers: registry.New[string, *worker](),
	}
}

// Name returns the pipeline name.
func (s *Supervisor) Name() string {
	return s.name
}

// Nodes returns registered node names in registration order.
func (s *Supervisor) Nodes() []string {
	return s.workers.Keys()
}

// Add registers a node and the endpoints it is wired to.
func (s *Supervisor) Add(node Node, opts ...AddOption) error {
	if node == nil {
		return ErrNilNode
	}
	if s.running.Load() {
		return ErrSupervisorRunning
	}

	w := &worker{node: node}
	for _, opt := range opts {
		opt(w)
	}
	if !s.workers.Add(node.Name(), w) {
		return &NodeError{Node: node.Name(), Err: ErrDuplicateNode}
	}
	return nil
}

// NodeReport describes how one node ended.
type NodeReport struct {
	Name      string
	Outcome   journal.Outcome
	Stats     Stats
	StartedAt time.Time
	Duration  time.Duration
	// Err is nil for completed nodes, otherwise a *NodeError.
	Err error
}

// Report summarizes a supervised run.
type Report struct {
	RunID    string
	Duration time.Duration
	Nodes    []NodeReport
}

// Failed returns the reports of nodes that did not complete.
func (r *Report) Failed() []NodeReport {
	var failed []NodeReport
	for _, n := range r.Nodes {
		if n.Outcome != journal.OutcomeCompleted {
			failed = append(failed, n)
		}
	}
	return failed
}

// Run starts every registered node on its own goroutine and blocks until
// all of them have returned or aborted.
//
// The returned error is nil when every node completed, the errors.Join of
// each aborted node's *NodeError otherwise, or a *CancellationError if ctx
// was cancelled. On cancellation every registered endpoint is poisoned,
// which aborts nodes that are still running.
func (s *Supervisor) Run(ctx context.Context) (report *Report, runErr error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSupervisorRunning
	}
	defer s.running.Store(false)

	runID := s.cfg.runID
	if runID == "" {
		runID = uuid.New().String()
	}

	workers := make([]*worker, 0, s.workers.Len())
	s.workers.Range(func(_ string, w *worker) bool {
		workers = append(workers, w)
		return true
	})

	done := observability.TimedOperation()
	start := time.Now()
	observability.LogRunStart(s.cfg.logger, runID, len(workers))

	runCtx, runSpan := s.cfg.spans.StartPipelineSpan(ctx, s.name, runID)
	defer func() {
		s.cfg.spans.EndSpanWithError(runSpan, runErr)
	}()

	report = &Report{RunID: runID, Nodes: make([]NodeReport, len(workers))}

	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.Nodes[i] = s.runWorker(runCtx, runID, w)
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	cancelled := false
	select {
	case <-finished:
	case <-ctx.Done():
		select {
		case <-finished:
		default:
			cancelled = true
			s.cfg.spans.AddSpanEvent(runCtx, "run.cancelled")
			for _, w := range workers {
				poisonAll(w.inputs)
				poisonAll(w.outputs)
			}
			<-finished
		}
	}

	report.Duration = time.Since(start)

	var errs []error
	var aborted []string
	for i := range report.Nodes {
		n := &report.Nodes[i]
		if n.Err == nil {
			continue
		}
		errs = append(errs, n.Err)
		aborted = append(aborted, n.Name)
		if cancelled {
			n.Outcome = journal.OutcomeCancelled
		}
	}

	if cancelled {
		runErr = &CancellationError{RunID: runID, Aborted: aborted, Cause: ctx.Err()}
	} else {
		runErr = errors.Join(errs...)
	}

	s.journalRun(runID, report)
	s.cfg.metrics.RecordPipelineRun(ctx, runErr == nil, report.Duration)
	if runErr != nil {
		observability.LogRunError(s.cfg.logger, runID, runErr, done(), len(aborted))
	} else {
		observability.LogRunComplete(s.cfg.logger, runID, done(), len(workers))
	}
	return report, runErr
}

// runWorker runs one node to completion or abort and settles its endpoints.
func (s *Supervisor) runWorker(ctx context.Context, runID string, w *worker) NodeReport {
	name := w.node.Name()
	logger := observability.EnrichLogger(s.cfg.logger, runID, name)

	nodeCtx, span := s.cfg.spans.StartNodeSpan(ctx, name)
	start := time.Now()

	err := execute(w.node)
	duration := time.Since(start)

	rep := NodeReport{
		Name:      name,
		Outcome:   journal.OutcomeCompleted,
		StartedAt: start,
		Duration:  duration,
		Err:       err,
	}
	if sr, ok := w.node.(StatsReporter); ok {
		rep.Stats = sr.Stats()
	}

	if err != nil {
		rep.Outcome = journal.OutcomeAborted
		poisonAll(w.inputs)
		poisonAll(w.outputs)
		s.cfg.spans.AddSpanEvent(nodeCtx, "endpoints.poisoned",
			attribute.Int("endpoints", len(w.inputs)+len(w.outputs)))
		observability.LogNodeAbort(logger, name, err)
	} else {
		for _, ep := range w.outputs {
			ep.Cork()
		}
		s.cfg.spans.AddSpanEvent(nodeCtx, "outputs.corked",
			attribute.Int("endpoints", len(w.outputs)),
			attribute.Int64("items_received", rep.Stats.Received),
			attribute.Int64("items_emitted", rep.Stats.Emitted))
	}

	s.cfg.metrics.RecordNodeRun(nodeCtx, name, duration, err)
	s.cfg.spans.EndSpanWithError(span, err)
	return rep
}

// journalRun writes one record per node. Failures are logged only.
func (s *Supervisor) journalRun(runID string, report *Report) {
	if s.cfg.journal == nil {
		return
	}
	for _, n := range report.Nodes {
		rec := journal.Record{
			RunID:      runID,
			Node:       n.Name,
			Outcome:    n.Outcome,
			Received:   n.Stats.Received,
			Emitted:    n.Stats.Emitted,
			Filtered:   n.Stats.Filtered,
			Dropped:    n.Stats.Dropped,
			StartedAt:  n.StartedAt,
			FinishedAt: n.StartedAt.Add(n.Duration),
		}
		if n.Err != nil {
			rec.Error = n.Err.Error()
		}
		if err := s.cfg.journal.Save(rec); err != nil {
			observability.LogJournalError(s.cfg.logger, n.Name, err)
		}
	}
}

// execute runs a node, converting a worker abort into a *NodeError.
func execute(node Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var fault *FaultError
			if e, ok := r.(error); ok && errors.As(e, &fault) {
				err = &NodeError{Node: node.Name(), Err: fault}
				return
			}
			err = &NodeError{
				Node: node.Name(),
				Err: &PanicError{
					Node:  node.Name(),
					Value: r,
					Stack: string(debug.Stack()),
				},
			}
		}
	}()

	node.Run()
	return nil
}

func poisonAll(eps []Endpoint) {
	for _, ep := range eps {
		ep.Poison()
	}
}
