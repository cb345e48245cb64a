package commands

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/randalmurphal/flowstage/pkg/flowstage"
	"github.com/randalmurphal/flowstage/pkg/flowstage/channel"
	"github.com/randalmurphal/flowstage/pkg/flowstage/config"
	"github.com/randalmurphal/flowstage/pkg/flowstage/observability"
	"github.com/randalmurphal/flowstage/pkg/flowstage/transform"
)

// stageOps maps a stage op name to a transform factory. Every stage maps
// int to int so stages chain in any order.
var stageOps = map[string]func(arg int, logger *slog.Logger, name string) (flowstage.TransformFunc[int, int], error){
	"add": func(arg int, _ *slog.Logger, _ string) (flowstage.TransformFunc[int, int], error) {
		return transform.Map(func(n int) int { return n + arg }), nil
	},
	"mul": func(arg int, _ *slog.Logger, _ string) (flowstage.TransformFunc[int, int], error) {
		return transform.Map(func(n int) int { return n * arg }), nil
	},
	"keep_multiple": func(arg int, _ *slog.Logger, _ string) (flowstage.TransformFunc[int, int], error) {
		if arg == 0 {
			return nil, errors.New("keep_multiple needs a non-zero arg")
		}
		return transform.Filter(func(n int) bool { return n%arg == 0 }), nil
	},
	"sum": func(int, *slog.Logger, string) (flowstage.TransformFunc[int, int], error) {
		return transform.Fold(0, func(acc, n int) int { return acc + n }), nil
	},
	"window_sum": func(arg int, _ *slog.Logger, _ string) (flowstage.TransformFunc[int, int], error) {
		if arg <= 0 {
			return nil, errors.New("window_sum needs a positive arg")
		}
		return transform.Stateful([2]int{},
			func(w *[2]int, n int) (int, bool) {
				w[0] += n
				w[1]++
				if w[1] < arg {
					return 0, false
				}
				out := w[0]
				*w = [2]int{}
				return out, true
			},
			func(w *[2]int) (int, bool) {
				return w[0], w[1] > 0
			}), nil
	},
	"log": func(_ int, logger *slog.Logger, name string) (flowstage.TransformFunc[int, int], error) {
		return transform.Tap(func(n int) {
			if logger == nil {
				return
			}
			logger.Debug("item", slog.String("node_id", name), slog.Int("value", n))
		}), nil
	},
}

// results collects sink output.
type results struct {
	mu    sync.Mutex
	items []int
}

func (r *results) add(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *results) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.items...)
}

// integers yields count integers starting at start.
func integers(start, count int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 0; i < count; i++ {
			if !yield(start + i) {
				return
			}
		}
	}
}

// buildPipeline registers source -> stages... -> sink on sup.
func buildPipeline(sup *flowstage.Supervisor, s config.Settings, logger *slog.Logger, metrics observability.MetricsRecorder) (*results, error) {
	out := &results{}

	head := channel.New[int](s.ChannelCapacity)
	if err := sup.Add(flowstage.NewSource("source", head, integers(s.SourceStart, s.SourceCount)),
		flowstage.Outputs(head)); err != nil {
		return nil, err
	}

	for _, st := range s.Stages {
		factory, ok := stageOps[st.Op]
		if !ok {
			return nil, fmt.Errorf("stage %s: unknown op %q", st.Name, st.Op)
		}
		fn, err := factory(st.Arg, logger, st.Name)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.Name, err)
		}

		next := channel.New[int](s.ChannelCapacity)
		node := flowstage.NewComputeNode(st.Name, head, next, fn,
			flowstage.WithLogger(logger),
			flowstage.WithMetrics(metrics),
			flowstage.WithSendPolicy(s.SendPolicy))
		if err := sup.Add(node, flowstage.Inputs(head), flowstage.Outputs(next)); err != nil {
			return nil, err
		}
		head = next
	}

	if err := sup.Add(flowstage.NewSink("sink", head, out.add), flowstage.Inputs(head)); err != nil {
		return nil, err
	}
	return out, nil
}
