// Package transform provides stock transforms for flowstage compute nodes.
//
// Stateless transforms (Map, Filter, FilterMap, Tap) may be shared between
// nodes. Stateful ones (Fold, Batch, Stateful) keep state in their closure
// and must be created fresh for each node.
package transform

import "github.com/randalmurphal/flowstage/pkg/flowstage"

// Map applies fn to every item and ignores End.
func Map[I, O any](fn func(I) O) flowstage.TransformFunc[I, O] {
	return func(in flowstage.Input[I]) (O, bool) {
		v, ok := in.Value()
		if !ok {
			var zero O
			return zero, false
		}
		return fn(v), true
	}
}

// Filter forwards items that satisfy keep.
func Filter[T any](keep func(T) bool) flowstage.TransformFunc[T, T] {
	return func(in flowstage.Input[T]) (T, bool) {
		v, ok := in.Value()
		if !ok || !keep(v) {
			var zero T
			return zero, false
		}
		return v, true
	}
}

// FilterMap applies fn and forwards its result when fn reports true.
func FilterMap[I, O any](fn func(I) (O, bool)) flowstage.TransformFunc[I, O] {
	return func(in flowstage.Input[I]) (O, bool) {
		v, ok := in.Value()
		if !ok {
			var zero O
			return zero, false
		}
		return fn(v)
	}
}

// Tap calls fn for every item and forwards the item unchanged.
// Use for logging or counting mid-pipeline.
func Tap[T any](fn func(T)) flowstage.TransformFunc[T, T] {
	return func(in flowstage.Input[T]) (T, bool) {
		v, ok := in.Value()
		if ok {
			fn(v)
		}
		return v, ok
	}
}

// Fold accumulates every item into a single result emitted on End.
// An empty upstream emits init.
func Fold[I, R any](init R, fn func(R, I) R) flowstage.TransformFunc[I, R] {
	acc := init
	return func(in flowstage.Input[I]) (R, bool) {
		if v, ok := in.Value(); ok {
			acc = fn(acc, v)
			var zero R
			return zero, false
		}
		return acc, true
	}
}

// Batch groups items into slices of size items. A partial batch is emitted
// on End; nothing is emitted for an empty upstream.
//
// size <= 0 defaults to 1.
func Batch[T any](size int) flowstage.TransformFunc[T, []T] {
	if size <= 0 {
		size = 1
	}
	var batch []T
	return func(in flowstage.Input[T]) ([]T, bool) {
		v, ok := in.Value()
		if ok {
			batch = append(batch, v)
			if len(batch) < size {
				return nil, false
			}
		}
		if len(batch) == 0 {
			return nil, false
		}
		out := batch
		batch = make([]T, 0, size)
		return out, true
	}
}

// Stateful builds a transform from a state value, a per-item step and a
// flush run on End. Either func may report false to emit nothing.
// A nil flush emits nothing on End.
//
// Example:
//
//	dedupe := transform.Stateful(map[string]bool{},
//	    func(seen *map[string]bool, s string) (string, bool) {
//	        if (*seen)[s] {
//	            return "", false
//	        }
//	        (*seen)[s] = true
//	        return s, true
//	    }, nil)
func Stateful[S, I, O any](init S, step func(*S, I) (O, bool), flush func(*S) (O, bool)) flowstage.TransformFunc[I, O] {
	state := init
	return func(in flowstage.Input[I]) (O, bool) {
		if v, ok := in.Value(); ok {
			return step(&state, v)
		}
		if flush == nil {
			var zero O
			return zero, false
		}
		return flush(&state)
	}
}
