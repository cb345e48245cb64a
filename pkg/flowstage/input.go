package flowstage

// Input is what a transform receives: either a present item or the
// end-of-stream marker. The zero value is End.
type Input[T any] struct {
	value   T
	present bool
}

// Present wraps an item received from upstream.
func Present[T any](v T) Input[T] {
	return Input[T]{value: v, present: true}
}

// End returns the end-of-stream marker. A node passes it to its transform
// exactly once, after upstream has been corked and drained, so stateful
// transforms can flush.
func End[T any]() Input[T] {
	return Input[T]{}
}

// Value returns the item and true, or the zero value and false for End.
func (in Input[T]) Value() (T, bool) {
	return in.value, in.present
}

// IsEnd reports whether in is the end-of-stream marker.
func (in Input[T]) IsEnd() bool {
	return !in.present
}

// TransformFunc maps one input to at most one output. Returning false
// suppresses output for this call (filtering, buffering).
//
// Example:
//
//	double := func(in flowstage.Input[int]) (int, bool) {
//	    n, ok := in.Value()
//	    return n * 2, ok
//	}
type TransformFunc[I, O any] func(in Input[I]) (O, bool)
