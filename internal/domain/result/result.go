// Package result provides a two-case success/failure value used where a failure is
// an expected outcome rather than an exceptional one.
package result

// Result holds either a value of type T or a failure of type E. IsOk is authoritative.
// Build values with Ok or Err; the zero Result is a failure holding the zero E.
type Result[T, E any] struct {
	value   T
	failure E
	ok      bool
}

// Ok returns a successful Result wrapping v.
func Ok[T, E any](v T) Result[T, E] {
	return Result[T, E]{value: v, ok: true}
}

// Err returns a failed Result wrapping e.
func Err[T, E any](e E) Result[T, E] {
	return Result[T, E]{failure: e}
}

// IsOk reports whether r is a success.
func (r Result[T, E]) IsOk() bool {
	return r.ok
}

// Value returns the success value and true, or the zero T and false.
func (r Result[T, E]) Value() (T, bool) {
	if !r.ok {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Failure returns the failure and true, or the zero E and false.
func (r Result[T, E]) Failure() (E, bool) {
	if r.ok {
		var zero E
		return zero, false
	}
	return r.failure, true
}

// ValueOr returns the success value, or def on failure.
func (r Result[T, E]) ValueOr(def T) T {
	if !r.ok {
		return def
	}
	return r.value
}

// Match folds r into a single value.
func Match[T, E, R any](r Result[T, E], onOk func(T) R, onErr func(E) R) R {
	if r.ok {
		return onOk(r.value)
	}
	return onErr(r.failure)
}
