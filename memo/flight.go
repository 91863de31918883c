package memo

import (
	"context"
)

// flight is one shared computation for a key: pending until its single
// producer completes it, then terminal forever. All callers that looked up
// the same key hold the same flight and observe the same outcome.
type flight[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFlight[T any]() *flight[T] {
	return &flight[T]{done: make(chan struct{})}
}

// complete transfers the producer's terminal outcome into the shared
// handle. Each flight has exactly one producer and complete is called
// exactly once; value and err are safe to read after done is closed.
func (f *flight[T]) complete(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// terminal reports whether the flight has completed.
func (f *flight[T]) terminal() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// wait blocks until the flight completes or the caller's own context is
// done. Cancellation here abandons only this caller's wait; the flight and
// every other waiter are untouched.
func (f *flight[T]) wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
