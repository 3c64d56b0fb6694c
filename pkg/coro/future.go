package coro

import (
	"context"
)

// Future is the pending outcome of a push or pull request. It is resolved
// exactly once by the channel that created it.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve must be called at most once. Callers hold the channel lock.
func (f *Future[T]) resolve(v T, err error) {
	f.val = v
	f.err = err
	close(f.done)
}

// Done returns a channel that is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future is resolved or ctx is done.
//
// The error is either the fault a producer delivered with Fail, the error of
// an Abort that ended a running channel, or ctx.Err(). Abandoning a Wait
// because of ctx does not withdraw the request; it stays queued and will
// still be paired.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		// A channel cancels the producer context only after resolving its
		// futures, so prefer the resolved value.
		select {
		case <-f.done:
			return f.val, f.err
		default:
		}
		var zero T
		return zero, ctx.Err()
	}
}

// Resolved reports whether the future is resolved without blocking.
func (f *Future[T]) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// WaitAll waits for every future in order and returns their values. It stops
// at the first error.
func WaitAll[T any](ctx context.Context, fs ...*Future[T]) ([]T, error) {
	vals := make([]T, 0, len(fs))
	for _, f := range fs {
		v, err := f.Wait(ctx)
		if err != nil {
			return vals, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}
