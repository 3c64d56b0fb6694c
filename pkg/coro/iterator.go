package coro

import (
	"context"
)

// Iterator is the consumer side of a channel. It is safe for concurrent use;
// requests are paired in the order the calls were made.
type Iterator[Y, R, N any] struct {
	ch *channel[Y, R, N]
}

// New creates a channel driven by producer and returns its consumer side.
//
// The producer runs on its own goroutine, launched by the first Next call.
// If the iterator is closed or never pulled, the producer is never started.
// The ctx passed to producer derives from ctx and is cancelled once the
// channel is terminal; context.Cause reports why (ErrFinished, ErrClosed, or
// the error given to Fail or Abort).
//
// The producer must end the channel with Finish or Fail. If it returns
// without doing so, the channel is ended as if Finish was called without a
// value. Panics in the producer are not recovered.
func New[Y, R, N any](ctx context.Context, producer func(ctx context.Context, c *Controller[Y, R, N])) *Iterator[Y, R, N] {
	return &Iterator[Y, R, N]{ch: newChannel(ctx, producer)}
}

// Next pulls the next value. in is forwarded to the producer as the reply of
// the send this call moves past; the input of the very first Next is unused.
//
// The future resolves with the pushed value, with the finish value, with a
// done result, or with the producer's fault as the Wait error.
func (it *Iterator[Y, R, N]) Next(in N) *Future[Result[Y, R]] {
	return it.ch.submitPull(&pullReq[Y, R, N]{
		kind:   pullNext,
		input:  in,
		result: newFuture[Result[Y, R]](),
	})
}

// Close ends the channel from the consumer side and releases a producer
// suspended in Send. It resolves with a done result; it is a no-op on a
// terminal channel.
//
// Close is paired in call order like Next: issued behind pending Next calls,
// it takes effect once they have been answered, and pulls issued after it
// resolve with a done result.
func (it *Iterator[Y, R, N]) Close() *Future[Result[Y, R]] {
	return it.ch.submitPull(&pullReq[Y, R, N]{
		kind:   pullClose,
		result: newFuture[Result[Y, R]](),
	})
}

// Abort is like Close, but when it ends a running channel its future
// resolves with err as the Wait error so the failure surfaces to whoever is
// walking the iterator. A nil err is replaced with ErrAborted. On a terminal
// channel it resolves with a done result and no error.
func (it *Iterator[Y, R, N]) Abort(err error) *Future[Result[Y, R]] {
	if err == nil {
		err = ErrAborted
	}
	return it.ch.submitPull(&pullReq[Y, R, N]{
		kind:   pullAbort,
		err:    err,
		result: newFuture[Result[Y, R]](),
	})
}

// State returns the current lifecycle state.
func (it *Iterator[Y, R, N]) State() State {
	return it.ch.currentState()
}

// Done returns a channel that is closed when the channel becomes terminal.
func (it *Iterator[Y, R, N]) Done() <-chan struct{} {
	return it.ch.done
}
