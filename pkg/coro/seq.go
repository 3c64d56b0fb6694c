package coro

import (
	"context"
	"iter"
)

// All returns a sequence over the pushed values. Each step pulls with the
// zero input.
//
// The sequence ends when the channel is done. A producer fault or a ctx error
// is yielded once as the error; on a ctx error the channel is closed at once,
// even though the abandoned pull is still queued. Breaking out of the loop
// closes the iterator, which releases the producer.
func (it *Iterator[Y, R, N]) All(ctx context.Context) iter.Seq2[Y, error] {
	return func(yield func(Y, error) bool) {
		var in N
		for {
			r, err := it.Next(in).Wait(ctx)
			if err != nil {
				it.ch.shutdown()
				var zero Y
				yield(zero, err)
				return
			}
			if r.Done {
				return
			}
			if !yield(r.Value, nil) {
				it.Close()
				return
			}
		}
	}
}

// Collect pulls until the channel is done and returns the pushed values and
// the finish value (the zero R when the channel ended without one).
func Collect[Y, R, N any](ctx context.Context, it *Iterator[Y, R, N]) ([]Y, R, error) {
	var (
		vals []Y
		in   N
	)
	for {
		r, err := it.Next(in).Wait(ctx)
		if err != nil {
			it.ch.shutdown()
			var zero R
			return vals, zero, err
		}
		if r.Done {
			return vals, r.Return, nil
		}
		vals = append(vals, r.Value)
	}
}
