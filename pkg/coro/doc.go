// Package coro provides a bidirectional coroutine channel between a producer
// routine and a pull-based consumer.
//
// The producer is an ordinary function running on its own goroutine. It pushes
// values outward through a [Controller] and is suspended after each push until
// the consumer has accepted it. The consumer drives the channel through an
// [Iterator], pulling one value at a time.
//
// Every suspension point returns a [Future] immediately. The request is queued
// in the channel at call time, so requests issued back to back without waiting
// are still paired in call order: the Kth push is always delivered to the Kth
// pull.
//
// Either side may end the channel. The producer calls [Controller.Finish] or
// [Controller.Fail]; the consumer calls [Iterator.Close] or [Iterator.Abort].
// Whichever reaches the channel first wins. Every later operation on either
// side resolves at once with a done result instead of blocking, so a producer
// that keeps sending after the consumer went away never leaks.
//
// Example usage:
//
//	it := coro.New(ctx, func(ctx context.Context, c *coro.Controller[int, string, struct{}]) {
//		for _, v := range []int{4, 5, 6, 7} {
//			r, err := c.Send(v).Wait(ctx)
//			if err != nil || r.Done {
//				return
//			}
//		}
//		c.Finish("x")
//	})
//
//	for v, err := range it.All(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(v)
//	}
package coro
