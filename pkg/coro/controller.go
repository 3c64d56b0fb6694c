package coro

// Controller is the producer side of a channel. It is handed to the producer
// routine and is safe for concurrent use.
type Controller[Y, R, N any] struct {
	ch *channel[Y, R, N]
}

// Send pushes v to the consumer.
//
// The returned future resolves once the consumer has moved past v: with the
// input of the following Next call, or with Done set when the channel is
// terminal. A Done reply means this and every later send is a no-op; the
// producer should stop, but sending anyway never blocks.
func (c *Controller[Y, R, N]) Send(v Y) *Future[Reply[N]] {
	return c.ch.submitPush(&pushReq[Y, R, N]{
		kind:  pushValue,
		value: v,
		reply: newFuture[Reply[N]](),
	})
}

// Finish ends the channel. Exactly one pull observes r as its Return value.
//
// If the channel is already terminal, Finish is a no-op and r is discarded.
// The future always resolves with Done set.
func (c *Controller[Y, R, N]) Finish(r R) *Future[Reply[N]] {
	return c.ch.submitPush(&pushReq[Y, R, N]{
		kind:  pushFinish,
		ret:   r,
		reply: newFuture[Reply[N]](),
	})
}

// Fail ends the channel with a fault. The pull it is paired with returns err
// from Future.Wait. A nil err is replaced with ErrFailed.
//
// If the channel is already terminal, Fail is a no-op and err is discarded.
func (c *Controller[Y, R, N]) Fail(err error) *Future[Reply[N]] {
	if err == nil {
		err = ErrFailed
	}
	return c.ch.submitPush(&pushReq[Y, R, N]{
		kind:  pushFail,
		err:   err,
		reply: newFuture[Reply[N]](),
	})
}

// Done returns a channel that is closed when the channel becomes terminal,
// whichever side ended it.
func (c *Controller[Y, R, N]) Done() <-chan struct{} {
	return c.ch.done
}
