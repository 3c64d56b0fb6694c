package coro

import (
	"context"
	"log/slog"
	"sync"
)

type pushKind uint8

const (
	pushValue pushKind = iota
	pushFinish
	pushFail
	// pushEnd is submitted on behalf of a producer that returned without
	// finishing.
	pushEnd
)

type pushReq[Y, R, N any] struct {
	kind  pushKind
	value Y
	ret   R
	err   error
	reply *Future[Reply[N]]
}

type pullKind uint8

const (
	pullNext pullKind = iota
	pullClose
	pullAbort
)

type pullReq[Y, R, N any] struct {
	kind   pullKind
	input  N
	err    error
	result *Future[Result[Y, R]]
}

// channel pairs pull requests with push requests in arrival order.
//
// At most one of pulls and pushes is non-empty. A close or abort request
// takes effect on arrival only when no next request is queued before it;
// otherwise it waits its turn behind them.
type channel[Y, R, N any] struct {
	producer func(context.Context, *Controller[Y, R, N])
	ctx      context.Context
	cancel   context.CancelCauseFunc
	done     chan struct{}

	mu     sync.Mutex
	state  State
	ending bool
	pulls  fifo[*pullReq[Y, R, N]]
	pushes fifo[*pushReq[Y, R, N]]
	// parked is the value push whose payload reached a pull. It is resumed
	// by the pull that follows.
	parked *pushReq[Y, R, N]
}

func newChannel[Y, R, N any](ctx context.Context, producer func(context.Context, *Controller[Y, R, N])) *channel[Y, R, N] {
	ch := &channel[Y, R, N]{
		producer: producer,
		done:     make(chan struct{}),
	}
	ch.ctx, ch.cancel = context.WithCancelCause(ctx)
	return ch
}

func (ch *channel[Y, R, N]) submitPush(req *pushReq[Y, R, N]) *Future[Reply[N]] {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.pushLocked(req)
	return req.reply
}

func (ch *channel[Y, R, N]) pushLocked(req *pushReq[Y, R, N]) {
	if ch.state == Terminal {
		req.reply.resolve(Reply[N]{Done: true}, nil)
		return
	}
	if req.kind != pushValue {
		ch.ending = true
	}
	if p, ok := ch.pulls.pop(); ok {
		if p.kind != pullNext {
			ch.end(p)
			req.reply.resolve(Reply[N]{Done: true}, nil)
			return
		}
		ch.deliver(p, req)
		return
	}
	ch.pushes.push(req)
}

func (ch *channel[Y, R, N]) submitPull(req *pullReq[Y, R, N]) *Future[Result[Y, R]] {
	ch.mu.Lock()
	start := ch.pullLocked(req)
	ch.mu.Unlock()
	if start {
		slog.Debug("coro/channel: starting producer")
		go ch.run()
	}
	return req.result
}

// pullLocked reports whether the producer must be launched.
func (ch *channel[Y, R, N]) pullLocked(req *pullReq[Y, R, N]) bool {
	if ch.state == Terminal {
		req.result.resolve(Result[Y, R]{Done: true}, nil)
		return false
	}
	if req.kind != pullNext {
		if ch.pulls.len() > 0 {
			ch.pulls.push(req)
		} else {
			ch.end(req)
		}
		return false
	}
	if ch.parked != nil {
		ch.resume(req.input)
	}
	if s, ok := ch.pushes.pop(); ok {
		ch.deliver(req, s)
		return false
	}
	ch.pulls.push(req)
	if ch.state == NotStarted {
		ch.state = Running
		return true
	}
	return false
}

// deliver hands push s to next request p.
func (ch *channel[Y, R, N]) deliver(p *pullReq[Y, R, N], s *pushReq[Y, R, N]) {
	switch s.kind {
	case pushValue:
		p.result.resolve(Result[Y, R]{Value: s.value}, nil)
		ch.parked = s
		next, ok := ch.pulls.peek()
		switch {
		case !ok:
		case next.kind == pullNext:
			ch.resume(next.input)
		default:
			// A close or abort queued behind p ends the channel now that
			// p has its value.
			ch.pulls.pop()
			ch.end(next)
		}
	case pushFinish:
		p.result.resolve(Result[Y, R]{Done: true, Return: s.ret, Returned: true}, nil)
		s.reply.resolve(Reply[N]{Done: true}, nil)
		ch.terminate(ErrFinished)
	case pushEnd:
		p.result.resolve(Result[Y, R]{Done: true}, nil)
		s.reply.resolve(Reply[N]{Done: true}, nil)
		ch.terminate(ErrFinished)
	case pushFail:
		p.result.resolve(Result[Y, R]{Done: true}, s.err)
		s.reply.resolve(Reply[N]{Done: true}, nil)
		ch.terminate(s.err)
	}
}

// resume wakes the parked push with the input of the pull that moved past it.
func (ch *channel[Y, R, N]) resume(in N) {
	s := ch.parked
	ch.parked = nil
	s.reply.resolve(Reply[N]{Value: in}, nil)
}

// end applies a close or abort request that reached the head of the line.
func (ch *channel[Y, R, N]) end(req *pullReq[Y, R, N]) {
	cause := ErrClosed
	if req.kind == pullAbort {
		cause = req.err
	}
	ch.terminate(cause)
	req.result.resolve(Result[Y, R]{Done: true}, req.err)
}

func (ch *channel[Y, R, N]) terminate(cause error) {
	ch.state = Terminal
	if s := ch.parked; s != nil {
		ch.parked = nil
		s.reply.resolve(Reply[N]{Done: true}, nil)
	}
	ch.pushes.drain(func(s *pushReq[Y, R, N]) {
		s.reply.resolve(Reply[N]{Done: true}, nil)
	})
	ch.pulls.drain(func(p *pullReq[Y, R, N]) {
		p.result.resolve(Result[Y, R]{Done: true}, nil)
	})
	close(ch.done)
	ch.cancel(cause)
}

// shutdown ends the channel at once, ahead of any queued request. It is used
// by consumers that stopped waiting on their own pending next.
func (ch *channel[Y, R, N]) shutdown() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.state != Terminal {
		ch.terminate(ErrClosed)
	}
}

func (ch *channel[Y, R, N]) run() {
	ch.producer(ch.ctx, &Controller[Y, R, N]{ch: ch})

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.state == Terminal || ch.ending {
		return
	}
	// Returning without Finish or Fail breaks the producer contract. End the
	// channel so pending pulls are not left hanging.
	slog.Warn("coro/channel: producer returned without finish or fail")
	ch.pushLocked(&pushReq[Y, R, N]{kind: pushEnd, reply: newFuture[Reply[N]]()})
}

func (ch *channel[Y, R, N]) currentState() State {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}
