package coro

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type none = struct{}

// trace records events from both sides of a channel.
type trace struct {
	mu      sync.Mutex
	entries []string
}

func (tr *trace) add(format string, args ...any) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.entries = append(tr.entries, fmt.Sprintf(format, args...))
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return slices.Clone(tr.entries)
}

func checkTrace(t *testing.T, tr *trace, want []string) {
	t.Helper()
	got := tr.get()
	if !slices.Equal(got, want) {
		t.Fatalf("trace mismatch\n got: %q\nwant: %q", got, want)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for producer to return")
	}
}

// counting sends 4, 5, 6 and 7 and stops at the first done reply.
func counting(tr *trace, exited chan struct{}, stopOnDone bool, end func(ctx context.Context, c *Controller[int, string, none])) func(context.Context, *Controller[int, string, none]) {
	return func(ctx context.Context, c *Controller[int, string, none]) {
		defer close(exited)
		tr.add("start")
		for _, x := range []int{4, 5, 6, 7} {
			tr.add("yielding %d", x)
			r, err := c.Send(x).Wait(ctx)
			if err != nil {
				tr.add("error %v", err)
				return
			}
			tr.add("yielded done=%v", r.Done)
			if r.Done && stopOnDone {
				return
			}
		}
		end(ctx, c)
	}
}

func finishWith(tr *trace, v string) func(context.Context, *Controller[int, string, none]) {
	return func(ctx context.Context, c *Controller[int, string, none]) {
		tr.add("closing %s", v)
		r, _ := c.Finish(v).Wait(ctx)
		tr.add("closed done=%v", r.Done)
	}
}

func TestSendReturnsAfterValueIsPulled(t *testing.T) {
	ctx := testContext(t)
	tr := &trace{}
	exited := make(chan struct{})
	it := New(ctx, counting(tr, exited, true, finishWith(tr, "x")))

	tr.add("begin")
	for {
		r, err := it.Next(none{}).Wait(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if r.Done {
			waitClosed(t, exited)
			if !r.Returned {
				t.Fatal("final pull should carry the finish value")
			}
			tr.add("got %s", r.Return)
			break
		}
		tr.add("got %d", r.Value)
	}
	tr.add("end")

	checkTrace(t, tr, []string{
		"begin",
		"start",
		"yielding 4",
		"got 4",
		"yielded done=false",
		"yielding 5",
		"got 5",
		"yielded done=false",
		"yielding 6",
		"got 6",
		"yielded done=false",
		"yielding 7",
		"got 7",
		"yielded done=false",
		"closing x",
		"closed done=true",
		"got x",
		"end",
	})

	r, err := it.Next(none{}).Wait(ctx)
	if err != nil || !r.Done || r.Returned {
		t.Fatalf("pull after finish = %+v, %v; want plain done", r, err)
	}
	if s := it.State(); s != Terminal {
		t.Fatalf("state = %v, want terminal", s)
	}
}

func TestFailSurfacesToConsumer(t *testing.T) {
	ctx := testContext(t)
	tr := &trace{}
	exited := make(chan struct{})
	errX := errors.New("x")
	it := New(ctx, counting(tr, exited, true, func(ctx context.Context, c *Controller[int, string, none]) {
		tr.add("throwing x")
		r, _ := c.Fail(errX).Wait(ctx)
		tr.add("thrown done=%v", r.Done)
	}))

	tr.add("begin")
	var caught error
	for v, err := range it.All(ctx) {
		if err != nil {
			caught = err
			break
		}
		tr.add("got %d", v)
	}
	waitClosed(t, exited)
	if !errors.Is(caught, errX) {
		t.Fatalf("caught %v, want %v", caught, errX)
	}
	tr.add("caught")

	checkTrace(t, tr, []string{
		"begin",
		"start",
		"yielding 4",
		"got 4",
		"yielded done=false",
		"yielding 5",
		"got 5",
		"yielded done=false",
		"yielding 6",
		"got 6",
		"yielded done=false",
		"yielding 7",
		"got 7",
		"yielded done=false",
		"throwing x",
		"thrown done=true",
		"caught",
	})
}

func TestBreakingLoopReleasesProducer(t *testing.T) {
	ctx := testContext(t)
	tr := &trace{}
	exited := make(chan struct{})
	it := New(ctx, counting(tr, exited, true, finishWith(tr, "x")))

	tr.add("begin")
	for v, err := range it.All(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		tr.add("got %d", v)
		break
	}
	waitClosed(t, exited)
	tr.add("end")

	checkTrace(t, tr, []string{
		"begin",
		"start",
		"yielding 4",
		"got 4",
		"yielded done=true",
		"end",
	})
}

func TestClosingClosedChannelIsNoop(t *testing.T) {
	ctx := testContext(t)
	tr := &trace{}
	exited := make(chan struct{})
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		defer close(exited)
		tr.add("start")
		for _, x := range []int{4, 5, 6, 7} {
			tr.add("yielding %d", x)
			r, _ := c.Send(x).Wait(ctx)
			tr.add("yielded done=%v", r.Done)
			if r.Done {
				break
			}
		}
		finishWith(tr, "x")(ctx, c)
	})

	tr.add("begin")
	for v := range it.All(ctx) {
		tr.add("got %d", v)
		break
	}
	waitClosed(t, exited)
	tr.add("end")

	checkTrace(t, tr, []string{
		"begin",
		"start",
		"yielding 4",
		"got 4",
		"yielded done=true",
		"closing x",
		"closed done=true",
		"end",
	})
}

func TestFailOnClosedChannelIsNoop(t *testing.T) {
	ctx := testContext(t)
	tr := &trace{}
	exited := make(chan struct{})
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		defer close(exited)
		tr.add("start")
		for _, x := range []int{4, 5, 6, 7} {
			tr.add("yielding %d", x)
			r, _ := c.Send(x).Wait(ctx)
			tr.add("yielded done=%v", r.Done)
			if r.Done {
				tr.add("throwing a")
				r, err := c.Fail(errors.New("a")).Wait(ctx)
				tr.add("thrown a done=%v err=%v", r.Done, err)
			}
		}
		finishWith(tr, "x")(ctx, c)
	})

	tr.add("begin")
	for v := range it.All(ctx) {
		tr.add("got %d", v)
		break
	}
	waitClosed(t, exited)
	tr.add("end")

	want := []string{"begin", "start", "yielding 4", "got 4"}
	for i, x := range []int{4, 5, 6, 7} {
		if i > 0 {
			want = append(want, fmt.Sprintf("yielding %d", x))
		}
		want = append(want, "yielded done=true", "throwing a", "thrown a done=true err=<nil>")
	}
	want = append(want, "closing x", "closed done=true", "end")
	checkTrace(t, tr, want)
}

func TestSendOnClosedChannelIsNoop(t *testing.T) {
	ctx := testContext(t)
	tr := &trace{}
	exited := make(chan struct{})
	it := New(ctx, counting(tr, exited, false, finishWith(tr, "x")))

	tr.add("begin")
	for v := range it.All(ctx) {
		tr.add("got %d", v)
		break
	}
	waitClosed(t, exited)
	tr.add("end")

	checkTrace(t, tr, []string{
		"begin",
		"start",
		"yielding 4",
		"got 4",
		"yielded done=true",
		"yielding 5",
		"yielded done=true",
		"yielding 6",
		"yielded done=true",
		"yielding 7",
		"yielded done=true",
		"closing x",
		"closed done=true",
		"end",
	})
}

func TestConcurrentNext(t *testing.T) {
	ctx := testContext(t)
	tr := &trace{}
	exited := make(chan struct{})
	it := New(ctx, counting(tr, exited, true, finishWith(tr, "x")))

	var fs []*Future[Result[int, string]]
	for range 8 {
		fs = append(fs, it.Next(none{}))
	}
	got, err := WaitAll(ctx, fs...)
	if err != nil {
		t.Fatal(err)
	}
	waitClosed(t, exited)

	want := []Result[int, string]{
		{Value: 4},
		{Value: 5},
		{Value: 6},
		{Value: 7},
		{Done: true, Return: "x", Returned: true},
		{Done: true},
		{Done: true},
		{Done: true},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("results = %+v\nwant %+v", got, want)
	}
	checkTrace(t, tr, []string{
		"start",
		"yielding 4",
		"yielded done=false",
		"yielding 5",
		"yielded done=false",
		"yielding 6",
		"yielded done=false",
		"yielding 7",
		"yielded done=false",
		"closing x",
		"closed done=true",
	})
}

func batchedSends(ctx context.Context, c *Controller[int, string, none]) {
	var fs []*Future[Reply[none]]
	for _, x := range []int{4, 5, 6, 7} {
		fs = append(fs, c.Send(x))
	}
	if _, err := WaitAll(ctx, fs...); err != nil {
		c.Fail(err)
		return
	}
	c.Finish("x").Wait(ctx)
}

func TestConcurrentSend(t *testing.T) {
	ctx := testContext(t)
	it := New(ctx, batchedSends)

	vals, ret, err := Collect(ctx, it)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{4, 5, 6, 7}; !slices.Equal(vals, want) {
		t.Fatalf("values = %v, want %v", vals, want)
	}
	if ret != "x" {
		t.Fatalf("return = %q, want %q", ret, "x")
	}
}

func TestConcurrentSendWithBreak(t *testing.T) {
	ctx := testContext(t)
	exited := make(chan struct{})
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		defer close(exited)
		batchedSends(ctx, c)
	})

	var got []int
	for v := range it.All(ctx) {
		got = append(got, v)
		break
	}
	waitClosed(t, exited)
	if !slices.Equal(got, []int{4}) {
		t.Fatalf("got %v, want [4]", got)
	}
}

func TestFIFOPairing(t *testing.T) {
	for _, n := range []int{1, 2, 10, 100} {
		t.Run(fmt.Sprintf("pulls-first/n=%d", n), func(t *testing.T) {
			ctx := testContext(t)
			it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
				for i := range n {
					if r, _ := c.Send(i).Wait(ctx); r.Done {
						return
					}
				}
				c.Finish("end")
			})
			var fs []*Future[Result[int, string]]
			for range n + 1 {
				fs = append(fs, it.Next(none{}))
			}
			got, err := WaitAll(ctx, fs...)
			if err != nil {
				t.Fatal(err)
			}
			for i := range n {
				if got[i].Done || got[i].Value != i {
					t.Fatalf("pull %d = %+v, want value %d", i, got[i], i)
				}
			}
			if last := got[n]; !last.Returned || last.Return != "end" {
				t.Fatalf("last pull = %+v, want finish value", last)
			}
		})

		t.Run(fmt.Sprintf("sends-first/n=%d", n), func(t *testing.T) {
			ctx := testContext(t)
			sent := make(chan struct{})
			it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
				var fs []*Future[Reply[none]]
				for i := range n {
					fs = append(fs, c.Send(i))
				}
				fs = append(fs, c.Finish("end"))
				close(sent)
				WaitAll(ctx, fs...)
			})
			first := it.Next(none{})
			<-sent
			fs := []*Future[Result[int, string]]{first}
			for range n {
				fs = append(fs, it.Next(none{}))
			}
			got, err := WaitAll(ctx, fs...)
			if err != nil {
				t.Fatal(err)
			}
			for i := range n {
				if got[i].Value != i {
					t.Fatalf("pull %d = %+v, want value %d", i, got[i], i)
				}
			}
			if last := got[n]; !last.Returned || last.Return != "end" {
				t.Fatalf("last pull = %+v, want finish value", last)
			}
		})
	}
}

func TestNextInputReachesSend(t *testing.T) {
	ctx := testContext(t)
	replies := make(chan int, 3)
	it := New(ctx, func(ctx context.Context, c *Controller[string, none, int]) {
		defer close(replies)
		for _, s := range []string{"a", "b", "c"} {
			r, err := c.Send(s).Wait(ctx)
			if err != nil || r.Done {
				return
			}
			replies <- r.Value
		}
		c.Finish(none{})
	})

	for i, in := range []int{100, 1, 2, 3} {
		r, err := it.Next(in).Wait(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if i == 3 && !r.Done {
			t.Fatalf("pull %d = %+v, want done", i, r)
		}
	}
	var got []int
	for v := range replies {
		got = append(got, v)
	}
	if want := []int{1, 2, 3}; !slices.Equal(got, want) {
		t.Fatalf("send replies = %v, want %v", got, want)
	}
}

func TestTerminationIsIdempotent(t *testing.T) {
	errX := errors.New("x")
	ends := map[string]func(it *Iterator[int, string, none], c *Controller[int, string, none]){
		"finish": func(it *Iterator[int, string, none], c *Controller[int, string, none]) { c.Finish("f") },
		"fail":   func(it *Iterator[int, string, none], c *Controller[int, string, none]) { c.Fail(errX) },
		// Close and Abort queue behind the pending first pull, which the
		// send then answers.
		"close": func(it *Iterator[int, string, none], c *Controller[int, string, none]) {
			it.Close()
			c.Send(0)
		},
		"abort": func(it *Iterator[int, string, none], c *Controller[int, string, none]) {
			it.Abort(errX)
			c.Send(0)
		},
	}
	for name, end := range ends {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			ctrl := make(chan *Controller[int, string, none], 1)
			it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
				ctrl <- c
				<-ctx.Done()
			})
			first := it.Next(none{})
			c := <-ctrl
			end(it, c)
			first.Wait(ctx)

			select {
			case <-it.Done():
			default:
				t.Fatal("iterator should be done")
			}
			for i, f := range []*Future[Reply[none]]{c.Send(1), c.Finish("late"), c.Fail(errX)} {
				if !f.Resolved() {
					t.Fatalf("push %d blocked after %s", i, name)
				}
				if r, err := f.Wait(ctx); err != nil || !r.Done {
					t.Fatalf("push %d = %+v, %v; want done", i, r, err)
				}
			}
			for i, f := range []*Future[Result[int, string]]{it.Next(none{}), it.Close(), it.Abort(errX)} {
				if !f.Resolved() {
					t.Fatalf("pull %d blocked after %s", i, name)
				}
				r, err := f.Wait(ctx)
				if err != nil || !r.Done || r.Returned {
					t.Fatalf("pull %d = %+v, %v; want plain done", i, r, err)
				}
			}
		})
	}
}

func TestSingleWinner(t *testing.T) {
	for i := range 200 {
		ctx := testContext(t)
		finished := make(chan *Future[Reply[none]], 1)
		it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
			c.Send(1)
			finished <- c.Finish("p")
		})
		if r, err := it.Next(none{}).Wait(ctx); err != nil || r.Value != 1 {
			t.Fatalf("iteration %d: first pull = %+v, %v", i, r, err)
		}

		var next, closed Result[int, string]
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			next, _ = it.Next(none{}).Wait(ctx)
		}()
		go func() {
			defer wg.Done()
			closed, _ = it.Close().Wait(ctx)
		}()
		wg.Wait()

		if !next.Done || !closed.Done {
			t.Fatalf("iteration %d: next=%+v close=%+v; both should be done", i, next, closed)
		}
		if closed.Returned {
			t.Fatalf("iteration %d: close observed the finish value", i)
		}
		if next.Returned && next.Return != "p" {
			t.Fatalf("iteration %d: return = %q", i, next.Return)
		}
		if r, _ := (<-finished).Wait(ctx); !r.Done {
			t.Fatalf("iteration %d: finish reply = %+v", i, r)
		}
	}
}

func TestCloseUnblocksPendingSend(t *testing.T) {
	ctx := testContext(t)
	reply := make(chan Reply[none], 1)
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		r, _ := c.Send(1).Wait(ctx)
		reply <- r
	})
	if r, _ := it.Next(none{}).Wait(ctx); r.Value != 1 {
		t.Fatalf("value = %d", r.Value)
	}
	select {
	case r := <-reply:
		t.Fatalf("send resolved early: %+v", r)
	default:
	}
	if r, err := it.Close().Wait(ctx); err != nil || !r.Done {
		t.Fatalf("close = %+v, %v", r, err)
	}
	select {
	case r := <-reply:
		if !r.Done {
			t.Fatalf("send reply = %+v, want done", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("send still blocked after close")
	}
}

func TestCloseWaitsForQueuedNext(t *testing.T) {
	ctx := testContext(t)
	step := make(chan struct{})
	replies := make(chan Reply[none], 2)
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		<-step
		for _, x := range []int{1, 2} {
			r, _ := c.Send(x).Wait(ctx)
			replies <- r
		}
		close(replies)
	})
	n1 := it.Next(none{})
	n2 := it.Next(none{})
	cl := it.Close()
	n3 := it.Next(none{})
	for i, f := range []*Future[Result[int, string]]{n1, n2, cl, n3} {
		if f.Resolved() {
			t.Fatalf("request %d resolved before the producer sent", i)
		}
	}
	close(step)

	got, err := WaitAll(ctx, n1, n2, cl, n3)
	if err != nil {
		t.Fatal(err)
	}
	want := []Result[int, string]{{Value: 1}, {Value: 2}, {Done: true}, {Done: true}}
	if !slices.Equal(got, want) {
		t.Fatalf("results = %+v\nwant %+v", got, want)
	}

	var rs []Reply[none]
	for r := range replies {
		rs = append(rs, r)
	}
	if want := []Reply[none]{{}, {Done: true}}; !slices.Equal(rs, want) {
		t.Fatalf("replies = %+v, want %+v", rs, want)
	}
}

func TestEndQueuesBehindNext(t *testing.T) {
	errX := errors.New("stop")
	tests := []struct {
		name    string
		end     func(it *Iterator[int, string, none]) *Future[Result[int, string]]
		wantErr error
	}{
		{"close", func(it *Iterator[int, string, none]) *Future[Result[int, string]] { return it.Close() }, nil},
		{"abort", func(it *Iterator[int, string, none]) *Future[Result[int, string]] { return it.Abort(errX) }, errX},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			replies := make(chan Reply[none], 2)
			it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
				time.Sleep(20 * time.Millisecond)
				r, _ := c.Send(4).Wait(ctx)
				replies <- r
				r, _ = c.Finish("x").Wait(ctx)
				replies <- r
			})
			next := it.Next(none{})
			end := tt.end(it)

			r, err := next.Wait(ctx)
			if err != nil || r.Done || r.Value != 4 {
				t.Fatalf("next = %+v, %v; want value 4", r, err)
			}
			r, err = end.Wait(ctx)
			if !errors.Is(err, tt.wantErr) || !r.Done || r.Returned {
				t.Fatalf("%s = %+v, %v; want done with %v", tt.name, r, err, tt.wantErr)
			}
			for i := range 2 {
				if r := <-replies; !r.Done {
					t.Fatalf("push %d reply = %+v, want done", i, r)
				}
			}
		})
	}
}

func TestAbortSurfacesError(t *testing.T) {
	ctx := testContext(t)
	errX := errors.New("stop")
	cause := make(chan error, 1)
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		r, _ := c.Send(4).Wait(ctx)
		if !r.Done {
			t.Error("send should be released with done")
		}
		<-ctx.Done()
		cause <- context.Cause(ctx)
	})
	if r, _ := it.Next(none{}).Wait(ctx); r.Value != 4 {
		t.Fatalf("value = %d", r.Value)
	}
	r, err := it.Abort(errX).Wait(ctx)
	if !errors.Is(err, errX) || !r.Done {
		t.Fatalf("abort = %+v, %v; want done with %v", r, err, errX)
	}
	if err := <-cause; !errors.Is(err, errX) {
		t.Fatalf("producer context cause = %v", err)
	}
	if _, err := it.Abort(errX).Wait(ctx); err != nil {
		t.Fatalf("abort on terminal channel = %v, want nil", err)
	}
}

func TestProducerStartsLazily(t *testing.T) {
	ctx := testContext(t)
	var started atomic.Bool
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		started.Store(true)
		c.Finish("")
	})
	if s := it.State(); s != NotStarted {
		t.Fatalf("state = %v, want not-started", s)
	}
	if r, err := it.Close().Wait(ctx); err != nil || !r.Done {
		t.Fatalf("close = %+v, %v", r, err)
	}
	if s := it.State(); s != Terminal {
		t.Fatalf("state = %v, want terminal", s)
	}
	it.Next(none{}).Wait(ctx)
	if started.Load() {
		t.Fatal("producer started on a closed channel")
	}
}

func TestProducerReturnWithoutFinish(t *testing.T) {
	ctx := testContext(t)
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		c.Send(1)
	})
	vals, ret, err := Collect(ctx, it)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(vals, []int{1}) || ret != "" {
		t.Fatalf("collect = %v, %q", vals, ret)
	}
}

func TestProducerContextCause(t *testing.T) {
	ctx := testContext(t)
	cause := make(chan error, 1)
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		c.Send(1)
		<-c.Done()
		<-ctx.Done()
		cause <- context.Cause(ctx)
	})
	it.Next(none{})
	it.Close()
	if err := <-cause; !errors.Is(err, ErrClosed) {
		t.Fatalf("cause = %v, want %v", err, ErrClosed)
	}
}

func TestAllStopsOnContext(t *testing.T) {
	ctx := testContext(t)
	exited := make(chan struct{})
	it := New(ctx, func(ctx context.Context, c *Controller[int, string, none]) {
		defer close(exited)
		<-ctx.Done()
	})
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	var errs []error
	for _, err := range it.All(cancelled) {
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], context.Canceled) {
		t.Fatalf("errors = %v", errs)
	}
	waitClosed(t, exited)
	if s := it.State(); s != Terminal {
		t.Fatalf("state = %v, want terminal", s)
	}
}
