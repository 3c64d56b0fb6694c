package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/haivivi/coiter/pkg/coro"
)

// DefaultReadBuffer is the chunk size used when none is configured.
const DefaultReadBuffer = 32 * 1024

// Chunks is a coro iterator over the data read from a connection. Its finish
// value is the total number of bytes read.
type Chunks = coro.Iterator[[]byte, int64, struct{}]

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// ReadChunks reads r on a producer goroutine and pushes each chunk through a
// coro channel.
//
// A chunk is only valid until the next pull; the read buffer is reused once
// the consumer moves on. EOF finishes the channel with the byte count and any
// other read error fails it, as does cancelling ctx while a chunk waits to be
// pulled. When r supports read deadlines, cancelling ctx or closing the
// iterator interrupts a blocked Read.
func ReadChunks(ctx context.Context, r io.Reader, size int) *Chunks {
	if size <= 0 {
		size = DefaultReadBuffer
	}
	return coro.New(ctx, func(ctx context.Context, c *coro.Controller[[]byte, int64, struct{}]) {
		if d, ok := r.(readDeadliner); ok {
			stop := context.AfterFunc(ctx, func() {
				d.SetReadDeadline(time.Now())
			})
			defer stop()
		}

		buf := make([]byte, size)
		var total int64
		for {
			n, err := r.Read(buf)
			if n > 0 {
				total += int64(n)
				reply, werr := c.Send(buf[:n]).Wait(ctx)
				if werr != nil {
					c.Fail(werr)
					return
				}
				if reply.Done {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					c.Finish(total)
				} else {
					c.Fail(fmt.Errorf("tunnel: read: %w", err))
				}
				return
			}
		}
	})
}
