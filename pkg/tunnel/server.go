package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReconnectDelay is the pause between connection attempts.
const DefaultReconnectDelay = time.Second

// Server dials a Client endpoint and connects forwarded connections to a
// local target.
type Server struct {
	// URL is the endpoint printed by the client, http(s) or ws(s).
	URL string

	// TCPAddr is the local target, for example "localhost:5432".
	TCPAddr string

	// ReconnectDelay is the pause before redialing; DefaultReconnectDelay
	// when zero.
	ReconnectDelay time.Duration

	// ReadBuffer is the chunk size for reading local connections.
	ReadBuffer int

	// Dialer dials the websocket; websocket.DefaultDialer when nil.
	Dialer *websocket.Dialer

	// OnSession, if set, is called with the final counters of every
	// websocket session.
	OnSession func(stats Stats)

	// OnError, if set, is called when a session fails or cannot be
	// established, before the reconnect delay.
	OnError func(err error)
}

// Run keeps a websocket session up until ctx is cancelled. It returns nil
// on cancellation and an error only if the URL is unusable.
func (s *Server) Run(ctx context.Context) error {
	wsURL, err := WebSocketURL(s.URL)
	if err != nil {
		return err
	}
	delay := s.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	for {
		if err := s.session(ctx, wsURL); err != nil && ctx.Err() == nil {
			slog.Error("tunnel/server: connection failed", "url", wsURL, "err", err)
			if s.OnError != nil {
				s.OnError(err)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (s *Server) session(ctx context.Context, wsURL string) error {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("tunnel: dial %s: %w", wsURL, err)
	}
	slog.Info("tunnel/server: connected", "url", wsURL)

	mux := NewMux(ws,
		WithReadBuffer(s.ReadBuffer),
		WithDialer(func(ctx context.Context, id uint32) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", s.TCPAddr)
		}),
	)
	stop := context.AfterFunc(ctx, func() { mux.Close() })
	defer stop()

	err = mux.Serve()
	if s.OnSession != nil {
		s.OnSession(mux.Stats())
	}
	slog.Info("tunnel/server: disconnected", "url", wsURL)
	return err
}
