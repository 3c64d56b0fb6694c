package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrRefused is the reason given to a second peer while one is attached.
var ErrRefused = errors.New("tunnel: peer already attached")

// Client serves the websocket endpoint and the local TCP listener.
//
// Exactly one peer may be attached at a time. The TCP listener exists only
// while a peer is attached.
type Client struct {
	// TCPAddr is the local address whose connections are forwarded, for
	// example ":5432".
	TCPAddr string

	// Path is the websocket endpoint path. Requests for other paths get 404.
	Path string

	// ReadBuffer is the chunk size for reading local connections.
	ReadBuffer int

	// OnAttach, if set, is called with the TCP listener address once a peer
	// is attached.
	OnAttach func(addr net.Addr)

	// OnDetach, if set, is called with the final counters when a peer goes
	// away.
	OnDetach func(stats Stats)

	// OnRefuse, if set, is called with the remote address of a peer turned
	// away because another one is attached.
	OnRefuse func(remote string)

	upgrader websocket.Upgrader

	mu  sync.Mutex
	mux *Mux
}

// ServeHTTP upgrades the request and forwards local connections until the
// peer disconnects.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c.Path != "" && r.URL.Path != c.Path {
		http.NotFound(w, r)
		return
	}

	c.mu.Lock()
	if c.mux != nil {
		c.mu.Unlock()
		slog.Warn("tunnel/client: refusing second peer", "remote", r.RemoteAddr)
		if c.OnRefuse != nil {
			c.OnRefuse(r.RemoteAddr)
		}
		http.Error(w, ErrRefused.Error(), http.StatusConflict)
		return
	}
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.mu.Unlock()
		slog.Warn("tunnel/client: upgrade failed", "err", err)
		return
	}
	mux := NewMux(ws, WithReadBuffer(c.ReadBuffer))
	c.mux = mux
	c.mu.Unlock()

	slog.Info("tunnel/client: peer attached", "remote", r.RemoteAddr)
	if err := c.attach(mux); err != nil {
		slog.Error("tunnel/client: peer detached with error", "err", err)
	} else {
		slog.Info("tunnel/client: peer detached")
	}

	c.mu.Lock()
	c.mux = nil
	c.mu.Unlock()
}

func (c *Client) attach(mux *Mux) error {
	defer func() {
		if c.OnDetach != nil {
			c.OnDetach(mux.Stats())
		}
	}()

	ln, err := net.Listen("tcp", c.TCPAddr)
	if err != nil {
		mux.Close()
		return fmt.Errorf("tunnel: listen %s: %w", c.TCPAddr, err)
	}
	defer ln.Close()
	if c.OnAttach != nil {
		c.OnAttach(ln.Addr())
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					slog.Warn("tunnel/client: accept failed", "err", err)
				}
				mux.Close()
				return
			}
			if _, err := mux.Open(conn); err != nil {
				return
			}
		}
	}()

	return mux.Serve()
}

// ListenAndServe serves the endpoint on addr until ctx is cancelled.
func (c *Client) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tunnel: listen %s: %w", addr, err)
	}
	return c.Serve(ctx, ln)
}

// Serve serves the endpoint on ln until ctx is cancelled. It closes ln.
func (c *Client) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: c}
	stop := context.AfterFunc(ctx, func() {
		srv.Close()
		c.detach()
	})
	defer stop()

	slog.Debug("tunnel/client: serving", "addr", ln.Addr(), "path", c.Path)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("tunnel: serve: %w", err)
	}
	return nil
}

// detach drops the attached peer, if any. Hijacked connections are not
// closed by http.Server.Close.
func (c *Client) detach() {
	c.mu.Lock()
	mux := c.mux
	c.mu.Unlock()
	if mux != nil {
		mux.Close()
	}
}
