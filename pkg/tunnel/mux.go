package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrMuxClosed is returned by Open after the websocket went away.
var ErrMuxClosed = errors.New("tunnel: mux closed")

// maxID is where the connection id counter wraps.
const maxID = 2_000_000_000

// DialFunc opens the local connection for a connection id first seen on the
// websocket.
type DialFunc func(ctx context.Context, id uint32) (net.Conn, error)

// Stats is a snapshot of the traffic carried by a Mux.
type Stats struct {
	Streams  int64         `json:"streams" yaml:"streams"`
	BytesIn  int64         `json:"bytes_in" yaml:"bytes_in"`
	BytesOut int64         `json:"bytes_out" yaml:"bytes_out"`
	Uptime   time.Duration `json:"uptime" yaml:"uptime"`
}

// MuxOption configures a Mux.
type MuxOption func(*Mux)

// WithDialer makes the mux open a local connection for unknown ids that
// carry data. Without a dialer, frames for unknown ids are dropped.
func WithDialer(dial DialFunc) MuxOption {
	return func(m *Mux) { m.dial = dial }
}

// WithReadBuffer sets the chunk size used to read local connections.
func WithReadBuffer(size int) MuxOption {
	return func(m *Mux) { m.readBuffer = size }
}

type stream struct {
	conn       net.Conn
	chunks     *Chunks
	localDone  bool
	remoteDone bool
}

// Mux multiplexes local connections over one websocket.
type Mux struct {
	ws         *websocket.Conn
	dial       DialFunc
	readBuffer int
	started    time.Time

	ctx    context.Context
	cancel context.CancelFunc

	wmu sync.Mutex

	mu      sync.Mutex
	streams map[uint32]*stream
	counter uint32
	closed  bool

	nstreams atomic.Int64
	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

// NewMux wraps ws. Call Serve to start reading frames.
func NewMux(ws *websocket.Conn, opts ...MuxOption) *Mux {
	m := &Mux{
		ws:      ws,
		streams: make(map[uint32]*stream),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Open forwards conn through the websocket under a fresh connection id.
// The mux owns conn afterwards.
func (m *Mux) Open(conn net.Conn) (uint32, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return 0, ErrMuxClosed
	}
	id := m.nextIDLocked()
	st := m.addLocked(id, conn)
	m.mu.Unlock()

	slog.Debug("tunnel/mux: open", "id", id, "remote", conn.RemoteAddr())
	go m.pump(id, st)
	return id, nil
}

// nextIDLocked returns the next id not in use, wrapping at maxID.
func (m *Mux) nextIDLocked() uint32 {
	for {
		m.counter = m.counter%maxID + 1
		if _, ok := m.streams[m.counter]; !ok {
			return m.counter
		}
	}
}

func (m *Mux) addLocked(id uint32, conn net.Conn) *stream {
	st := &stream{
		conn:   conn,
		chunks: ReadChunks(m.ctx, conn, m.readBuffer),
	}
	m.streams[id] = st
	m.nstreams.Add(1)
	return st
}

// pump forwards everything read from a local connection, then sends the
// close marker.
func (m *Mux) pump(id uint32, st *stream) {
	for chunk, err := range st.chunks.All(m.ctx) {
		if err != nil {
			slog.Debug("tunnel/mux: local read ended", "id", id, "err", err)
			break
		}
		if err := m.send(id, chunk); err != nil {
			slog.Debug("tunnel/mux: forward failed", "id", id, "err", err)
			break
		}
	}
	if err := m.send(id, nil); err != nil {
		slog.Debug("tunnel/mux: close marker failed", "id", id, "err", err)
	}
	m.finish(id, st, true)
}

func (m *Mux) send(id uint32, payload []byte) error {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	if err := m.ws.WriteMessage(websocket.BinaryMessage, Encode(id, payload)); err != nil {
		return fmt.Errorf("tunnel: write frame: %w", err)
	}
	m.bytesOut.Add(int64(len(payload)))
	return nil
}

// finish records that one direction of a stream is over and releases the
// stream once both are.
func (m *Mux) finish(id uint32, st *stream, local bool) {
	m.mu.Lock()
	if local {
		st.localDone = true
	} else {
		st.remoteDone = true
	}
	release := st.localDone && st.remoteDone
	if release && m.streams[id] == st {
		delete(m.streams, id)
	}
	m.mu.Unlock()

	if release {
		slog.Debug("tunnel/mux: stream released", "id", id)
		st.conn.Close()
		return
	}
	if !local {
		closeWrite(st.conn)
	}
}

func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
		return
	}
	conn.Close()
}

func (m *Mux) lookup(id uint32) *stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[id]
}

// accept opens the local side for a connection id announced by the peer.
func (m *Mux) accept(id uint32) (*stream, error) {
	conn, err := m.dial(m.ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil, ErrMuxClosed
	}
	st := m.addLocked(id, conn)
	m.mu.Unlock()

	slog.Debug("tunnel/mux: accepted", "id", id, "local", conn.RemoteAddr())
	go m.pump(id, st)
	return st, nil
}

// Serve reads frames until the websocket fails or the mux is closed, then
// tears down every stream. A normal websocket close returns nil.
func (m *Mux) Serve() error {
	defer m.Close()
	for {
		_, frame, err := m.ws.ReadMessage()
		if err != nil {
			if m.ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("tunnel: read frame: %w", err)
		}
		m.dispatch(frame)
	}
}

func (m *Mux) dispatch(frame []byte) {
	id, payload := Decode(frame)
	if id == 0 {
		return
	}
	st := m.lookup(id)
	if len(payload) == 0 {
		if st != nil {
			m.finish(id, st, false)
		}
		return
	}
	m.bytesIn.Add(int64(len(payload)))
	if st == nil {
		if m.dial == nil {
			return
		}
		var err error
		if st, err = m.accept(id); err != nil {
			slog.Warn("tunnel/mux: dial local failed", "id", id, "err", err)
			m.send(id, nil)
			return
		}
	}
	if _, err := st.conn.Write(payload); err != nil {
		slog.Debug("tunnel/mux: local write failed", "id", id, "err", err)
	}
}

// Close closes the websocket and every local connection. It is safe to call
// more than once.
func (m *Mux) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	streams := m.streams
	m.streams = make(map[uint32]*stream)
	m.mu.Unlock()

	m.cancel()
	for _, st := range streams {
		st.chunks.Close()
		st.conn.Close()
	}
	return m.ws.Close()
}

// Stats returns the traffic counters and the time since NewMux.
func (m *Mux) Stats() Stats {
	return Stats{
		Streams:  m.nstreams.Load(),
		BytesIn:  m.bytesIn.Load(),
		BytesOut: m.bytesOut.Load(),
		Uptime:   time.Since(m.started),
	}
}
