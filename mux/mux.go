// Package mux implements the connection multiplexer shared by the tracker
// and each peer's inbound file server.
//
// Per-connection reader goroutines feed a single event channel; one loop
// goroutine registers and unregisters connections and invokes the handler.
// Handlers therefore run strictly sequentially, one readable event at a
// time, and handler state needs no locking as long as it is touched only
// from handlers. A blocking handler stalls every connection on its mux.
package mux

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/fabricionaweb/pico-share/wire"
)

// Handler turns one request frame into one reply frame. remote is the
// connection's remote IP, address only: it is derived from the transport,
// never supplied by the peer.
type Handler func(remote string, frame []byte) []byte

// AcceptFilter vets a new connection by its remote IP before it is
// registered. Returning false closes the connection immediately.
type AcceptFilter func(remote string) bool

type event struct {
	conn  net.Conn
	frame []byte
	err   error
}

// Mux owns a set of registered connections and dispatches their frames to a
// single handler.
type Mux struct {
	handler Handler
	accept  AcceptFilter
	conns   map[net.Conn]string // conn -> remote IP; loop goroutine only
	joins   chan net.Conn
	events  chan event
	done    chan struct{}
	active  atomic.Int32
}

// Option configures a Mux.
type Option func(*Mux)

// WithAcceptFilter installs f as the accept-time connection filter.
func WithAcceptFilter(f AcceptFilter) Option {
	return func(m *Mux) { m.accept = f }
}

// New creates a Mux dispatching to h.
func New(h Handler, opts ...Option) *Mux {
	m := &Mux{
		handler: h,
		conns:   make(map[net.Conn]string),
		joins:   make(chan net.Conn),
		events:  make(chan event),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Active reports the number of registered connections.
func (m *Mux) Active() int {
	return int(m.active.Load())
}

// Serve accepts connections on ln and runs the dispatch loop until ctx is
// canceled. It owns ln and closes it on return, along with every registered
// connection. Serve must be called at most once per Mux.
func (m *Mux) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	go m.acceptLoop(ln)

	defer func() {
		close(m.done)
		for c := range m.conns {
			m.unregister(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case conn := <-m.joins:
			m.register(conn)
		case ev := <-m.events:
			m.dispatch(ev)
		}
	}
}

func (m *Mux) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed during shutdown, or a transient accept
			// failure; either way this goroutine is done.
			return
		}
		select {
		case m.joins <- conn:
		case <-m.done:
			conn.Close()
			return
		}
	}
}

func (m *Mux) register(conn net.Conn) {
	remote := remoteIP(conn)
	if m.accept != nil && !m.accept(remote) {
		conn.Close()
		return
	}
	m.conns[conn] = remote
	m.active.Add(1)
	go m.readLoop(conn)
}

// unregister is only ever reached once per connection: dispatch looks the
// connection up first, and late events for a removed connection are dropped.
func (m *Mux) unregister(conn net.Conn) {
	delete(m.conns, conn)
	m.active.Add(-1)
	conn.Close()
}

// readLoop delivers frames (and the terminal read error) to the dispatch
// loop. It exits on the first read error, which includes the connection
// being closed from the loop side.
func (m *Mux) readLoop(conn net.Conn) {
	for {
		frame, err := wire.ReadFrame(conn)
		select {
		case m.events <- event{conn: conn, frame: frame, err: err}:
		case <-m.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (m *Mux) dispatch(ev event) {
	remote, ok := m.conns[ev.conn]
	if !ok {
		return
	}

	// io.EOF here is the peer-initiated close; anything else is treated
	// the same way, as a disconnect.
	if ev.err != nil {
		m.unregister(ev.conn)
		return
	}

	reply := m.handler(remote, ev.frame)
	if err := wire.WriteFrame(ev.conn, reply); err != nil {
		m.unregister(ev.conn)
	}
}

// remoteIP strips the port from a connection's remote endpoint.
func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
