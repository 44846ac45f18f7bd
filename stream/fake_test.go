package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kleeedolinux/stream.go/stream/transport"
)

var errFakeClosed = errors.New("fake conn closed")

type inbound struct {
	mt   transport.MessageType
	data []byte
	err  error
}

// fakeConn is an in-memory transport.Conn. Tests feed reads through
// deliver/fail and inspect writes through frames.
type fakeConn struct {
	reads     chan inbound
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	written  []transport.Frame
	writeErr error
	gate     chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan inbound, 1024),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) deliver(text string) {
	c.reads <- inbound{mt: transport.TextMessage, data: []byte(text)}
}

func (c *fakeConn) deliverBinary(data []byte) {
	c.reads <- inbound{mt: transport.BinaryMessage, data: data}
}

func (c *fakeConn) fail(err error) {
	c.reads <- inbound{err: err}
}

func (c *fakeConn) failWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *fakeConn) ReadMessage() (transport.MessageType, []byte, error) {
	select {
	case r := <-c.reads:
		return r.mt, r.data, r.err
	case <-c.closed:
		return 0, nil, errFakeClosed
	}
}

// blockWrites holds every write until the returned func is called.
func (c *fakeConn) blockWrites() func() {
	gate := make(chan struct{})

	c.mu.Lock()
	c.gate = gate
	c.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (c *fakeConn) WriteFrame(f transport.Frame) error {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-c.closed:
			return errFakeClosed
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, f)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) frames() []transport.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]transport.Frame, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) framesOfType(t transport.MessageType) []transport.Frame {
	var out []transport.Frame
	for _, f := range c.frames() {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	err   error
	dials atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.dials.Add(1)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}

	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// manualTicks replaces the heartbeat ticker with a channel the test drives.
type manualTicks struct {
	ch      chan time.Time
	stopped atomic.Int32
}

func newManualTicks() *manualTicks {
	return &manualTicks{ch: make(chan time.Time)}
}

func (m *manualTicks) factory(time.Duration) (<-chan time.Time, func()) {
	return m.ch, func() { m.stopped.Add(1) }
}

// advance delivers one tick and reports whether a heartbeat took it.
func (m *manualTicks) advance() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(time.Second):
		return false
	}
}

func newTestClient(opts ...ClientOption) (*Client, *fakeDialer, *manualTicks) {
	dialer := &fakeDialer{}
	ticks := newManualTicks()

	c := NewClient(append([]ClientOption{WithDialer(dialer)}, opts...)...)
	c.tick = ticks.factory
	return c, dialer, ticks
}

// attachSession installs a connected session without starting its tasks, so
// tests can drive a single loop directly.
func attachSession(c *Client, conn *fakeConn) *session {
	s := newSession(c, conn)

	c.mu.Lock()
	c.sess = s
	c.connected = true
	c.mu.Unlock()

	return s
}
