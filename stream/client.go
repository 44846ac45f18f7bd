package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kleeedolinux/stream.go/debug"
	"github.com/kleeedolinux/stream.go/stream/transport"
)

// Client owns one streaming connection at a time and exposes it through a
// non-blocking API. It can be connected and disconnected repeatedly.
type Client struct {
	mu        sync.Mutex
	id        string
	connected bool
	closed    bool
	sess      *session

	events *eventQueue
	ids    channelIDs

	cfg           Config
	dialer        transport.Dialer
	metrics       *Metrics
	onDecodeError func(frame []byte, err error)

	tick func(d time.Duration) (<-chan time.Time, func())
}

var _ Streamer = (*Client)(nil)

type ClientOption func(*Client)

// WithConfig replaces the whole configuration. Options that follow it adjust
// individual fields.
func WithConfig(cfg Config) ClientOption {
	return func(c *Client) {
		c.cfg = cfg
	}
}

func WithHeartbeatInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.cfg.HeartbeatInterval = d
	}
}

func WithHandshakeTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.cfg.HandshakeTimeout = d
	}
}

func WithChannelIDPrefix(prefix string) ClientOption {
	return func(c *Client) {
		c.cfg.ChannelIDPrefix = prefix
	}
}

// WithDialer overrides the WebSocket dialer built from the configuration.
func WithDialer(d transport.Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = d
	}
}

func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithDecodeErrorHandler installs a hook for inbound frames that fail to
// decode. The frames are dropped either way.
func WithDecodeErrorHandler(fn func(frame []byte, err error)) ClientOption {
	return func(c *Client) {
		c.onDecodeError = fn
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		id:     uuid.NewString(),
		events: newEventQueue(),
		cfg:    DefaultConfig(),
		tick:   newTicker,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.cfg = c.cfg.withDefaults()
	c.ids = channelIDs{prefix: c.cfg.ChannelIDPrefix, now: time.Now}

	if c.dialer == nil {
		c.dialer = transport.NewWebSocketDialer(
			transport.WithHandshakeTimeout(c.cfg.HandshakeTimeout),
			transport.WithWriteTimeout(c.cfg.WriteTimeout),
			transport.WithReadTimeout(c.cfg.ReadTimeout),
			transport.WithCompression(c.cfg.Compression),
			transport.WithProxy(c.cfg.Proxy),
		)
	}

	return c
}

func newTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (c *Client) ID() string {
	return c.id
}

// Connect opens the streaming connection to host. It returns nil without
// dialing when already connected.
func (c *Client) Connect(ctx context.Context, host, token string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	debug.Printf("Client %s: Connecting to %s", c.id, host)

	conn, err := c.dialer.Dial(ctx, transport.StreamingURL(host, token))
	if err != nil {
		c.metrics.handshake(err)
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	c.mu.Lock()
	if c.closed || c.connected {
		closed := c.closed
		c.mu.Unlock()

		conn.Close()
		if closed {
			return ErrClientClosed
		}
		return nil
	}

	stale := c.sess
	sess := newSession(c, conn)
	c.sess = sess
	c.connected = true
	c.metrics.handshake(nil)
	sess.start()
	c.mu.Unlock()

	if stale != nil {
		debug.Printf("Client %s: Stopping stale session", c.id)
		stale.stop()
	}

	debug.Printf("Client %s: Connected", c.id)
	return nil
}

// Disconnect tears down the current connection. It is safe to call when
// already disconnected. Queued events stay pollable.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	sess := c.sess
	wasConnected := c.connected
	c.sess = nil
	c.connected = false
	c.mu.Unlock()

	if sess != nil {
		sess.stop()
	}
	if wasConnected {
		c.metrics.disconnected("client")
		debug.Printf("Client %s: Disconnected", c.id)
	}

	return nil
}

// Close disconnects and stops accepting events. Already queued events can
// still be polled.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	err := c.Disconnect()
	c.events.close()
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// Send queues a raw text frame.
func (c *Client) Send(text string) error {
	return c.enqueue(transport.TextFrame(text))
}

// Subscribe connects to channel under a freshly generated id and returns it.
// The id is needed to unsubscribe; subscriptions are not replayed after a
// reconnect.
func (c *Client) Subscribe(channel string) (string, error) {
	id := c.ids.next()
	if err := c.SubscribeWithID(channel, id); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) SubscribeWithID(channel, id string) error {
	msg, err := connectMessage(channel, id)
	if err != nil {
		return err
	}
	return c.enqueue(transport.Frame{Type: transport.TextMessage, Data: msg})
}

func (c *Client) Unsubscribe(id string) error {
	msg, err := disconnectMessage(id)
	if err != nil {
		return err
	}
	return c.enqueue(transport.Frame{Type: transport.TextMessage, Data: msg})
}

// Poll returns the next received event, or false at once when none is queued.
func (c *Client) Poll() (StreamEvent, bool) {
	return c.events.pop()
}

// Pending reports how many events are waiting to be polled.
func (c *Client) Pending() int {
	return c.events.pending()
}

func (c *Client) enqueue(f transport.Frame) error {
	c.mu.Lock()
	sess := c.sess
	connected := c.connected
	c.mu.Unlock()

	if !connected || sess == nil {
		return ErrNotConnected
	}
	return sess.enqueue(f)
}

// markDown records a connection loss detected by one of s's tasks. Losses
// reported by a session that is no longer current are ignored.
func (c *Client) markDown(s *session, cause string, err error) {
	c.mu.Lock()
	if c.sess != s || !c.connected {
		c.mu.Unlock()
		s.halt()
		return
	}
	c.connected = false
	c.mu.Unlock()

	s.halt()
	c.metrics.disconnected(cause)

	if err != nil {
		debug.Printf("Client %s: Connection lost in %s: %v", c.id, cause, err)
	} else {
		debug.Printf("Client %s: Connection ended in %s", c.id, cause)
	}
}

// live reports whether s is the current, connected session.
func (c *Client) live(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sess == s && c.connected
}

func (c *Client) decodeFailed(frame []byte, err error) {
	c.metrics.decodeError()
	debug.Printf("Client %s: Dropping undecodable frame: %v", c.id, err)

	if c.onDecodeError != nil {
		c.onDecodeError(frame, err)
	}
}
