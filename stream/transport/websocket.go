package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"

	"github.com/kleeedolinux/stream.go/debug"
)

type WebSocketDialer struct {
	dialer           *websocket.Dialer
	headers          http.Header
	readTimeout      time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	compression      bool
	proxyAddr        string
}

type WebSocketOption func(*WebSocketDialer)

func WithHeaders(headers http.Header) WebSocketOption {
	return func(d *WebSocketDialer) {
		for k, v := range headers {
			d.headers[k] = v
		}
	}
}

// WithReadTimeout bounds the gap between inbound frames. Pongs extend the
// deadline, so it should exceed the heartbeat interval.
func WithReadTimeout(timeout time.Duration) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.readTimeout = timeout
	}
}

func WithWriteTimeout(timeout time.Duration) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.writeTimeout = timeout
	}
}

// WithHandshakeTimeout bounds the opening handshake. Zero waits on the
// caller's context alone.
func WithHandshakeTimeout(timeout time.Duration) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.handshakeTimeout = timeout
	}
}

func WithCompression(enabled bool) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.compression = enabled
	}
}

// WithProxy routes the connection through a SOCKS5 proxy at addr (host:port).
func WithProxy(addr string) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.proxyAddr = addr
	}
}

func NewWebSocketDialer(opts ...WebSocketOption) *WebSocketDialer {
	d := &WebSocketDialer{
		dialer:           websocket.DefaultDialer,
		headers:          make(http.Header),
		writeTimeout:     10 * time.Second,
		handshakeTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := *d.dialer
	dialer.HandshakeTimeout = d.handshakeTimeout
	dialer.EnableCompression = d.compression

	if d.proxyAddr != "" {
		socks, err := proxy.SOCKS5("tcp", d.proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy %s: %w", d.proxyAddr, err)
		}
		dialer.Proxy = nil
		if cd, ok := socks.(proxy.ContextDialer); ok {
			dialer.NetDialContext = cd.DialContext
		} else {
			dialer.NetDial = socks.Dial
		}
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.headers)
	if err != nil {
		debug.Printf("WebSocketDialer: Connection failed: %v", err)
		if resp != nil {
			return nil, fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		return nil, err
	}

	debug.Printf("WebSocketDialer: Connected to %s", conn.RemoteAddr())
	return newWebSocketConn(conn, d.readTimeout, d.writeTimeout), nil
}

type webSocketConn struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newWebSocketConn(conn *websocket.Conn, readTimeout, writeTimeout time.Duration) *webSocketConn {
	c := &webSocketConn{
		conn:         conn,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}

	if readTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	return c
}

func (c *webSocketConn) ReadMessage() (MessageType, []byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, nil, err
		}
	}

	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		debug.Printf("WebSocketConn: Read error: %v", err)
		return 0, nil, err
	}
	return MessageType(mt), data, nil
}

func (c *webSocketConn) WriteFrame(f Frame) error {
	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}

	if f.Type == PingMessage {
		return c.conn.WriteControl(websocket.PingMessage, f.Data, deadline)
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(int(f.Type), f.Data)
}

func (c *webSocketConn) Close() error {
	c.closeOnce.Do(func() {
		debug.Printf("WebSocketConn: Closing connection")

		err := c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		if err != nil {
			debug.Printf("WebSocketConn: Error sending close message: %v", err)
		}

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
