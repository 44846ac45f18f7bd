package streamtest

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kleeedolinux/stream.go/debug"
)

var ErrConnClosed = errors.New("connection closed")

// Conn is the server side of one client connection. Writes go through a
// buffered pump so callers never block on the socket.
type Conn struct {
	id           string
	ws           *websocket.Conn
	sendCh       chan []byte
	closeCh      chan struct{}
	writeWg      sync.WaitGroup
	writeTimeout time.Duration
	mu           sync.Mutex
	closed       bool
}

func newConn(id string, ws *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Conn {
	c := &Conn{
		id:           id,
		ws:           ws,
		sendCh:       make(chan []byte, bufferSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
	}

	c.writeWg.Add(1)
	go c.writePump()

	return c
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) writePump() {
	defer c.writeWg.Done()

	for {
		select {
		case <-c.closeCh:
			return
		case message := <-c.sendCh:
			if c.writeTimeout > 0 {
				if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
					debug.Printf("streamtest: Conn %s: Set write deadline: %v", c.id, err)
				}
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				debug.Printf("streamtest: Conn %s: Write error: %v", c.id, err)
				go c.Drop()
				return
			}
		}
	}
}

// Write queues a text frame for the client.
func (c *Conn) Write(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrConnClosed
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		debug.Printf("streamtest: Conn %s: Send buffer full, dropping connection", c.id)
		go c.Drop()
		return errors.New("send buffer full")
	}
}

func (c *Conn) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.closeCh)
	return true
}

// Close sends a normal close frame and closes the socket.
func (c *Conn) Close() error {
	if !c.markClosed() {
		return nil
	}

	c.writeWg.Wait()
	err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err != nil {
		debug.Printf("streamtest: Conn %s: Close frame: %v", c.id, err)
	}
	return c.ws.Close()
}

// Drop closes the socket without a close frame, as a network failure would.
func (c *Conn) Drop() error {
	if !c.markClosed() {
		return nil
	}

	c.writeWg.Wait()
	return c.ws.Close()
}
