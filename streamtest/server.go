// Package streamtest runs an in-process streaming server that speaks the
// channel protocol, for tests and local demos.
package streamtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kleeedolinux/stream.go/debug"
)

type Server struct {
	mu       sync.RWMutex
	conns    map[string]*Conn
	messages [][]byte
	channels *channelRegistry
	pings    atomic.Int64

	token        string
	bufferSize   int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	http         *httptest.Server
}

type ServerOption func(*Server)

// WithToken makes the server reject handshakes whose i parameter differs.
func WithToken(token string) ServerOption {
	return func(s *Server) {
		s.token = token
	}
}

func WithBufferSize(size int) ServerOption {
	return func(s *Server) {
		s.bufferSize = size
	}
}

// NewServer starts a server listening on a loopback port. Callers must Close it.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		conns:        make(map[string]*Conn),
		channels:     newChannelRegistry(),
		bufferSize:   256,
		writeTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.http = httptest.NewServer(s)
	return s
}

// Host is the address to hand to a client's Connect, scheme included.
func (s *Server) Host() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/streaming" {
		http.NotFound(w, r)
		return
	}

	if s.token != "" && r.URL.Query().Get("i") != s.token {
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Printf("streamtest: Upgrade failed: %v", err)
		return
	}

	conn := newConn(uuid.NewString(), ws, s.bufferSize, s.writeTimeout)

	ws.SetPingHandler(func(data string) error {
		s.pings.Add(1)
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	s.mu.Lock()
	s.conns[conn.ID()] = conn
	s.mu.Unlock()

	debug.Printf("streamtest: Accepted connection %s", conn.ID())
	go s.serveConn(conn)
}

func (s *Server) serveConn(conn *Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn.ID())
		s.mu.Unlock()

		s.channels.leaveAll(conn.ID())
		conn.Drop()
		debug.Printf("streamtest: Connection %s gone", conn.ID())
	}()

	for {
		mt, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		s.mu.Lock()
		s.messages = append(s.messages, data)
		s.mu.Unlock()

		s.handleControl(conn, data)
	}
}

type controlMessage struct {
	Type string `json:"type"`
	Body struct {
		Channel string `json:"channel"`
		ID      string `json:"id"`
	} `json:"body"`
}

func (s *Server) handleControl(conn *Conn, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "connect":
		if msg.Body.ID != "" {
			s.channels.join(msg.Body.ID, msg.Body.Channel, conn)
		}
	case "disconnect":
		s.channels.leave(msg.Body.ID)
	}
}

// SendChannelEvent delivers a channel envelope to the connection holding id.
func (s *Server) SendChannelEvent(id, eventType string, body interface{}) error {
	ch, ok := s.channels.get(id)
	if !ok {
		return fmt.Errorf("no channel connection %q", id)
	}

	data, err := json.Marshal(map[string]interface{}{
		"type": "channel",
		"body": map[string]interface{}{
			"id":   id,
			"type": eventType,
			"body": body,
		},
	})
	if err != nil {
		return err
	}

	return ch.conn.Write(data)
}

// Broadcast writes a raw frame to every connection.
func (s *Server) Broadcast(frame []byte) {
	for _, conn := range s.snapshotConns() {
		if err := conn.Write(frame); err != nil {
			debug.Printf("streamtest: Broadcast to %s failed: %v", conn.ID(), err)
		}
	}
}

// Channels returns the open channel connections as id -> channel name.
func (s *Server) Channels() map[string]string {
	return s.channels.snapshot()
}

// Messages returns every text frame received so far, in arrival order.
func (s *Server) Messages() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]byte, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Server) Pings() int {
	return int(s.pings.Load())
}

func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.conns)
}

// DropAll cuts every connection without a close handshake.
func (s *Server) DropAll() {
	for _, conn := range s.snapshotConns() {
		conn.Drop()
	}
}

// CloseAll ends every connection with a normal close frame.
func (s *Server) CloseAll() {
	for _, conn := range s.snapshotConns() {
		conn.Close()
	}
}

func (s *Server) Close() {
	s.CloseAll()
	s.http.Close()
}

func (s *Server) snapshotConns() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := make([]*Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	return conns
}
