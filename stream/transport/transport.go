package transport

import (
	"context"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

type MessageType int

const (
	TextMessage   MessageType = websocket.TextMessage
	BinaryMessage MessageType = websocket.BinaryMessage
	PingMessage   MessageType = websocket.PingMessage
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	case PingMessage:
		return "ping"
	default:
		return "unknown"
	}
}

// Frame is one outbound message. Text frames and pings share the same queue.
type Frame struct {
	Type MessageType
	Data []byte
}

func TextFrame(text string) Frame {
	return Frame{Type: TextMessage, Data: []byte(text)}
}

func PingFrame() Frame {
	return Frame{Type: PingMessage}
}

// Conn is an established streaming connection. One goroutine may read while
// another writes; Close may be called from anywhere.
type Conn interface {
	ReadMessage() (MessageType, []byte, error)
	WriteFrame(f Frame) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// StreamingURL builds the streaming endpoint for host. A host without a
// scheme is reached over wss.
func StreamingURL(host, token string) string {
	base := strings.TrimRight(host, "/")
	if !strings.HasPrefix(base, "ws://") && !strings.HasPrefix(base, "wss://") {
		base = "wss://" + base
	}
	return base + "/streaming?i=" + url.QueryEscape(token)
}
