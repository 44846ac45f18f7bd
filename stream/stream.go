package stream

import (
	"context"
	"encoding/json"
	"errors"
)

// StreamEvent is one decoded inbound frame. For channel events Type is the
// inner event type and Body the inner payload; for global events Body is the
// whole frame.
type StreamEvent struct {
	Type      string          `json:"event_type"`
	Body      json.RawMessage `json:"body"`
	ChannelID string          `json:"channel_id"`
}

func (e StreamEvent) Decode(v interface{}) error {
	return json.Unmarshal(e.Body, v)
}

type Streamer interface {
	ID() string

	Connect(ctx context.Context, host, token string) error

	Disconnect() error

	Send(text string) error

	Subscribe(channel string) (string, error)

	SubscribeWithID(channel, id string) error

	Unsubscribe(id string) error

	Poll() (StreamEvent, bool)

	IsConnected() bool

	Close() error
}

var (
	ErrHandshake    = errors.New("streaming handshake failed")
	ErrNotConnected = errors.New("not connected")
	ErrClientClosed = errors.New("client closed")
)
