package stream

import (
	"bytes"
	"encoding/json"
	"errors"
)

const channelEnvelope = "channel"

var errMalformedFrame = errors.New("malformed frame")

var nullBody = json.RawMessage("null")

type envelopeKind int

const (
	envelopeNone envelopeKind = iota
	envelopeChannel
	envelopeGlobal
)

func (k envelopeKind) String() string {
	switch k {
	case envelopeChannel:
		return "channel"
	case envelopeGlobal:
		return "global"
	default:
		return "none"
	}
}

// decodeFrame turns one inbound text frame into an event. Well-formed frames
// that carry no event (a channel envelope without an inner type) report
// envelopeNone.
func decodeFrame(data []byte) (StreamEvent, envelopeKind, error) {
	if !json.Valid(data) {
		return StreamEvent{}, envelopeNone, errMalformedFrame
	}

	// Non-object values decode to a nil map and become untyped global events.
	var frame map[string]json.RawMessage
	_ = json.Unmarshal(data, &frame)

	eventType := stringField(frame, "type")
	if eventType != channelEnvelope {
		return StreamEvent{
			Type:      eventType,
			Body:      json.RawMessage(bytes.Clone(data)),
			ChannelID: stringField(frame, "id"),
		}, envelopeGlobal, nil
	}

	var body map[string]json.RawMessage
	if raw, ok := frame["body"]; ok {
		_ = json.Unmarshal(raw, &body)
	}

	innerType := stringField(body, "type")
	if innerType == "" {
		return StreamEvent{}, envelopeNone, nil
	}

	payload, ok := body["body"]
	if !ok {
		payload = nullBody
	}

	return StreamEvent{
		Type:      innerType,
		Body:      payload,
		ChannelID: stringField(body, "id"),
	}, envelopeChannel, nil
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

type controlMessage struct {
	Type string      `json:"type"`
	Body interface{} `json:"body"`
}

type connectBody struct {
	Channel string `json:"channel"`
	ID      string `json:"id"`
}

type disconnectBody struct {
	ID string `json:"id"`
}

func connectMessage(channel, id string) ([]byte, error) {
	return json.Marshal(controlMessage{
		Type: "connect",
		Body: connectBody{Channel: channel, ID: id},
	})
}

func disconnectMessage(id string) ([]byte, error) {
	return json.Marshal(controlMessage{
		Type: "disconnect",
		Body: disconnectBody{ID: id},
	})
}
