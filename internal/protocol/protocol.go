// Package protocol defines the JSON frames exchanged between browser clients
// and the relay over a WebSocket connection.
//
// Every frame is an envelope {"event": "<name>", "data": <payload>}. The data
// field is kept as raw JSON until a handler binds it into the payload type it
// expects, so signaling blobs can be forwarded without being re-encoded.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ConnID is the opaque handle the hub assigns to one live client session.
type ConnID string

// Event names a frame.
type Event string

const (
	EventWelcome          Event = "session:welcome"
	EventJoin             Event = "user:join"
	EventPresenceRequest  Event = "presence:request"
	EventPresenceList     Event = "presence:list"
	EventChatSend         Event = "chat:send"
	EventChatNew          Event = "chat:new"
	EventChatStatus       Event = "chat:status"
	EventChatReceived     Event = "chat:received"
	EventChatSeen         Event = "chat:seen"
	EventChatTyping       Event = "chat:typing"
	EventScreenStart      Event = "screen:start"
	EventScreenStop       Event = "screen:stop"
	EventScreenWatch      Event = "screen:watch"
	EventScreenViewerLeft Event = "screen:viewer-left"
	EventSignalOffer      Event = "signal:offer"
	EventSignalAnswer     Event = "signal:answer"
	EventSignalCandidate  Event = "signal:candidate"
	EventError            Event = "error"
)

// Frame is the envelope carried by every WebSocket text message.
type Frame struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes data as the payload of a frame. A nil data produces a
// frame without payload.
func NewFrame(event Event, data any) (Frame, error) {
	if data == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

// MustFrame is NewFrame for payload types that cannot fail to encode.
func MustFrame(event Event, data any) Frame {
	frame, err := NewFrame(event, data)
	if err != nil {
		panic(err)
	}
	return frame
}

// Decode parses one inbound envelope.
func Decode(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	frame.Event = Event(strings.TrimSpace(string(frame.Event)))
	if frame.Event == "" {
		return Frame{}, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	return frame, nil
}

// Encode serializes the frame for the wire.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// Bind decodes the frame payload into dst and validates it. A frame without
// payload binds as an empty object so that validation reports the missing
// fields.
func (f Frame) Bind(dst any) error {
	data := bytes.TrimSpace(f.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, f.Event, err)
	}
	if err := Validate(dst); err != nil {
		return fmt.Errorf("%s: %w", f.Event, err)
	}
	return nil
}
