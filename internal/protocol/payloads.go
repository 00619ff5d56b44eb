package protocol

import (
	"encoding/json"
	"strings"
)

// JoinPayload announces the display name of a connection. Older clients send
// the bare name string instead of an object; both forms are accepted.
type JoinPayload struct {
	Name string `json:"name" validate:"required,max=64"`
}

func (p *JoinPayload) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		p.Name = strings.TrimSpace(name)
		return nil
	}
	type plain JoinPayload
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(obj.Name)
	return nil
}

// ChatMessage is a chat line as sent by its author and as relayed to peers.
// SenderID is stamped by the server; whatever the client put there is
// overwritten.
type ChatMessage struct {
	ID        string `json:"id" validate:"required,max=128"`
	Text      string `json:"text" validate:"required"`
	From      string `json:"from,omitempty" validate:"max=64"`
	SenderID  ConnID `json:"senderId,omitempty"`
	Timestamp string `json:"ts,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty" validate:"max=128"`
}

type StatusPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ReceivedPayload is the automatic per-receiver delivery acknowledgment.
type ReceivedPayload struct {
	ID       string `json:"id" validate:"required,max=128"`
	SenderID ConnID `json:"senderId" validate:"required"`
}

// SeenPayload acknowledges that a receiver rendered a message. The original
// sender is addressed by handle when the client has it, by display name
// otherwise.
type SeenPayload struct {
	ID       string `json:"id" validate:"required,max=128"`
	From     string `json:"from,omitempty" validate:"required_without=SenderID,max=64"`
	SenderID ConnID `json:"senderId,omitempty"`
}

type TypingPayload struct {
	From     string `json:"from,omitempty" validate:"max=64"`
	IsTyping bool   `json:"isTyping"`
}

type ScreenStartPayload struct {
	By          string `json:"by,omitempty" validate:"max=64"`
	Broadcaster ConnID `json:"broadcaster,omitempty"`
}

type WatchPayload struct {
	Viewer ConnID `json:"viewer"`
	Name   string `json:"name,omitempty"`
}

type ViewerLeftPayload struct {
	Viewer ConnID `json:"viewer"`
}

// SignalPayload wraps an SDP offer/answer or ICE candidate. Payload is
// forwarded byte for byte.
type SignalPayload struct {
	To      ConnID          `json:"to,omitempty"`
	From    ConnID          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

type WelcomePayload struct {
	ID ConnID `json:"id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
