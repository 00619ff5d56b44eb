// Package delivery tracks the sent → delivered → seen lifecycle of chat
// messages on behalf of their senders.
package delivery

import (
	"fmt"
)

// Status is the delivery state of one message. Values are ordered; a message
// only ever moves to a greater value.
type Status int

const (
	StatusUnknown Status = iota
	StatusSent
	StatusDelivered
	StatusSeen
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusSeen:
		return "seen"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of String for the three wire values.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "sent":
		return StatusSent, nil
	case "delivered":
		return StatusDelivered, nil
	case "seen":
		return StatusSeen, nil
	default:
		return StatusUnknown, fmt.Errorf("unknown delivery status %q", s)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Advances reports whether moving from prev to s goes forward.
func (s Status) Advances(prev Status) bool {
	return s > prev
}
