package server

import (
	"strings"

	"github.com/Tyrowin/gochat-live/internal/protocol"
)

// inbound is one decoded frame, or the reason a raw message was refused,
// handed from a client's read pump to the hub loop.
type inbound struct {
	conn  protocol.ConnID
	frame protocol.Frame
	err   error
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
