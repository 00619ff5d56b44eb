package relay

import (
	"fmt"

	"github.com/Tyrowin/gochat-live/internal/protocol"
)

// handleTyping passes the indicator through. Clients own the true/false edges
// and the inactivity timeout.
func (e *Engine) handleTyping(conn protocol.ConnID, frame protocol.Frame) error {
	var typing protocol.TypingPayload
	if err := frame.Bind(&typing); err != nil {
		return err
	}

	from, err := e.displayName(conn, typing.From)
	if err != nil {
		return fmt.Errorf("chat:typing: %w", err)
	}
	typing.From = from

	except := conn
	if e.opts.TypingEcho {
		except = ""
	}
	e.broadcast(protocol.EventChatTyping, typing, except)
	return nil
}
