package relay

import (
	"fmt"
	"time"

	"github.com/Tyrowin/gochat-live/internal/delivery"
	"github.com/Tyrowin/gochat-live/internal/protocol"
)

// handleSend acknowledges the message to its sender, fans it out to every
// other connection and reports delivery according to the tracker's mode.
func (e *Engine) handleSend(conn protocol.ConnID, frame protocol.Frame) error {
	var msg protocol.ChatMessage
	if err := frame.Bind(&msg); err != nil {
		return err
	}

	from, err := e.displayName(conn, msg.From)
	if err != nil {
		return fmt.Errorf("chat:send: %w", err)
	}
	msg.From = from
	msg.SenderID = conn
	if msg.Timestamp == "" {
		msg.Timestamp = e.now().UTC().Format(time.RFC3339)
	}

	sent, err := e.tracker.Sent(conn, msg.ID)
	if err != nil {
		return err
	}
	e.emitStatus(sent)

	receivers := e.broadcast(protocol.EventChatNew, msg, conn)
	e.log.Debug("Relayed message", "conn", conn, "id", msg.ID, "receivers", len(receivers))

	e.emitStatuses(e.tracker.Broadcasted(conn, msg.ID, receivers))
	return nil
}

func (e *Engine) handleReceived(conn protocol.ConnID, frame protocol.Frame) error {
	var ack protocol.ReceivedPayload
	if err := frame.Bind(&ack); err != nil {
		return err
	}
	e.emitStatuses(e.tracker.Received(ack.SenderID, ack.ID, conn))
	return nil
}

// handleSeen routes a seen acknowledgment back to the message sender. An
// acknowledgment whose sender is gone is dropped without error.
func (e *Engine) handleSeen(conn protocol.ConnID, frame protocol.Frame) error {
	var ack protocol.SeenPayload
	if err := frame.Bind(&ack); err != nil {
		return err
	}

	sender, ok := e.resolveSender(ack)
	if !ok {
		e.log.Debug("Seen acknowledgment for unknown sender", "conn", conn, "id", ack.ID, "from", ack.From)
		return nil
	}
	e.emitStatuses(e.tracker.Seen(sender, ack.ID, conn))
	return nil
}

// resolveSender prefers the handle captured when the message was relayed.
// The display name is only consulted when no handle was captured.
func (e *Engine) resolveSender(ack protocol.SeenPayload) (protocol.ConnID, bool) {
	if ack.SenderID != "" {
		return ack.SenderID, e.tracker.Tracks(ack.SenderID, ack.ID)
	}
	if ack.From == "" {
		return "", false
	}
	return e.registry.Resolve(ack.From)
}

func (e *Engine) emitStatuses(ems []delivery.Emission) {
	for _, em := range ems {
		e.emitStatus(em)
	}
}

func (e *Engine) emitStatus(em delivery.Emission) {
	e.send(em.Sender, protocol.EventChatStatus, protocol.StatusPayload{
		ID:     em.ID,
		Status: em.Status.String(),
	})
}
