package relay

import (
	"github.com/Tyrowin/gochat-live/internal/protocol"
)

func (e *Engine) handleJoin(conn protocol.ConnID, frame protocol.Frame) error {
	var join protocol.JoinPayload
	if err := frame.Bind(&join); err != nil {
		return err
	}

	previous, rejoined := e.registry.NameOf(conn)
	e.registry.Register(conn, join.Name)
	if rejoined {
		e.log.Info("Participant renamed", "conn", conn, "from", previous, "to", join.Name)
	} else {
		e.log.Info("Participant joined", "conn", conn, "name", join.Name, "participants", e.registry.Len())
	}

	e.broadcastPresence()
	return nil
}

// broadcastPresence sends the full roster to every connection, the one that
// triggered the change included.
func (e *Engine) broadcastPresence() {
	e.broadcast(protocol.EventPresenceList, e.registry.Names(), "")
}

func (e *Engine) sendPresence(conn protocol.ConnID) {
	e.send(conn, protocol.EventPresenceList, e.registry.Names())
}
