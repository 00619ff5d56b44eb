package relay

import (
	"github.com/Tyrowin/gochat-live/internal/protocol"
	"github.com/Tyrowin/gochat-live/internal/signaling"
)

func (e *Engine) handleScreenStart(conn protocol.ConnID, frame protocol.Frame) error {
	var start protocol.ScreenStartPayload
	if err := frame.Bind(&start); err != nil {
		return err
	}
	name, err := e.displayName(conn, start.By)
	if err != nil {
		name = string(conn)
	}

	session := e.signals.Session()
	if replaced, wasActive := session.Start(conn, name); wasActive {
		e.log.Info("Screen share replaced", "previous", replaced, "broadcaster", conn)
		e.signals.Forget(replaced)
		e.broadcast(protocol.EventScreenStop, nil, conn)
	}
	e.log.Info("Screen share started", "broadcaster", conn, "by", name)

	e.broadcast(protocol.EventScreenStart, protocol.ScreenStartPayload{By: name, Broadcaster: conn}, conn)
	return nil
}

func (e *Engine) handleScreenStop(conn protocol.ConnID) {
	if !e.signals.Session().Stop(conn) {
		e.log.Debug("Ignoring screen stop from non-broadcaster", "conn", conn)
		return
	}
	e.log.Info("Screen share stopped", "broadcaster", conn)
	e.signals.Forget(conn)
	e.broadcast(protocol.EventScreenStop, nil, conn)
}

// handleWatch forwards a viewer's request to the current broadcaster, which
// answers it with an offer. With nothing being shared the viewer is told so.
func (e *Engine) handleWatch(conn protocol.ConnID) {
	broadcaster, ok := e.signals.Session().Watch(conn)
	if !ok {
		e.send(conn, protocol.EventScreenStop, nil)
		return
	}
	name, _ := e.registry.NameOf(conn)
	e.send(broadcaster, protocol.EventScreenWatch, protocol.WatchPayload{Viewer: conn, Name: name})
}

// handleSignal forwards an offer, answer or candidate. The blob itself is
// never inspected.
func (e *Engine) handleSignal(conn protocol.ConnID, frame protocol.Frame) error {
	var sig protocol.SignalPayload
	if err := frame.Bind(&sig); err != nil {
		return err
	}
	sig.From = conn

	var route signaling.Route
	switch frame.Event {
	case protocol.EventSignalOffer:
		route = e.signals.Offer(conn, sig.To)
	case protocol.EventSignalAnswer:
		route = e.signals.Answer(conn, sig.To)
	default:
		route = e.signals.Candidate(conn, sig.To)
	}

	switch route.Kind {
	case signaling.RouteDrop:
		e.log.Debug("Suppressed duplicate answer", "conn", conn, "to", sig.To)
	case signaling.RouteTarget:
		if route.Target == conn {
			e.log.Debug("Ignoring signal addressed to its sender", "conn", conn, "event", frame.Event)
			return nil
		}
		e.send(route.Target, frame.Event, sig)
	case signaling.RouteBroadcast:
		e.broadcast(frame.Event, sig, conn)
	}
	return nil
}

func (e *Engine) leaveScreen(conn protocol.ConnID) {
	stopped, broadcaster, wasViewer := e.signals.Session().Leave(conn)
	switch {
	case stopped:
		e.log.Info("Screen share ended by disconnect", "broadcaster", conn)
		e.broadcast(protocol.EventScreenStop, nil, conn)
	case wasViewer:
		e.send(broadcaster, protocol.EventScreenViewerLeft, protocol.ViewerLeftPayload{Viewer: conn})
	}
}
