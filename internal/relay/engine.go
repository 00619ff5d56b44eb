// Package relay implements the chat and screen-share event handlers: presence,
// message fan-out with delivery status, typing indicators and WebRTC
// signaling.
//
// The Engine owns all relay state and is driven by a single goroutine (the
// hub event loop), so its handlers run to completion one after another and
// need no locking.
package relay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/gochat-live/internal/delivery"
	"github.com/Tyrowin/gochat-live/internal/presence"
	"github.com/Tyrowin/gochat-live/internal/protocol"
	"github.com/Tyrowin/gochat-live/internal/signaling"
)

// Options are the relay policies that different client generations
// disagree on.
type Options struct {
	DeliveryMode             delivery.Mode
	SignalingMode            signaling.Mode
	SuppressDuplicateAnswers bool
	// TypingEcho also sends typing events back to their sender.
	TypingEcho bool
	// TrackedPerSender caps the messages per sender awaiting acknowledgment.
	TrackedPerSender int
}

func DefaultOptions() Options {
	return Options{
		DeliveryMode:             delivery.ModeBroadcast,
		SignalingMode:            signaling.ModeTargeted,
		SuppressDuplicateAnswers: true,
		TrackedPerSender:         delivery.DefaultWindow,
	}
}

// Stats is a point-in-time summary of relay state.
type Stats struct {
	Connections     int  `json:"connections"`
	Participants    int  `json:"participants"`
	PendingMessages int  `json:"pendingMessages"`
	Broadcasting    bool `json:"broadcasting"`
	Viewers         int  `json:"viewers"`
}

type Engine struct {
	transport Transport
	opts      Options
	log       *slog.Logger
	now       func() time.Time

	connected map[protocol.ConnID]struct{}
	registry  *presence.Registry
	tracker   *delivery.Tracker
	signals   *signaling.Relay
}

func NewEngine(transport Transport, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		transport: transport,
		opts:      opts,
		log:       log,
		now:       time.Now,
		connected: make(map[protocol.ConnID]struct{}),
		registry:  presence.NewRegistry(),
		tracker:   delivery.NewTracker(opts.DeliveryMode, delivery.WithWindow(opts.TrackedPerSender)),
		signals:   signaling.NewRelay(opts.SignalingMode, opts.SuppressDuplicateAnswers),
	}
}

// Connect starts relaying for conn and tells the client its handle.
func (e *Engine) Connect(conn protocol.ConnID) {
	e.connected[conn] = struct{}{}
	e.send(conn, protocol.EventWelcome, protocol.WelcomePayload{ID: conn})
}

// Disconnect purges everything tied to conn. Calls after the first are
// no-ops.
func (e *Engine) Disconnect(conn protocol.ConnID) {
	if _, ok := e.connected[conn]; !ok {
		return
	}
	delete(e.connected, conn)

	if name, ok := e.registry.NameOf(conn); ok {
		e.log.Info("Participant left", "conn", conn, "name", name)
	}
	e.registry.Unregister(conn)
	e.emitStatuses(e.tracker.Forget(conn))
	e.leaveScreen(conn)
	e.signals.Forget(conn)
	e.broadcastPresence()
}

// Handle dispatches one inbound frame from conn. Invalid frames are answered
// with an error frame to conn alone and the error is returned; nothing is
// relayed to other connections.
func (e *Engine) Handle(conn protocol.ConnID, frame protocol.Frame) error {
	if _, ok := e.connected[conn]; !ok {
		e.log.Debug("Dropping frame from unknown connection", "conn", conn, "event", frame.Event)
		return nil
	}

	var err error
	switch frame.Event {
	case protocol.EventJoin:
		err = e.handleJoin(conn, frame)
	case protocol.EventPresenceRequest:
		e.sendPresence(conn)
	case protocol.EventChatSend:
		err = e.handleSend(conn, frame)
	case protocol.EventChatReceived:
		err = e.handleReceived(conn, frame)
	case protocol.EventChatSeen:
		err = e.handleSeen(conn, frame)
	case protocol.EventChatTyping:
		err = e.handleTyping(conn, frame)
	case protocol.EventScreenStart:
		err = e.handleScreenStart(conn, frame)
	case protocol.EventScreenStop:
		e.handleScreenStop(conn)
	case protocol.EventScreenWatch:
		e.handleWatch(conn)
	case protocol.EventSignalOffer, protocol.EventSignalAnswer, protocol.EventSignalCandidate:
		err = e.handleSignal(conn, frame)
	default:
		err = fmt.Errorf("%w: %q", protocol.ErrUnknownEvent, frame.Event)
	}

	if err != nil {
		e.log.Warn("Rejected frame", "conn", conn, "event", frame.Event, "error", err)
		e.Reject(conn, err)
	}
	return err
}

// Reject reports err to conn in an error frame.
func (e *Engine) Reject(conn protocol.ConnID, err error) {
	e.send(conn, protocol.EventError, protocol.ErrorPayload{
		Code:    protocol.ErrorCode(err),
		Message: err.Error(),
	})
}

// Roster is the current presence snapshot.
func (e *Engine) Roster() []string {
	return e.registry.Names()
}

func (e *Engine) Stats() Stats {
	session := e.signals.Session()
	return Stats{
		Connections:     len(e.connected),
		Participants:    e.registry.Len(),
		PendingMessages: e.tracker.Pending(),
		Broadcasting:    session.State() == signaling.StateBroadcasting,
		Viewers:         len(session.Viewers()),
	}
}

// displayName prefers the registered name of conn over the one a payload
// claims, so a client cannot speak for somebody else once it has joined.
func (e *Engine) displayName(conn protocol.ConnID, claimed string) (string, error) {
	if name, ok := e.registry.NameOf(conn); ok {
		return name, nil
	}
	if claimed == "" {
		return "", protocol.ErrNotJoined
	}
	return claimed, nil
}

func (e *Engine) send(to protocol.ConnID, event protocol.Event, data any) bool {
	frame, err := protocol.NewFrame(event, data)
	if err != nil {
		e.log.Error("Failed to encode frame", "event", event, "error", err)
		return false
	}
	if !e.transport.Send(to, frame) {
		e.log.Debug("Routing miss", "to", to, "event", event)
		return false
	}
	return true
}

func (e *Engine) broadcast(event protocol.Event, data any, except protocol.ConnID) []protocol.ConnID {
	frame, err := protocol.NewFrame(event, data)
	if err != nil {
		e.log.Error("Failed to encode frame", "event", event, "error", err)
		return nil
	}
	return e.transport.Broadcast(frame, except)
}
