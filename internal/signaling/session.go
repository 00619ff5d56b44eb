// Package signaling routes WebRTC negotiation payloads between a screen-share
// broadcaster and its viewers without looking inside them.
package signaling

import (
	"maps"

	"github.com/Tyrowin/gochat-live/internal/protocol"
)

// State of the screen-share session.
type State int

const (
	StateIdle State = iota
	StateBroadcasting
)

func (s State) String() string {
	if s == StateBroadcasting {
		return "broadcasting"
	}
	return "idle"
}

// ViewerState is how far a viewer's negotiation with the broadcaster got.
type ViewerState int

const (
	ViewerWatching ViewerState = iota + 1
	ViewerOffered
	ViewerConnected
)

func (v ViewerState) String() string {
	switch v {
	case ViewerWatching:
		return "watching"
	case ViewerOffered:
		return "offered"
	case ViewerConnected:
		return "connected"
	default:
		return "none"
	}
}

// Session is the single screen-share session: idle, or broadcasting from one
// connection to any number of viewers.
type Session struct {
	state       State
	broadcaster protocol.ConnID
	name        string
	viewers     map[protocol.ConnID]ViewerState
}

func NewSession() *Session {
	return &Session{viewers: make(map[protocol.ConnID]ViewerState)}
}

func (s *Session) State() State {
	return s.state
}

// Broadcaster returns the current broadcaster and its display name.
func (s *Session) Broadcaster() (protocol.ConnID, string, bool) {
	if s.state != StateBroadcasting {
		return "", "", false
	}
	return s.broadcaster, s.name, true
}

// Start makes conn the broadcaster. An existing session by another
// connection is replaced; its broadcaster is returned so the caller can
// announce the stop.
func (s *Session) Start(conn protocol.ConnID, name string) (replaced protocol.ConnID, wasActive bool) {
	if s.state == StateBroadcasting && s.broadcaster != conn {
		replaced, wasActive = s.broadcaster, true
	}
	if s.broadcaster != conn {
		clear(s.viewers)
	}
	s.state = StateBroadcasting
	s.broadcaster = conn
	s.name = name
	return replaced, wasActive
}

// Stop ends the session if conn is its broadcaster.
func (s *Session) Stop(conn protocol.ConnID) bool {
	if s.state != StateBroadcasting || s.broadcaster != conn {
		return false
	}
	s.reset()
	return true
}

// Watch enrolls viewer and returns the broadcaster its request must reach.
func (s *Session) Watch(viewer protocol.ConnID) (protocol.ConnID, bool) {
	if s.state != StateBroadcasting || viewer == s.broadcaster {
		return "", false
	}
	s.viewers[viewer] = ViewerWatching
	return s.broadcaster, true
}

// Viewer returns the negotiation state of viewer.
func (s *Session) Viewer(viewer protocol.ConnID) (ViewerState, bool) {
	v, ok := s.viewers[viewer]
	return v, ok
}

// Viewers returns a copy of the viewer table.
func (s *Session) Viewers() map[protocol.ConnID]ViewerState {
	return maps.Clone(s.viewers)
}

// Leave removes conn from the session. stopped is true when conn was the
// broadcaster; broadcaster is set when conn was one of its viewers.
func (s *Session) Leave(conn protocol.ConnID) (stopped bool, broadcaster protocol.ConnID, wasViewer bool) {
	if s.state != StateBroadcasting {
		return false, "", false
	}
	if conn == s.broadcaster {
		s.reset()
		return true, "", false
	}
	if _, ok := s.viewers[conn]; ok {
		delete(s.viewers, conn)
		return false, s.broadcaster, true
	}
	return false, "", false
}

func (s *Session) offered(from, to protocol.ConnID) {
	if s.state != StateBroadcasting || from != s.broadcaster || to == "" || to == from {
		return
	}
	if s.viewers[to] < ViewerOffered {
		s.viewers[to] = ViewerOffered
	}
}

func (s *Session) answered(viewer, offerer protocol.ConnID) {
	if s.state != StateBroadcasting || offerer != s.broadcaster || viewer == offerer {
		return
	}
	s.viewers[viewer] = ViewerConnected
}

func (s *Session) reset() {
	s.state = StateIdle
	s.broadcaster = ""
	s.name = ""
	clear(s.viewers)
}
