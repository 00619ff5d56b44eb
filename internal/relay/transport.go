//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=mocks/mock_transport.go -package=mocks

package relay

import "github.com/Tyrowin/gochat-live/internal/protocol"

// Transport delivers frames to live connections. Both calls are
// fire-and-forget: a connection that cannot take the frame is simply
// skipped.
type Transport interface {
	// Send queues frame for one connection and reports whether it was
	// accepted.
	Send(to protocol.ConnID, frame protocol.Frame) bool
	// Broadcast queues frame for every connection except the given one (an
	// empty handle excludes nobody) and returns the connections that
	// accepted it.
	Broadcast(frame protocol.Frame, except protocol.ConnID) []protocol.ConnID
}
