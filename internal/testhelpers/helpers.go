// Package testhelpers provides WebSocket and HTTP utilities shared by the
// server tests.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-live/internal/delivery"
	"github.com/Tyrowin/gochat-live/internal/protocol"
)

// TestOrigin is the Origin header sent by Dial.
const TestOrigin = "http://localhost:8080"

// WebSocketURL turns an httptest server URL into its chat endpoint URL.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// MakeRequest executes an HTTP request with a 5 second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

// ConnectWebSocket dials url with the given Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Peer is a test client that reads frames in the order the server sent them,
// undoing the server's batching of several frames per WebSocket message.
// Status updates for its own messages are folded into a delivery.Ledger.
type Peer struct {
	t        *testing.T
	conn     *websocket.Conn
	pending  []protocol.Frame
	statuses *delivery.Ledger
	ID       protocol.ConnID
}

// Dial connects a Peer and consumes its welcome frame.
func Dial(t *testing.T, url string) *Peer {
	t.Helper()

	conn, _, err := ConnectWebSocket(url, TestOrigin)
	require.NoError(t, err)
	p := &Peer{t: t, conn: conn, statuses: delivery.NewLedger()}
	t.Cleanup(func() { _ = conn.Close() })

	welcome := p.Expect(protocol.EventWelcome)
	var payload protocol.WelcomePayload
	require.NoError(t, json.Unmarshal(welcome.Data, &payload))
	p.ID = payload.ID
	return p
}

// Emit sends one frame.
func (p *Peer) Emit(event protocol.Event, data any) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteJSON(protocol.MustFrame(event, data)))
}

// EmitRaw sends a raw text message.
func (p *Peer) EmitRaw(raw string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

// Join registers name and waits for the roster that follows.
func (p *Peer) Join(name string) {
	p.t.Helper()
	p.Emit(protocol.EventJoin, protocol.JoinPayload{Name: name})
	p.Expect(protocol.EventPresenceList)
}

// Next returns the next frame, failing the test after timeout.
func (p *Peer) Next(timeout time.Duration) (protocol.Frame, error) {
	if len(p.pending) == 0 {
		if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return protocol.Frame{}, err
		}
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return protocol.Frame{}, err
		}
		for _, line := range bytes.Split(raw, []byte{'\n'}) {
			frame, err := protocol.Decode(line)
			if err != nil {
				return protocol.Frame{}, err
			}
			p.pending = append(p.pending, frame)
		}
	}
	frame := p.pending[0]
	p.pending = p.pending[1:]
	return frame, nil
}

// Expect skips frames until one named event arrives.
func (p *Peer) Expect(event protocol.Event) protocol.Frame {
	p.t.Helper()
	for {
		frame, err := p.Next(2 * time.Second)
		require.NoError(p.t, err, "waiting for %s", event)
		if frame.Event == event {
			return frame
		}
	}
}

// ExpectInto waits for event and decodes its payload into dst.
func (p *Peer) ExpectInto(event protocol.Event, dst any) {
	p.t.Helper()
	frame := p.Expect(event)
	require.NoError(p.t, json.Unmarshal(frame.Data, dst))
}

// ExpectStatus waits for a status update about message id and returns the
// status it moved to. Every update must move its message forward.
func (p *Peer) ExpectStatus(id string) delivery.Status {
	p.t.Helper()
	for {
		var update protocol.StatusPayload
		p.ExpectInto(protocol.EventChatStatus, &update)
		status, err := delivery.ParseStatus(update.Status)
		require.NoError(p.t, err)
		require.True(p.t, p.statuses.Apply(update.ID, status),
			"status for %s went from %s to %s", update.ID, p.statuses.Status(update.ID), status)
		if update.ID == id {
			return status
		}
	}
}

// Status is the latest status seen for message id.
func (p *Peer) Status(id string) delivery.Status {
	return p.statuses.Status(id)
}

// ExpectNone fails if a frame named event arrives within timeout. A read
// that times out leaves the socket unusable, so call it last on a Peer.
func (p *Peer) ExpectNone(event protocol.Event, timeout time.Duration) {
	p.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		frame, err := p.Next(remaining)
		if err != nil {
			return
		}
		require.NotEqual(p.t, event, frame.Event, "unexpected %s frame", event)
	}
}

// Close sends a normal closure and closes the socket.
func (p *Peer) Close() {
	_ = p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = p.conn.Close()
}

// Conn exposes the underlying socket.
func (p *Peer) Conn() *websocket.Conn {
	return p.conn
}
