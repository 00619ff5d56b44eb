package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat-live/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler upgrades GET requests on the chat endpoint and registers
// the new client with hub, which starts its pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		select {
		case hub.register <- client:
		case <-hub.ctx.Done():
			_ = conn.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "GoChat Live server is running!")
}

// HealthStatus is the body of the /healthz endpoint.
type HealthStatus struct {
	Status  string      `json:"status"`
	Clients int         `json:"clients"`
	Relay   relay.Stats `json:"relay"`
}

// HealthzHandler reports connection and relay counters as JSON.
func HealthzHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := HealthStatus{
			Status:  "ok",
			Clients: hub.ClientCount(),
			Relay:   hub.Stats(),
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Warn("Error writing health response", "error", err)
		}
	}
}

// StaticHandler serves the browser client bundle from dir under prefix.
func StaticHandler(prefix, dir string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
}
