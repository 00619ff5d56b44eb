package server

import "net/http"

const staticPrefix = "/app/"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes. The static client is only mounted when staticDir is set.
func SetupRoutes(hub *Hub, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/healthz", HealthzHandler(hub))
	if staticDir != "" {
		mux.Handle(staticPrefix, StaticHandler(staticPrefix, staticDir))
	}
	return mux
}
