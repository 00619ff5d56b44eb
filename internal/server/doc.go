// Package server carries the relay over HTTP and WebSocket.
//
// The Hub owns the connected clients and drives a relay.Engine from a single
// event loop; each Client runs a read pump that decodes frames for the hub
// and a write pump that drains its send queue. The rest of the package holds
// configuration, origin checks, per-connection rate limiting, HTTP handlers
// and server lifecycle helpers.
package server
