package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/gochat-live/internal/protocol"
	"github.com/Tyrowin/gochat-live/internal/relay"
)

// Hub owns every live client and the relay engine. All engine calls happen
// on the Run goroutine, one event at a time; the hub is also the engine's
// Transport, so the frames a handler emits are queued before the next event
// is picked up.
type Hub struct {
	clients    map[protocol.ConnID]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	engine     *relay.Engine
	evicted    []protocol.ConnID
	stats      atomic.Pointer[relay.Stats]
	log        *slog.Logger
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub running a relay engine with the given options. The
// returned Hub is ready to Run.
func NewHub(opts relay.Options, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[protocol.ConnID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		log:        log.With("component", "hub"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.engine = relay.NewEngine(h, opts, log.With("component", "relay"))
	h.publishStats()
	return h
}

// Stats returns the relay state as of the last processed event.
func (h *Hub) Stats() relay.Stats {
	return *h.stats.Load()
}

// ClientCount is the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Send implements relay.Transport. A client whose buffer is full is evicted.
func (h *Hub) Send(to protocol.ConnID, frame protocol.Frame) bool {
	h.mutex.RLock()
	client, ok := h.clients[to]
	h.mutex.RUnlock()
	if !ok {
		return false
	}

	payload, err := frame.Encode()
	if err != nil {
		h.log.Error("Failed to encode frame", "event", frame.Event, "error", err)
		return false
	}
	if !h.safeSend(client, payload) {
		h.removeFailedClients([]*Client{client})
		return false
	}
	return true
}

// Broadcast implements relay.Transport.
func (h *Hub) Broadcast(frame protocol.Frame, except protocol.ConnID) []protocol.ConnID {
	payload, err := frame.Encode()
	if err != nil {
		h.log.Error("Failed to encode frame", "event", frame.Event, "error", err)
		return nil
	}

	clients := h.getClientSnapshot()
	receivers := make([]protocol.ConnID, 0, len(clients))
	var failed []*Client
	for _, client := range clients {
		if client.id == except {
			continue
		}
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
			continue
		}
		receivers = append(receivers, client.id)
	}

	h.log.Debug("Broadcast frame", "event", frame.Event, "receivers", len(receivers))
	h.removeFailedClients(failed)
	return receivers
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic in safeSend", "conn", client.id, "panic", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's event loop. It returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
			h.engine.Disconnect(client.id)

		case in := <-h.inbound:
			if in.err != nil {
				h.engine.Reject(in.conn, in.err)
			} else {
				_ = h.engine.Handle(in.conn, in.frame)
			}
		}

		h.flushEvicted()
		h.publishStats()
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("Client registered", "conn", client.id, "remote", client.addr, "clients", clientCount)

	h.engine.Connect(client.id)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	close(client.send)
	h.log.Info("Client unregistered", "conn", client.id, "remote", client.addr, "clients", clientCount)
}

// getClientSnapshot returns the registered clients.
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients drops clients that could not take a frame and closes
// their send channels, which makes their write pumps hang up. The relay
// learns about them in flushEvicted once the current handler is done.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client.id]; exists {
			delete(h.clients, client.id)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.evicted = append(h.evicted, client.id)
			h.log.Warn("Client removed due to full send buffer", "conn", client.id, "remote", client.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// flushEvicted disconnects evicted clients from the relay. Disconnecting can
// evict further clients, so it loops until nothing is left.
func (h *Hub) flushEvicted() {
	for len(h.evicted) > 0 {
		conn := h.evicted[0]
		h.evicted = h.evicted[1:]
		h.engine.Disconnect(conn)
	}
}

func (h *Hub) publishStats() {
	stats := h.engine.Stats()
	h.stats.Store(&stats)
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections")

	clients := h.getClientSnapshot()
	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("Error closing client connection", "conn", client.id, "error", err)
		}
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops the event loop, closes every connection and waits for the
// client goroutines to finish or for the timeout to expire.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
