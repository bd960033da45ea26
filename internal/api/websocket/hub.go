package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/metrics"
)

// Hub maintains active WebSocket connections and broadcasts messages
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Inbound messages from clients
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe operations
	mu sync.RWMutex

	log *slog.Logger

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub
func NewHub(ctx context.Context, log *slog.Logger) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log,
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WebSocketConnectionsActive.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebSocketConnectionsActive.Dec()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			// Write lock: dropping a client with a full buffer mutates
			// the map, which must not race a concurrent RLock reader.
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client buffer full, close connection
					close(client.send)
					delete(h.clients, client)
					metrics.WebSocketConnectionsActive.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close all client connections
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketConnectionsActive.Dec()
	}
}

// BroadcastVitals broadcasts a processed vitals sample to all clients
func (h *Hub) BroadcastVitals(sample *models.VitalSample) error {
	return h.broadcastMessage(models.WebSocketMessage{
		Type:      "vitals_update",
		Event:     "received",
		Payload:   sample,
		Timestamp: time.Now(),
	})
}

// BroadcastAlert broadcasts a detected anomaly to all clients
func (h *Hub) BroadcastAlert(anomaly *models.Anomaly) error {
	return h.broadcastMessage(models.WebSocketMessage{
		Type:      "alert",
		Event:     "raised",
		Payload:   anomaly,
		Timestamp: time.Now(),
	})
}

func (h *Hub) broadcastMessage(msg models.WebSocketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
