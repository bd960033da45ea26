package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vitalsentry/vitalsentry-backend/internal/ingest"
	"github.com/vitalsentry/vitalsentry-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub *Hub
	log *slog.Logger
	ctx context.Context
}

// NewHandler creates a new WebSocket handler
func NewHandler(ctx context.Context, hub *Hub, log *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		log: log,
		ctx: ctx,
	}
}

// ServeWS handles websocket requests from clients
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(h.ctx, h.hub, conn, clientID, h.log)

	// Register client
	h.hub.register <- client

	// Start client goroutines
	go client.WritePump()
	go client.ReadPump()

	h.log.Info("websocket client connected", "client_id", clientID)
}

// BridgeBroker subscribes to processed-vitals and alert events on the broker
// and forwards each one to connected clients. Runs until the subscription
// channels close or the handler context is cancelled.
func (h *Handler) BridgeBroker(broker *ingest.Broker) {
	vitals := broker.SubscribeChan(ingest.TopicVitals)
	alerts := broker.SubscribeChan(ingest.TopicAlerts)

	for {
		select {
		case <-h.ctx.Done():
			return

		case ev, ok := <-vitals:
			if !ok {
				return
			}
			var sample models.VitalSample
			if err := json.Unmarshal(ev.Payload, &sample); err != nil {
				h.log.Warn("dropping malformed vitals event", "error", err)
				continue
			}
			if err := h.hub.BroadcastVitals(&sample); err != nil {
				h.log.Warn("vitals broadcast failed", "error", err)
			}

		case ev, ok := <-alerts:
			if !ok {
				return
			}
			var anomaly models.Anomaly
			if err := json.Unmarshal(ev.Payload, &anomaly); err != nil {
				h.log.Warn("dropping malformed alert event", "error", err)
				continue
			}
			if err := h.hub.BroadcastAlert(&anomaly); err != nil {
				h.log.Warn("alert broadcast failed", "error", err)
			}
		}
	}
}
