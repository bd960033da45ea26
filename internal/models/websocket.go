package models

import "time"

// WebSocketMessage is the envelope pushed to dashboard clients.
type WebSocketMessage struct {
	Type      string      `json:"type"`  // vitals_update, alert, config_update
	Event     string      `json:"event"` // received, raised, changed
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}
