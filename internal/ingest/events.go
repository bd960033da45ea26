package ingest

import "context"

// Well-known topics on the telemetry bus.
const (
	TopicRawVitals = "health/raw_vitals"
	TopicVitals    = "health/vitals"
	TopicAlerts    = "health/alerts"
	TopicTrends    = "health/trends"
	TopicConfig    = "health/config"
)

// EventType discriminates transport events.
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventMessageReceived
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessageReceived:
		return "message_received"
	}
	return "unknown"
}

// Event is one typed transport occurrence. Payload is set only for
// EventMessageReceived; Err only for EventDisconnected.
type Event struct {
	Type    EventType
	Topic   string
	Payload []byte
	Err     error
}

// Source delivers transport events to the ingest loop. Events closes when the
// source shuts down.
type Source interface {
	Events() <-chan Event
}

// Publisher pushes normalized payloads back onto the bus. Implementations
// must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}
