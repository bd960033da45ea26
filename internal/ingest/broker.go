package ingest

import (
	"context"
	"fmt"
	"sync"
)

// Broker is an in-process pub/sub bus implementing both Source and
// Publisher. It stands in for an external message broker in development,
// tests, and the single-binary deployment; subscribers with full buffers
// drop messages rather than stall the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	events chan Event
	closed bool
}

const subscriberBuffer = 64

func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[string][]chan Event),
		events: make(chan Event, subscriberBuffer),
	}
}

// Events implements Source. The returned channel carries every message
// published to a topic the broker-level loop subscribes to, plus lifecycle
// events.
func (b *Broker) Events() <-chan Event {
	return b.events
}

// Subscribe routes future messages on topic into the broker's event stream.
func (b *Broker) Subscribe(topics ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		b.subs[topic] = append(b.subs[topic], b.events)
	}
}

// SubscribeChan registers an independent consumer channel for one topic,
// used by auxiliary listeners (e.g. a websocket bridge).
func (b *Broker) SubscribeChan(topic string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Publish implements Publisher. Delivery to a full subscriber is dropped.
func (b *Broker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("broker is closed")
	}
	ev := Event{Type: EventMessageReceived, Topic: topic, Payload: payload}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Close ends the event stream. Publish after Close returns an error.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.events)
}
