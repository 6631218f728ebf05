package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// Registry events.
	EventTaskSuperseded EventType = "task.superseded"
	EventTaskCancelled  EventType = "task.cancelled"

	// Reveal animation events.
	EventRevealCompleted EventType = "reveal.completed"
	EventRevealSkipped   EventType = "reveal.skipped"

	// Theme transition events.
	EventTransitionStarted   EventType = "transition.started"
	EventTransitionCompleted EventType = "transition.completed"
	EventTransitionCancelled EventType = "transition.cancelled"
	EventTransitionFailed    EventType = "transition.failed"

	// Viewer events.
	EventPageLoaded EventType = "page.loaded"
	EventPageFailed EventType = "page.failed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Key       string          `json:"key,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}

// PublishEvent marshals payload and publishes it on bus. A nil bus is a no-op.
func PublishEvent(ctx context.Context, bus EventBus, eventType EventType, key string, payload any) {
	if bus == nil {
		return
	}
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	bus.Publish(ctx, Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Key:       key,
		Payload:   data,
	})
}
