package engine

import (
	"sync"
	"time"
)

// EventType classifies engine run events.
type EventType string

const (
	EventRunStarted          EventType = "run_started"
	EventSourceSkipped       EventType = "source_skipped"
	EventTranscriptProcessed EventType = "transcript_processed"
	EventTranscriptFailed    EventType = "transcript_failed"
	EventObservationCreated  EventType = "observation_created"
	EventObservationMerged   EventType = "observation_merged"
	EventRunFinished         EventType = "run_finished"
)

// Event is one thing that happened during a run.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus decouples the engine from whatever wants to watch a run: the
// TUI, a progress printer, tests.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allHandlers = append(eb.allHandlers, handler)
}

// Publish sends an event to all registered handlers.
func (eb *EventBus) Publish(eventType EventType, data map[string]interface{}) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	for _, handler := range eb.handlers[eventType] {
		handler(event)
	}
	for _, handler := range eb.allHandlers {
		handler(event)
	}
}
