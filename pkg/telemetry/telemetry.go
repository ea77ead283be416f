package telemetry

import (
	"sync"
	"time"
)

// EventType identifies the kind of telemetry event.
type EventType string

const (
	EventTaskStarting  EventType = "task.starting"
	EventTaskWaiting   EventType = "task.waiting"
	EventTaskRunning   EventType = "task.running"
	EventTaskFinished  EventType = "task.finished"
	EventTaskError     EventType = "task.error"
	EventTaskCancelled EventType = "task.cancelled"
	EventTaskProgress  EventType = "task.progress"

	EventBridgeClosed EventType = "bridge.closed"

	EventSessionCreated EventType = "session.created"
	EventSessionClosed  EventType = "session.closed"
)

// DefaultSubscriberBuffer is the channel size handed to each subscriber.
const DefaultSubscriberBuffer = 64

// Event describes task and session telemetry that UI adapters can consume.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId,omitempty"`
	TaskKey   string         `json:"taskKey,omitempty"`
	RunID     string         `json:"runId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub fan-outs telemetry events to any number of subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	buffer      int
	closed      bool
}

// NewHub constructs a telemetry hub.
func NewHub() *Hub {
	return NewHubWithBuffer(DefaultSubscriberBuffer)
}

// NewHubWithBuffer constructs a hub whose subscribers get buffer-sized channels.
func NewHubWithBuffer(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{subscribers: make(map[chan Event]struct{}), buffer: buffer}
}

// Publish notifies all subscribers of an event. Non-blocking; drops if buffer full.
// A nil hub ignores the event.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Drop if subscriber can't keep up; the loop side never blocks on UI consumers.
		}
	}
}

// Subscribe returns a channel that will receive future events and a cleanup func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		empty := make(chan Event)
		close(empty)
		return empty, func() {}
	}
	ch := make(chan Event, h.buffer)
	h.subscribers[ch] = struct{}{}
	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close unsubscribes all listeners and prevents future publications.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}
