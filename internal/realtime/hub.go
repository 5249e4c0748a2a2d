// Package realtime fans meeting events out to connected users.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuffer is the number of events queued per subscription before new
// events for it are dropped.
const DefaultBuffer = 16

// Event is a message delivered to a user.
type Event struct {
	Type       string    `json:"type"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Hub keeps per-user subscriptions. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	buffer  int
	dropped atomic.Int64
	closed  bool
	logger  *slog.Logger
}

// NewHub creates a hub with the given per-subscription buffer.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscription receives the events published to one user.
type Subscription struct {
	UserID string
	events chan Event
	hub    *Hub
	once   sync.Once
}

// Events returns the channel events arrive on. It is closed when the
// subscription or the hub is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close removes the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Subscribe registers a new subscription for userID.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{UserID: userID, events: make(chan Event, h.buffer), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.events)
		return sub
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

// Publish delivers event to every subscription of userID and returns how
// many received it.
func (h *Hub) Publish(userID string, event Event) int {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[userID] {
		select {
		case sub.events <- event:
			delivered++
		default:
			h.dropped.Add(1)
			h.logger.Warn("dropping event for slow subscriber", "user_id", userID, "type", event.Type)
		}
	}
	return delivered
}

// Notify publishes event to userID. It satisfies notifier interfaces that
// expect an error return and never fails.
func (h *Hub) Notify(_ context.Context, userID string, event Event) error {
	h.Publish(userID, event)
	return nil
}

// Subscribers returns the number of open subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Dropped returns how many events were discarded because a buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close closes every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for userID, subs := range h.subs {
		for sub := range subs {
			sub.once.Do(func() { close(sub.events) })
		}
		delete(h.subs, userID)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[sub.UserID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.UserID)
		}
	}
	sub.once.Do(func() { close(sub.events) })
}
