// Package feed streams engagement events to live websocket subscribers.
package feed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/honeypot/internal/domain"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// Event describes one processed message.
type Event struct {
	SessionID  string            `json:"session_id"`
	Status     domain.Status     `json:"status"`
	StopReason domain.StopReason `json:"stop_reason,omitempty"`
	Turns      int               `json:"turns"`
	NewIntel   domain.Intel      `json:"new_intel"`
	Timestamp  time.Time         `json:"ts"`
}

// Subscriber receives events until its channel is closed.
type Subscriber struct {
	id     uint64
	events chan Event
}

// Events returns the receive side of the subscription.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Hub fans events out to subscribers. A subscriber whose queue is full is
// dropped rather than blocking the publisher. New subscribers first receive
// the most recent events, up to the buffer size.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscriber
	nextID  uint64
	buffer  int
	history *history
	closed  bool
	logger  *slog.Logger
}

// NewHub creates a hub. buffer <= 0 uses DefaultBuffer.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:    make(map[uint64]*Subscriber),
		buffer:  buffer,
		history: newHistory(buffer / 2),
		logger:  logger,
	}
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscriber's channel is already closed.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{id: h.nextID, events: make(chan Event, h.buffer)}
	if h.closed {
		close(sub.events)
		return sub
	}
	for _, ev := range h.history.events() {
		sub.events <- ev
	}
	h.subs[sub.id] = sub
	h.logger.Debug("Feed subscriber registered", "subscriber", sub.id, "total", len(h.subs))
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.events)
	h.logger.Debug("Feed subscriber unregistered", "subscriber", sub.id, "total", len(h.subs))
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.history.add(ev)

	for id, sub := range h.subs {
		select {
		case sub.events <- ev:
		default:
			delete(h.subs, id)
			close(sub.events)
			h.logger.Warn("Feed subscriber too slow, dropped", "subscriber", id)
		}
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.events)
	}
}
