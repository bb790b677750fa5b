package logstream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// subscriberBufferSize is the channel buffer for each WebSocket client.
const subscriberBufferSize = 64

// HubStats is a point-in-time view of the hub.
type HubStats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

// Hub fans log entries out to every subscriber. Publishing never blocks:
// entries are dropped for subscribers whose buffer is full.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Entry
	closed      bool

	published atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]chan Entry)}
}

// Subscribe registers a subscriber and returns its channel and id. The
// subscription is removed when ctx is cancelled. On a closed hub the
// returned channel is already closed.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Entry, string) {
	id := uuid.New().String()
	ch := make(chan Entry, subscriberBufferSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, id
	}
	h.subscribers[id] = ch
	h.mu.Unlock()

	log.Debug().Str("component", "logstream").Str("sub_id", id).Msg("subscriber added")

	go func() {
		<-ctx.Done()
		h.Unsubscribe(id)
	}()

	return ch, id
}

// Publish delivers e to every current subscriber.
func (h *Hub) Publish(e Entry) {
	h.published.Add(1)

	// Channels stay open while the read lock is held.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
			log.Debug().Str("component", "logstream").Str("sub_id", id).Msg("dropped entry for slow subscriber")
		}
	}
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	close(ch)

	log.Debug().Str("component", "logstream").Str("sub_id", id).Msg("subscriber removed")
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Stats returns subscriber and delivery counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Subscribers: h.Len(),
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// Close removes every subscriber and closes their channels. Later
// Subscribe calls get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
