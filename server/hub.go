package server

import (
	"context"
	"sync"

	"pathsim/simulator"

	"github.com/google/uuid"
)

// Hub fans the player's frames out to every connected page. Each subscriber holds at
// most one pending frame: a slow page skips to the newest frame instead of stalling
// the others.
type Hub struct {
	mu          sync.Mutex
	latest      simulator.Frame
	subscribers map[string]chan simulator.Frame
	closed      bool
}

func NewHub(initial simulator.Frame) *Hub {
	return &Hub{
		latest:      initial,
		subscribers: make(map[string]chan simulator.Frame),
	}
}

// Subscribe returns an id and a channel primed with the latest frame.
func (h *Hub) Subscribe() (string, <-chan simulator.Frame) {
	id := uuid.NewString()
	ch := make(chan simulator.Frame, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	ch <- h.latest
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Run forwards frames until the source closes or ctx is cancelled, then closes every
// subscriber.
func (h *Hub) Run(ctx context.Context, frames <-chan simulator.Frame) {
	defer h.close()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			h.broadcast(frame)
		}
	}
}

func (h *Hub) broadcast(frame simulator.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = frame
	for _, ch := range h.subscribers {
		// Replace the unread frame, if any.
		select {
		case <-ch:
		default:
		}
		ch <- frame
	}
}

func (h *Hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
