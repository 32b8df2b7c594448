// Package events is the in-process fan-out for job status
// transitions, feeding the websocket endpoint and any poller.
package events

import (
	"sync"

	"github.com/google/uuid"

	"reviewminer/internal/ports"
)

const subscriberBuffer = 16

type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan ports.JobEvent
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]chan ports.JobEvent)}
}

// Publish delivers the event to every subscriber. A subscriber whose
// buffer is full loses the event rather than blocking the pipeline.
func (h *Hub) Publish(event ports.JobEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribe() (string, <-chan ports.JobEvent) {
	id := uuid.NewString()
	ch := make(chan ports.JobEvent, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	return id, ch
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}
