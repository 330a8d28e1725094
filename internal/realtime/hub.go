// Package realtime fans task change signals out to live subscribers.
package realtime

import (
	"context"
	"sync"
)

// Event tells subscribers that the task set changed
type Event struct {
	Kind   string `json:"kind"`
	TaskID string `json:"task_id"`
}

// Event kinds
const (
	TaskCreated        = "task.created"
	TaskUpdated        = "task.updated"
	TaskDeleted        = "task.deleted"
	TaskCommented      = "task.commented"
	TaskMembersChanged = "task.members"
)

// Broker publishes change events and hands out subscriptions
type Broker interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe returns a channel of events and a cancel func that closes it
	Subscribe() (<-chan Event, func())
}

// Hub is an in-process Broker. Each subscriber channel holds one pending
// event; further events are dropped while it is full, since consumers
// re-read the whole task set on any signal.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Event)}
}

// Publish signals every subscriber without blocking
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, 1)
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Len returns the number of live subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
