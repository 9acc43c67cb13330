package service

import (
	"sync"

	"github.com/joeblew999/plat-eco/internal/metrics"
)

// Event represents a change of one selection key.
type Event struct {
	Key      Key    `json:"key"`
	Value    string `json:"value"`
	Previous string `json:"previous"`
	Revision uint64 `json:"revision"`
	Origin   string `json:"origin,omitempty"` // instance that made the write
}

// EventBus is a simple fan-out pub/sub for selection change events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
			metrics.BusDroppedTotal.Inc()
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Len returns the number of subscribers.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
