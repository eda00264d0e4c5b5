// Package event delivers adapter status notifications to host listeners.
package event

import (
	gosync "sync"

	"github.com/nhle/change-adapter/internal/model"
)

// Payload identifies the adapter instance that emitted an event.
type Payload struct {
	ID string `json:"id"`
}

// Listener receives a status event. It runs on the emitting goroutine.
type Listener func(status model.Status, payload Payload)

// Bus is a synchronous publish/subscribe hub keyed by status name.
// Listeners are invoked in registration order and Emit returns only after
// every listener has returned.
type Bus struct {
	mu        gosync.RWMutex
	listeners map[model.Status][]Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[model.Status][]Listener),
	}
}

// On registers l for events named status.
func (b *Bus) On(status model.Status, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners[status] = append(b.listeners[status], l)
}

// OnAny registers l for both ONLINE and OFFLINE.
func (b *Bus) OnAny(l Listener) {
	b.On(model.StatusOnline, l)
	b.On(model.StatusOffline, l)
}

// Emit delivers payload to every listener registered for status and
// reports how many listeners were called.
func (b *Bus) Emit(status model.Status, payload Payload) int {
	b.mu.RLock()
	// Copy so listeners may register further listeners without deadlocking.
	ls := make([]Listener, len(b.listeners[status]))
	copy(ls, b.listeners[status])
	b.mu.RUnlock()

	for _, l := range ls {
		l(status, payload)
	}
	return len(ls)
}

// ListenerCount returns the number of listeners registered for status.
func (b *Bus) ListenerCount(status model.Status) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.listeners[status])
}
