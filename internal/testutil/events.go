package testutil

import "sync"

// Event is one recorded emission.
type Event struct {
	Name string
	Data map[string]any
}

// EventRecorder collects emitted events for assertions.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records an event.
func (r *EventRecorder) Emit(name string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, Data: data})
}

// Events returns a copy of everything recorded.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event{}, r.events...)
}

// Named returns the recorded events with the given name.
func (r *EventRecorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var filtered []Event
	for _, e := range r.events {
		if e.Name == name {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
