package testing

import (
	"context"
	"sync"

	"github.com/jllopis/skillsloop/pkg/core"
)

// EventCollector is a core.EventEmitter that keeps every loop event.
type EventCollector struct {
	mu     sync.RWMutex
	events []core.Event
}

// NewEventCollector creates an empty collector.
func NewEventCollector() *EventCollector {
	return &EventCollector{}
}

var _ core.EventEmitter = (*EventCollector)(nil)

// Emit implements core.EventEmitter.
func (c *EventCollector) Emit(_ context.Context, event core.Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

// Events returns a copy of the collected events.
func (c *EventCollector) Events() []core.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Event(nil), c.events...)
}

// EventTypes returns the collected event types in order.
func (c *EventCollector) EventTypes() []core.EventType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	types := make([]core.EventType, len(c.events))
	for i, ev := range c.events {
		types[i] = ev.Type
	}
	return types
}

// ForStep returns the events emitted for one step of a session.
func (c *EventCollector) ForStep(sessionID string, step int) []core.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []core.Event
	for _, ev := range c.events {
		if ev.SessionID == sessionID && ev.Step == step {
			out = append(out, ev)
		}
	}
	return out
}

// HasEvent reports whether an event of eventType was collected.
func (c *EventCollector) HasEvent(eventType core.EventType) bool {
	for _, t := range c.EventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

// Count returns the number of collected events.
func (c *EventCollector) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Reset drops all events.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}
