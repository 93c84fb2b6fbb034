package core

import (
	"context"
	"time"
)

// StepFunc observes each decision before it is acted upon.
type StepFunc func(step int, action Action)

// EventType identifies a semantic event emitted by the orchestrator.
type EventType string

const (
	EventSessionStarted      EventType = "session.started"
	EventActionDecided       EventType = "action.decided"
	EventObservationRecorded EventType = "observation.recorded"
	EventSessionCompleted    EventType = "session.completed"
)

// Event captures a semantic logging event.
type Event struct {
	Type      EventType
	SessionID string
	Step      int
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, sessionID string, step int, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		Step:      step,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
