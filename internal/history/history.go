package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventExit  EventType = "exit"
)

// Record is the per-run state attached to an event. Run is the 1-based
// sequence number of the child launch within this supervisor lifetime.
// StoppedAt and ExitCode are only meaningful on exit events.
type Record struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	Run       int       `json:"run"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	ExitCode  int       `json:"exit_code"`
}

// Event is one lifecycle event to be exported to an external system.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
