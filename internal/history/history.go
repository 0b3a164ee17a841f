package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart  EventType = "start"
	EventStop   EventType = "stop"
	EventConfig EventType = "config"
)

// Event represents a lifecycle event to be exported to external systems.
// Start events carry PID and Command, stop events PID and ExitCode, and
// config events Field, Old and New.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	PID        int       `json:"pid,omitempty"`
	Command    string    `json:"command,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Field      string    `json:"field,omitempty"`
	Old        string    `json:"old,omitempty"`
	New        string    `json:"new,omitempty"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(e Event) bool
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) bool { return true }

// ExitCode returns a pointer suitable for Event.ExitCode.
func ExitCode(code int) *int { return &code }
