// Package event carries run lifecycle notifications from the supervisor to
// interested listeners over a synchronous pub-sub bus.
//
// Event types follow the pattern "category.action":
//   - attempt.started, attempt.finished
//   - run.finished
package event

import "time"

// Event type names
const (
	TypeAttemptStarted  = "attempt.started"
	TypeAttemptFinished = "attempt.finished"
	TypeRunFinished     = "run.finished"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns the "category.action" identifier.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// AttemptStartedEvent is emitted before the runner is spawned.
type AttemptStartedEvent struct {
	baseEvent
	Attempt int
	Retry   bool
	Specs   []string // Spec filter; empty runs the full configuration
}

// NewAttemptStartedEvent creates an AttemptStartedEvent.
func NewAttemptStartedEvent(attempt int, retry bool, specs []string) AttemptStartedEvent {
	return AttemptStartedEvent{
		baseEvent: newBaseEvent(TypeAttemptStarted),
		Attempt:   attempt,
		Retry:     retry,
		Specs:     specs,
	}
}

// AttemptFinishedEvent is emitted once an attempt's output has been judged.
type AttemptFinishedEvent struct {
	baseEvent
	Attempt     int
	ExitStatus  int
	Duration    time.Duration
	TimedOut    bool
	Decision    string   // "succeed", "stop", "stop_silent" or "retry"
	FailedSpecs []string // Specs found in the output, if it was parsed
}

// NewAttemptFinishedEvent creates an AttemptFinishedEvent.
func NewAttemptFinishedEvent(attempt, exitStatus int, duration time.Duration, timedOut bool, decision string, failedSpecs []string) AttemptFinishedEvent {
	return AttemptFinishedEvent{
		baseEvent:   newBaseEvent(TypeAttemptFinished),
		Attempt:     attempt,
		ExitStatus:  exitStatus,
		Duration:    duration,
		TimedOut:    timedOut,
		Decision:    decision,
		FailedSpecs: failedSpecs,
	}
}

// RunFinishedEvent is emitted when the supervisor loop ends, including when
// it ends with an error.
type RunFinishedEvent struct {
	baseEvent
	Outcome    string
	ExitStatus int
	Attempts   int
	Err        error
}

// NewRunFinishedEvent creates a RunFinishedEvent.
func NewRunFinishedEvent(outcome string, exitStatus, attempts int, err error) RunFinishedEvent {
	return RunFinishedEvent{
		baseEvent:  newBaseEvent(TypeRunFinished),
		Outcome:    outcome,
		ExitStatus: exitStatus,
		Attempts:   attempts,
		Err:        err,
	}
}
