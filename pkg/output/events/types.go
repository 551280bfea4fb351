// Package events defines the run events scangate emits.
//
// Every event embeds BaseEvent and serializes to one JSON object, so the
// stream can be written as JSONL and fed to hooks. All events of one run
// share a run id.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies an event.
type EventType string

const (
	// EventTypeStart is emitted once, before any console call.
	EventTypeStart EventType = "start"
	// EventTypePhase marks a phase starting, completing or failing.
	EventTypePhase EventType = "phase"
	// EventTypeScanStatus is emitted on every successful status poll.
	EventTypeScanStatus EventType = "scan_status"
	// EventTypeReport is emitted for every report written.
	EventTypeReport EventType = "report"
	// EventTypeVerdict carries the verification outcome.
	EventTypeVerdict EventType = "verdict"
	// EventTypeError is emitted when a phase fails or a best-effort step
	// reports a problem.
	EventTypeError EventType = "error"
	// EventTypeComplete is the last event of a run.
	EventTypeComplete EventType = "complete"
)

// Phase is a step of the run.
type Phase string

const (
	PhaseValidate  Phase = "validate"
	PhaseConnect   Phase = "connect"
	PhaseProvision Phase = "provision"
	PhaseScan      Phase = "scan"
	PhaseReport    Phase = "report"
	PhaseCleanup   Phase = "cleanup"
	PhaseVerify    Phase = "verify"
)

// PhaseState is where a phase is.
type PhaseState string

const (
	PhaseStarted   PhaseState = "started"
	PhaseCompleted PhaseState = "completed"
	PhaseFailed    PhaseState = "failed"
)

// Event is the interface all events implement.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	RunID() string
}

// BaseEvent contains the fields common to all events.
type BaseEvent struct {
	Type EventType `json:"type"`
	Time time.Time `json:"timestamp"`
	Run  string    `json:"run_id"`
}

// NewBase stamps a BaseEvent with the current time.
func NewBase(t EventType, runID string) BaseEvent {
	return BaseEvent{Type: t, Time: time.Now().UTC(), Run: runID}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// RunID returns the run this event belongs to.
func (e BaseEvent) RunID() string { return e.Run }
