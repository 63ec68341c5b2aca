package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType is the value of the "t" discriminator on a streamed event.
type EventType string

const (
	EventTypeStatus       EventType = "status"
	EventTypeLog          EventType = "log"
	EventTypeTitle        EventType = "title.generated"
	EventTypeRouterResult EventType = "router.result"
	EventTypePlanReady    EventType = "plan.ready"
	EventTypeDone         EventType = "done"
)

// StepState represents the status of a single pipeline step
type StepState string

const (
	StepQueued  StepState = "queued"
	StepRunning StepState = "running"
	StepDone    StepState = "done"
	StepFailed  StepState = "failed"
)

// Valid reports whether s is one of the four known step states.
func (s StepState) Valid() bool {
	switch s {
	case StepQueued, StepRunning, StepDone, StepFailed:
		return true
	}
	return false
}

// RunKind distinguishes a fresh generation from a modification of an
// existing project.
type RunKind string

const (
	RunKindGenerate RunKind = "generate"
	RunKindModify   RunKind = "modify"
)

// Well-known step keys emitted by the pipeline
const (
	StepKeyRouter    = "router"
	StepKeyPlanner   = "planner"
	StepKeyImplement = "implement"
	StepKeyTest      = "test"
	StepKeyFix       = "fix"
)

// generateOrder is the display/derivation order for a generation run.
// A modification run skips routing, so its order drops the first entry.
var generateOrder = []string{
	StepKeyRouter,
	StepKeyPlanner,
	StepKeyImplement,
	StepKeyTest,
	StepKeyFix,
}

// StepOrder returns the fixed step order for a run kind. The returned
// slice must not be mutated by callers.
func StepOrder(kind RunKind) []string {
	if kind == RunKindModify {
		return generateOrder[1:]
	}
	return generateOrder
}

// Event is one item from the run event stream. The concrete type is
// determined by the "t" field; unrecognized discriminators decode to
// UnknownEvent so the union stays closed.
type Event interface {
	EventType() EventType
}

// StatusEvent reports a step transition
type StatusEvent struct {
	Step  string    `json:"step"`
	State StepState `json:"state"`
}

// LogEvent carries appendable log text
type LogEvent struct {
	Stream string `json:"stream,omitempty"`
	Chunk  string `json:"chunk"`
}

// TitleEvent announces the generated project title
type TitleEvent struct {
	Title string `json:"title"`
}

// RouterResultEvent is informational routing output
type RouterResultEvent struct {
	Domain     string  `json:"domain"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// PlanReadyEvent is informational plan output
type PlanReadyEvent struct {
	Files int `json:"files"`
}

// DoneEvent is the terminal event for a run
type DoneEvent struct {
	OK        bool   `json:"ok"`
	ProjectID string `json:"project_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// UnknownEvent carries an event with an unrecognized discriminator.
// The raw payload is preserved for diagnostics.
type UnknownEvent struct {
	Type EventType
	Raw  json.RawMessage
}

func (StatusEvent) EventType() EventType       { return EventTypeStatus }
func (LogEvent) EventType() EventType          { return EventTypeLog }
func (TitleEvent) EventType() EventType        { return EventTypeTitle }
func (RouterResultEvent) EventType() EventType { return EventTypeRouterResult }
func (PlanReadyEvent) EventType() EventType    { return EventTypePlanReady }
func (DoneEvent) EventType() EventType         { return EventTypeDone }
func (u UnknownEvent) EventType() EventType    { return u.Type }

// Parse decodes a single streamed payload into its concrete event type.
// Only invalid JSON or a missing/empty "t" field is an error; an
// unrecognized discriminator is returned as an UnknownEvent.
func Parse(data []byte) (Event, error) {
	var envelope struct {
		T EventType `json:"t"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if envelope.T == "" {
		return nil, fmt.Errorf("event missing 't' field")
	}

	switch envelope.T {
	case EventTypeStatus:
		var ev StatusEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode status event: %w", err)
		}
		if ev.Step == "" {
			return nil, fmt.Errorf("status event missing 'step' field")
		}
		if !ev.State.Valid() {
			return nil, fmt.Errorf("status event has invalid state %q", ev.State)
		}
		return ev, nil

	case EventTypeLog:
		var ev LogEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode log event: %w", err)
		}
		return ev, nil

	case EventTypeTitle:
		var ev TitleEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode title event: %w", err)
		}
		return ev, nil

	case EventTypeRouterResult:
		var ev RouterResultEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode router result: %w", err)
		}
		return ev, nil

	case EventTypePlanReady:
		var ev PlanReadyEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode plan event: %w", err)
		}
		return ev, nil

	case EventTypeDone:
		var ev DoneEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode done event: %w", err)
		}
		return ev, nil

	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return UnknownEvent{Type: envelope.T, Raw: raw}, nil
	}
}
