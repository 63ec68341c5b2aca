// Package runstate folds pipeline events into per-run step state.
package runstate

import (
	"sync"
	"sync/atomic"

	"github.com/webgenai/genctl/internal/protocol"
)

// LogEntry is one line of the run's chat-style log
type LogEntry struct {
	Text     string
	FromUser bool
}

// Session tracks one pipeline run: the status of each step, an
// append-only log and the last raw event seen. A Session is never
// shared across runs; starting a new run means Reset or a new Session.
type Session struct {
	mu        sync.Mutex
	id        string
	kind      protocol.RunKind
	steps     map[string]protocol.StepState
	log       []LogEntry
	lastEvent protocol.Event
	running   bool

	// finalizing is the single-flight guard for terminal event
	// handling. It belongs to the session, not the package, so
	// concurrent sessions can never share it.
	finalizing atomic.Bool
}

// New creates a session for the given run
func New(id string, kind protocol.RunKind) *Session {
	return &Session{
		id:    id,
		kind:  kind,
		steps: make(map[string]protocol.StepState),
	}
}

// ID returns the run identifier
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Kind returns the run kind
func (s *Session) Kind() protocol.RunKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// SetRunning marks whether the pipeline is currently executing
func (s *Session) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// Running reports whether the pipeline is currently executing
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ApplyStatus records a step transition. The most recently processed
// event for a step always wins; no ordering check is performed.
func (s *Session) ApplyStatus(step string, state protocol.StepState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[step] = state
}

// StepStatus returns the recorded state for a step, or StepQueued if
// the step has not been seen.
func (s *Session) StepStatus(step string) protocol.StepState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.steps[step]; ok {
		return st
	}
	return protocol.StepQueued
}

// Steps returns a copy of the step map
func (s *Session) Steps() map[string]protocol.StepState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]protocol.StepState, len(s.steps))
	for k, v := range s.steps {
		out[k] = v
	}
	return out
}

// AppendLog appends one log entry
func (s *Session) AppendLog(text string, fromUser bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, LogEntry{Text: text, FromUser: fromUser})
}

// Log returns a copy of the log in order
func (s *Session) Log() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// SetLastEvent records the most recent raw event for diagnostics
func (s *Session) SetLastEvent(ev protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEvent = ev
}

// LastEvent returns the most recent event seen, or nil
func (s *Session) LastEvent() protocol.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEvent
}

// ActiveStep derives the currently active step from the step map and
// the kind's fixed order: any running step wins; otherwise the first
// step not yet done; otherwise the last step. The result is computed
// fresh on every call.
func (s *Session) ActiveStep() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := protocol.StepOrder(s.kind)
	if len(order) == 0 {
		return ""
	}
	for _, step := range order {
		if s.steps[step] == protocol.StepRunning {
			return step
		}
	}
	for _, step := range order {
		if s.steps[step] != protocol.StepDone {
			return step
		}
	}
	return order[len(order)-1]
}

// BeginFinalize attempts to take the single-flight guard for terminal
// event handling. It returns false when finalization is already in
// progress, in which case the caller must drop the event.
func (s *Session) BeginFinalize() bool {
	return s.finalizing.CompareAndSwap(false, true)
}

// EndFinalize releases the single-flight guard
func (s *Session) EndFinalize() {
	s.finalizing.Store(false)
}

// Finalizing reports whether terminal handling is in progress
func (s *Session) Finalizing() bool {
	return s.finalizing.Load()
}

// Reset clears all run state. Used when a new run starts on the same
// session or the user cancels.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = make(map[string]protocol.StepState)
	s.log = nil
	s.lastEvent = nil
	s.running = false
	s.finalizing.Store(false)
}
