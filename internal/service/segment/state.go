// Package segment records Active stretches of audio into rotating part files and
// hands finished sessions off for transcription and combining.
package segment

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the recorder state.
type State int

const (
	// StateIdle - No session is open.
	StateIdle State = iota
	// StateRecording - A session is open and frames are appended to its current part.
	StateRecording
	// StateClosed - The recorder was shut down. Terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Errors for invalid state transitions.
var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrRecorderClosed   = errors.New("recorder is closed")
)

// Lifecycle guards the recorder state machine.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE ──Begin()──→ RECORDING ──End()──→ IDLE
//	  │                   │
//	  └──────Close()──────┴──→ CLOSED
type Lifecycle struct {
	mu        sync.RWMutex
	sessionId string
	state     State
}

// NewLifecycle creates a lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// SessionId returns the open session ID, or "" when idle.
func (l *Lifecycle) SessionId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsRecording returns true while a session is open.
func (l *Lifecycle) IsRecording() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRecording
}

// Begin transitions IDLE → RECORDING.
func (l *Lifecycle) Begin(sessionId string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateIdle:
		l.state = StateRecording
		l.sessionId = sessionId
		return nil
	case StateRecording:
		return ErrAlreadyRecording
	case StateClosed:
		return ErrRecorderClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// End transitions RECORDING → IDLE and returns the ended session ID.
func (l *Lifecycle) End() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateRecording:
		id := l.sessionId
		l.state = StateIdle
		l.sessionId = ""
		return id, nil
	case StateIdle:
		return "", ErrNotRecording
	case StateClosed:
		return "", ErrRecorderClosed
	default:
		return "", fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Close transitions to CLOSED from any state. Idempotent.
// Returns false if already closed.
func (l *Lifecycle) Close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateClosed
	l.sessionId = ""
	return true
}
