package segment

import (
	"errors"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle()

	if lc.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", lc.State())
	}
	if lc.SessionId() != "" {
		t.Errorf("expected empty session ID, got %v", lc.SessionId())
	}
	if lc.IsRecording() {
		t.Error("expected IsRecording to be false")
	}
}

func TestLifecycle_FullCycle(t *testing.T) {
	lc := NewLifecycle()

	if err := lc.Begin("rec-1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !lc.IsRecording() || lc.SessionId() != "rec-1" {
		t.Errorf("expected RECORDING rec-1, got %v %s", lc.State(), lc.SessionId())
	}

	id, err := lc.End()
	if err != nil || id != "rec-1" {
		t.Fatalf("End = %q, %v", id, err)
	}
	if lc.State() != StateIdle {
		t.Errorf("expected StateIdle after End, got %v", lc.State())
	}

	if err := lc.Begin("rec-2"); err != nil {
		t.Errorf("expected a second session to begin, got %v", err)
	}
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	lc := NewLifecycle()

	if _, err := lc.End(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("End while idle: expected ErrNotRecording, got %v", err)
	}

	lc.Begin("rec-1")
	if err := lc.Begin("rec-2"); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("Begin while recording: expected ErrAlreadyRecording, got %v", err)
	}
	if lc.SessionId() != "rec-1" {
		t.Errorf("expected session ID unchanged, got %s", lc.SessionId())
	}
}

func TestLifecycle_Close(t *testing.T) {
	lc := NewLifecycle()
	lc.Begin("rec-1")

	if !lc.Close() {
		t.Error("expected first Close to return true")
	}
	if lc.Close() {
		t.Error("expected second Close to return false")
	}
	if lc.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", lc.State())
	}
	if err := lc.Begin("rec-2"); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("expected ErrRecorderClosed, got %v", err)
	}
	if _, err := lc.End(); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("expected ErrRecorderClosed, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "IDLE"},
		{StateRecording, "RECORDING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestState_IsTerminal(t *testing.T) {
	if StateIdle.IsTerminal() || StateRecording.IsTerminal() {
		t.Error("expected IDLE and RECORDING to be non-terminal")
	}
	if !StateClosed.IsTerminal() {
		t.Error("expected CLOSED to be terminal")
	}
}
