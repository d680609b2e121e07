// Package mock provides a canned-response transcriber for running the monitor
// without an inference engine or cloud credentials.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
)

// DefaultUtterances are returned in order, cycling.
var DefaultUtterances = []string{
	"Remind me to call the plumber tomorrow morning",
	"The meeting moved to three thirty",
	"Add milk and coffee to the shopping list",
	"I think we should ship it on Friday",
	"Thank you very much",
}

// Transcriber implements stt.Transcriber with canned utterances.
type Transcriber struct {
	mu         sync.Mutex
	utterances []string
	next       int
	calls      int
	delay      time.Duration
}

var _ stt.Transcriber = (*Transcriber)(nil)

// New creates a mock transcriber that cycles through DefaultUtterances.
func New(delay time.Duration) *Transcriber {
	return NewWithUtterances(DefaultUtterances, delay)
}

// NewWithUtterances creates a mock transcriber returning the given texts in order.
// An empty list makes every call return "".
func NewWithUtterances(utterances []string, delay time.Duration) *Transcriber {
	return &Transcriber{utterances: utterances, delay: delay}
}

// Name returns the provider name.
func (t *Transcriber) Name() string {
	return "mock"
}

// Transcribe simulates inference latency and returns the next utterance.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format models.AudioFormat, language string) (string, error) {
	if len(audio) < 12 || !bytes.Equal(audio[0:4], []byte("RIFF")) || !bytes.Equal(audio[8:12], []byte("WAVE")) {
		return "", fmt.Errorf("mock transcribe: expected a WAV container")
	}
	if err := format.Validate(); err != nil {
		return "", fmt.Errorf("mock transcribe: %w", err)
	}

	if t.delay > 0 {
		timer := time.NewTimer(t.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if len(t.utterances) == 0 {
		return "", nil
	}
	text := t.utterances[t.next%len(t.utterances)]
	t.next++
	return text, nil
}

// Calls returns the number of completed calls.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
