// Package stt defines the boundary to speech-to-text engines.
package stt

import (
	"context"
	"errors"
	"time"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
)

// ErrEmptyAudio is returned when a transcriber is handed no samples.
var ErrEmptyAudio = errors.New("no audio to transcribe")

// Transcriber turns audio into text. audio is a WAV container of canonical PCM
// described by format. Implementations must be safe to call repeatedly and may
// be slow; callers bound each call with ctx.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format models.AudioFormat, language string) (string, error)
}

// Named is implemented by transcribers that report a provider name.
type Named interface {
	Name() string
}

// ProviderName returns the provider name of t, or "unknown".
func ProviderName(t Transcriber) string {
	if n, ok := t.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

// Instrumented records latency, errors and non-empty results for every call.
type Instrumented struct {
	next     Transcriber
	source   string
	provider string
	metrics  *metrics.Metrics
}

// Instrument wraps t. source labels the caller ("part", "window", "backfill").
func Instrument(t Transcriber, source string, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: t, source: source, provider: ProviderName(t), metrics: m}
}

// Name returns the wrapped provider name.
func (i *Instrumented) Name() string {
	return i.provider
}

// Transcribe calls the wrapped transcriber.
func (i *Instrumented) Transcribe(ctx context.Context, audio []byte, format models.AudioFormat, language string) (string, error) {
	start := time.Now()
	text, err := i.next.Transcribe(ctx, audio, format, language)
	i.metrics.RecordTranscription(i.provider, i.source, err, text, time.Since(start).Seconds())
	return text, err
}
