//go:build whisper

// Package whisper runs local inference through the whisper.cpp Go bindings.
// Build with -tags whisper and the whisper.cpp static library available to cgo.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
)

// Available reports whether the binary was built with whisper.cpp support.
const Available = true

// Transcriber implements stt.Transcriber with a loaded ggml model.
type Transcriber struct {
	model whisperlib.Model
	// whisper.cpp is not thread safe; one inference at a time per model.
	inferenceMu sync.Mutex
}

var _ stt.Transcriber = (*Transcriber)(nil)

// New loads the model at modelPath.
func New(modelPath string) (*Transcriber, error) {
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", modelPath, err)
	}
	return &Transcriber{model: model}, nil
}

// Name returns the provider name.
func (t *Transcriber) Name() string {
	return "whisper"
}

// Transcribe decodes the WAV container and runs inference on the samples.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format models.AudioFormat, language string) (string, error) {
	samples, _, err := pcm.DecodeWAV(bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("whisper transcribe: %w", err)
	}
	if len(samples) == 0 {
		return "", stt.ErrEmptyAudio
	}
	if format.SampleRateHz != whisperlib.SampleRate {
		return "", fmt.Errorf("whisper transcribe: model requires %d Hz, got %d", whisperlib.SampleRate, format.SampleRateHz)
	}
	floats := pcm.ToFloat32(samples)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper context: %w", err)
	}
	if language == "" {
		language = "auto"
	}
	if err := wctx.SetLanguage(language); err != nil {
		return "", fmt.Errorf("whisper language %q: %w", language, err)
	}
	wctx.SetTranslate(false)

	var result strings.Builder
	segmentCallback := func(segment whisperlib.Segment) {
		result.WriteString(segment.Text)
	}

	t.inferenceMu.Lock()
	err = wctx.Process(floats, nil, segmentCallback, nil)
	t.inferenceMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	text := strings.TrimSpace(result.String())
	if text == "[BLANK_AUDIO]" || text == "BLANK_AUDIO" {
		return "", nil
	}
	return text, nil
}

// Close releases the model.
func (t *Transcriber) Close() error {
	return t.model.Close()
}
