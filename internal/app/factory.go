package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/erikprat61/supreme-memory/internal/capture"
	"github.com/erikprat61/supreme-memory/internal/config"
	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
	"github.com/erikprat61/supreme-memory/internal/service/stt/google"
	"github.com/erikprat61/supreme-memory/internal/service/stt/mock"
	"github.com/erikprat61/supreme-memory/internal/service/stt/openai"
	"github.com/erikprat61/supreme-memory/internal/service/stt/whisper"
	"github.com/erikprat61/supreme-memory/internal/service/summary"
)

// NewTranscriber builds the configured STT backend for canonical-format audio.
// The returned close function releases provider resources and is never nil.
func NewTranscriber(ctx context.Context, cfg config.STTConfig, format models.AudioFormat) (stt.Transcriber, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case "mock":
		return mock.New(cfg.MockDelay), noop, nil
	case "google":
		gcfg := google.DefaultConfig()
		gcfg.LanguageCode = cfg.LanguageCode
		gcfg.SampleRateHz = format.SampleRateHz
		gcfg.Model = cfg.Model
		t, err := google.New(ctx, gcfg)
		if err != nil {
			return nil, noop, err
		}
		return t, t.Close, nil
	case "openai":
		return openai.New(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model}), noop, nil
	case "whisper":
		t, err := whisper.New(cfg.WhisperModel)
		if err != nil {
			return nil, noop, fmt.Errorf("load whisper model %s: %w", cfg.WhisperModel, err)
		}
		return t, t.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown STT provider %q", cfg.Provider)
	}
}

// NewSource builds the configured capture source.
func NewSource(cfg config.AudioConfig) (capture.Source, error) {
	ccfg := capture.Config{
		Device:        cfg.Device,
		Format:        cfg.CaptureFormat(),
		FrameDuration: cfg.FrameDuration,
		Buffer:        cfg.Buffer,
	}
	switch cfg.Source {
	case "malgo":
		return capture.NewMalgo(ccfg), nil
	case "portaudio":
		return capture.NewPortAudio(ccfg), nil
	case "file":
		f, err := capture.NewFile(cfg.File, cfg.FrameDuration, cfg.Realtime)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source)
	}
}

// NewSummarizer builds the chat summarizer. A prompt file, when set, replaces
// the default template.
func NewSummarizer(cfg config.SummaryConfig) (*summary.Summarizer, error) {
	scfg := summary.DefaultConfig()
	scfg.APIKey = cfg.APIKey
	scfg.BaseURL = cfg.BaseURL
	if cfg.Model != "" {
		scfg.Model = cfg.Model
	}
	if cfg.Timeout > 0 {
		scfg.Timeout = cfg.Timeout
	}
	if cfg.PromptFile != "" {
		b, err := os.ReadFile(cfg.PromptFile)
		if err != nil {
			return nil, fmt.Errorf("read summary prompt: %w", err)
		}
		scfg.Prompt = string(b)
	}
	return summary.New(scfg), nil
}

// shutdownContext bounds Shutdown. Replaced in tests.
var shutdownContext = func(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
