// Package openai transcribes through the OpenAI audio transcription endpoint or any
// server that implements it (for example a local whisper.cpp or faster-whisper server).
package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
)

// Config holds client settings.
type Config struct {
	APIKey  string
	BaseURL string // empty uses the public endpoint
	Model   string // defaults to whisper-1
}

type audioClient interface {
	CreateTranscription(ctx context.Context, request goopenai.AudioRequest) (goopenai.AudioResponse, error)
}

// Transcriber implements stt.Transcriber over the audio transcription API.
type Transcriber struct {
	client audioClient
	model  string
}

var _ stt.Transcriber = (*Transcriber)(nil)

// New creates a transcriber.
func New(cfg Config) *Transcriber {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = goopenai.Whisper1
	}
	return &Transcriber{client: goopenai.NewClientWithConfig(clientCfg), model: model}
}

// Name returns the provider name.
func (t *Transcriber) Name() string {
	return "openai"
}

// Transcribe uploads the WAV container as a file.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format models.AudioFormat, language string) (string, error) {
	if len(audio) == 0 {
		return "", stt.ErrEmptyAudio
	}
	resp, err := t.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    t.model,
		FilePath: fmt.Sprintf("audio-%dhz.wav", format.SampleRateHz),
		Reader:   bytes.NewReader(audio),
		Language: language,
		Format:   goopenai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
