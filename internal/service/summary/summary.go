// Package summary asks a chat model to analyze finished transcripts. It works
// with the OpenAI API or any compatible server, such as a local llama.cpp server.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
	"github.com/erikprat61/supreme-memory/internal/storage"
)

// Placeholder is replaced by the transcript text in the prompt template.
const Placeholder = "{transcription}"

// DefaultPrompt asks for a summary, the key topics and any action items.
const DefaultPrompt = `Below is a transcription. Please analyze it and provide:
1. A summary of the main points
2. Key topics discussed
3. Any action items or decisions made

Transcription:
{transcription}

Analysis:`

// ErrEmptyTranscript is returned for a transcript with no text.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Config holds chat client settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// DefaultConfig returns default chat settings.
func DefaultConfig() Config {
	return Config{
		Model:       goopenai.GPT4oMini,
		Prompt:      DefaultPrompt,
		MaxTokens:   1024,
		Temperature: 0.7,
		Timeout:     2 * time.Minute,
	}
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Summarizer analyzes transcript text.
type Summarizer struct {
	client chatClient
	cfg    Config
}

// New creates a summarizer.
func New(cfg Config) *Summarizer {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	return &Summarizer{client: goopenai.NewClientWithConfig(clientCfg), cfg: cfg}
}

// Summarize returns the model's analysis of transcript.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyTranscript
	}
	prompt := strings.ReplaceAll(s.cfg.Prompt, Placeholder, transcript)
	if !strings.Contains(s.cfg.Prompt, Placeholder) {
		prompt = s.cfg.Prompt + "\n\n" + transcript
	}

	resp, err := s.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Stop:        []string{"</analysis>", "\n\n\n"},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (s *Summarizer) timeout() time.Duration {
	if s.cfg.Timeout <= 0 {
		return DefaultConfig().Timeout
	}
	return s.cfg.Timeout
}

// SummaryPath returns the summary sibling of a combined transcript path.
func SummaryPath(combinedPath string) string {
	return strings.TrimSuffix(combinedPath, "_combined.txt") + "_summary.txt"
}

// Listener writes a summary next to every finalized session's combined transcript.
type Listener struct {
	summarizer *Summarizer
	store      storage.FileStore
	logger     zerolog.Logger
}

// NewListener creates a bus listener. Summaries are produced one at a time on
// the subscription's delivery goroutine.
func NewListener(summarizer *Summarizer, store storage.FileStore) *Listener {
	return &Listener{summarizer: summarizer, store: store, logger: logging.WithComponent("summary")}
}

// OnEvent summarizes session.finalized events.
func (l *Listener) OnEvent(event models.Event) {
	if event.Type != models.EventSessionFinalized || event.Path == "" {
		return
	}
	logger := l.logger.With().Str("sessionId", event.SessionID).Str("path", event.Path).Logger()

	text, err := l.store.ReadText(event.Path)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read combined transcript")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.summarizer.timeout())
	defer cancel()
	analysis, err := l.summarizer.Summarize(ctx, text)
	metrics.DefaultMetrics.RecordSummary(err)
	if err != nil {
		logger.Warn().Err(err).Msg("Summary failed")
		return
	}
	out := SummaryPath(event.Path)
	if err := l.store.WriteText(out, analysis); err != nil {
		logger.Error().Err(err).Msg("Failed to write summary")
		return
	}
	logger.Info().Str("summary", out).Msg("Session summarized")
}
