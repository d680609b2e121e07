package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/storage"
)

type fakeChat struct {
	req  goopenai.ChatCompletionRequest
	resp goopenai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func reply(text string) goopenai.ChatCompletionResponse {
	return goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{Message: goopenai.ChatCompletionMessage{Content: text}}},
	}
}

func newTestSummarizer(chat *fakeChat, prompt string) *Summarizer {
	cfg := DefaultConfig()
	if prompt != "" {
		cfg.Prompt = prompt
	}
	return &Summarizer{client: chat, cfg: cfg}
}

func TestSummarize_FillsPromptTemplate(t *testing.T) {
	chat := &fakeChat{resp: reply("  Summary: groceries.\n")}
	s := newTestSummarizer(chat, "")

	got, err := s.Summarize(context.Background(), "buy milk")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Summary: groceries." {
		t.Errorf("expected trimmed reply, got %q", got)
	}

	prompt := chat.req.Messages[0].Content
	if !strings.Contains(prompt, "Transcription:\nbuy milk\n") || strings.Contains(prompt, Placeholder) {
		t.Errorf("expected transcript substituted into the prompt, got %q", prompt)
	}
	if chat.req.MaxTokens != 1024 || len(chat.req.Stop) != 2 {
		t.Errorf("unexpected request settings: %+v", chat.req)
	}
}

func TestSummarize_PromptWithoutPlaceholder(t *testing.T) {
	chat := &fakeChat{resp: reply("ok")}
	s := newTestSummarizer(chat, "List the action items.")

	s.Summarize(context.Background(), "call the plumber")
	if got := chat.req.Messages[0].Content; got != "List the action items.\n\ncall the plumber" {
		t.Errorf("expected transcript appended, got %q", got)
	}
}

func TestSummarize_Errors(t *testing.T) {
	if _, err := newTestSummarizer(&fakeChat{}, "").Summarize(context.Background(), "  "); !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("expected ErrEmptyTranscript, got %v", err)
	}
	if _, err := newTestSummarizer(&fakeChat{}, "").Summarize(context.Background(), "text"); err == nil {
		t.Error("expected error for a reply with no choices")
	}
	boom := errors.New("connection refused")
	if _, err := newTestSummarizer(&fakeChat{err: boom}, "").Summarize(context.Background(), "text"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped client error, got %v", err)
	}
}

func TestListener_WritesSummaryForFinalizedSessions(t *testing.T) {
	store := storage.NewMemory()
	combined := "/rec/10-00-00_to_10-01-00_combined.txt"
	store.WriteText(combined, "=== Part 1 ===\nhello\n")

	chat := &fakeChat{resp: reply("A greeting.")}
	l := NewListener(newTestSummarizer(chat, ""), store)

	l.OnEvent(models.Event{Type: models.EventTranscriptionReceived, Text: "hello"})
	if len(store.Paths()) != 1 {
		t.Fatal("expected other events to be ignored")
	}

	l.OnEvent(models.Event{Type: models.EventSessionFinalized, Path: combined})
	got, err := store.ReadText("/rec/10-00-00_to_10-01-00_summary.txt")
	if err != nil || got != "A greeting." {
		t.Errorf("expected summary written, got %q, %v", got, err)
	}
}
