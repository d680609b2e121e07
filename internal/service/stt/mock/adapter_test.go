package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
)

func wavOf(t *testing.T, samples int) []byte {
	t.Helper()
	b, err := pcm.EncodeWAV(make([]byte, samples*2), models.CanonicalFormat)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return b
}

func TestTranscriber_CyclesUtterances(t *testing.T) {
	tr := NewWithUtterances([]string{"one", "two"}, 0)
	audio := wavOf(t, 160)

	var got []string
	for i := 0; i < 3; i++ {
		text, err := tr.Transcribe(context.Background(), audio, models.CanonicalFormat, "en")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, text)
	}

	want := []string{"one", "two", "one"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if tr.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", tr.Calls())
	}
}

func TestTranscriber_RejectsRawPCM(t *testing.T) {
	tr := New(0)
	_, err := tr.Transcribe(context.Background(), make([]byte, 320), models.CanonicalFormat, "en")
	if err == nil {
		t.Error("expected error for audio without a WAV header")
	}
}

func TestTranscriber_DelayHonorsContext(t *testing.T) {
	tr := New(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.Transcribe(ctx, wavOf(t, 16), models.CanonicalFormat, "en")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if tr.Calls() != 0 {
		t.Errorf("expected cancelled call not to count, got %d", tr.Calls())
	}
}

func TestTranscriber_EmptyUtterances(t *testing.T) {
	tr := NewWithUtterances(nil, 0)
	text, err := tr.Transcribe(context.Background(), wavOf(t, 16), models.CanonicalFormat, "")
	if err != nil || text != "" {
		t.Errorf("expected empty text and no error, got %q, %v", text, err)
	}
}
