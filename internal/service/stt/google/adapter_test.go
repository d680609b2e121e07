package google

import (
	"context"
	"errors"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"linear16", speechpb.RecognitionConfig_LINEAR16}, // lowercase -> fallback
		{"invalid", speechpb.RecognitionConfig_LINEAR16},  // fallback
		{"", speechpb.RecognitionConfig_LINEAR16},         // fallback
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func newFake(resp *speechpb.RecognizeResponse, err error, seen **speechpb.RecognizeRequest) *Transcriber {
	return &Transcriber{
		cfg: DefaultConfig(),
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			*seen = req
			return resp, err
		},
	}
}

func TestTranscribe_SendsRawSamples(t *testing.T) {
	samples := pcm.FromInt16([]int16{10, 20, 30, 40})
	wav, err := pcm.EncodeWAV(samples, models.CanonicalFormat)
	if err != nil {
		t.Fatal(err)
	}

	var seen *speechpb.RecognizeRequest
	tr := newFake(&speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " hello "}}},
			{Alternatives: nil},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "world"}}},
		},
	}, nil, &seen)

	text, err := tr.Transcribe(context.Background(), wav, models.CanonicalFormat, "de-DE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected 'hello world', got %q", text)
	}
	if seen.GetConfig().GetLanguageCode() != "de-DE" {
		t.Errorf("expected language hint passed through, got %s", seen.GetConfig().GetLanguageCode())
	}
	if seen.GetConfig().GetSampleRateHertz() != 16000 {
		t.Errorf("expected 16000 Hz, got %d", seen.GetConfig().GetSampleRateHertz())
	}
	if string(seen.GetAudio().GetContent()) != string(samples) {
		t.Error("expected the WAV header to be stripped before submission")
	}
}

func TestTranscribe_DefaultLanguageAndErrors(t *testing.T) {
	wav, _ := pcm.EncodeWAV(pcm.FromInt16([]int16{1, 2}), models.CanonicalFormat)

	var seen *speechpb.RecognizeRequest
	boom := errors.New("unavailable")
	tr := newFake(nil, boom, &seen)

	_, err := tr.Transcribe(context.Background(), wav, models.CanonicalFormat, "")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped recognize error, got %v", err)
	}
	if seen.GetConfig().GetLanguageCode() != "en-US" {
		t.Errorf("expected default language, got %s", seen.GetConfig().GetLanguageCode())
	}

	if _, err := tr.Transcribe(context.Background(), []byte("garbage"), models.CanonicalFormat, ""); err == nil {
		t.Error("expected error for non-WAV input")
	}
}
