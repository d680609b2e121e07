// Package google provides a Google Cloud Speech-to-Text transcriber.
package google

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
)

// Config holds Google Speech recognition settings.
type Config struct {
	LanguageCode      string // used when the caller passes no language hint
	SampleRateHz      int
	AudioEncoding     string // LINEAR16, MULAW, FLAC, ...
	Model             string // optional recognition model, e.g. "latest_long"
	EnablePunctuation bool
}

// DefaultConfig returns the default recognition settings.
func DefaultConfig() Config {
	return Config{
		LanguageCode:      "en-US",
		SampleRateHz:      16000,
		AudioEncoding:     "LINEAR16",
		EnablePunctuation: true,
	}
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Transcriber implements stt.Transcriber with synchronous Recognize calls.
type Transcriber struct {
	cfg       Config
	recognize recognizeFunc
	close     func() error
}

var _ stt.Transcriber = (*Transcriber)(nil)

// New creates a Google transcriber.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Transcriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Transcriber{
		cfg: cfg,
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return c.Recognize(ctx, req)
		},
		close: c.Close,
	}, nil
}

// Name returns the provider name.
func (t *Transcriber) Name() string {
	return "google"
}

// Transcribe unwraps the WAV container and submits the raw samples.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format models.AudioFormat, language string) (string, error) {
	samples, wavFormat, err := pcm.DecodeWAV(bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("google transcribe: %w", err)
	}
	if len(samples) == 0 {
		return "", stt.ErrEmptyAudio
	}
	if wavFormat != format {
		return "", fmt.Errorf("google transcribe: container format %v does not match %v", wavFormat, format)
	}

	lang := language
	if lang == "" {
		lang = t.cfg.LanguageCode
	}

	resp, err := t.recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(t.cfg.AudioEncoding),
			SampleRateHertz:            int32(format.SampleRateHz),
			AudioChannelCount:          int32(format.Channels),
			LanguageCode:               lang,
			Model:                      t.cfg.Model,
			EnableAutomaticPunctuation: t.cfg.EnablePunctuation,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: samples},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google recognize: %w", err)
	}

	var parts []string
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		if text := strings.TrimSpace(r.GetAlternatives()[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the underlying client.
func (t *Transcriber) Close() error {
	if t.close != nil {
		return t.close()
	}
	return nil
}

func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
