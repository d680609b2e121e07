//go:build !portaudio

package capture

import (
	"context"
	"errors"

	"github.com/erikprat61/supreme-memory/internal/models"
)

// PortAudioAvailable reports whether the binary was built with PortAudio support.
const PortAudioAvailable = false

// ErrPortAudioNotBuilt is returned when the binary was built without -tags portaudio.
var ErrPortAudioNotBuilt = errors.New("portaudio support not built in (rebuild with -tags portaudio)")

// PortAudio is unavailable in this build.
type PortAudio struct {
	cfg Config
}

// NewPortAudio returns a source whose Start always fails.
func NewPortAudio(cfg Config) *PortAudio {
	return &PortAudio{cfg: cfg}
}

func (p *PortAudio) Format() models.AudioFormat { return p.cfg.Format }

func (p *PortAudio) Capturing() bool { return false }

func (p *PortAudio) Start(ctx context.Context, handler Handler) error {
	return ErrPortAudioNotBuilt
}

func (p *PortAudio) Stop() error { return nil }
