//go:build !whisper

package whisper

import (
	"context"
	"errors"

	"github.com/erikprat61/supreme-memory/internal/models"
)

// Available reports whether the binary was built with whisper.cpp support.
const Available = false

// ErrNotBuilt is returned when the binary was built without -tags whisper.
var ErrNotBuilt = errors.New("whisper support not built in (rebuild with -tags whisper)")

// Transcriber is unavailable in this build.
type Transcriber struct{}

// New always fails in builds without whisper.cpp.
func New(modelPath string) (*Transcriber, error) {
	return nil, ErrNotBuilt
}

func (t *Transcriber) Name() string { return "whisper" }

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format models.AudioFormat, language string) (string, error) {
	return "", ErrNotBuilt
}

func (t *Transcriber) Close() error { return nil }
