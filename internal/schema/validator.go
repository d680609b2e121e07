// Package schema validates events before they leave the process.
package schema

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/erikprat61/supreme-memory/internal/models"
)

var (
	ErrUnknownType      = errors.New("unknown event type")
	ErrMissingTimestamp = errors.New("event timestamp is required")
	ErrMissingText      = errors.New("transcription event requires text")
	ErrMissingPath      = errors.New("session event requires a path")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the fields each event type must carry.
func (v *Validator) Validate(event models.Event) error {
	if event.Timestamp <= 0 {
		return ErrMissingTimestamp
	}
	switch event.Type {
	case models.EventSoundStart, models.EventSoundEnd:
	case models.EventTranscriptionReceived:
		if event.Text == "" {
			return ErrMissingText
		}
	case models.EventSessionFinalized:
		if event.Path == "" {
			return ErrMissingPath
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, event.Type)
	}

	log.Trace().Str("eventType", string(event.Type)).Msg("schema validated")
	return nil
}
