package schema

import (
	"errors"
	"testing"

	"github.com/erikprat61/supreme-memory/internal/models"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		event models.Event
		want  error
	}{
		{"sound start", models.Event{Type: models.EventSoundStart, Timestamp: 1}, nil},
		{"transcription", models.Event{Type: models.EventTranscriptionReceived, Timestamp: 1, Text: "hi"}, nil},
		{"transcription without text", models.Event{Type: models.EventTranscriptionReceived, Timestamp: 1}, ErrMissingText},
		{"session without path", models.Event{Type: models.EventSessionFinalized, Timestamp: 1}, ErrMissingPath},
		{"missing timestamp", models.Event{Type: models.EventSoundEnd}, ErrMissingTimestamp},
		{"unknown type", models.Event{Type: "sound.maybe", Timestamp: 1}, ErrUnknownType},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if tt.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
