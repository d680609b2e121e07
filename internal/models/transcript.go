package models

import "time"

// EventType names an event emitted by the monitor.
type EventType string

const (
	EventSoundStart            EventType = "sound.start"
	EventSoundEnd              EventType = "sound.end"
	EventTranscriptionReceived EventType = "transcription.received"
	EventSessionFinalized      EventType = "session.finalized"
)

// Event is the unit delivered to subscribers, Kafka and WebSocket clients.
type Event struct {
	Type      EventType `json:"eventType"`
	Timestamp int64     `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`
	Source    string    `json:"source,omitempty"`
	Text      string    `json:"text,omitempty"`
	Path      string    `json:"path,omitempty"`
	Parts     int       `json:"parts,omitempty"`
}

// TranscriptSegment is the text produced for one audio unit (a part file or a window).
type TranscriptSegment struct {
	Source     string    `json:"source"`
	Text       string    `json:"text"`
	ProducedAt time.Time `json:"producedAt"`
}

// TranscriptionChunk is one window waiting in the transcription queue.
type TranscriptionChunk struct {
	ID         string
	Audio      []byte
	Format     AudioFormat
	EnqueuedAt time.Time
}

// RecordingSession tracks the parts of one Active stretch in record mode.
type RecordingSession struct {
	ID               string
	StartTime        time.Time
	PartIndex        int
	PartBytesWritten int64
	TotalBytes       int64
	PartPaths        []string
}

// CombinedTranscript is the durable artifact of a finalized multi-part session.
type CombinedTranscript struct {
	PartPaths []string  `json:"partPaths"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Text      string    `json:"text"`
	Path      string    `json:"path"`
}
