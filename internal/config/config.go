// Package config loads the monitor configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/pipeline"
	"github.com/erikprat61/supreme-memory/internal/service/segment"
	"github.com/erikprat61/supreme-memory/internal/service/vad"
)

// Config is the complete service configuration.
type Config struct {
	Service       ServiceConfig
	Audio         AudioConfig
	VAD           vad.Config
	Recorder      segment.Config
	Pipeline      PipelineConfig
	STT           STTConfig
	Summary       SummaryConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal       string
	Mode            string // record or stream
	GRPCPort        string
	HTTPPort        string
	ShutdownTimeout time.Duration
}

// AudioConfig selects and shapes the capture source.
type AudioConfig struct {
	Source        string // malgo, portaudio or file
	Device        string // substring of the device name; empty uses the default device
	File          string
	Realtime      bool // pace file replay at capture speed
	SampleRateHz  int
	Channels      int
	FrameDuration time.Duration
	Buffer        int // frames queued between the device callback and the monitor
	// CanonicalRateHz is the mono 16-bit rate used for recording and transcription.
	CanonicalRateHz int
}

// CaptureFormat is the format requested from the device.
func (a AudioConfig) CaptureFormat() models.AudioFormat {
	return models.AudioFormat{SampleRateHz: a.SampleRateHz, BitsPerSample: 16, Channels: a.Channels}
}

// CanonicalFormat is the format parts and windows are stored in.
func (a AudioConfig) CanonicalFormat() models.AudioFormat {
	return models.Canonical(a.CanonicalRateHz)
}

// PipelineConfig holds the stream mode settings.
type PipelineConfig struct {
	pipeline.Config
	FlushOnSoundEnd bool
}

// STTConfig selects the transcription backend.
type STTConfig struct {
	Provider     string // mock, google, openai or whisper
	Language     string
	LanguageCode string // BCP-47 code for Google Speech
	Model        string
	APIKey       string
	BaseURL      string
	WhisperModel string
	MockDelay    time.Duration
}

// SummaryConfig enables the post-session summary.
type SummaryConfig struct {
	Enabled    bool
	APIKey     string
	BaseURL    string
	Model      string
	PromptFile string
	Timeout    time.Duration
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicTranscripts string
	TopicSessions    string
	TopicActivity    string
	Principal        string
	PublishTimeout   time.Duration
}

// ObservabilityConfig holds logging and event fan-out settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	EventBuffer int
}

// LoadFile reads KEY=value pairs from path into the environment, then calls Load.
// A missing file is not an error. Variables already set take precedence.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return Load()
}

// Load builds the configuration from environment variables. Malformed values are
// reported together rather than replaced by defaults.
func Load() (*Config, error) {
	p := &parser{}

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-monitor")

	rec := segment.DefaultConfig()
	rec.OutputDir = envOrDefault("RECORDER_OUTPUT_DIR", rec.OutputDir)
	rec.DateDirs = p.bool("RECORDER_DATE_DIRS", rec.DateDirs)
	rec.MaxPartBytes = int64(p.int("RECORDER_MAX_PART_BYTES", int(rec.MaxPartBytes)))
	rec.MinDuration = p.duration("RECORDER_MIN_DURATION", rec.MinDuration)
	rec.Discard = segment.DiscardPolicy(envOrDefault("RECORDER_DISCARD_POLICY", string(rec.Discard)))
	rec.TranscribeTimeout = p.duration("RECORDER_TRANSCRIBE_TIMEOUT", rec.TranscribeTimeout)

	v := vad.DefaultConfig()
	v.EnterThreshold = p.float("VAD_ENTER_THRESHOLD", v.EnterThreshold)
	v.ExitThreshold = p.float("VAD_EXIT_THRESHOLD", v.ExitThreshold)
	v.WindowSize = p.int("VAD_WINDOW_SIZE", v.WindowSize)
	v.MinSoundFrames = p.int("VAD_MIN_SOUND_FRAMES", v.MinSoundFrames)
	v.MinSilentFrames = p.int("VAD_MIN_SILENT_FRAMES", v.MinSilentFrames)
	v.EntryRatio = p.float("VAD_ENTRY_RATIO", v.EntryRatio)
	v.ExitRatio = p.float("VAD_EXIT_RATIO", v.ExitRatio)
	v.StopAfter = p.duration("VAD_STOP_AFTER", v.StopAfter)
	v.Debounce = p.duration("VAD_DEBOUNCE", v.Debounce)

	pc := pipeline.DefaultConfig()
	pc.Window = p.duration("PIPELINE_WINDOW", pc.Window)
	pc.VoiceThreshold = p.float("PIPELINE_VOICE_THRESHOLD", pc.VoiceThreshold)
	pc.SilenceThreshold = p.float("PIPELINE_SILENCE_THRESHOLD", pc.SilenceThreshold)
	pc.MaxSilenceRatio = p.float("PIPELINE_MAX_SILENCE_RATIO", pc.MaxSilenceRatio)
	pc.MinInterval = p.duration("PIPELINE_MIN_INTERVAL", pc.MinInterval)
	pc.CallTimeout = p.duration("PIPELINE_CALL_TIMEOUT", pc.CallTimeout)
	pc.QueueSize = p.int("PIPELINE_QUEUE_SIZE", pc.QueueSize)

	language := envOrDefault("STT_LANGUAGE", "en")
	rec.Language = language
	pc.Language = language

	cfg := &Config{
		Service: ServiceConfig{
			Principal:       principal,
			Mode:            envOrDefault("MONITOR_MODE", "record"),
			GRPCPort:        envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:        envOrDefault("HTTP_PORT", "8080"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Audio: AudioConfig{
			Source:          envOrDefault("AUDIO_SOURCE", "malgo"),
			Device:          os.Getenv("AUDIO_DEVICE"),
			File:            os.Getenv("AUDIO_FILE"),
			Realtime:        p.bool("AUDIO_FILE_REALTIME", true),
			SampleRateHz:    p.int("AUDIO_SAMPLE_RATE_HZ", 16000),
			Channels:        p.int("AUDIO_CHANNELS", 1),
			FrameDuration:   p.duration("AUDIO_FRAME_DURATION", 20*time.Millisecond),
			Buffer:          p.int("AUDIO_BUFFER_FRAMES", 64),
			CanonicalRateHz: p.int("AUDIO_CANONICAL_RATE_HZ", 16000),
		},
		VAD:      v,
		Recorder: rec,
		Pipeline: PipelineConfig{
			Config:          pc,
			FlushOnSoundEnd: p.bool("PIPELINE_FLUSH_ON_SOUND_END", false),
		},
		STT: STTConfig{
			Provider:     envOrDefault("STT_PROVIDER", "mock"),
			Language:     language,
			LanguageCode: envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			Model:        os.Getenv("STT_MODEL"),
			APIKey:       envOrDefault("STT_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL:      os.Getenv("STT_BASE_URL"),
			WhisperModel: envOrDefault("STT_WHISPER_MODEL_PATH", "models/ggml-base.en.bin"),
			MockDelay:    p.duration("STT_MOCK_DELAY", 200*time.Millisecond),
		},
		Summary: SummaryConfig{
			Enabled:    p.bool("SUMMARY_ENABLED", false),
			APIKey:     envOrDefault("SUMMARY_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL:    os.Getenv("SUMMARY_BASE_URL"),
			Model:      envOrDefault("SUMMARY_MODEL", "gpt-4o-mini"),
			PromptFile: os.Getenv("SUMMARY_PROMPT_FILE"),
			Timeout:    p.duration("SUMMARY_TIMEOUT", 2*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled:          p.bool("KAFKA_ENABLED", false),
			Brokers:          splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
			TopicTranscripts: envOrDefault("KAFKA_TOPIC_TRANSCRIPTS", "voice.transcripts"),
			TopicSessions:    envOrDefault("KAFKA_TOPIC_SESSIONS", "voice.sessions"),
			TopicActivity:    os.Getenv("KAFKA_TOPIC_ACTIVITY"),
			Principal:        envOrDefault("KAFKA_PRINCIPAL", principal),
			PublishTimeout:   p.duration("KAFKA_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			EventBuffer: p.int("EVENT_BUFFER", 256),
		},
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section. All problems are returned together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Service.Mode {
	case "record", "stream":
	default:
		errs = append(errs, fmt.Errorf("MONITOR_MODE must be record or stream, got %q", c.Service.Mode))
	}
	if c.Service.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", c.Service.ShutdownTimeout))
	}

	switch c.Audio.Source {
	case "malgo", "portaudio":
	case "file":
		if c.Audio.File == "" {
			errs = append(errs, errors.New("AUDIO_FILE is required when AUDIO_SOURCE=file"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUDIO_SOURCE must be malgo, portaudio or file, got %q", c.Audio.Source))
	}
	if c.Audio.Source != "file" {
		if err := c.Audio.CaptureFormat().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("capture format: %w", err))
		}
	}
	if c.Audio.CanonicalRateHz != 8000 && c.Audio.CanonicalRateHz != 16000 {
		errs = append(errs, fmt.Errorf("AUDIO_CANONICAL_RATE_HZ must be 8000 or 16000, got %d", c.Audio.CanonicalRateHz))
	}
	if c.Audio.FrameDuration <= 0 {
		errs = append(errs, fmt.Errorf("AUDIO_FRAME_DURATION must be positive, got %v", c.Audio.FrameDuration))
	}
	if c.Audio.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("AUDIO_BUFFER_FRAMES must be positive, got %d", c.Audio.Buffer))
	}

	if err := c.VAD.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vad: %w", err))
	}
	if err := c.Recorder.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("recorder: %w", err))
	}
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}

	switch c.STT.Provider {
	case "mock", "google", "whisper":
	case "openai":
		if c.STT.APIKey == "" && c.STT.BaseURL == "" {
			errs = append(errs, errors.New("STT_API_KEY or STT_BASE_URL is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("STT_PROVIDER must be mock, google, openai or whisper, got %q", c.STT.Provider))
	}

	if c.Summary.Enabled && c.Summary.APIKey == "" && c.Summary.BaseURL == "" {
		errs = append(errs, errors.New("SUMMARY_API_KEY or SUMMARY_BASE_URL is required when SUMMARY_ENABLED=true"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED=true"))
	}

	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parser collects malformed values so Load can report all of them.
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
