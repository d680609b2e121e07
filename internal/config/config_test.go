package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/segment"
)

var allKeys = []string{
	"SERVICE_PRINCIPAL", "MONITOR_MODE", "GRPC_PORT", "HTTP_PORT", "SHUTDOWN_TIMEOUT",
	"AUDIO_SOURCE", "AUDIO_DEVICE", "AUDIO_FILE", "AUDIO_FILE_REALTIME", "AUDIO_SAMPLE_RATE_HZ",
	"AUDIO_CHANNELS", "AUDIO_FRAME_DURATION", "AUDIO_BUFFER_FRAMES", "AUDIO_CANONICAL_RATE_HZ",
	"VAD_ENTER_THRESHOLD", "VAD_EXIT_THRESHOLD", "VAD_WINDOW_SIZE", "VAD_MIN_SOUND_FRAMES",
	"VAD_MIN_SILENT_FRAMES", "VAD_ENTRY_RATIO", "VAD_EXIT_RATIO", "VAD_STOP_AFTER", "VAD_DEBOUNCE",
	"RECORDER_OUTPUT_DIR", "RECORDER_DATE_DIRS", "RECORDER_MAX_PART_BYTES", "RECORDER_MIN_DURATION",
	"RECORDER_DISCARD_POLICY", "RECORDER_TRANSCRIBE_TIMEOUT",
	"PIPELINE_WINDOW", "PIPELINE_VOICE_THRESHOLD", "PIPELINE_SILENCE_THRESHOLD",
	"PIPELINE_MAX_SILENCE_RATIO", "PIPELINE_MIN_INTERVAL", "PIPELINE_CALL_TIMEOUT",
	"PIPELINE_QUEUE_SIZE", "PIPELINE_FLUSH_ON_SOUND_END",
	"STT_PROVIDER", "STT_LANGUAGE", "STT_LANGUAGE_CODE", "STT_MODEL", "STT_API_KEY",
	"STT_BASE_URL", "STT_WHISPER_MODEL_PATH", "STT_MOCK_DELAY", "OPENAI_API_KEY",
	"SUMMARY_ENABLED", "SUMMARY_API_KEY", "SUMMARY_BASE_URL", "SUMMARY_MODEL",
	"SUMMARY_PROMPT_FILE", "SUMMARY_TIMEOUT",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_TRANSCRIPTS", "KAFKA_TOPIC_SESSIONS",
	"KAFKA_TOPIC_ACTIVITY", "KAFKA_PRINCIPAL", "KAFKA_PUBLISH_TIMEOUT",
	"LOG_LEVEL", "LOG_FORMAT", "EVENT_BUFFER",
}

// clearEnv blanks every variable Load reads. Empty values are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Service defaults
	if cfg.Service.Principal != "svc-voice-monitor" {
		t.Errorf("expected default principal 'svc-voice-monitor', got %s", cfg.Service.Principal)
	}
	if cfg.Service.Mode != "record" {
		t.Errorf("expected default mode 'record', got %s", cfg.Service.Mode)
	}
	if cfg.Service.GRPCPort != "50051" || cfg.Service.HTTPPort != "8080" {
		t.Errorf("unexpected default ports grpc=%s http=%s", cfg.Service.GRPCPort, cfg.Service.HTTPPort)
	}

	// Audio defaults
	if cfg.Audio.Source != "malgo" {
		t.Errorf("expected default source 'malgo', got %s", cfg.Audio.Source)
	}
	if cfg.Audio.CanonicalFormat() != models.CanonicalFormat {
		t.Errorf("expected canonical 16kHz mono, got %v", cfg.Audio.CanonicalFormat())
	}
	if cfg.Audio.FrameDuration != 20*time.Millisecond {
		t.Errorf("expected 20ms frames, got %v", cfg.Audio.FrameDuration)
	}

	// Component defaults come from the packages themselves
	if cfg.Recorder.MaxPartBytes != segment.DefaultConfig().MaxPartBytes {
		t.Errorf("expected recorder default part size, got %d", cfg.Recorder.MaxPartBytes)
	}
	if cfg.Recorder.Language != "en" || cfg.Pipeline.Language != "en" {
		t.Errorf("expected language 'en' propagated, got recorder=%s pipeline=%s", cfg.Recorder.Language, cfg.Pipeline.Language)
	}
	if cfg.Pipeline.Window != 5*time.Second {
		t.Errorf("expected 5s window, got %v", cfg.Pipeline.Window)
	}
	if cfg.Pipeline.FlushOnSoundEnd {
		t.Error("expected flush on sound end disabled by default")
	}

	// STT defaults
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language code 'en-US', got %s", cfg.STT.LanguageCode)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.Principal != cfg.Service.Principal {
		t.Errorf("expected Kafka principal to default to the service principal, got %s", cfg.Kafka.Principal)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONITOR_MODE", "stream")
	t.Setenv("AUDIO_SOURCE", "file")
	t.Setenv("AUDIO_FILE", "/tmp/in.wav")
	t.Setenv("AUDIO_CANONICAL_RATE_HZ", "8000")
	t.Setenv("VAD_STOP_AFTER", "2s")
	t.Setenv("VAD_ENTER_THRESHOLD", "0.05")
	t.Setenv("RECORDER_DATE_DIRS", "false")
	t.Setenv("RECORDER_DISCARD_POLICY", "keep")
	t.Setenv("PIPELINE_QUEUE_SIZE", "4")
	t.Setenv("PIPELINE_FLUSH_ON_SOUND_END", "true")
	t.Setenv("STT_LANGUAGE", "de")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.Mode != "stream" {
		t.Errorf("expected mode 'stream', got %s", cfg.Service.Mode)
	}
	if cfg.Audio.CanonicalFormat() != models.Canonical(8000) {
		t.Errorf("expected 8kHz canonical format, got %v", cfg.Audio.CanonicalFormat())
	}
	if cfg.VAD.StopAfter != 2*time.Second || cfg.VAD.EnterThreshold != 0.05 {
		t.Errorf("unexpected VAD config: %+v", cfg.VAD)
	}
	if cfg.Recorder.DateDirs || cfg.Recorder.Discard != segment.DiscardKeep {
		t.Errorf("unexpected recorder config: %+v", cfg.Recorder)
	}
	if cfg.Pipeline.QueueSize != 4 || !cfg.Pipeline.FlushOnSoundEnd {
		t.Errorf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Recorder.Language != "de" || cfg.Pipeline.Language != "de" {
		t.Errorf("expected language 'de' propagated")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected custom config to validate, got %v", err)
	}
}

func TestLoad_MalformedValuesReported(t *testing.T) {
	clearEnv(t)
	t.Setenv("VAD_STOP_AFTER", "soon")
	t.Setenv("PIPELINE_QUEUE_SIZE", "many")
	t.Setenv("KAFKA_ENABLED", "perhaps")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for malformed values")
	}
	for _, key := range []string{"VAD_STOP_AFTER", "PIPELINE_QUEUE_SIZE", "KAFKA_ENABLED"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("expected error to mention %s, got %v", key, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad mode", map[string]string{"MONITOR_MODE": "live"}, "MONITOR_MODE"},
		{"file without path", map[string]string{"AUDIO_SOURCE": "file"}, "AUDIO_FILE"},
		{"unknown source", map[string]string{"AUDIO_SOURCE": "alsa"}, "AUDIO_SOURCE"},
		{"bad canonical rate", map[string]string{"AUDIO_CANONICAL_RATE_HZ": "44100"}, "AUDIO_CANONICAL_RATE_HZ"},
		{"thresholds inverted", map[string]string{"VAD_ENTER_THRESHOLD": "0.01", "VAD_EXIT_THRESHOLD": "0.02"}, "vad:"},
		{"zero stop after", map[string]string{"VAD_STOP_AFTER": "0s"}, "stop-after"},
		{"negative min duration", map[string]string{"RECORDER_MIN_DURATION": "-1s"}, "recorder:"},
		{"bad discard policy", map[string]string{"RECORDER_DISCARD_POLICY": "archive"}, "discard policy"},
		{"zero window", map[string]string{"PIPELINE_WINDOW": "0s"}, "window duration"},
		{"openai without key", map[string]string{"STT_PROVIDER": "openai"}, "STT_API_KEY"},
		{"unknown provider", map[string]string{"STT_PROVIDER": "azure"}, "STT_PROVIDER"},
		{"summary without key", map[string]string{"SUMMARY_ENABLED": "true"}, "SUMMARY_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONITOR_MODE", "live")
	t.Setenv("STT_PROVIDER", "azure")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "MONITOR_MODE") || !strings.Contains(err.Error(), "STT_PROVIDER") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	content := "MONITOR_MODE=stream\nGRPC_PORT=6000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set, including empty ones.
	os.Unsetenv("MONITOR_MODE")
	os.Unsetenv("GRPC_PORT")
	t.Cleanup(func() {
		os.Unsetenv("MONITOR_MODE")
		os.Unsetenv("GRPC_PORT")
	})

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Service.Mode != "stream" || cfg.Service.GRPCPort != "6000" {
		t.Errorf("expected values from .env, got mode=%s port=%s", cfg.Service.Mode, cfg.Service.GRPCPort)
	}
}

func TestLoadFile_MissingFileIgnored(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if cfg.Service.Mode != "record" {
		t.Errorf("expected default mode, got %s", cfg.Service.Mode)
	}
}
