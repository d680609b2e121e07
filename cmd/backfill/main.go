// Command backfill transcribes existing recordings that have no transcript yet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erikprat61/supreme-memory/internal/app"
	"github.com/erikprat61/supreme-memory/internal/config"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
	"github.com/erikprat61/supreme-memory/internal/service/backfill"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
	"github.com/erikprat61/supreme-memory/internal/storage"
)

func main() {
	envFile := flag.String("env", ".env", "Optional file of KEY=value settings")
	input := flag.String("input", "recordings", "Directory of .wav and .mp3 files (date sub-directories allowed)")
	output := flag.String("output", "", "Transcript root; empty writes next to each audio file")
	workers := flag.Int("workers", 1, "Concurrent transcriptions")
	timeout := flag.Duration("timeout", 5*time.Minute, "Per-file transcription timeout")
	force := flag.Bool("force", false, "Re-transcribe files that already have a transcript")
	flag.Parse()

	cfg, err := config.LoadFile(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Observability.LogLevel, Format: cfg.Observability.LogFormat, TimeFormat: time.RFC3339})

	if info, err := os.Stat(*input); err != nil || !info.IsDir() {
		log.Fatal().Str("input", *input).Msg("Input directory does not exist")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	format := cfg.Audio.CanonicalFormat()
	transcriber, closeSTT, err := app.NewTranscriber(ctx, cfg.STT, format)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transcriber")
	}
	defer closeSTT()

	bcfg := backfill.DefaultConfig()
	bcfg.OutputDir = *output
	bcfg.Format = format
	bcfg.Language = cfg.STT.Language
	bcfg.Timeout = *timeout
	bcfg.Workers = *workers
	bcfg.Force = *force

	b := backfill.New(bcfg, stt.Instrument(transcriber, "backfill", metrics.DefaultMetrics), storage.NewLocal())
	report, err := b.Run(ctx, os.DirFS(*input), *input)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	if err != nil {
		log.Error().Err(err).Msg("Backfill did not complete")
		os.Exit(1)
	}
	if report.Failed > 0 {
		os.Exit(2)
	}
}
