// Command analyze summarizes a transcript file with a chat model and writes
// the result next to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erikprat61/supreme-memory/internal/app"
	"github.com/erikprat61/supreme-memory/internal/config"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/service/summary"
	"github.com/erikprat61/supreme-memory/internal/storage"
)

func main() {
	envFile := flag.String("env", ".env", "Optional file of KEY=value settings")
	output := flag.String("output", "", "Summary path; defaults to the transcript path with a _summary.txt suffix")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: analyze [flags] <transcript.txt>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	cfg, err := config.LoadFile(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Observability.LogLevel, Format: cfg.Observability.LogFormat, TimeFormat: time.RFC3339})

	summarizer, err := app.NewSummarizer(cfg.Summary)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create summarizer")
	}

	store := storage.NewLocal()
	text, err := store.ReadText(input)
	if err != nil {
		log.Fatal().Err(err).Str("input", input).Msg("Failed to read transcript")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Summary.Timeout)
	defer cancel()
	analysis, err := summarizer.Summarize(ctx, text)
	if err != nil {
		log.Fatal().Err(err).Msg("Summary failed")
	}

	out := *output
	if out == "" {
		out = summary.SummaryPath(input)
		if !strings.HasSuffix(input, "_combined.txt") {
			out = strings.TrimSuffix(input, filepath.Ext(input)) + "_summary.txt"
		}
	}
	if err := store.WriteText(out, analysis); err != nil {
		log.Fatal().Err(err).Str("output", out).Msg("Failed to write summary")
	}
	fmt.Println(analysis)
	log.Info().Str("output", out).Msg("Summary written")
}
