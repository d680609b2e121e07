// Package backfill transcribes existing recordings in bulk.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
	"github.com/erikprat61/supreme-memory/internal/storage"
)

// Config holds backfill settings.
type Config struct {
	// OutputDir is the transcript root. The input sub-directory layout is mirrored
	// under it. Empty writes each transcript next to its audio file.
	OutputDir string
	Format    models.AudioFormat
	Language  string
	Timeout   time.Duration
	Workers   int
	// Force re-transcribes files that already have a transcript.
	Force bool
}

// DefaultConfig returns default backfill settings.
func DefaultConfig() Config {
	return Config{
		Format:   models.CanonicalFormat,
		Language: "en",
		Timeout:  5 * time.Minute,
		Workers:  1,
	}
}

// Report summarizes a run.
type Report struct {
	Found       int `json:"found"`
	Transcribed int `json:"transcribed"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Backfiller walks an audio tree and writes a transcript for every file that
// lacks one.
type Backfiller struct {
	cfg         Config
	transcriber stt.Transcriber
	store       storage.FileStore
	logger      zerolog.Logger
}

// New creates a backfiller writing transcripts through store.
func New(cfg Config, transcriber stt.Transcriber, store storage.FileStore) *Backfiller {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Backfiller{
		cfg:         cfg,
		transcriber: transcriber,
		store:       store,
		logger:      logging.WithComponent("backfill"),
	}
}

// Find returns the slash-separated paths of every .wav and .mp3 file in fsys,
// sorted. In-progress recording parts are excluded.
func Find(fsys fs.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "recording_") {
			return nil
		}
		switch strings.ToLower(path.Ext(name)) {
		case ".wav", ".mp3":
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// Run transcribes the audio files under root. inputDir is the on-disk location
// of root and is used for transcripts when OutputDir is empty. A failure on one
// file is counted and logged; only a failed walk or a cancelled ctx aborts.
func (b *Backfiller) Run(ctx context.Context, root fs.FS, inputDir string) (Report, error) {
	files, err := Find(root)
	if err != nil {
		return Report{}, fmt.Errorf("walk %s: %w", inputDir, err)
	}

	var (
		mu     sync.Mutex
		report = Report{Found: len(files)}
	)
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	b.logger.Info().Int("files", len(files)).Str("input", inputDir).Msg("Backfill started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := b.transcriptPath(inputDir, file)
			logger := b.logger.With().Str("file", file).Int("index", i+1).Int("total", len(files)).Logger()

			if !b.cfg.Force {
				if _, err := b.store.ReadText(out); err == nil {
					count(&report.Skipped)
					logger.Debug().Msg("Transcript exists, skipping")
					return nil
				}
			}

			text, err := b.transcribe(gctx, root, file)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				count(&report.Failed)
				logger.Error().Err(err).Msg("Failed to transcribe file")
				return nil
			}
			if err := b.store.WriteText(out, text); err != nil {
				count(&report.Failed)
				logger.Error().Err(err).Str("transcript", out).Msg("Failed to write transcript")
				return nil
			}
			count(&report.Transcribed)
			logger.Info().Str("transcript", out).Int("chars", len(text)).Msg("File transcribed")
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	b.logger.Info().
		Int("found", report.Found).
		Int("transcribed", report.Transcribed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Backfill finished")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return report, fmt.Errorf("backfill interrupted: %w", err)
	}
	return report, err
}

func (b *Backfiller) transcribe(ctx context.Context, root fs.FS, file string) (string, error) {
	content, err := fs.ReadFile(root, file)
	if err != nil {
		return "", err
	}
	data, format, err := pcm.DecodeFile(file, content)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", stt.ErrEmptyAudio
	}
	canonical, err := pcm.Convert(data, format, b.cfg.Format)
	if err != nil {
		return "", err
	}
	audio, err := pcm.EncodeWAV(canonical, b.cfg.Format)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	return b.transcriber.Transcribe(ctx, audio, b.cfg.Format, b.cfg.Language)
}

// transcriptPath maps a slash-separated audio path to its transcript location.
func (b *Backfiller) transcriptPath(inputDir, file string) string {
	rel := filepath.FromSlash(strings.TrimSuffix(file, path.Ext(file)) + ".txt")
	if b.cfg.OutputDir == "" {
		return filepath.Join(inputDir, rel)
	}
	return filepath.Join(b.cfg.OutputDir, rel)
}
