// Package combiner stitches the per-part transcripts of a recording session into
// one document and removes the part artifacts.
package combiner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
	"github.com/erikprat61/supreme-memory/internal/service/segment"
	"github.com/erikprat61/supreme-memory/internal/storage"
)

// NotAvailable replaces the text of a part whose transcript does not exist.
const NotAvailable = "[transcript not available]"

// Combiner writes combined transcripts through a FileStore.
type Combiner struct {
	store   storage.FileStore
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a combiner.
func New(store storage.FileStore) *Combiner {
	return &Combiner{
		store:   store,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("combiner"),
	}
}

// Combine reads the transcript of every part in the given order, writes
// {start}_to_{end}_combined.txt into dir, and deletes the session's part files.
// The caller must have awaited every part transcription; a missing transcript
// is recorded as NotAvailable. Cleanup failures are logged, not returned.
func (c *Combiner) Combine(ctx context.Context, dir string, partPaths []string, start, end time.Time) (models.CombinedTranscript, error) {
	if len(partPaths) == 0 {
		return models.CombinedTranscript{}, errors.New("combine: no parts")
	}
	if err := ctx.Err(); err != nil {
		return models.CombinedTranscript{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Combined transcript of %d part(s), %s to %s\n\n",
		len(partPaths), start.Format("2006-01-02 15:04:05"), end.Format("15:04:05"))

	for i, p := range partPaths {
		text, err := c.store.ReadText(segment.TranscriptPath(p))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.logger.Warn().Err(err).Str("path", p).Msg("Failed to read part transcript")
			}
			text = NotAvailable
		}
		fmt.Fprintf(&b, "=== Part %d: %s ===\n%s\n\n", i+1, filepath.Base(p), strings.TrimSpace(text))
	}

	out := filepath.Join(dir, segment.CombinedName(start, end))
	doc := b.String()
	if err := c.store.WriteText(out, doc); err != nil {
		c.metrics.RecordFileOpError("write")
		return models.CombinedTranscript{}, fmt.Errorf("write combined transcript: %w", err)
	}

	c.cleanup(dir, partPaths, start, end)

	return models.CombinedTranscript{
		PartPaths: partPaths,
		StartTime: start,
		EndTime:   end,
		Text:      doc,
		Path:      out,
	}, nil
}

// cleanup deletes the session's part audio and transcripts: everything matching
// the session part glob plus any listed part that kept a non-conforming name.
func (c *Combiner) cleanup(dir string, partPaths []string, start, end time.Time) {
	targets := make(map[string]struct{})
	matches, err := c.store.ListMatching(dir, segment.PartGlob(start, end))
	if err != nil {
		c.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to list part files")
	}
	for _, m := range matches {
		targets[filepath.Clean(m)] = struct{}{}
	}
	for _, p := range partPaths {
		targets[filepath.Clean(p)] = struct{}{}
		targets[filepath.Clean(segment.TranscriptPath(p))] = struct{}{}
	}

	for p := range targets {
		if err := c.store.Delete(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			c.metrics.RecordFileOpError("delete")
			c.logger.Warn().Err(err).Str("path", p).Msg("Failed to delete part file")
		}
	}
}
