package segment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/erikprat61/supreme-memory/internal/events"
	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
	"github.com/erikprat61/supreme-memory/internal/storage"
)

// DiscardPolicy decides what happens to the files of a session shorter than
// the minimum duration.
type DiscardPolicy string

const (
	DiscardDelete DiscardPolicy = "delete"
	DiscardKeep   DiscardPolicy = "keep"
)

// Config holds recorder settings.
type Config struct {
	OutputDir string
	// DateDirs places each session under OutputDir/YYYY-MM-DD.
	DateDirs          bool
	MaxPartBytes      int64
	MinDuration       time.Duration
	Discard           DiscardPolicy
	Language          string
	TranscribeTimeout time.Duration
}

// DefaultConfig returns sensible default recorder settings.
func DefaultConfig() Config {
	return Config{
		OutputDir:         "recordings",
		DateDirs:          true,
		MaxPartBytes:      10 * 1024 * 1024, // ~5.5 minutes at 16kHz 16-bit mono
		MinDuration:       2 * time.Second,
		Discard:           DiscardDelete,
		Language:          "en",
		TranscribeTimeout: 2 * time.Minute,
	}
}

// Validate rejects settings that would change segmentation silently.
func (c Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.MaxPartBytes <= 0 {
		errs = append(errs, fmt.Errorf("max part bytes must be positive, got %d", c.MaxPartBytes))
	}
	if c.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("min duration must not be negative, got %v", c.MinDuration))
	}
	if c.Discard != DiscardDelete && c.Discard != DiscardKeep {
		errs = append(errs, fmt.Errorf("discard policy must be %q or %q, got %q", DiscardDelete, DiscardKeep, c.Discard))
	}
	if c.TranscribeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("transcribe timeout must be positive, got %v", c.TranscribeTimeout))
	}
	return errors.Join(errs...)
}

// Combiner stitches the part transcripts of a finished session.
type Combiner interface {
	Combine(ctx context.Context, dir string, partPaths []string, start, end time.Time) (models.CombinedTranscript, error)
}

// Status is a point-in-time view of the recorder.
type Status struct {
	State        State  `json:"state"`
	SessionID    string `json:"sessionId,omitempty"`
	Parts        int    `json:"parts"`
	BytesWritten int64  `json:"bytesWritten"`
	Pending      int64  `json:"pendingFinalizations"`
}

// Recorder is the Idle/Recording state machine for record mode.
//
// Start, Append and Stop are called from the frame delivery goroutine, which
// exclusively owns the current part writer. Finalization (rename, transcribe,
// combine, discard) runs on background goroutines tracked by the recorder.
type Recorder struct {
	cfg         Config
	format      models.AudioFormat
	store       storage.FileStore
	transcriber stt.Transcriber
	combiner    Combiner
	emitter     events.Emitter
	ids         *Generator
	lifecycle   *Lifecycle
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	// owned by the delivery goroutine
	session *models.RecordingSession
	seq     uint64
	writer  storage.Writer

	parts   atomic.Int64
	bytes   atomic.Int64
	pending atomic.Int64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRecorder creates a recorder writing canonical-format parts through store.
func NewRecorder(
	cfg Config,
	format models.AudioFormat,
	store storage.FileStore,
	transcriber stt.Transcriber,
	combiner Combiner,
	emitter events.Emitter,
) *Recorder {
	if emitter == nil {
		emitter = events.Discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Recorder{
		cfg:         cfg,
		format:      format,
		store:       store,
		transcriber: transcriber,
		combiner:    combiner,
		emitter:     emitter,
		ids:         New(),
		lifecycle:   NewLifecycle(),
		metrics:     metrics.DefaultMetrics,
		logger:      logging.WithComponent("recorder"),
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Status returns the current recorder status. Safe for concurrent use.
func (r *Recorder) Status() Status {
	return Status{
		State:        r.lifecycle.State(),
		SessionID:    r.lifecycle.SessionId(),
		Parts:        int(r.parts.Load()),
		BytesWritten: r.bytes.Load(),
		Pending:      r.pending.Load(),
	}
}

// Recording reports whether a session is open.
func (r *Recorder) Recording() bool {
	return r.lifecycle.IsRecording()
}

// Start opens a session and its first part. at is the SoundStart timestamp.
func (r *Recorder) Start(at time.Time) error {
	id, seq := r.ids.Next()
	if err := r.lifecycle.Begin(id); err != nil {
		return err
	}

	r.session = &models.RecordingSession{ID: id, StartTime: at}
	r.seq = seq
	r.parts.Store(0)
	r.bytes.Store(0)
	r.metrics.RecordRecordingStarted()

	logger := logging.WithSession(id)
	if err := r.openPart(); err != nil {
		// The session stays open; the next Append retries.
		logger.Error().Err(err).Msg("Failed to open first part")
	}
	logger.Info().Time("start", at).Str("dir", r.sessionDir(r.session)).Msg("Recording started")
	return nil
}

func (r *Recorder) openPart() error {
	s := r.session
	s.PartIndex++
	path := filepath.Join(r.sessionDir(s), inProgressName(s.StartTime, r.seq, s.PartIndex))
	w, err := r.store.CreateWriter(path, r.format)
	if err != nil {
		s.PartIndex--
		r.metrics.RecordFileOpError("create")
		return err
	}
	r.writer = w
	s.PartBytesWritten = 0
	r.parts.Store(int64(s.PartIndex))
	return nil
}

func (r *Recorder) closePart() {
	if r.writer == nil {
		return
	}
	if err := r.writer.Close(); err != nil {
		r.metrics.RecordFileOpError("close")
		logger := logging.WithPart(r.session.ID, r.session.PartIndex, r.writer.Path())
		logger.Error().Err(err).Msg("Failed to close part")
	}
	r.session.PartPaths = append(r.session.PartPaths, r.writer.Path())
	r.writer = nil
}

// Append writes a canonical-format frame to the current part, rotating first
// when the frame would push the part past MaxPartBytes. The whole frame goes
// into the new part.
func (r *Recorder) Append(frame models.Frame) error {
	if !r.lifecycle.IsRecording() {
		return ErrNotRecording
	}
	if frame.Format != r.format {
		return fmt.Errorf("append: frame format %v, recorder expects %v", frame.Format, r.format)
	}
	data := frame.Data[:len(frame.Data)-len(frame.Data)%2]
	if len(data) == 0 {
		return nil
	}

	s := r.session
	if r.writer != nil && s.PartBytesWritten > 0 && s.PartBytesWritten+int64(len(data)) > r.cfg.MaxPartBytes {
		r.closePart()
		r.metrics.RecordRotation()
		logger := logging.WithSession(s.ID)
		logger.Debug().Int("part", s.PartIndex+1).Msg("Rotating part")
	}
	if r.writer == nil {
		if err := r.openPart(); err != nil {
			return fmt.Errorf("open part %d: %w", s.PartIndex+1, err)
		}
	}

	n, err := r.writer.Append(data)
	s.PartBytesWritten += int64(n)
	s.TotalBytes += int64(n)
	r.bytes.Store(s.TotalBytes)
	if err != nil {
		r.metrics.RecordFileOpError("append")
		return err
	}
	return nil
}

// Stop closes the session at the SoundEnd timestamp and hands it to a
// background finalizer. It returns once the writer is closed.
func (r *Recorder) Stop(at time.Time) error {
	id, err := r.lifecycle.End()
	if err != nil {
		return err
	}
	r.closePart()

	s := r.session
	r.session = nil
	r.parts.Store(0)
	r.bytes.Store(0)

	duration := at.Sub(s.StartTime)
	kept := duration >= r.cfg.MinDuration && len(s.PartPaths) > 0 && s.TotalBytes > 0
	r.metrics.RecordRecordingEnded(kept, duration.Seconds())

	logger := logging.WithSession(id)
	logger.Info().
		Dur("duration", duration).
		Int("parts", len(s.PartPaths)).
		Int64("bytes", s.TotalBytes).
		Bool("kept", kept).
		Msg("Recording stopped")

	r.wg.Add(1)
	r.pending.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.pending.Add(-1)
		if !kept {
			r.discard(s)
			return
		}
		r.finalize(s, at)
	}()
	return nil
}

func (r *Recorder) discard(s *models.RecordingSession) {
	logger := logging.WithSession(s.ID)
	if r.cfg.Discard == DiscardKeep {
		logger.Info().Strs("parts", s.PartPaths).Msg("Short recording kept, not transcribed")
		return
	}
	for _, p := range s.PartPaths {
		if err := r.store.Delete(p); err != nil {
			r.metrics.RecordFileOpError("delete")
			logger.Warn().Err(err).Str("path", p).Msg("Failed to delete short recording")
		}
	}
	logger.Info().Int("parts", len(s.PartPaths)).Msg("Short recording discarded")
}

func (r *Recorder) finalize(s *models.RecordingSession, end time.Time) {
	logger := logging.WithSession(s.ID)

	// Rename in part-index order; a failed rename keeps the original path.
	paths := make([]string, len(s.PartPaths))
	for i, p := range s.PartPaths {
		target := filepath.Join(r.sessionDir(s), PartName(s.StartTime, end, i+1))
		if err := r.store.Rename(p, target); err != nil {
			r.metrics.RecordFileOpError("rename")
			logger.Warn().Err(err).Str("path", p).Msg("Rename failed, keeping original path")
			paths[i] = p
			continue
		}
		paths[i] = target
	}

	var g errgroup.Group
	for i, p := range paths {
		g.Go(func() error {
			r.transcribePart(s.ID, i+1, p)
			return nil
		})
	}
	g.Wait()

	combined, err := r.combiner.Combine(r.baseCtx, r.sessionDir(s), paths, s.StartTime, end)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to combine transcripts")
		return
	}

	r.emitter.Emit(models.Event{
		Type:      models.EventSessionFinalized,
		SessionID: s.ID,
		Path:      combined.Path,
		Parts:     len(paths),
	})
	logger.Info().Str("path", combined.Path).Int("parts", len(paths)).Msg("Session finalized")
}

func (r *Recorder) sessionDir(s *models.RecordingSession) string {
	if r.cfg.DateDirs {
		return filepath.Join(r.cfg.OutputDir, s.StartTime.Format(DateLayout))
	}
	return r.cfg.OutputDir
}

// transcribePart writes the part's transcript next to it. Failures leave no
// transcript file, which the combiner reports as unavailable.
func (r *Recorder) transcribePart(sessionId string, index int, path string) {
	logger := logging.WithPart(sessionId, index, path)

	audio, err := r.store.ReadFile(path)
	if err != nil {
		r.metrics.RecordFileOpError("read")
		logger.Error().Err(err).Msg("Failed to read part")
		return
	}

	ctx, cancel := context.WithTimeout(r.baseCtx, r.cfg.TranscribeTimeout)
	defer cancel()
	text, err := r.transcriber.Transcribe(ctx, audio, r.format, r.cfg.Language)
	if err != nil {
		logger.Error().Err(err).Msg("Transcription failed")
		return
	}

	if err := r.store.WriteText(TranscriptPath(path), text); err != nil {
		r.metrics.RecordFileOpError("write")
		logger.Error().Err(err).Msg("Failed to write part transcript")
		return
	}

	if text != "" {
		r.emitter.Emit(models.Event{
			Type:      models.EventTranscriptionReceived,
			SessionID: sessionId,
			Source:    filepath.Base(path),
			Text:      text,
		})
	}
	logger.Debug().Int("chars", len(text)).Msg("Part transcribed")
}

// Wait blocks until every background finalization has finished or ctx is done.
func (r *Recorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops an open session at the given time, waits for finalization
// until ctx is done, then cancels outstanding work and closes the recorder.
// It runs once; later calls return ErrRecorderClosed.
func (r *Recorder) Shutdown(ctx context.Context, at time.Time) error {
	if r.lifecycle.State() == StateClosed {
		return ErrRecorderClosed
	}
	var errs []error
	if r.lifecycle.IsRecording() {
		if err := r.Stop(at); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.Wait(ctx); err != nil {
		r.logger.Warn().Err(err).Int64("pending", r.pending.Load()).Msg("Finalization did not finish before shutdown deadline")
		errs = append(errs, err)
	}
	r.cancel()
	r.lifecycle.Close()
	return errors.Join(errs...)
}
