// Package monitor orchestrates a capture session: frames flow from the audio
// source through the voice activity detector into the recorder (record mode)
// or the windowed transcription pipeline (stream mode).
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/erikprat61/supreme-memory/internal/capture"
	"github.com/erikprat61/supreme-memory/internal/events"
	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
	"github.com/erikprat61/supreme-memory/internal/service/analyzer"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
	"github.com/erikprat61/supreme-memory/internal/service/pipeline"
	"github.com/erikprat61/supreme-memory/internal/service/segment"
	"github.com/erikprat61/supreme-memory/internal/service/vad"
)

// Mode selects what happens to Active audio.
type Mode string

const (
	// ModeRecord writes each Active stretch to part files and transcribes them when it ends.
	ModeRecord Mode = "record"
	// ModeStream transcribes fixed-size windows continuously.
	ModeStream Mode = "stream"
)

// Errors returned by the monitor.
var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrStopped        = errors.New("monitor is stopped")
	ErrNotStreaming   = errors.New("flush requires stream mode")
)

// Config holds monitor settings.
type Config struct {
	Mode Mode
	// Format is the canonical format frames are converted to before recording or windowing.
	Format models.AudioFormat
	// FlushOnSoundEnd submits the partial stream window when speech ends.
	FlushOnSoundEnd bool
	// StopTimeout bounds the wait for in-flight transcription when Run's context ends.
	StopTimeout time.Duration
}

// Validate checks the mode and timeouts.
func (c Config) Validate() error {
	var errs []error
	if c.Mode != ModeRecord && c.Mode != ModeStream {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeRecord, ModeStream, c.Mode))
	}
	if err := c.Format.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("canonical format: %w", err))
	} else if c.Format.Channels != 1 {
		errs = append(errs, fmt.Errorf("canonical format must be mono, got %d channels", c.Format.Channels))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop timeout must be positive, got %v", c.StopTimeout))
	}
	return errors.Join(errs...)
}

// Status is a point-in-time snapshot of the monitor.
type Status struct {
	Mode      Mode               `json:"mode"`
	Running   bool               `json:"running"`
	Capturing bool               `json:"capturing"`
	Active    bool               `json:"active"`
	Level     float64            `json:"level"`
	Frames    int64              `json:"frames"`
	Format    models.AudioFormat `json:"sourceFormat"`
	StartedAt *time.Time         `json:"startedAt,omitempty"`
	Recorder  *segment.Status    `json:"recorder,omitempty"`
	Pipeline  *pipeline.Stats    `json:"pipeline,omitempty"`
}

// Monitor is a single capture session. It is started once with Run and
// stopped once with Stop.
type Monitor struct {
	cfg      Config
	source   capture.Source
	detector *vad.Detector
	recorder *segment.Recorder
	pipeline *pipeline.Pipeline
	emitter  events.Emitter
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu        sync.Mutex
	startedAt time.Time
	lastFrame time.Time

	running  atomic.Bool
	stopping atomic.Bool
	active   atomic.Bool
	level    atomic.Uint64
	frames   atomic.Int64

	stopOnce sync.Once
	stopErr  error
	stopped  chan struct{}
}

// New wires a monitor. recorder is required in record mode and pipeline in
// stream mode; the other may be nil.
func New(
	cfg Config,
	source capture.Source,
	detector *vad.Detector,
	recorder *segment.Recorder,
	pipe *pipeline.Pipeline,
	emitter events.Emitter,
) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || detector == nil {
		return nil, errors.New("monitor requires a source and a detector")
	}
	if cfg.Mode == ModeRecord && recorder == nil {
		return nil, errors.New("record mode requires a recorder")
	}
	if cfg.Mode == ModeStream && pipe == nil {
		return nil, errors.New("stream mode requires a pipeline")
	}
	if emitter == nil {
		emitter = events.Discard
	}
	return &Monitor{
		cfg:      cfg,
		source:   source,
		detector: detector,
		recorder: recorder,
		pipeline: pipe,
		emitter:  emitter,
		metrics:  metrics.DefaultMetrics,
		logger:   logging.WithComponent("monitor"),
		stopped:  make(chan struct{}),
	}, nil
}

// Run starts capture and blocks until ctx is done, the source finishes on its
// own, or Stop is called. When Run initiates the stop it bounds the wait with
// StopTimeout.
func (m *Monitor) Run(ctx context.Context) error {
	if m.stopping.Load() {
		return ErrStopped
	}
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()

	if err := m.source.Start(ctx, m.onFrame); err != nil {
		m.running.Store(false)
		return fmt.Errorf("start capture: %w", err)
	}
	m.logger.Info().
		Str("mode", string(m.cfg.Mode)).
		Stringer("sourceFormat", m.source.Format()).
		Stringer("format", m.cfg.Format).
		Msg("Monitor running")

	var finished <-chan struct{}
	if f, ok := m.source.(interface{ Done() <-chan struct{} }); ok {
		finished = f.Done()
	}

	select {
	case <-m.stopped:
		return m.stopErr
	case <-ctx.Done():
	case <-finished:
		m.logger.Info().Msg("Source finished")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), m.cfg.StopTimeout)
	defer cancel()
	return m.Stop(stopCtx)
}

// onFrame runs on the source's delivery goroutine.
func (m *Monitor) onFrame(frame models.Frame) {
	if m.stopping.Load() {
		return
	}
	m.frames.Add(1)
	level := analyzer.Level(frame.Data)
	m.level.Store(math.Float64bits(level))
	m.metrics.RecordFrame(len(frame.Data), level)

	m.mu.Lock()
	m.lastFrame = frame.Timestamp
	m.mu.Unlock()

	// Edges go out before conversion so an unconvertible frame still moves
	// the recorder along with the detector.
	switch m.detector.Process(frame) {
	case vad.EdgeSoundStart:
		m.onSoundStart(frame.Timestamp)
	case vad.EdgeSoundEnd:
		m.onSoundEnd(frame.Timestamp)
	}

	data, err := pcm.Convert(frame.Data, frame.Format, m.cfg.Format)
	if err != nil {
		m.logger.Error().Err(err).Stringer("format", frame.Format).Msg("Dropping frame with unusable format")
		return
	}
	canonical := models.Frame{Data: data, Format: m.cfg.Format, Timestamp: frame.Timestamp}

	switch m.cfg.Mode {
	case ModeRecord:
		if m.recorder.Recording() {
			if err := m.recorder.Append(canonical); err != nil {
				m.logger.Error().Err(err).Msg("Failed to append frame")
			}
		}
	case ModeStream:
		if err := m.pipeline.Accept(canonical); err != nil && !errors.Is(err, pipeline.ErrClosed) {
			m.logger.Error().Err(err).Msg("Failed to accept frame")
		}
	}
}

func (m *Monitor) onSoundStart(at time.Time) {
	m.active.Store(true)
	m.metrics.RecordTransition(vad.EdgeSoundStart.String(), true)

	var sessionId string
	if m.cfg.Mode == ModeRecord {
		if err := m.recorder.Start(at); err != nil {
			m.logger.Error().Err(err).Msg("Failed to start recording")
		}
		sessionId = m.recorder.Status().SessionID
	}
	m.emitter.Emit(models.Event{Type: models.EventSoundStart, SessionID: sessionId})
	m.logger.Debug().Time("at", at).Float64("soundRatio", m.detector.SoundRatio()).Msg("Sound started")
}

func (m *Monitor) onSoundEnd(at time.Time) {
	m.active.Store(false)
	m.metrics.RecordTransition(vad.EdgeSoundEnd.String(), false)

	var sessionId string
	switch m.cfg.Mode {
	case ModeRecord:
		sessionId = m.recorder.Status().SessionID
		if err := m.recorder.Stop(at); err != nil && !errors.Is(err, segment.ErrNotRecording) {
			m.logger.Error().Err(err).Msg("Failed to stop recording")
		}
	case ModeStream:
		if m.cfg.FlushOnSoundEnd {
			m.pipeline.Flush()
		}
	}
	m.emitter.Emit(models.Event{Type: models.EventSoundEnd, SessionID: sessionId})
	m.logger.Debug().Time("at", at).Msg("Sound ended")
}

// Flush submits the partial stream window immediately. It reports whether a
// window was enqueued.
func (m *Monitor) Flush() (bool, error) {
	if m.cfg.Mode != ModeStream {
		return false, ErrNotStreaming
	}
	if m.stopping.Load() {
		return false, ErrStopped
	}
	return m.pipeline.Flush(), nil
}

// Stop ends the session exactly once: capture stops, the open recording or
// partial window is finalized, in-flight transcription gets until ctx is done,
// and then every resource is released regardless of the wait's outcome.
// Later calls return the first call's result.
func (m *Monitor) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() {
		m.stopping.Store(true)
		var errs []error

		if err := m.source.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop capture: %w", err))
		}

		m.mu.Lock()
		at := m.lastFrame
		m.mu.Unlock()
		if at.IsZero() {
			at = time.Now()
		}

		wasActive := m.active.Swap(false)
		switch m.cfg.Mode {
		case ModeRecord:
			sessionId := m.recorder.Status().SessionID
			if err := m.recorder.Shutdown(ctx, at); err != nil {
				errs = append(errs, fmt.Errorf("shutdown recorder: %w", err))
			}
			if wasActive {
				m.emitter.Emit(models.Event{Type: models.EventSoundEnd, SessionID: sessionId})
			}
		case ModeStream:
			if wasActive {
				m.emitter.Emit(models.Event{Type: models.EventSoundEnd})
			}
			if err := m.pipeline.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close pipeline: %w", err))
			}
		}

		m.running.Store(false)
		m.stopErr = errors.Join(errs...)
		close(m.stopped)

		event := m.logger.Info()
		if m.stopErr != nil {
			event = m.logger.Warn().Err(m.stopErr)
		}
		event.Int64("frames", m.frames.Load()).Msg("Monitor stopped")
	})
	return m.stopErr
}

// Status returns a snapshot of the session. Safe for concurrent use.
func (m *Monitor) Status() Status {
	s := Status{
		Mode:      m.cfg.Mode,
		Running:   m.running.Load(),
		Capturing: m.source.Capturing(),
		Active:    m.active.Load(),
		Level:     math.Float64frombits(m.level.Load()),
		Frames:    m.frames.Load(),
		Format:    m.source.Format(),
	}
	m.mu.Lock()
	if !m.startedAt.IsZero() {
		started := m.startedAt
		s.StartedAt = &started
	}
	m.mu.Unlock()

	if m.recorder != nil {
		rs := m.recorder.Status()
		s.Recorder = &rs
	}
	if m.pipeline != nil {
		ps := m.pipeline.Stats()
		s.Pipeline = &ps
	}
	return s
}
