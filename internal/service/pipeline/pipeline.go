// Package pipeline turns a continuous frame stream into fixed-duration windows
// and submits them to a Transcriber one at a time at a bounded rate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erikprat61/supreme-memory/internal/events"
	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
	"github.com/erikprat61/supreme-memory/internal/service/analyzer"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
)

// ErrClosed is returned by Accept and Close once the pipeline is closed.
var ErrClosed = errors.New("pipeline is closed")

// Discard reasons reported in metrics.
const (
	ReasonSilence   = "silence"
	ReasonQueueFull = "queue_full"
)

// Config holds pipeline settings.
type Config struct {
	// Window is the duration of audio submitted per Transcriber call.
	Window time.Duration
	// VoiceThreshold gates single frames: a frame with no sampled point above it is dropped.
	VoiceThreshold float64
	// SilenceThreshold is the amplitude at or below which a sample counts as silent.
	SilenceThreshold float64
	// MaxSilenceRatio discards windows whose silent fraction exceeds it.
	MaxSilenceRatio float64
	// MinInterval is the minimum wall-clock time between Transcriber calls.
	MinInterval time.Duration
	CallTimeout time.Duration
	QueueSize   int
	Language    string
}

// DefaultConfig returns default pipeline settings.
func DefaultConfig() Config {
	return Config{
		Window:           5 * time.Second,
		VoiceThreshold:   0.02,
		SilenceThreshold: 0.01,
		MaxSilenceRatio:  0.85,
		MinInterval:      time.Second,
		CallTimeout:      30 * time.Second,
		QueueSize:        16,
		Language:         "en",
	}
}

// Validate rejects settings that would change windowing silently.
func (c Config) Validate() error {
	var errs []error
	if c.Window <= 0 {
		errs = append(errs, fmt.Errorf("window duration must be positive, got %v", c.Window))
	}
	if c.VoiceThreshold <= 0 || c.VoiceThreshold > 1 {
		errs = append(errs, fmt.Errorf("voice threshold must be in (0, 1], got %v", c.VoiceThreshold))
	}
	if c.SilenceThreshold <= 0 || c.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("silence threshold must be in (0, 1], got %v", c.SilenceThreshold))
	}
	if c.MaxSilenceRatio <= 0 || c.MaxSilenceRatio > 1 {
		errs = append(errs, fmt.Errorf("max silence ratio must be in (0, 1], got %v", c.MaxSilenceRatio))
	}
	if c.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("min interval must not be negative, got %v", c.MinInterval))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call timeout must be positive, got %v", c.CallTimeout))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize))
	}
	return errors.Join(errs...)
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Buffered    int                       `json:"bufferedBytes"`
	Queued      int                       `json:"queued"`
	Processed   int64                     `json:"processed"`
	Failed      int64                     `json:"failed"`
	Gated       int64                     `json:"gatedFrames"`
	Discarded   int64                     `json:"discardedWindows"`
	LastSegment *models.TranscriptSegment `json:"lastSegment,omitempty"`
}

// Pipeline accumulates frames into windows and transcribes them on a single
// background worker.
type Pipeline struct {
	cfg         Config
	format      models.AudioFormat
	transcriber stt.Transcriber
	provider    string
	emitter     events.Emitter
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	mu          sync.Mutex
	buf         []byte
	windowBytes int
	last        *models.TranscriptSegment

	queue *queue

	processed atomic.Int64
	failed    atomic.Int64
	gated     atomic.Int64
	discarded atomic.Int64

	// closing rejects new audio; draining is set after the final flush and
	// lets the worker exit once the queue is empty.
	closing   atomic.Bool
	draining  atomic.Bool
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	// owned by the worker
	lastCall time.Time
}

// New creates a pipeline for canonical-format frames and starts its worker.
func New(cfg Config, format models.AudioFormat, transcriber stt.Transcriber, emitter events.Emitter) *Pipeline {
	if emitter == nil {
		emitter = events.Discard
	}
	windowBytes := int(format.BytesFor(cfg.Window))
	if windowBytes < format.BytesPerSample() {
		windowBytes = format.BytesPerSample()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cfg:         cfg,
		format:      format,
		transcriber: transcriber,
		provider:    stt.ProviderName(transcriber),
		emitter:     emitter,
		metrics:     metrics.DefaultMetrics,
		logger:      logging.WithComponent("pipeline"),
		windowBytes: windowBytes,
		buf:         make([]byte, 0, windowBytes),
		queue:       newQueue(cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go p.run()
	return p
}

// Stats returns a snapshot of the pipeline counters. Safe for concurrent use.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	buffered := len(p.buf)
	var last *models.TranscriptSegment
	if p.last != nil {
		seg := *p.last
		last = &seg
	}
	p.mu.Unlock()

	return Stats{
		Buffered:    buffered,
		Queued:      p.queue.len(),
		Processed:   p.processed.Load(),
		Failed:      p.failed.Load(),
		Gated:       p.gated.Load(),
		Discarded:   p.discarded.Load(),
		LastSegment: last,
	}
}

// Accept offers one canonical-format frame. Frames without voice are dropped;
// a full window is checked against the silence ratio and enqueued.
func (p *Pipeline) Accept(frame models.Frame) error {
	if p.closing.Load() {
		return ErrClosed
	}
	if frame.Format != p.format {
		return fmt.Errorf("accept: frame format %v, pipeline expects %v", frame.Format, p.format)
	}
	if analyzer.Sample(frame.Data, len(frame.Data), p.cfg.VoiceThreshold).HitRatio == 0 {
		p.gated.Add(1)
		return nil
	}

	data := frame.Data[:len(frame.Data)-len(frame.Data)%2]

	p.mu.Lock()
	defer p.mu.Unlock()
	// Re-checked under mu: nothing may be appended after Close's final flush.
	if p.closing.Load() {
		return ErrClosed
	}
	for len(data) > 0 {
		n := min(p.windowBytes-len(p.buf), len(data))
		p.buf = append(p.buf, data[:n]...)
		data = data[n:]
		if len(p.buf) >= p.windowBytes {
			p.cutWindowLocked()
		}
	}
	return nil
}

// cutWindowLocked applies the silence-ratio gate to a full buffer and resets it.
func (p *Pipeline) cutWindowLocked() {
	window := p.buf
	p.buf = make([]byte, 0, p.windowBytes)

	ratio := analyzer.SilenceRatio(window, p.cfg.SilenceThreshold)
	if ratio > p.cfg.MaxSilenceRatio {
		p.discarded.Add(1)
		p.metrics.RecordWindowDiscarded(ReasonSilence)
		p.logger.Debug().Float64("silenceRatio", ratio).Msg("Window discarded as silence")
		return
	}
	p.enqueue(window)
}

// Flush moves whatever is accumulating onto the queue, bypassing the window
// size. It reports whether a window was enqueued; an empty buffer is a no-op.
func (p *Pipeline) Flush() bool {
	if p.closing.Load() {
		return false
	}
	return p.flush()
}

func (p *Pipeline) flush() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return false
	}
	window := p.buf
	p.buf = make([]byte, 0, p.windowBytes)
	return p.enqueue(window)
}

func (p *Pipeline) enqueue(window []byte) bool {
	chunk := models.TranscriptionChunk{
		ID:         uuid.NewString(),
		Audio:      window,
		Format:     p.format,
		EnqueuedAt: time.Now(),
	}
	depth, ok := p.queue.pushBack(chunk)
	if !ok {
		p.discarded.Add(1)
		p.metrics.RecordWindowDiscarded(ReasonQueueFull)
		p.logger.Warn().Str("chunkId", chunk.ID).Int("depth", depth).Msg("Transcription queue full, window dropped")
		return false
	}
	p.metrics.RecordWindowEnqueued(depth)
	return true
}

func (p *Pipeline) run() {
	defer close(p.done)
	for {
		for {
			chunk, ok := p.queue.pop()
			if !ok {
				break
			}
			if !p.waitTurn(chunk) {
				return
			}
		}
		p.metrics.SetQueueDepth(0)
		if p.draining.Load() {
			return
		}
		select {
		case <-p.ctx.Done():
			return
		case <-p.queue.signal:
		}
	}
}

// waitTurn processes chunk if the minimum interval has elapsed. Otherwise it
// puts the chunk back at the front and sleeps out the remainder. It returns
// false when the worker is cancelled.
func (p *Pipeline) waitTurn(chunk models.TranscriptionChunk) bool {
	if !p.lastCall.IsZero() {
		if wait := p.cfg.MinInterval - time.Since(p.lastCall); wait > 0 {
			p.queue.pushFront(chunk)
			p.metrics.RecordThrottled()
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-p.ctx.Done():
				return false
			case <-timer.C:
				return true
			}
		}
	}
	p.process(chunk)
	return p.ctx.Err() == nil
}

func (p *Pipeline) process(chunk models.TranscriptionChunk) {
	logger := logging.WithChunk(chunk.ID, p.provider)
	p.metrics.SetQueueDepth(p.queue.len())

	audio, err := pcm.EncodeWAV(chunk.Audio, chunk.Format)
	if err != nil {
		p.failed.Add(1)
		logger.Error().Err(err).Msg("Failed to wrap window")
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.CallTimeout)
	defer cancel()

	p.lastCall = time.Now()
	text, err := p.transcriber.Transcribe(ctx, audio, chunk.Format, p.cfg.Language)
	if err != nil {
		p.failed.Add(1)
		logger.Error().Err(err).Dur("queued", time.Since(chunk.EnqueuedAt)).Msg("Window transcription failed")
		return
	}
	p.processed.Add(1)
	if text == "" {
		return
	}

	seg := models.TranscriptSegment{Source: chunk.ID, Text: text, ProducedAt: time.Now()}
	p.mu.Lock()
	p.last = &seg
	p.mu.Unlock()

	p.emitter.Emit(models.Event{
		Type:   models.EventTranscriptionReceived,
		Source: seg.Source,
		Text:   seg.Text,
	})
	logger.Debug().Int("chars", len(text)).Msg("Window transcribed")
}

// Close flushes the partial window once, lets the worker drain the queue until
// ctx is done, then cancels the worker and waits for it to exit. The worker is
// released even when the drain times out.
func (p *Pipeline) Close(ctx context.Context) error {
	err := ErrClosed
	p.closeOnce.Do(func() {
		p.closing.Store(true)
		p.flush()
		p.draining.Store(true)
		p.queue.notify()

		select {
		case <-p.done:
			err = nil
		case <-ctx.Done():
			err = ctx.Err()
			p.logger.Warn().Int("queued", p.queue.len()).Msg("Pipeline drain timed out, cancelling worker")
		}
		p.cancel()
		<-p.done
	})
	return err
}
