// Package capture adapts audio devices and files to a push-style frame source.
package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
)

// Handler receives frames on the source's single delivery goroutine. The frame
// data is owned by the handler.
type Handler func(frame models.Frame)

// Source pushes frames at capture cadence. The core never pulls.
type Source interface {
	// Start begins delivering frames to handler until Stop is called or ctx is done.
	Start(ctx context.Context, handler Handler) error
	// Stop ends capture and returns once no further frame will be delivered.
	Stop() error
	Capturing() bool
	Format() models.AudioFormat
}

// Errors shared by sources.
var (
	ErrAlreadyCapturing = errors.New("capture already started")
	ErrDeviceNotFound   = errors.New("capture device not found")
)

// Config describes the device stream to open.
type Config struct {
	// Device selects an input by case-insensitive name substring. Empty means the default device.
	Device string
	Format models.AudioFormat
	// FrameDuration is the device period and the size of each delivered frame.
	FrameDuration time.Duration
	// Buffer is the number of frames held between the device callback and delivery.
	Buffer int
}

// DefaultConfig returns a 16kHz mono stream with 20ms frames.
func DefaultConfig() Config {
	return Config{
		Format:        models.CanonicalFormat,
		FrameDuration: 20 * time.Millisecond,
		Buffer:        64,
	}
}

// Dispatcher moves frames from a real-time device callback to a single
// delivery goroutine. Push never blocks: a frame arriving while the buffer is
// full is dropped and counted.
type Dispatcher struct {
	format  models.AudioFormat
	handler Handler
	ch      chan models.Frame
	done    chan struct{}

	mu     sync.Mutex
	closed bool

	start   time.Time
	offset  int64
	dropped atomic.Int64

	sometimes rate.Sometimes
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewDispatcher starts the delivery goroutine. Frame timestamps are derived
// from start plus the duration of all bytes pushed so far, dropped or not.
func NewDispatcher(format models.AudioFormat, buffer int, start time.Time, handler Handler) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		format:    format,
		handler:   handler,
		ch:        make(chan models.Frame, buffer),
		done:      make(chan struct{}),
		start:     start,
		sometimes: rate.Sometimes{First: 1, Interval: 5 * time.Second},
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithComponent("capture"),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.done)
	for frame := range d.ch {
		d.handler(frame)
	}
}

// Push copies data into a frame and hands it to the delivery goroutine. It
// reports false when the frame was dropped.
func (d *Dispatcher) Push(data []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || len(data) == 0 {
		return false
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	at := d.start.Add(d.format.Duration(int(d.offset)))
	d.offset += int64(len(data))

	select {
	case d.ch <- models.Frame{Data: buf, Format: d.format, Timestamp: at}:
		return true
	default:
		n := d.dropped.Add(1)
		d.metrics.RecordFrameDropped()
		d.sometimes.Do(func() {
			d.logger.Warn().Int64("dropped", n).Msg("Frame buffer full, dropping frames")
		})
		return false
	}
}

// Dropped returns the number of frames dropped so far.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting frames, delivers what is buffered and waits for the
// delivery goroutine to exit. Idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.done
}
