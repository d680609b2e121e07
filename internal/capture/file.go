package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
)

// File replays a WAV or MP3 file as a frame stream. With Realtime set, frames
// are paced at capture cadence; otherwise they are delivered back to back.
type File struct {
	Path     string
	Realtime bool
	// Epoch is the timestamp of the first frame. Zero means time.Now at Start.
	Epoch time.Time

	frameDuration time.Duration

	mu        sync.Mutex
	data      []byte
	format    models.AudioFormat
	cancel    context.CancelFunc
	done      chan struct{}
	capturing atomic.Bool
}

var _ Source = (*File)(nil)

// NewFile decodes path eagerly so the format is known before Start.
func NewFile(path string, frameDuration time.Duration, realtime bool) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewFileFromBytes(path, content, frameDuration, realtime)
}

// NewFileFromBytes decodes content, choosing the container from name's extension.
func NewFileFromBytes(name string, content []byte, frameDuration time.Duration, realtime bool) (*File, error) {
	data, format, err := pcm.DecodeFile(name, content)
	if err != nil {
		return nil, err
	}
	if frameDuration <= 0 {
		frameDuration = DefaultConfig().FrameDuration
	}
	return &File{
		Path:          name,
		Realtime:      realtime,
		frameDuration: frameDuration,
		data:          data,
		format:        format,
		done:          make(chan struct{}),
	}, nil
}

// Format returns the decoded file format.
func (f *File) Format() models.AudioFormat { return f.format }

// Capturing reports whether replay is in progress.
func (f *File) Capturing() bool { return f.capturing.Load() }

// Done is closed when replay has ended, either at end of file or after Stop.
func (f *File) Done() <-chan struct{} { return f.done }

// Start begins replay on a dedicated delivery goroutine.
func (f *File) Start(ctx context.Context, handler Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return ErrAlreadyCapturing
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.capturing.Store(true)

	epoch := f.Epoch
	if epoch.IsZero() {
		epoch = time.Now()
	}
	go f.replay(ctx, handler, epoch)

	logger := logging.WithComponent("capture")
	logger.Info().
		Str("backend", "file").
		Str("path", f.Path).
		Stringer("format", f.format).
		Dur("duration", f.format.Duration(len(f.data))).
		Msg("Capture started")
	return nil
}

func (f *File) replay(ctx context.Context, handler Handler, epoch time.Time) {
	defer close(f.done)
	defer f.capturing.Store(false)

	step := f.format.BytesFor(f.frameDuration)
	if step <= 0 {
		step = f.format.BytesPerSample() * f.format.Channels
	}

	var ticker *time.Ticker
	if f.Realtime {
		ticker = time.NewTicker(f.frameDuration)
		defer ticker.Stop()
	}

	for off := 0; off < len(f.data); off += step {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		end := min(off+step, len(f.data))
		buf := make([]byte, end-off)
		copy(buf, f.data[off:end])
		handler(models.Frame{
			Data:      buf,
			Format:    f.format,
			Timestamp: epoch.Add(f.format.Duration(off)),
		})
	}
}

// Stop ends replay and waits for the delivery goroutine to exit.
func (f *File) Stop() error {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-f.done
	return nil
}
