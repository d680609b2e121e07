//go:build portaudio

package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
)

// PortAudioAvailable reports whether the binary was built with PortAudio support.
const PortAudioAvailable = true

// PortAudio captures from a PortAudio input stream.
type PortAudio struct {
	cfg Config

	mu         sync.Mutex
	stream     *portaudio.Stream
	dispatcher *Dispatcher
	stopWatch  context.CancelFunc
	capturing  atomic.Bool
}

var _ Source = (*PortAudio)(nil)

// NewPortAudio creates a PortAudio source.
func NewPortAudio(cfg Config) *PortAudio {
	return &PortAudio{cfg: cfg}
}

func (p *PortAudio) Format() models.AudioFormat { return p.cfg.Format }

func (p *PortAudio) Capturing() bool { return p.capturing.Load() }

// Start opens the input stream and begins delivering frames to handler.
func (p *PortAudio) Start(ctx context.Context, handler Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capturing.Load() {
		return ErrAlreadyCapturing
	}
	if err := p.cfg.Format.Validate(); err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	device, err := p.inputDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: p.cfg.Format.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.cfg.Format.SampleRateHz),
		FramesPerBuffer: int(p.cfg.Format.SampleRateHz) * int(p.cfg.FrameDuration/time.Millisecond) / 1000,
	}

	dispatcher := NewDispatcher(p.cfg.Format, p.cfg.Buffer, time.Now(), handler)
	stream, err := portaudio.OpenStream(params, func(in []int16) {
		dispatcher.Push(pcm.FromInt16(in))
	})
	if err != nil {
		dispatcher.Close()
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		dispatcher.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	p.stream, p.dispatcher = stream, dispatcher
	p.capturing.Store(true)

	watchCtx, cancel := context.WithCancel(ctx)
	p.stopWatch = cancel
	go func() {
		<-watchCtx.Done()
		if ctx.Err() != nil {
			_ = p.Stop()
		}
	}()

	logger := logging.WithComponent("capture")
	logger.Info().
		Str("backend", "portaudio").
		Str("device", device.Name).
		Stringer("format", p.cfg.Format).
		Msg("Capture started")
	return nil
}

func (p *PortAudio) inputDevice() (*portaudio.DeviceInfo, error) {
	if p.cfg.Device == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	want := strings.ToLower(p.cfg.Device)
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, p.cfg.Device)
}

// Stop stops and closes the stream, then waits for buffered frames to be delivered.
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.capturing.Load() {
		return nil
	}
	p.capturing.Store(false)
	p.stopWatch()

	stopErr := p.stream.Stop()
	closeErr := p.stream.Close()
	p.dispatcher.Close()
	termErr := portaudio.Terminate()
	p.stream = nil

	logger := logging.WithComponent("capture")
	logger.Info().
		Int64("dropped", p.dispatcher.Dropped()).
		Msg("Capture stopped")
	for _, err := range []error{stopErr, closeErr, termErr} {
		if err != nil {
			return fmt.Errorf("stop portaudio: %w", err)
		}
	}
	return nil
}
