package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
)

// Malgo captures from a miniaudio input device.
type Malgo struct {
	cfg Config

	mu         sync.Mutex
	mctx       *malgo.AllocatedContext
	device     *malgo.Device
	dispatcher *Dispatcher
	stopWatch  context.CancelFunc
	capturing  atomic.Bool
}

var _ Source = (*Malgo)(nil)

// NewMalgo creates a miniaudio source. No device is opened until Start.
func NewMalgo(cfg Config) *Malgo {
	return &Malgo{cfg: cfg}
}

// Format returns the capture format.
func (m *Malgo) Format() models.AudioFormat {
	return m.cfg.Format
}

// Capturing reports whether the device is running.
func (m *Malgo) Capturing() bool {
	return m.capturing.Load()
}

// Devices lists the names of the available capture devices.
func Devices() ([]string, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// Start opens the device and begins delivering frames to handler.
func (m *Malgo) Start(ctx context.Context, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capturing.Load() {
		return ErrAlreadyCapturing
	}
	if err := m.cfg.Format.Validate(); err != nil {
		return err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(m.cfg.Format.Channels)
	devCfg.SampleRate = uint32(m.cfg.Format.SampleRateHz)
	devCfg.PeriodSizeInMilliseconds = uint32(m.cfg.FrameDuration / time.Millisecond)
	devCfg.Alsa.NoMMap = 1

	if m.cfg.Device != "" {
		id, err := findDevice(mctx, m.cfg.Device)
		if err != nil {
			_ = mctx.Uninit()
			mctx.Free()
			return err
		}
		devCfg.Capture.DeviceID = id.Pointer()
	}

	dispatcher := NewDispatcher(m.cfg.Format, m.cfg.Buffer, time.Now(), handler)
	device, err := malgo.InitDevice(mctx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			dispatcher.Push(input)
		},
	})
	if err != nil {
		dispatcher.Close()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		dispatcher.Close()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("start capture device: %w", err)
	}

	m.mctx, m.device, m.dispatcher = mctx, device, dispatcher
	m.capturing.Store(true)

	watchCtx, cancel := context.WithCancel(ctx)
	m.stopWatch = cancel
	go func() {
		<-watchCtx.Done()
		if ctx.Err() != nil {
			_ = m.Stop()
		}
	}()

	logger := logging.WithComponent("capture")
	logger.Info().
		Str("backend", "malgo").
		Str("device", m.cfg.Device).
		Stringer("format", m.cfg.Format).
		Msg("Capture started")
	return nil
}

// Stop uninitializes the device and waits for buffered frames to be delivered.
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.capturing.Load() {
		return nil
	}
	m.capturing.Store(false)
	m.stopWatch()

	m.device.Uninit()
	m.dispatcher.Close()
	err := m.mctx.Uninit()
	m.mctx.Free()

	logger := logging.WithComponent("capture")
	logger.Info().
		Int64("dropped", m.dispatcher.Dropped()).
		Msg("Capture stopped")
	m.device, m.mctx = nil, nil
	if err != nil {
		return fmt.Errorf("uninit audio context: %w", err)
	}
	return nil
}

func findDevice(mctx *malgo.AllocatedContext, name string) (*malgo.DeviceID, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	want := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), want) {
			id := info.ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}
