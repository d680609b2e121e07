package capture

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type frameLog struct {
	mu     sync.Mutex
	frames []models.Frame
}

func (l *frameLog) handle(f models.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, f)
}

func (l *frameLog) snapshot() []models.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Frame(nil), l.frames...)
}

func TestDispatcher_DeliversCopiesInOrder(t *testing.T) {
	log := &frameLog{}
	d := NewDispatcher(models.CanonicalFormat, 8, epoch, log.handle)

	buf := make([]byte, 640) // 20ms
	for i := 0; i < 3; i++ {
		buf[0] = byte(i)
		if !d.Push(buf) {
			t.Fatalf("push %d dropped", i)
		}
	}
	buf[0] = 0xff
	d.Close()

	frames := log.snapshot()
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Data[0] != byte(i) {
			t.Errorf("frame %d: expected a private copy of the callback buffer", i)
		}
		want := epoch.Add(time.Duration(i*20) * time.Millisecond)
		if !f.Timestamp.Equal(want) {
			t.Errorf("frame %d: expected timestamp %v, got %v", i, want, f.Timestamp)
		}
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	d := NewDispatcher(models.CanonicalFormat, 2, epoch, func(models.Frame) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	})

	d.Push(make([]byte, 320))
	<-entered // delivery goroutine is busy with frame 1

	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Push(make([]byte, 320)) {
			accepted++
		}
	}
	if accepted != 2 || d.Dropped() != 3 {
		t.Errorf("expected 2 buffered and 3 dropped, got %d and %d", accepted, d.Dropped())
	}

	close(release)
	d.Close()
	if d.Push(make([]byte, 320)) {
		t.Error("expected Push after Close to be rejected")
	}
	d.Close()
}

func TestDispatcher_DroppedFramesAdvanceTimestamps(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	log := &frameLog{}
	d := NewDispatcher(models.CanonicalFormat, 1, epoch, func(f models.Frame) {
		select {
		case entered <- struct{}{}:
			<-release
		default:
		}
		log.handle(f)
	})

	d.Push(make([]byte, 320)) // 0ms, delivered
	<-entered
	d.Push(make([]byte, 320)) // 10ms, buffered
	if d.Push(make([]byte, 320)) {
		t.Fatal("expected the 20ms frame to be dropped")
	}
	close(release)
	for len(log.snapshot()) < 2 {
		time.Sleep(time.Millisecond)
	}
	d.Push(make([]byte, 320))
	d.Close()

	frames := log.snapshot()
	if len(frames) != 3 {
		t.Fatalf("expected 3 delivered frames, got %d", len(frames))
	}
	if want := epoch.Add(30 * time.Millisecond); !frames[2].Timestamp.Equal(want) {
		t.Errorf("expected the frame after a drop at %v, got %v", want, frames[2].Timestamp)
	}
}

func wavBytes(t *testing.T, samples int, format models.AudioFormat) []byte {
	t.Helper()
	data := make([]int16, samples*format.Channels)
	for i := range data {
		data[i] = int16(i % 1000)
	}
	out, err := pcm.EncodeWAV(pcm.FromInt16(data), format)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return out
}

func TestFile_ReplaysWholeFile(t *testing.T) {
	content := wavBytes(t, 16000, models.CanonicalFormat) // 1s
	src, err := NewFileFromBytes("clip.wav", content, 20*time.Millisecond, false)
	if err != nil {
		t.Fatalf("NewFileFromBytes: %v", err)
	}
	src.Epoch = epoch
	if src.Format() != models.CanonicalFormat {
		t.Errorf("expected canonical format, got %v", src.Format())
	}

	log := &frameLog{}
	if err := src.Start(context.Background(), log.handle); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}

	frames := log.snapshot()
	if len(frames) != 50 {
		t.Fatalf("expected 50 frames of 20ms, got %d", len(frames))
	}
	var total bytes.Buffer
	for _, f := range frames {
		total.Write(f.Data)
	}
	if total.Len() != 32000 {
		t.Errorf("expected 32000 bytes replayed, got %d", total.Len())
	}
	if want := epoch.Add(980 * time.Millisecond); !frames[49].Timestamp.Equal(want) {
		t.Errorf("expected last frame at %v, got %v", want, frames[49].Timestamp)
	}
	if src.Capturing() {
		t.Error("expected capture to end at end of file")
	}
	if err := src.Start(context.Background(), log.handle); err != ErrAlreadyCapturing {
		t.Errorf("expected ErrAlreadyCapturing on restart, got %v", err)
	}
}

func TestFile_StopEndsRealtimeReplay(t *testing.T) {
	content := wavBytes(t, 16000*10, models.CanonicalFormat)
	src, err := NewFileFromBytes("long.wav", content, 20*time.Millisecond, true)
	if err != nil {
		t.Fatalf("NewFileFromBytes: %v", err)
	}

	log := &frameLog{}
	src.Start(context.Background(), log.handle)
	time.Sleep(70 * time.Millisecond)
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	n := len(log.snapshot())
	if n == 0 || n >= 500 {
		t.Errorf("expected a partial realtime replay, got %d frames", n)
	}
	time.Sleep(50 * time.Millisecond)
	if len(log.snapshot()) != n {
		t.Error("expected no frames after Stop returned")
	}
}

func TestFile_ContextCancelStopsReplay(t *testing.T) {
	content := wavBytes(t, 16000*10, models.CanonicalFormat)
	src, _ := NewFileFromBytes("long.wav", content, 20*time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	src.Start(ctx, func(models.Frame) {})
	cancel()

	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected replay to end when the context is cancelled")
	}
}

func TestNewFileFromBytes_Unsupported(t *testing.T) {
	if _, err := NewFileFromBytes("notes.ogg", []byte("OggS"), 0, false); err == nil {
		t.Error("expected error for unsupported container")
	}
}
