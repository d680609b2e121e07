package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
)

// Local is a FileStore on the local filesystem. Parts are written as WAV files.
type Local struct {
	textMu sync.Mutex
}

// NewLocal creates a local filesystem store.
func NewLocal() *Local {
	return &Local{}
}

// CreateWriter creates path (and its parent directories) and writes the WAV header.
func (l *Local) CreateWriter(path string, format models.AudioFormat) (Writer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, format.SampleRateHz, format.BitsPerSample, format.Channels, 1)
	// An empty write emits the RIFF and data chunk headers so Close can patch sizes
	// even when nothing else is appended.
	empty := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRateHz},
		Data:           []int{},
		SourceBitDepth: format.BitsPerSample,
	}
	if err := enc.Write(empty); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write wav header %s: %w", path, err)
	}

	return &localWriter{file: f, enc: enc, path: path, format: format}, nil
}

// Rename moves oldPath to newPath.
func (l *Local) Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	return nil
}

// WriteText writes text to path, creating parent directories.
func (l *Local) WriteText(path, text string) error {
	l.textMu.Lock()
	defer l.textMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadText reads a UTF-8 text file.
func (l *Local) ReadText(path string) (string, error) {
	b, err := l.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadFile reads the raw contents of path.
func (l *Local) ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

// Delete removes path.
func (l *Local) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// ListMatching globs dir for pattern.
func (l *Local) ListMatching(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", dir, pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

type localWriter struct {
	file    *os.File
	enc     *wav.Encoder
	path    string
	format  models.AudioFormat
	written int64
	closed  bool
}

func (w *localWriter) Append(data []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("append %s: %w", w.path, os.ErrClosed)
	}
	n := len(data) - len(data)%2
	if n == 0 {
		return 0, nil
	}
	if err := w.enc.Write(pcm.IntBuffer(data[:n], w.format)); err != nil {
		return 0, fmt.Errorf("append %s: %w", w.path, err)
	}
	w.written += int64(n)
	return n, nil
}

func (w *localWriter) BytesWritten() int64 {
	return w.written
}

func (w *localWriter) Path() string {
	return w.path
}

func (w *localWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("finalize %s: %w", w.path, encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("close %s: %w", w.path, fileErr)
	}
	return nil
}
