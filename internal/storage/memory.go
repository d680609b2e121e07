package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/pcm"
)

// Memory is an in-memory FileStore. Audio parts are stored as WAV containers once
// their writer is closed. It supports injected close, rename and delete failures
// for tests.
type Memory struct {
	mu     sync.Mutex
	textMu sync.Mutex
	files  map[string][]byte
	open   map[string]bool

	closeErr  error
	renameErr error
	deleteErr map[string]error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		files:     make(map[string][]byte),
		open:      make(map[string]bool),
		deleteErr: make(map[string]error),
	}
}

// FailCloses makes every subsequent writer Close return err and leave an empty
// part behind. A nil err clears the failure.
func (m *Memory) FailCloses(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeErr = err
}

// FailRenames makes every subsequent Rename return err. A nil err clears the failure.
func (m *Memory) FailRenames(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renameErr = err
}

// FailDelete makes Delete of path return err.
func (m *Memory) FailDelete(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr[filepath.Clean(path)] = err
}

// Paths returns every stored path, sorted.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Exists reports whether path is stored.
func (m *Memory) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

// CreateWriter creates an empty part at path.
func (m *Memory) CreateWriter(path string, format models.AudioFormat) (Writer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open[path] {
		return nil, fmt.Errorf("create %s: writer already open", path)
	}
	m.open[path] = true
	m.files[path] = nil
	return &memWriter{store: m, path: path, format: format}, nil
}

// Rename moves oldPath to newPath.
func (m *Memory) Rename(oldPath, newPath string) error {
	oldPath, newPath = filepath.Clean(oldPath), filepath.Clean(newPath)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renameErr != nil {
		return fmt.Errorf("rename %s: %w", oldPath, m.renameErr)
	}
	b, ok := m.files[oldPath]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldPath, Err: fs.ErrNotExist}
	}
	delete(m.files, oldPath)
	m.files[newPath] = b
	return nil
}

// WriteText stores text at path.
func (m *Memory) WriteText(path, text string) error {
	m.textMu.Lock()
	defer m.textMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = []byte(text)
	return nil
}

// ReadText returns the text stored at path.
func (m *Memory) ReadText(path string) (string, error) {
	b, err := m.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadFile returns a copy of the bytes stored at path.
func (m *Memory) ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Delete removes path.
func (m *Memory) Delete(path string) error {
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[path]; err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if _, ok := m.files[path]; !ok {
		return &fs.PathError{Op: "delete", Path: path, Err: fs.ErrNotExist}
	}
	delete(m.files, path)
	return nil
}

// ListMatching returns stored paths directly inside dir whose base name matches pattern.
func (m *Memory) ListMatching(dir, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", dir, pattern, err)
	}
	dir = filepath.Clean(dir)

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p := range m.files {
		if filepath.Dir(p) != dir {
			continue
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(p)); ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memWriter struct {
	store   *Memory
	path    string
	format  models.AudioFormat
	pcm     []byte
	written int64
	closed  bool
}

func (w *memWriter) Append(data []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("append %s: %w", w.path, os.ErrClosed)
	}
	n := len(data) - len(data)%2
	w.pcm = append(w.pcm, data[:n]...)
	w.written += int64(n)
	return n, nil
}

func (w *memWriter) BytesWritten() int64 {
	return w.written
}

func (w *memWriter) Path() string {
	return w.path
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.store.mu.Lock()
	closeErr := w.store.closeErr
	if closeErr != nil {
		delete(w.store.open, w.path)
	}
	w.store.mu.Unlock()
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", w.path, closeErr)
	}

	encoded, err := pcm.EncodeWAV(w.pcm, w.format)
	if err != nil {
		return fmt.Errorf("finalize %s: %w", w.path, err)
	}

	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	delete(w.store.open, w.path)
	w.store.files[w.path] = encoded
	return nil
}
