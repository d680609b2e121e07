// Package storage provides the file operations used by the recorder, combiner and backfill.
package storage

import (
	"github.com/erikprat61/supreme-memory/internal/models"
)

// Writer is a streaming audio writer for one part file.
// A Writer is owned by a single goroutine; it is not safe for concurrent use.
type Writer interface {
	// Append writes whole 16-bit samples from data and returns the bytes written.
	// An unpaired trailing byte is not written.
	Append(data []byte) (int, error)
	// BytesWritten returns the number of PCM bytes appended so far.
	BytesWritten() int64
	Path() string
	// Close finalizes the container header. The path may only be renamed or
	// deleted after Close returns.
	Close() error
}

// FileStore is the set of file operations the monitor needs.
//
// Missing paths are reported with errors satisfying errors.Is(err, fs.ErrNotExist).
// Text writes are serialized by a lock owned by the store instance.
type FileStore interface {
	CreateWriter(path string, format models.AudioFormat) (Writer, error)
	Rename(oldPath, newPath string) error
	WriteText(path, text string) error
	ReadText(path string) (string, error)
	ReadFile(path string) ([]byte, error)
	Delete(path string) error
	// ListMatching returns the paths in dir whose base name matches the glob pattern,
	// sorted lexically.
	ListMatching(dir, pattern string) ([]string, error)
}
