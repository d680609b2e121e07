package pcm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/erikprat61/supreme-memory/internal/models"
)

// ErrUnsupportedContainer is returned for files that are neither WAV nor MP3.
var ErrUnsupportedContainer = errors.New("unsupported audio container")

// IntBuffer wraps 16-bit PCM as a go-audio buffer.
func IntBuffer(data []byte, format models.AudioFormat) *audio.IntBuffer {
	samples := ToInt16(data)
	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s)
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRateHz},
		Data:           ints,
		SourceBitDepth: format.BitsPerSample,
	}
}

// EncodeWAV wraps 16-bit PCM in a WAV container.
func EncodeWAV(data []byte, format models.AudioFormat) ([]byte, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, format.SampleRateHz, format.BitsPerSample, format.Channels, 1)
	if err := enc.Write(IntBuffer(data, format)); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return ws.buf, nil
}

// DecodeWAV extracts 16-bit PCM and its format from a WAV container.
func DecodeWAV(r io.ReadSeeker) ([]byte, models.AudioFormat, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, models.AudioFormat{}, fmt.Errorf("decode wav: %w", ErrUnsupportedContainer)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, models.AudioFormat{}, fmt.Errorf("decode wav: %w", err)
	}
	format := models.AudioFormat{
		SampleRateHz:  int(dec.SampleRate),
		BitsPerSample: int(dec.BitDepth),
		Channels:      int(dec.NumChans),
	}
	if format.BitsPerSample != 16 {
		return nil, format, fmt.Errorf("decode wav: %d-bit samples not supported", format.BitsPerSample)
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return FromInt16(samples), format, nil
}

// DecodeMP3 decodes an MP3 stream; go-mp3 always yields 16-bit stereo.
func DecodeMP3(r io.Reader) ([]byte, models.AudioFormat, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, models.AudioFormat{}, fmt.Errorf("decode mp3: %w", err)
	}
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, models.AudioFormat{}, fmt.Errorf("decode mp3: %w", err)
	}
	format := models.AudioFormat{SampleRateHz: dec.SampleRate(), BitsPerSample: 16, Channels: 2}
	return data, format, nil
}

// DecodeFile picks the decoder from the file extension of name.
func DecodeFile(name string, content []byte) ([]byte, models.AudioFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return DecodeWAV(bytes.NewReader(content))
	case ".mp3":
		return DecodeMP3(bytes.NewReader(content))
	default:
		return nil, models.AudioFormat{}, fmt.Errorf("%s: %w", name, ErrUnsupportedContainer)
	}
}

// memWriteSeeker is an in-memory io.WriteSeeker for the WAV encoder.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
