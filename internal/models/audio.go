// Package models defines the audio and transcript data structures shared by the monitor.
package models

import (
	"fmt"
	"time"
)

// AudioFormat describes interleaved little-endian PCM.
type AudioFormat struct {
	SampleRateHz  int `json:"sampleRateHz"`
	BitsPerSample int `json:"bitsPerSample"`
	Channels      int `json:"channels"`
}

// CanonicalFormat is the format used past format conversion and required by transcribers.
var CanonicalFormat = AudioFormat{SampleRateHz: 16000, BitsPerSample: 16, Channels: 1}

// Canonical returns the canonical mono 16-bit format at the given sample rate.
func Canonical(sampleRateHz int) AudioFormat {
	return AudioFormat{SampleRateHz: sampleRateHz, BitsPerSample: 16, Channels: 1}
}

// Validate reports whether the format can be processed.
func (f AudioFormat) Validate() error {
	if f.SampleRateHz <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRateHz)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bits per sample: %d (only 16-bit PCM)", f.BitsPerSample)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	return nil
}

// BytesPerSample returns the size of one sample of one channel.
func (f AudioFormat) BytesPerSample() int {
	return f.BitsPerSample / 8
}

// BytesPerSecond returns the byte rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRateHz * f.Channels * f.BytesPerSample()
}

// SamplesPerMillisecond returns sampleRate × channels / 1000.
func (f AudioFormat) SamplesPerMillisecond() float64 {
	return float64(f.SampleRateHz*f.Channels) / 1000
}

// Duration returns the playback duration of n bytes.
func (f AudioFormat) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// BytesFor returns the number of bytes covering d, aligned to whole sample frames.
func (f AudioFormat) BytesFor(d time.Duration) int {
	n := int(int64(f.BytesPerSecond()) * int64(d) / int64(time.Second))
	block := f.Channels * f.BytesPerSample()
	if block > 0 {
		n -= n % block
	}
	return n
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%dHz/%dbit/%dch", f.SampleRateHz, f.BitsPerSample, f.Channels)
}

// Frame is one buffer delivered by the capture callback.
type Frame struct {
	Data      []byte
	Format    AudioFormat
	Timestamp time.Time
}

// Duration returns the playback duration of the frame computed from its format.
func (f Frame) Duration() time.Duration {
	bps := f.Format.BytesPerSample()
	perMs := f.Format.SamplesPerMillisecond()
	if bps <= 0 || perMs <= 0 {
		return 0
	}
	samples := float64(len(f.Data) / bps)
	return time.Duration(samples / perMs * float64(time.Millisecond))
}
