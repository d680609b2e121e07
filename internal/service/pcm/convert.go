// Package pcm converts 16-bit PCM between formats and wraps it in WAV containers.
package pcm

import (
	"fmt"
	"math"

	"github.com/erikprat61/supreme-memory/internal/models"
)

// Convert returns data re-encoded in the target format. Channels are averaged into
// mono and the sample rate is changed by linear interpolation. When the formats are
// equal the input is copied so the caller owns the result.
func Convert(data []byte, from, to models.AudioFormat) ([]byte, error) {
	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("source format: %w", err)
	}
	if err := to.Validate(); err != nil {
		return nil, fmt.Errorf("target format: %w", err)
	}
	if to.Channels != 1 && to.Channels != from.Channels {
		return nil, fmt.Errorf("unsupported channel conversion %d -> %d", from.Channels, to.Channels)
	}

	if from == to {
		out := make([]byte, len(data)-len(data)%2)
		copy(out, data)
		return out, nil
	}

	samples := ToInt16(data)
	if from.Channels > 1 && to.Channels == 1 {
		samples = downmix(samples, from.Channels)
	}
	if from.SampleRateHz != to.SampleRateHz {
		samples = resample(samples, from.SampleRateHz, to.SampleRateHz)
	}
	return FromInt16(samples), nil
}

// ToInt16 decodes little-endian samples; an odd trailing byte is dropped.
func ToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return out
}

// FromInt16 encodes samples as little-endian bytes.
func FromInt16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

// ToFloat32 decodes 16-bit samples into [-1, 1) floats.
func ToFloat32(data []byte) []float32 {
	samples := ToInt16(data)
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

func downmix(samples []int16, channels int) []int16 {
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

func resample(samples []int16, fromRate, toRate int) []int16 {
	if len(samples) == 0 {
		return nil
	}
	n := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	out := make([]int16, n)
	step := float64(fromRate) / float64(toRate)
	last := len(samples) - 1
	for i := 0; i < n; i++ {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		v := float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac
		out[i] = int16(math.Round(v))
	}
	return out
}
