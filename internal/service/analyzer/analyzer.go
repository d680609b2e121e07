// Package analyzer turns 16-bit signed little-endian PCM buffers into sound/silence
// verdicts and amplitude statistics. Every function is pure.
package analyzer

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MaxSampledPoints bounds the number of samples examined by Sample.
const MaxSampledPoints = 200

const fullScale = 32768.0

// Stats is the result of a sampled scan.
type Stats struct {
	HitRatio float64 // fraction of examined samples above the threshold
	Peak     float64 // highest normalized amplitude among examined samples
	Examined int
}

// HasSoundAbove scans the first n bytes of buf and stops at the first sample whose
// normalized amplitude exceeds threshold. A trailing unpaired byte is ignored.
func HasSoundAbove(buf []byte, n int, threshold float64) bool {
	n = clampLen(buf, n)
	for i := 0; i+1 < n; i += 2 {
		if amplitude(buf[i], buf[i+1]) > threshold {
			return true
		}
	}
	return false
}

// Sample examines at most MaxSampledPoints samples of the first n bytes at a fixed
// stride and reports the hit ratio against threshold and the peak amplitude.
func Sample(buf []byte, n int, threshold float64) Stats {
	n = clampLen(buf, n)
	total := n / 2
	if total == 0 {
		return Stats{}
	}

	stride := (total + MaxSampledPoints - 1) / MaxSampledPoints
	if stride < 1 {
		stride = 1
	}

	var st Stats
	hits := 0
	for s := 0; s < total; s += stride {
		a := amplitude(buf[2*s], buf[2*s+1])
		if a > threshold {
			hits++
		}
		if a > st.Peak {
			st.Peak = a
		}
		st.Examined++
	}
	st.HitRatio = float64(hits) / float64(st.Examined)
	return st
}

// SilenceRatio returns the fraction of samples whose normalized amplitude is at or
// below threshold. An empty buffer has a ratio of zero.
func SilenceRatio(buf []byte, threshold float64) float64 {
	total := len(buf) / 2
	if total == 0 {
		return 0
	}
	silent := 0
	for s := 0; s < total; s++ {
		if amplitude(buf[2*s], buf[2*s+1]) <= threshold {
			silent++
		}
	}
	return float64(silent) / float64(total)
}

// Level returns the RMS level of buf normalized to [0, 1].
func Level(buf []byte) float64 {
	total := len(buf) / 2
	if total == 0 {
		return 0
	}
	samples := make([]float64, total)
	for s := 0; s < total; s++ {
		samples[s] = float64(int16(uint16(buf[2*s])|uint16(buf[2*s+1])<<8)) / fullScale
	}
	return floats.Norm(samples, 2) / math.Sqrt(float64(total))
}

func amplitude(lo, hi byte) float64 {
	v := float64(int16(uint16(lo) | uint16(hi)<<8))
	return math.Abs(v) / fullScale
}

func clampLen(buf []byte, n int) int {
	if n > len(buf) {
		return len(buf)
	}
	if n < 0 {
		return 0
	}
	return n
}
