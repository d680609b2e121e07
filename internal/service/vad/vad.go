// Package vad implements a hysteresis and debounce voice activity detector over
// FrameAnalyzer verdicts.
package vad

import (
	"errors"
	"fmt"
	"time"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/service/analyzer"
)

// Edge is the result of processing one frame.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeSoundStart
	EdgeSoundEnd
)

func (e Edge) String() string {
	switch e {
	case EdgeNone:
		return "none"
	case EdgeSoundStart:
		return "sound_start"
	case EdgeSoundEnd:
		return "sound_end"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// Config holds the detector thresholds.
type Config struct {
	// EnterThreshold is the per-sample amplitude a frame must exceed while Silent.
	EnterThreshold float64
	// ExitThreshold is the per-sample amplitude a frame must exceed to keep Active.
	ExitThreshold float64
	// WindowSize is the capacity of the sliding verdict history.
	WindowSize int

	MinSoundFrames  int
	MinSilentFrames int
	EntryRatio      float64
	ExitRatio       float64

	// StopAfter is the silence duration required to leave Active.
	StopAfter time.Duration
	// Debounce is the minimum time between two transitions.
	Debounce time.Duration
}

// DefaultConfig returns thresholds tuned for a close-talking microphone.
func DefaultConfig() Config {
	return Config{
		EnterThreshold:  0.02,
		ExitThreshold:   0.01,
		WindowSize:      20,
		MinSoundFrames:  3,
		MinSilentFrames: 5,
		EntryRatio:      0.3,
		ExitRatio:       0.2,
		StopAfter:       1500 * time.Millisecond,
		Debounce:        300 * time.Millisecond,
	}
}

// Validate rejects configurations that would silently change segmentation.
func (c Config) Validate() error {
	var errs []error
	if c.EnterThreshold <= 0 || c.EnterThreshold > 1 {
		errs = append(errs, fmt.Errorf("enter threshold must be in (0, 1], got %v", c.EnterThreshold))
	}
	if c.ExitThreshold <= 0 || c.ExitThreshold > 1 {
		errs = append(errs, fmt.Errorf("exit threshold must be in (0, 1], got %v", c.ExitThreshold))
	}
	if c.EnterThreshold <= c.ExitThreshold {
		errs = append(errs, fmt.Errorf("enter threshold (%v) must be greater than exit threshold (%v)", c.EnterThreshold, c.ExitThreshold))
	}
	if c.WindowSize <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %d", c.WindowSize))
	}
	if c.MinSoundFrames <= 0 {
		errs = append(errs, fmt.Errorf("min sound frames must be positive, got %d", c.MinSoundFrames))
	}
	if c.MinSilentFrames < 0 {
		errs = append(errs, fmt.Errorf("min silent frames must not be negative, got %d", c.MinSilentFrames))
	}
	if c.EntryRatio < 0 || c.EntryRatio >= 1 {
		errs = append(errs, fmt.Errorf("entry ratio must be in [0, 1), got %v", c.EntryRatio))
	}
	if c.ExitRatio <= 0 || c.ExitRatio > 1 {
		errs = append(errs, fmt.Errorf("exit ratio must be in (0, 1], got %v", c.ExitRatio))
	}
	if c.StopAfter <= 0 {
		errs = append(errs, fmt.Errorf("stop-after duration must be positive, got %v", c.StopAfter))
	}
	if c.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("debounce interval must be positive, got %v", c.Debounce))
	}
	return errors.Join(errs...)
}

// Detector is a two-state (Silent, Active) voice activity detector. Time is taken
// from frame timestamps, so behavior is reproducible for recorded input.
//
// A Detector is owned by the frame delivery goroutine and is not safe for
// concurrent use.
type Detector struct {
	cfg Config

	active            bool
	consecutiveSound  int
	consecutiveSilent int
	lastTransition    time.Time
	history           ring
}

// New creates a detector in the Silent state.
func New(cfg Config) *Detector {
	return &Detector{
		cfg:     cfg,
		history: newRing(cfg.WindowSize),
	}
}

// Active reports whether the detector is in the Active state.
func (d *Detector) Active() bool {
	return d.active
}

// SoundRatio returns the fraction of sound verdicts in the sliding history.
func (d *Detector) SoundRatio() float64 {
	return d.history.ratio()
}

// Process feeds one frame and returns the edge it caused, if any.
func (d *Detector) Process(frame models.Frame) Edge {
	threshold := d.cfg.EnterThreshold
	if d.active {
		threshold = d.cfg.ExitThreshold
	}
	hasSound := analyzer.HasSoundAbove(frame.Data, len(frame.Data), threshold)

	d.history.push(hasSound)
	if hasSound {
		d.consecutiveSound++
		d.consecutiveSilent = 0
	} else {
		d.consecutiveSilent++
		d.consecutiveSound = 0
	}

	ratio := d.history.ratio()
	debounced := d.lastTransition.IsZero() || frame.Timestamp.Sub(d.lastTransition) >= d.cfg.Debounce

	if !d.active {
		if d.consecutiveSound >= d.cfg.MinSoundFrames && ratio > d.cfg.EntryRatio && debounced {
			d.active = true
			d.consecutiveSilent = 0
			d.lastTransition = frame.Timestamp
			return EdgeSoundStart
		}
		return EdgeNone
	}

	silence := time.Duration(d.consecutiveSilent) * frame.Duration()
	if silence >= d.cfg.StopAfter && ratio < d.cfg.ExitRatio && d.consecutiveSilent > d.cfg.MinSilentFrames && debounced {
		d.active = false
		d.consecutiveSound = 0
		d.lastTransition = frame.Timestamp
		return EdgeSoundEnd
	}
	return EdgeNone
}

// ring is a fixed-capacity history of verdicts with a running count of true values.
type ring struct {
	buf   []bool
	next  int
	count int
	trues int
}

func newRing(capacity int) ring {
	if capacity < 1 {
		capacity = 1
	}
	return ring{buf: make([]bool, capacity)}
}

func (r *ring) push(v bool) {
	if r.count == len(r.buf) {
		if r.buf[r.next] {
			r.trues--
		}
	} else {
		r.count++
	}
	r.buf[r.next] = v
	if v {
		r.trues++
	}
	r.next = (r.next + 1) % len(r.buf)
}

func (r *ring) ratio() float64 {
	if r.count == 0 {
		return 0
	}
	return float64(r.trues) / float64(r.count)
}
