package segment

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TimeLayout is the fixed, locale-independent time format used in file names.
const TimeLayout = "15-04-05"

// DateLayout names per-day output directories.
const DateLayout = "2006-01-02"

// SessionStem returns "{start}_to_{end}".
func SessionStem(start, end time.Time) string {
	return start.Format(TimeLayout) + "_to_" + end.Format(TimeLayout)
}

// PartName returns "{start}_to_{end}_part{N}.wav". The suffix is present even for
// single-part sessions.
func PartName(start, end time.Time, part int) string {
	return fmt.Sprintf("%s_part%d.wav", SessionStem(start, end), part)
}

// PartGlob matches every part artifact of one session, audio and transcript.
func PartGlob(start, end time.Time) string {
	return SessionStem(start, end) + "_part*"
}

// CombinedName returns "{start}_to_{end}_combined.txt".
func CombinedName(start, end time.Time) string {
	return SessionStem(start, end) + "_combined.txt"
}

// TranscriptPath returns the .txt sibling of an audio path.
func TranscriptPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".txt"
}

// inProgressName names a part before the session end time is known. It never
// matches PartGlob, so cleanup of a finishing session cannot touch it.
func inProgressName(start time.Time, seq uint64, part int) string {
	return fmt.Sprintf("recording_%s_%d-%d.wav", start.Format(TimeLayout), seq, part)
}
