package combiner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erikprat61/supreme-memory/internal/service/segment"
	"github.com/erikprat61/supreme-memory/internal/storage"
)

var (
	start = time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	end   = time.Date(2024, 3, 1, 9, 21, 30, 0, time.UTC)
)

const dir = "/rec/2024-03-01"

func partPaths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = filepath.Join(dir, segment.PartName(start, end, i+1))
	}
	return out
}

func seedParts(t *testing.T, st *storage.Memory, paths []string) {
	t.Helper()
	for _, p := range paths {
		if err := st.WriteText(p, "RIFF-audio"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCombine_PreservesInputOrderRegardlessOfCompletion(t *testing.T) {
	st := storage.NewMemory()
	paths := partPaths(3)
	seedParts(t, st, paths)

	// Transcripts complete in reverse order.
	texts := []string{"A", "B", "C"}
	delays := []time.Duration{30 * time.Millisecond, 15 * time.Millisecond, 0}
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(delays[i])
			if err := st.WriteText(segment.TranscriptPath(p), texts[i]); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := New(st).Combine(context.Background(), dir, paths, start, end)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}

	a := strings.Index(got.Text, "\nA\n")
	b := strings.Index(got.Text, "\nB\n")
	c := strings.Index(got.Text, "\nC\n")
	if a < 0 || b < 0 || c < 0 || !(a < b && b < c) {
		t.Fatalf("expected sections in order A, B, C; got:\n%s", got.Text)
	}
	if !strings.HasPrefix(got.Text, "Combined transcript of 3 part(s), 2024-03-01 09:15:00 to 09:21:30\n") {
		t.Errorf("unexpected summary line: %q", strings.SplitN(got.Text, "\n", 2)[0])
	}
	if !strings.Contains(got.Text, "=== Part 2: 09-15-00_to_09-21-30_part2.wav ===") {
		t.Errorf("expected part header with index and filename, got:\n%s", got.Text)
	}

	wantPath := filepath.Join(dir, "09-15-00_to_09-21-30_combined.txt")
	if got.Path != wantPath {
		t.Errorf("expected combined path %s, got %s", wantPath, got.Path)
	}
	stored, err := st.ReadText(wantPath)
	if err != nil || stored != got.Text {
		t.Errorf("expected combined document stored at %s", wantPath)
	}
}

func TestCombine_MissingTranscriptMarked(t *testing.T) {
	st := storage.NewMemory()
	paths := partPaths(2)
	seedParts(t, st, paths)
	st.WriteText(segment.TranscriptPath(paths[0]), "first")

	got, err := New(st).Combine(context.Background(), dir, paths, start, end)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if !strings.Contains(got.Text, "first") {
		t.Error("expected available transcript to be included")
	}
	if strings.Count(got.Text, NotAvailable) != 1 {
		t.Errorf("expected exactly one not-available marker, got:\n%s", got.Text)
	}
}

func TestCombine_CleansUpOnlyThisSession(t *testing.T) {
	st := storage.NewMemory()
	paths := partPaths(2)
	seedParts(t, st, paths)
	for _, p := range paths {
		st.WriteText(segment.TranscriptPath(p), "x")
	}

	otherEnd := end.Add(time.Minute)
	other := filepath.Join(dir, segment.PartName(start, otherEnd, 1))
	st.WriteText(other, "other session")
	inProgress := filepath.Join(dir, "recording_09-30-00_7-1.wav")
	st.WriteText(inProgress, "open part")

	got, err := New(st).Combine(context.Background(), dir, paths, start, end)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}

	remaining := st.Paths()
	want := map[string]bool{got.Path: true, other: true, inProgress: true}
	if len(remaining) != len(want) {
		t.Fatalf("expected %d remaining files, got %v", len(want), remaining)
	}
	for _, p := range remaining {
		if !want[p] {
			t.Errorf("unexpected remaining file %s", p)
		}
	}
}

func TestCombine_CleanupFailureIsNotFatal(t *testing.T) {
	st := storage.NewMemory()
	paths := partPaths(1)
	seedParts(t, st, paths)
	st.WriteText(segment.TranscriptPath(paths[0]), "only")
	st.FailDelete(paths[0], errors.New("permission denied"))

	got, err := New(st).Combine(context.Background(), dir, paths, start, end)
	if err != nil {
		t.Fatalf("expected cleanup failure to be logged only, got %v", err)
	}
	if !st.Exists(paths[0]) {
		t.Error("expected undeletable part to remain")
	}
	if st.Exists(segment.TranscriptPath(paths[0])) {
		t.Error("expected part transcript to be deleted")
	}
	if !st.Exists(got.Path) {
		t.Error("expected combined document to exist")
	}
}

func TestCombine_NoParts(t *testing.T) {
	if _, err := New(storage.NewMemory()).Combine(context.Background(), dir, nil, start, end); err == nil {
		t.Error("expected error for empty part list")
	}
}
