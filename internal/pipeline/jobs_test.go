package pipeline

import (
	"testing"
	"time"
)

func TestNewID_SortableAndUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	if a == b {
		t.Error("expected distinct IDs")
	}
	if len(a) != 26 || len(b) != 26 {
		t.Errorf("expected 26-char IDs, got %d and %d", len(a), len(b))
	}
	if b < a {
		t.Errorf("expected IDs to sort by creation order, got %q then %q", a, b)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("talk_01", "https://example.com/watch?v=abc")

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusDownloading, "downloading audio"},
		{StatusTranscribing, "transcribing audio"},
		{StatusExtractingFrames, "extracting video frames"},
		{StatusOCR, "recognizing frame text"},
		{StatusWriting, "writing record"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.Snapshot().UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		snap := job.Snapshot()
		if snap.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, snap.Status)
		}
		if snap.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, snap.Phase)
		}
		if !snap.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := NewJob("talk_02", "https://example.com/v")
	job.AddError("frame 3 failed")
	job.AddError("frame 7 failed")

	if !job.HasErrors() {
		t.Error("expected HasErrors after AddError")
	}
	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "frame 3 failed" {
		t.Errorf("expected first error %q, got %q", "frame 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_FrameCounters(t *testing.T) {
	job := NewJob("talk_03", "https://example.com/v")
	job.SetTotalFrames(5)
	job.IncrFramesOCRd()
	job.IncrFramesOCRd()
	job.SetCounts(12, 4)

	snap := job.Snapshot()
	if snap.Progress.TotalFrames != 5 {
		t.Errorf("expected 5 total frames, got %d", snap.Progress.TotalFrames)
	}
	if snap.Progress.FramesOCRd != 2 {
		t.Errorf("expected 2 frames OCR'd, got %d", snap.Progress.FramesOCRd)
	}
	if snap.Progress.Segments != 12 {
		t.Errorf("expected 12 segments, got %d", snap.Progress.Segments)
	}
	if snap.Progress.OCRExtractions != 4 {
		t.Errorf("expected 4 extractions, got %d", snap.Progress.OCRExtractions)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := NewJob("talk_04", "https://example.com/v")
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := NewJob("talk_05", "https://example.com/v")
	store.Put(job)

	got := store.Get(job.ID)
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.TalkID != "talk_05" {
		t.Errorf("expected talk ID %q, got %q", "talk_05", got.TalkID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := NewJob("talk_old", "https://example.com/old")
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := NewJob("talk_new", "https://example.com/new")
	store.Put(fresh)

	store.Cleanup()

	if store.Get(expired.ID) != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get(fresh.ID) == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	prevMax := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		d := Backoff(attempt)
		if d <= 0 {
			t.Fatalf("attempt %d: expected positive backoff, got %v", attempt, d)
		}
		if d > 40*time.Second {
			t.Fatalf("attempt %d: backoff %v exceeds cap", attempt, d)
		}
		if attempt < 4 && d < prevMax/4 {
			t.Errorf("attempt %d: backoff %v collapsed unexpectedly", attempt, d)
		}
		if d > prevMax {
			prevMax = d
		}
	}
}
