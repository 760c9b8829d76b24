package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/talkdigest/talkdigest/internal/asr"
	"github.com/talkdigest/talkdigest/internal/ocr"
	"github.com/talkdigest/talkdigest/internal/talk"
)

var _ asr.Transcriber = (*fakeTranscriber)(nil)

type fakeDownloader struct {
	audioErr   error
	audioFails int // fail this many attempts before succeeding
	videoErr   error
	audioCalls int
}

func (d *fakeDownloader) DownloadAudio(_ context.Context, _, dir, talkID string) (string, error) {
	d.audioCalls++
	if d.audioErr != nil {
		return "", d.audioErr
	}
	if d.audioCalls <= d.audioFails {
		return "", errors.New("network reset")
	}
	p := filepath.Join(dir, talkID+".wav")
	if err := os.WriteFile(p, []byte("RIFF"), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func (d *fakeDownloader) DownloadVideo(_ context.Context, _, dir, talkID string) (string, error) {
	if d.videoErr != nil {
		return "", d.videoErr
	}
	p := filepath.Join(dir, talkID+"_video.mp4")
	if err := os.WriteFile(p, []byte("mp4"), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

type fakeFrameCutter struct {
	count int
	err   error
}

func (f *fakeFrameCutter) ExtractFrames(_ context.Context, _, dir, talkID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var paths []string
	for i := 0; i < f.count; i++ {
		p := filepath.Join(dir, fmt.Sprintf("%s_frame_%04d.png", talkID, i+1))
		if err := writeTestPNG(p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

type fakeTranscriber struct {
	err error
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (talk.Transcript, error) {
	if f.err != nil {
		return talk.Transcript{}, f.err
	}
	return talk.Transcript{
		Language: "en",
		Text:     "welcome to the talk",
		Segments: []talk.Segment{
			{Start: 0, End: 2.5, Text: "welcome"},
			{Start: 2.5, End: 5, Text: "to the talk"},
		},
	}, nil
}

type fakeEngine struct {
	mu    sync.Mutex
	calls int
}

// Slides with no words in common, so near-duplicate dropping never kicks in.
var slideTexts = []string{
	"AGENDA concurrency patterns scheduler internals",
	"benchmark latency percentiles histogram results",
	"closing remarks questions contact details",
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	f.mu.Lock()
	text := slideTexts[f.calls%len(slideTexts)]
	f.calls++
	f.mu.Unlock()
	return ocr.Result{InputID: in.ID, Text: text, Confidence: 90}, nil
}

type fakeSink struct {
	mu   sync.Mutex
	recs []talk.Record
	err  error
}

func (s *fakeSink) Append(rec talk.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func writeTestPNG(path string) error {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		if i%2 == 0 {
			img.Pix[i] = 255
		}
	}
	img.SetGray(0, 0, color.Gray{Y: 10})
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func testWorker(t *testing.T, d *fakeDownloader, fc *fakeFrameCutter, tr *fakeTranscriber, sink *fakeSink) *Worker {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(d, fc, tr, &fakeEngine{}, sink, nil, t.TempDir(), "eng", log)
	w.backoff = func(int) time.Duration { return time.Millisecond }
	return w
}

func TestWorker_ProcessSuccess(t *testing.T) {
	sink := &fakeSink{}
	w := testWorker(t, &fakeDownloader{}, &fakeFrameCutter{count: 2}, &fakeTranscriber{}, sink)

	job := NewJob("talk_01", "https://example.com/watch?v=abc")
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors: %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Segments != 2 {
		t.Errorf("expected 2 segments, got %d", snap.Progress.Segments)
	}
	if snap.Progress.OCRExtractions != 2 {
		t.Errorf("expected 2 extractions, got %d", snap.Progress.OCRExtractions)
	}

	if len(sink.recs) != 1 {
		t.Fatalf("expected 1 record appended, got %d", len(sink.recs))
	}
	rec := sink.recs[0]
	if rec.TalkID != "talk_01" {
		t.Errorf("expected talk ID %q, got %q", "talk_01", rec.TalkID)
	}
	if rec.Transcript.Text != "welcome to the talk" {
		t.Errorf("unexpected transcript text %q", rec.Transcript.Text)
	}
	if len(rec.OCRExtractions) != 2 {
		t.Errorf("expected 2 extractions in record, got %d", len(rec.OCRExtractions))
	}
}

func TestWorker_ProcessAudioFailure(t *testing.T) {
	sink := &fakeSink{}
	d := &fakeDownloader{audioErr: errors.New("video unavailable")}
	w := testWorker(t, d, &fakeFrameCutter{count: 1}, &fakeTranscriber{}, sink)

	job := NewJob("talk_02", "https://example.com/watch?v=gone")
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if d.audioCalls != MaxRetries {
		t.Errorf("expected %d download attempts, got %d", MaxRetries, d.audioCalls)
	}
	if len(sink.recs) != 0 {
		t.Errorf("expected no records for failed job, got %d", len(sink.recs))
	}
}

func TestWorker_ProcessAudioRetrySucceeds(t *testing.T) {
	sink := &fakeSink{}
	d := &fakeDownloader{audioFails: 1}
	w := testWorker(t, d, &fakeFrameCutter{count: 1}, &fakeTranscriber{}, sink)

	job := NewJob("talk_03", "https://example.com/watch?v=flaky")
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors: %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if d.audioCalls != 2 {
		t.Errorf("expected 2 download attempts, got %d", d.audioCalls)
	}
}

func TestWorker_ProcessVideoFailureIsPartial(t *testing.T) {
	sink := &fakeSink{}
	d := &fakeDownloader{videoErr: errors.New("format not available")}
	w := testWorker(t, d, &fakeFrameCutter{count: 2}, &fakeTranscriber{}, sink)

	job := NewJob("talk_04", "https://example.com/watch?v=audio-only")
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected status %q, got %q", StatusPartial, snap.Status)
	}
	// The transcript still lands even without frames.
	if len(sink.recs) != 1 {
		t.Fatalf("expected 1 record appended, got %d", len(sink.recs))
	}
	if len(sink.recs[0].OCRExtractions) != 0 {
		t.Errorf("expected no extractions, got %d", len(sink.recs[0].OCRExtractions))
	}
}

func TestWorker_ProcessTranscribeFailure(t *testing.T) {
	sink := &fakeSink{}
	w := testWorker(t, &fakeDownloader{}, &fakeFrameCutter{count: 1}, &fakeTranscriber{err: errors.New("model not found")}, sink)

	job := NewJob("talk_05", "https://example.com/watch?v=abc")
	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, got)
	}
}

func TestWorker_ProcessSinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	w := testWorker(t, &fakeDownloader{}, &fakeFrameCutter{count: 1}, &fakeTranscriber{}, sink)

	job := NewJob("talk_06", "https://example.com/watch?v=abc")
	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, got)
	}
}

func TestOrchestrator_SubmitAndDrain(t *testing.T) {
	sink := &fakeSink{}
	w := testWorker(t, &fakeDownloader{}, &fakeFrameCutter{count: 1}, &fakeTranscriber{}, sink)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := NewOrchestrator(w, 2, 8, time.Hour, log)

	ctx := context.Background()
	o.Start(ctx)

	var jobs []*Job
	for i := 0; i < 4; i++ {
		job := NewJob(fmt.Sprintf("talk_%02d", i+1), "https://example.com/watch?v=abc")
		if err := o.Submit(job); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		jobs = append(jobs, job)
	}

	o.Drain()

	for _, job := range jobs {
		got := o.GetJob(job.ID)
		if got == nil {
			t.Fatalf("expected job %s in store", job.ID)
		}
		if status := got.Snapshot().Status; status != StatusCompleted {
			t.Errorf("job %s: expected status %q, got %q", job.ID, StatusCompleted, status)
		}
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	sink := &fakeSink{}
	w := testWorker(t, &fakeDownloader{}, &fakeFrameCutter{count: 0}, &fakeTranscriber{}, sink)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	// No workers started, so the queue never drains.
	o := NewOrchestrator(w, 0, 1, time.Hour, log)

	if err := o.Submit(NewJob("talk_01", "https://example.com/a")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	job := NewJob("talk_02", "https://example.com/b")
	if err := o.Submit(job); err == nil {
		t.Fatal("expected queue-full error")
	}
	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, got)
	}
}
