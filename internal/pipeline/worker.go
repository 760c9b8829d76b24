package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/talkdigest/talkdigest/internal/asr"
	"github.com/talkdigest/talkdigest/internal/clean"
	"github.com/talkdigest/talkdigest/internal/media"
	"github.com/talkdigest/talkdigest/internal/ocr"
	"github.com/talkdigest/talkdigest/internal/talk"
)

// Downloader fetches talk media. *media.Downloader satisfies this.
type Downloader interface {
	DownloadAudio(ctx context.Context, url, dir, talkID string) (string, error)
	DownloadVideo(ctx context.Context, url, dir, talkID string) (string, error)
}

// FrameCutter extracts periodic frames. *media.FrameExtractor satisfies this.
type FrameCutter interface {
	ExtractFrames(ctx context.Context, videoPath, dir, talkID string) ([]string, error)
}

// Sink receives finished records. *talk.JSONLWriter satisfies this.
type Sink interface {
	Append(rec talk.Record) error
}

// Archiver optionally mirrors records to a database.
type Archiver interface {
	InsertRecord(ctx context.Context, rec talk.Record) error
}

// Worker runs the full pipeline for one talk: download audio, transcribe,
// cut frames, OCR them, merge, append.
type Worker struct {
	downloader  Downloader
	frames      FrameCutter
	transcriber asr.Transcriber
	engine      ocr.Engine
	sink        Sink
	archive     Archiver // nil when no database is configured
	workDir     string
	ocrLang     string
	log         *slog.Logger
	backoff     func(attempt int) time.Duration

	// Scrub cleans recognized frame text when set.
	Scrub func(string) string
}

func NewWorker(d Downloader, f FrameCutter, t asr.Transcriber, e ocr.Engine, sink Sink, archive Archiver, workDir, ocrLang string, log *slog.Logger) *Worker {
	return &Worker{
		downloader:  d,
		frames:      f,
		transcriber: t,
		engine:      e,
		sink:        sink,
		archive:     archive,
		workDir:     workDir,
		ocrLang:     ocrLang,
		log:         log,
		backoff:     Backoff,
	}
}

// Process runs one job to completion. Audio transcription is mandatory; the
// frame/OCR leg is best-effort and its failure leaves the job partial, not
// failed.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "talk_id", job.TalkID, "url", job.URL)

	dir := filepath.Join(w.workDir, job.TalkID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("create work dir failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "setup")
		return
	}

	// Phase 1: download audio, retrying transient fetch failures.
	job.SetStatus(StatusDownloading, "downloading audio")
	audioPath, err := w.downloadAudioWithRetry(ctx, log, job, dir)
	if err != nil {
		log.Error("audio download failed", "error", err)
		job.AddError(fmt.Sprintf("download: %s", err))
		job.SetStatus(StatusFailed, "downloading")
		return
	}

	// Phase 2: transcribe.
	job.SetStatus(StatusTranscribing, "transcribing audio")
	transcript, err := w.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		log.Error("transcription failed", "error", err)
		job.AddError(fmt.Sprintf("transcribe: %s", err))
		job.SetStatus(StatusFailed, "transcribing")
		return
	}
	log.Info("transcription complete", "language", transcript.Language, "segments", len(transcript.Segments))

	// Phase 3: frames. Failures are recorded but do not stop the talk.
	job.SetStatus(StatusExtractingFrames, "extracting video frames")
	framePaths := w.extractFrames(ctx, log, job, dir)
	job.SetTotalFrames(len(framePaths))

	// Phase 4: OCR each frame; only frames with recognizable text are kept.
	job.SetStatus(StatusOCR, "recognizing frame text")
	extractions := w.ocrFrames(ctx, log, job, framePaths)

	// Phase 5: merge and append.
	job.SetStatus(StatusWriting, "writing record")
	rec := talk.NewRecord(job.TalkID, job.URL, transcript, extractions)
	if err := w.sink.Append(rec); err != nil {
		log.Error("append failed", "error", err)
		job.AddError(fmt.Sprintf("write: %s", err))
		job.SetStatus(StatusFailed, "writing")
		return
	}
	if w.archive != nil {
		if err := w.archive.InsertRecord(ctx, rec); err != nil {
			// The JSONL file is the source of truth; the archive is best-effort.
			log.Warn("archive insert failed", "error", err)
			job.AddError(fmt.Sprintf("archive: %s", err))
		}
	}

	job.SetCounts(len(transcript.Segments), len(extractions))
	if job.HasErrors() {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("talk processed", "segments", len(transcript.Segments), "extractions", len(extractions))
}

func (w *Worker) downloadAudioWithRetry(ctx context.Context, log *slog.Logger, job *Job, dir string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		audioPath, err := w.downloader.DownloadAudio(ctx, job.URL, dir, job.TalkID)
		if err == nil {
			return audioPath, nil
		}
		lastErr = err
		log.Warn("audio download attempt failed", "attempt", attempt, "error", err)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (w *Worker) extractFrames(ctx context.Context, log *slog.Logger, job *Job, dir string) []string {
	videoPath, err := w.downloader.DownloadVideo(ctx, job.URL, dir, job.TalkID)
	if err != nil {
		log.Warn("video download failed, skipping frame OCR", "error", err)
		job.AddError(fmt.Sprintf("video: %s", err))
		return nil
	}
	framePaths, err := w.frames.ExtractFrames(ctx, videoPath, dir, job.TalkID)
	if err != nil {
		log.Warn("frame extraction failed, skipping frame OCR", "error", err)
		job.AddError(fmt.Sprintf("frames: %s", err))
		return nil
	}
	log.Info("frames extracted", "count", len(framePaths))
	return framePaths
}

func (w *Worker) ocrFrames(ctx context.Context, log *slog.Logger, job *Job, framePaths []string) []talk.OCRExtraction {
	// Consecutive frames of the same slide produce near-identical text;
	// keep only the first occurrence.
	dedupe := clean.NewDeduper(clean.DefaultThreshold)

	var extractions []talk.OCRExtraction
	for _, framePath := range framePaths {
		text, err := w.ocrFrame(ctx, framePath)
		job.IncrFramesOCRd()
		if err != nil {
			log.Warn("frame ocr failed", "frame", filepath.Base(framePath), "error", err)
			job.AddError(fmt.Sprintf("ocr %s: %s", filepath.Base(framePath), err))
			continue
		}
		if w.Scrub != nil {
			text = w.Scrub(text)
		}
		if text == "" {
			continue
		}
		if dedupe.Seen(text) {
			continue
		}
		extractions = append(extractions, talk.OCRExtraction{
			ImagePath:  framePath,
			Text:       text,
			FrameLabel: media.FrameLabel(framePath),
		})
	}
	return extractions
}

func (w *Worker) ocrFrame(ctx context.Context, framePath string) (string, error) {
	data, err := os.ReadFile(framePath)
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}
	processed, err := ocr.Preprocess(data)
	if err != nil {
		return "", fmt.Errorf("preprocess frame: %w", err)
	}
	res, err := w.engine.Recognize(ctx, ocr.Input{
		ID:        filepath.Base(framePath),
		Image:     processed,
		Languages: []string{w.ocrLang},
		PSM:       6,
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
