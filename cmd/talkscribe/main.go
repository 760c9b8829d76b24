package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abiiranathan/goflag"

	"github.com/talkdigest/talkdigest/internal/asr"
	"github.com/talkdigest/talkdigest/internal/clean"
	"github.com/talkdigest/talkdigest/internal/config"
	"github.com/talkdigest/talkdigest/internal/media"
	"github.com/talkdigest/talkdigest/internal/ocr"
	"github.com/talkdigest/talkdigest/internal/pipeline"
	"github.com/talkdigest/talkdigest/internal/store"
	"github.com/talkdigest/talkdigest/internal/talk"
)

type options struct {
	URLs          string
	URLsFile      string
	OutputDir     string
	OutputFile    string
	Model         string
	FrameInterval int
	Workers       int
	KeepTemp      bool
	Scrub         bool
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	opts := options{
		OutputDir:     "talks",
		OutputFile:    "talks_transcripts.jsonl",
		Model:         cfg.WhisperModel,
		FrameInterval: int(cfg.FrameInterval / time.Second),
		Workers:       cfg.WorkerCount,
	}

	fctx := goflag.NewContext()
	fctx.AddFlag(goflag.FlagString, "urls", "u", &opts.URLs, "Comma-separated talk URLs", false)
	fctx.AddFlag(goflag.FlagString, "urls-file", "f", &opts.URLsFile, "File with one talk URL per line (# comments allowed)", false)
	fctx.AddFlag(goflag.FlagString, "output-dir", "o", &opts.OutputDir, "Directory for the transcript output file", false)
	fctx.AddFlag(goflag.FlagString, "output-file", "n", &opts.OutputFile, "Output JSONL filename", false)
	fctx.AddFlag(goflag.FlagString, "model", "m", &opts.Model, "Whisper model tier: tiny, base, small, medium or large", false)
	fctx.AddFlag(goflag.FlagInt, "frame-interval", "t", &opts.FrameInterval, "Seconds between OCR'd video frames", false, goflag.Min(1), goflag.Max(3600))
	fctx.AddFlag(goflag.FlagInt, "workers", "w", &opts.Workers, "Talks processed in parallel", false, goflag.Min(1), goflag.Max(16))
	fctx.AddFlag(goflag.FlagBool, "keep-temp", "k", &opts.KeepTemp, "Keep the per-run scratch directory", false)
	fctx.AddFlag(goflag.FlagBool, "scrub", "s", &opts.Scrub, "Scrub recognized frame text (mask personal data, collapse repeats)", false)

	fctx.AddSubCommand("run", "Download, transcribe and OCR the given talks", func() {
		if err := run(log, cfg, opts); err != nil {
			log.Error("run failed", "error", err)
			os.Exit(1)
		}
	})

	subcmd, err := fctx.Parse(os.Args)
	if err != nil {
		log.Error("invalid arguments", "error", err)
		os.Exit(1)
	}
	if subcmd == nil {
		fctx.PrintUsage(os.Stdout)
		os.Exit(1)
	}
	subcmd.Handler()
}

func run(log *slog.Logger, cfg config.Config, opts options) error {
	urls, err := collectURLs(opts)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given: use --urls or --urls-file")
	}
	if !config.ValidWhisperModel(opts.Model) {
		return fmt.Errorf("unknown whisper model tier %q", opts.Model)
	}

	downloader := &media.Downloader{YtDlpPath: cfg.YtDlpPath}
	if !downloader.Available() {
		return fmt.Errorf("yt-dlp not found at %q", cfg.YtDlpPath)
	}
	frames := &media.FrameExtractor{
		FFmpegPath: cfg.FFmpegPath,
		Interval:   time.Duration(opts.FrameInterval) * time.Second,
	}
	transcriber := &asr.WhisperCPP{
		CLIPath:  cfg.WhisperCLIPath,
		ModelDir: cfg.WhisperModelDir,
		Model:    opts.Model,
	}
	if !transcriber.Available() {
		return fmt.Errorf("whisper model %s not found (looked for %s)", opts.Model, transcriber.ModelPath())
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	sink, err := talk.OpenJSONL(filepath.Join(opts.OutputDir, opts.OutputFile))
	if err != nil {
		return err
	}
	defer sink.Close()

	ctx := context.Background()

	// Optional Postgres archive.
	var archive pipeline.Archiver
	if cfg.DatabaseURL != "" {
		client := store.NewClient(store.Config{DSN: cfg.DatabaseURL})
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("connect archive: %w", err)
		}
		defer client.Close()
		archive = client
		log.Info("archiving records to postgres")
	}

	scratch, err := os.MkdirTemp("", "talkscribe-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	if opts.KeepTemp {
		log.Info("keeping scratch dir", "dir", scratch)
	} else {
		defer os.RemoveAll(scratch)
	}

	worker := pipeline.NewWorker(
		downloader, frames, transcriber, ocr.NewTesseractEngine(),
		sink, archive, scratch, cfg.OCRLanguage, log,
	)
	if opts.Scrub {
		worker.Scrub = clean.Scrub
	}

	orch := pipeline.NewOrchestrator(worker, opts.Workers, len(urls), cfg.JobTTL, log)
	orch.Start(ctx)

	jobs := make([]*pipeline.Job, 0, len(urls))
	for i, url := range urls {
		talkID := fmt.Sprintf("talk_%02d", i+1)
		if len(urls) == 1 {
			if tailID := urlTail(url); tailID != "" {
				talkID = tailID
			}
		}
		job := pipeline.NewJob(talkID, url)
		if err := orch.Submit(job); err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	log.Info("processing talks", "count", len(jobs), "workers", opts.Workers, "model", opts.Model)
	orch.Drain()

	failed := 0
	for _, job := range jobs {
		snap := job.Snapshot()
		switch snap.Status {
		case pipeline.StatusCompleted:
			log.Info("talk done", "talk_id", snap.TalkID,
				"segments", snap.Progress.Segments, "extractions", snap.Progress.OCRExtractions)
		case pipeline.StatusPartial:
			log.Warn("talk partially done", "talk_id", snap.TalkID, "errors", snap.Progress.Errors)
		default:
			failed++
			log.Error("talk failed", "talk_id", snap.TalkID, "errors", snap.Progress.Errors)
		}
	}

	log.Info("run complete", "output", sink.Path(), "talks", len(jobs), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d talks failed", failed, len(jobs))
	}
	return nil
}

func collectURLs(opts options) ([]string, error) {
	var urls []string
	for _, u := range strings.Split(opts.URLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if opts.URLsFile == "" {
		return urls, nil
	}

	f, err := os.Open(opts.URLsFile)
	if err != nil {
		return nil, fmt.Errorf("open urls file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read urls file: %w", err)
	}
	return urls, nil
}

// urlTail derives a talk id from a single URL, e.g. the video id of a watch
// link. Returns "" when nothing usable is found.
func urlTail(url string) string {
	if i := strings.Index(url, "v="); i >= 0 {
		id := url[i+2:]
		if j := strings.IndexByte(id, '&'); j >= 0 {
			id = id[:j]
		}
		return sanitizeID(id)
	}
	if i := strings.LastIndexByte(strings.TrimRight(url, "/"), '/'); i >= 0 {
		return sanitizeID(strings.TrimRight(url, "/")[i+1:])
	}
	return ""
}

func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
