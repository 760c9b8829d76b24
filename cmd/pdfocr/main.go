package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/abiiranathan/goflag"

	"github.com/talkdigest/talkdigest/internal/arxiv"
	"github.com/talkdigest/talkdigest/internal/batch"
	"github.com/talkdigest/talkdigest/internal/clean"
	"github.com/talkdigest/talkdigest/internal/config"
	"github.com/talkdigest/talkdigest/internal/ocr"
	"github.com/talkdigest/talkdigest/internal/pdf"
)

type options struct {
	InputDir    string
	OutputDir   string
	DPI         int
	Language    string
	Concurrency int
	Download    string
	Scrub       bool
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	opts := options{
		InputDir:    "input_pdfs",
		OutputDir:   "text_output",
		DPI:         cfg.OCRDPI,
		Language:    cfg.OCRLanguage,
		Concurrency: 4,
	}

	fctx := goflag.NewContext()
	fctx.AddFlag(goflag.FlagString, "input", "i", &opts.InputDir, "Directory containing PDF/DOCX files", false)
	fctx.AddFlag(goflag.FlagString, "output", "o", &opts.OutputDir, "Directory to write one .txt report per input file", false)
	fctx.AddFlag(goflag.FlagInt, "dpi", "d", &opts.DPI, "Rasterization resolution for scanned pages", false, goflag.Min(72), goflag.Max(1200))
	fctx.AddFlag(goflag.FlagString, "lang", "l", &opts.Language, "Tesseract language code", false)
	fctx.AddFlag(goflag.FlagInt, "concurrency", "c", &opts.Concurrency, "Pages OCR'd in parallel within one document", false, goflag.Min(1), goflag.Max(32))
	fctx.AddFlag(goflag.FlagString, "download", "q", &opts.Download, "Fetch sample arXiv PDFs matching this query into the input directory first", false)
	fctx.AddFlag(goflag.FlagBool, "scrub", "s", &opts.Scrub, "Scrub recognized text (strip markup, mask personal data, collapse repeats)", false)

	fctx.AddSubCommand("run", "Convert every PDF/DOCX in the input directory to text", func() {
		run(log, cfg, opts)
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

func run(log *slog.Logger, cfg config.Config, opts options) {
	ctx := context.Background()

	if err := os.MkdirAll(opts.InputDir, 0o755); err != nil {
		log.Error("create input dir failed", "dir", opts.InputDir, "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		log.Error("create output dir failed", "dir", opts.OutputDir, "error", err)
		os.Exit(1)
	}

	if opts.Download != "" {
		log.Info("downloading sample papers", "query", opts.Download)
		paths, err := arxiv.NewClient().DownloadSamples(ctx, opts.Download, 5, opts.InputDir)
		if err != nil {
			log.Error("sample download failed", "error", err)
			os.Exit(1)
		}
		log.Info("samples downloaded", "count", len(paths))
	}

	rasterizer := &pdf.Rasterizer{PdftoppmPath: cfg.PdftoppmPath, DPI: opts.DPI}
	if !rasterizer.Available() {
		log.Warn("pdftoppm not found, scanned PDFs will fail", "path", cfg.PdftoppmPath)
	}

	proc := &batch.Processor{
		Engine:      ocr.NewTesseractEngine(),
		Rasterizer:  rasterizer,
		OutputDir:   opts.OutputDir,
		Language:    opts.Language,
		Concurrency: opts.Concurrency,
		Log:         log,
	}
	if opts.Scrub {
		proc.Scrub = clean.Scrub
	}

	summary, err := proc.ProcessDirectory(ctx, opts.InputDir)
	if err != nil {
		log.Error("batch run failed", "error", err)
		os.Exit(1)
	}

	log.Info("batch complete",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	for _, name := range summary.FailedFiles {
		log.Warn("file failed", "file", name)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}
