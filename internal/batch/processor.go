// Package batch drives the PDF-to-text OCR run: scan a directory, extract or
// recognize each document's text, write one report per input. Failures are
// logged and the run continues with the next item.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talkdigest/talkdigest/internal/docx"
	"github.com/talkdigest/talkdigest/internal/ocr"
	"github.com/talkdigest/talkdigest/internal/pdf"
)

// Processor converts a directory of PDF (and DOCX) files to text files.
type Processor struct {
	Engine      ocr.Engine
	Rasterizer  *pdf.Rasterizer
	OutputDir   string
	Language    string
	Concurrency int
	// Scrub runs the given cleaner over recognized page text when set.
	Scrub func(string) string
	Log   *slog.Logger
}

// Summary is the end-of-run accounting.
type Summary struct {
	Total       int
	Succeeded   int
	Failed      int
	FailedFiles []string
}

// ProcessDirectory handles every supported file in dir, one document at a
// time, pages within a document concurrently.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("read input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pdf", ".docx":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("no PDF or DOCX files found in %s", dir)
	}

	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output directory: %w", err)
	}

	sum := Summary{Total: len(files)}
	for _, file := range files {
		name := filepath.Base(file)
		p.Log.Info("processing", "file", name)
		if err := p.ProcessFile(ctx, file); err != nil {
			p.Log.Error("processing failed", "file", name, "error", err)
			sum.Failed++
			sum.FailedFiles = append(sum.FailedFiles, name)
			continue
		}
		sum.Succeeded++
	}
	return sum, nil
}

// ProcessFile converts one document and writes its report next to the other
// outputs. PDFs with a usable embedded text layer skip OCR entirely.
func (p *Processor) ProcessFile(ctx context.Context, path string) error {
	var pages []string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		var text string
		text, err = docx.ExtractText(path)
		if err == nil {
			pages = []string{text}
		}
	case ".pdf":
		pages, err = p.pdfPages(ctx, path)
	default:
		return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	if p.Scrub != nil {
		for i, page := range pages {
			pages[i] = p.Scrub(page)
		}
	}

	report := &Report{
		Source:      filepath.Base(path),
		ProcessedAt: time.Now(),
		Pages:       pages,
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(p.OutputDir, stem+".txt")
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	if err := report.Write(out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	p.Log.Info("wrote report", "file", filepath.Base(path), "output", outPath, "pages", len(pages))
	return nil
}

func (p *Processor) pdfPages(ctx context.Context, path string) ([]string, error) {
	// Fast path: born-digital PDFs carry their text already.
	if pages, err := pdf.TextLayerPages(path); err == nil && pdf.UsableText(pages) {
		p.Log.Info("using embedded text layer", "file", filepath.Base(path), "pages", len(pages))
		return pages, nil
	}

	tmpDir, err := os.MkdirTemp("", "pdfocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	imagePaths, err := p.Rasterizer.Rasterize(ctx, path, tmpDir)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}

	pages := make([]string, len(imagePaths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())
	for i, imgPath := range imagePaths {
		i, imgPath := i, imgPath
		g.Go(func() error {
			text, err := p.ocrPage(gctx, imgPath, i+1)
			if err != nil {
				// A bad page must not sink the document.
				p.Log.Error("page ocr failed", "file", filepath.Base(path), "page", i+1, "error", err)
				pages[i] = fmt.Sprintf("[error processing page %d: %v]", i+1, err)
				return nil
			}
			pages[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (p *Processor) ocrPage(ctx context.Context, imgPath string, pageNum int) (string, error) {
	data, err := pdf.ReadPage(imgPath)
	if err != nil {
		return "", err
	}
	processed, err := ocr.Preprocess(data)
	if err != nil {
		return "", fmt.Errorf("preprocess page %d: %w", pageNum, err)
	}

	res, err := p.Engine.Recognize(ctx, ocr.Input{
		ID:        fmt.Sprintf("page-%d", pageNum),
		Image:     processed,
		Languages: p.languages(),
		PSM:       6,
		Variables: map[string]string{"preserve_interword_spaces": "1"},
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (p *Processor) languages() []string {
	if p.Language == "" {
		return []string{"eng"}
	}
	return []string{p.Language}
}

func (p *Processor) concurrency() int {
	if p.Concurrency <= 0 {
		return 4
	}
	return p.Concurrency
}
