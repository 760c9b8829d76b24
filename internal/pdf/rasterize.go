// Package pdf turns PDF files into OCR-ready page images, with a fast path
// that reads the embedded text layer when one is present.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
)

// Rasterizer renders PDF pages to PNG images using poppler's pdftoppm.
type Rasterizer struct {
	// PdftoppmPath is the pdftoppm binary; defaults to "pdftoppm" on PATH.
	PdftoppmPath string
	// DPI is the render resolution; defaults to 300.
	DPI int
}

// Rasterize renders every page of the PDF at path into dir and returns the
// page image paths in page order.
func (r *Rasterizer) Rasterize(ctx context.Context, path, dir string) ([]string, error) {
	bin := r.PdftoppmPath
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 300
	}

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, bin, "-png", "-r", strconv.Itoa(dpi), path, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(stderr.String(), 300))
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("glob pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", filepath.Base(path))
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(pages)
	return pages, nil
}

// Available reports whether the pdftoppm binary can be found.
func (r *Rasterizer) Available() bool {
	bin := r.PdftoppmPath
	if bin == "" {
		bin = "pdftoppm"
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

// ReadPage loads one rendered page image.
func ReadPage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page image: %w", err)
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
