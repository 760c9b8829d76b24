// Package ocr wraps the Tesseract OCR engine (via gosseract/v2) behind a small
// Engine interface so callers can swap in a fake for testing. Tesseract and the
// language data for the configured language must be installed on the system.
package ocr

import "context"

// Input is a single encoded image submitted for recognition.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in the Result.
	ID string
	// Image is the encoded image payload (PNG or JPEG).
	Image []byte
	// Languages lists Tesseract language hints, e.g. "eng". Empty means the
	// engine default.
	Languages []string
	// PSM is the Tesseract page segmentation mode. Zero means engine default.
	// Mode 6 (single uniform block) suits rasterized document pages and slides.
	PSM int
	// DPI is the effective dots-per-inch of the image; zero means unknown.
	DPI int
	// Variables passes engine-specific knobs through without hard-coding them
	// into the API surface, e.g. "preserve_interword_spaces".
	Variables map[string]string
}

// Result is the recognition output for one input.
type Result struct {
	InputID string
	// Text is the recognized text, trimmed of surrounding whitespace.
	Text string
	// Confidence is the mean word confidence in [0,1], zero if unavailable.
	Confidence float64
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}
