package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine implements Engine using the gosseract client. A fresh client
// is created per call; gosseract clients are not safe for concurrent use.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(in.PSM)); err != nil {
			return Result{}, fmt.Errorf("set psm: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(in.DPI)); err != nil {
			return Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	return Result{
		InputID:    in.ID,
		Text:       strings.TrimSpace(text),
		Confidence: meanWordConfidence(c),
	}, nil
}

// meanWordConfidence averages per-word confidences. Bounding box extraction can
// fail on some Tesseract versions; text extraction still succeeds, so failures
// here only zero the confidence.
func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
