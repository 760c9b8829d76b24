package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// maxSide caps the longer image dimension before OCR. Video frames arrive at
// most 480p, but rasterized 300 DPI pages can exceed 3000px and Tesseract gains
// nothing beyond this size.
const maxSide = 3500

// Preprocess prepares an encoded image for recognition: grayscale conversion,
// global Otsu binarization, and a downscale when the image exceeds maxSide.
// Returns the result re-encoded as PNG.
func Preprocess(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = scaleDown(img, maxSide)
	gray := toGray(img)
	binarize(gray, otsuThreshold(gray))

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func scaleDown(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	side := max(w, h)
	if side <= limit {
		return img
	}
	scale := float64(limit) / float64(side)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// otsuThreshold picks the global threshold that minimizes intra-class variance
// of the grayscale histogram.
func otsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	total := 0
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}

	var sumBg, wBg float64
	var bestVar float64
	best := uint8(128)
	for t := 0; t < 256; t++ {
		wBg += float64(hist[t])
		if wBg == 0 {
			continue
		}
		wFg := float64(total) - wBg
		if wFg == 0 {
			break
		}
		sumBg += float64(t) * float64(hist[t])
		meanBg := sumBg / wBg
		meanFg := (sumAll - sumBg) / wFg
		between := wBg * wFg * (meanBg - meanFg) * (meanBg - meanFg)
		if between > bestVar {
			bestVar = between
			best = uint8(t)
		}
	}
	return best
}

func binarize(gray *image.Gray, threshold uint8) {
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				gray.SetGray(x, y, color.Gray{Y: 255})
			} else {
				gray.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
}
