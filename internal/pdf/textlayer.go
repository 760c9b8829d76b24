package pdf

import (
	"fmt"
	"strings"
	"unicode"

	pdflib "github.com/ledongthuc/pdf"
)

// TextLayerPages extracts the embedded text of each page. Pages without a
// usable text object come back as empty strings; scanned PDFs typically return
// all-empty pages and need OCR instead.
func TextLayerPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}

// UsableText reports whether extracted pages carry enough real text to skip
// OCR. A handful of stray glyphs on an otherwise scanned document should not
// count.
func UsableText(pages []string) bool {
	letters := 0
	for _, p := range pages {
		for _, r := range p {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				letters++
				if letters >= minTextLayerRunes {
					return true
				}
			}
		}
	}
	return false
}

const minTextLayerRunes = 120
