package batch

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Report is the per-document text output: a header block followed by one
// block per page.
type Report struct {
	Source      string
	ProcessedAt time.Time
	Pages       []string
}

const (
	headerRule = "================================================================================"
	pageRule   = "--------------------------------------------------"
)

// Write renders the report: title line, processing time, page count, a rule,
// then each page framed by a page marker and a separator. Pages with no
// recognized text get an explicit placeholder so page numbering stays visible
// in the output.
func (r *Report) Write(w io.Writer) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("OCR result - %s\n", r.Source))
	sb.WriteString(fmt.Sprintf("Processed: %s\n", r.ProcessedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Total pages: %d\n", len(r.Pages)))
	sb.WriteString(headerRule + "\n\n")

	for i, page := range r.Pages {
		sb.WriteString(fmt.Sprintf("\n--- Page %d ---\n\n", i+1))
		if strings.TrimSpace(page) == "" {
			sb.WriteString(fmt.Sprintf("[no recognizable text on page %d]", i+1))
		} else {
			sb.WriteString(page)
		}
		sb.WriteString("\n\n" + pageRule + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
