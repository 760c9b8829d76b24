package chat

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

var md = goldmark.New()

// RenderMarkdown converts a model reply from markdown to HTML for the web UI.
func RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
