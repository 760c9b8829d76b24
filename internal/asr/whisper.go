// Package asr converts talk audio to text. The only engine is whisper.cpp's
// whisper-cli, invoked as a subprocess with JSON output; model inference
// itself stays delegated to the external tool.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/talkdigest/talkdigest/internal/talk"
)

// Transcriber is the speech-recognition engine contract.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (talk.Transcript, error)
}

// WhisperCPP runs whisper.cpp's CLI. The model is selected by size tier
// (tiny, base, small, medium, large) and resolved to a ggml model file
// under ModelDir.
type WhisperCPP struct {
	// CLIPath is the whisper-cli binary; defaults to "whisper-cli" on PATH.
	CLIPath string
	// ModelDir holds ggml-<tier>.bin model files.
	ModelDir string
	// Model is the size tier; defaults to "base".
	Model string
	// Language hint; empty means auto-detect.
	Language string
}

func (w *WhisperCPP) Name() string { return "whisper.cpp" }

func (w *WhisperCPP) bin() string {
	if w.CLIPath != "" {
		return w.CLIPath
	}
	return "whisper-cli"
}

// ModelPath resolves the configured size tier to its ggml model file.
func (w *WhisperCPP) ModelPath() string {
	model := w.Model
	if model == "" {
		model = "base"
	}
	return filepath.Join(w.ModelDir, "ggml-"+model+".bin")
}

// Available reports whether the whisper-cli binary and the model file exist.
func (w *WhisperCPP) Available() bool {
	if _, err := exec.LookPath(w.bin()); err != nil {
		return false
	}
	_, err := os.Stat(w.ModelPath())
	return err == nil
}

func (w *WhisperCPP) Transcribe(ctx context.Context, audioPath string) (talk.Transcript, error) {
	outPrefix := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))

	lang := w.Language
	if lang == "" {
		lang = "auto"
	}

	cmd := exec.CommandContext(ctx, w.bin(),
		"-m", w.ModelPath(),
		"-f", audioPath,
		"-l", lang,
		"-oj",
		"-of", outPrefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return talk.Transcript{}, fmt.Errorf("whisper-cli: %w: %s", err, tail(stderr.String(), 300))
	}

	jsonPath := outPrefix + ".json"
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return talk.Transcript{}, fmt.Errorf("read whisper output: %w", err)
	}
	defer os.Remove(jsonPath)

	return ParseOutput(data)
}

// whisperOutput mirrors the whisper.cpp -oj JSON document. Offsets are
// milliseconds from the start of the audio.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// ParseOutput converts a whisper.cpp JSON document into a Transcript with
// segment offsets in seconds.
func ParseOutput(data []byte) (talk.Transcript, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return talk.Transcript{}, fmt.Errorf("parse whisper json: %w", err)
	}

	tr := talk.Transcript{Language: out.Result.Language}
	if tr.Language == "" {
		tr.Language = "unknown"
	}

	var full strings.Builder
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		tr.Segments = append(tr.Segments, talk.Segment{
			Start: float64(seg.Offsets.From) / 1000.0,
			End:   float64(seg.Offsets.To) / 1000.0,
			Text:  text,
		})
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(text)
	}
	tr.Text = full.String()
	return tr, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
