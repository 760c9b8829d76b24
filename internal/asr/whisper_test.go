package asr

import (
	"path/filepath"
	"testing"
)

const sampleOutput = `{
  "systeminfo": "AVX = 1",
  "result": {"language": "en"},
  "transcription": [
    {
      "timestamps": {"from": "00:00:00,000", "to": "00:00:04,500"},
      "offsets": {"from": 0, "to": 4500},
      "text": " Welcome to the talk."
    },
    {
      "timestamps": {"from": "00:00:04,500", "to": "00:00:09,000"},
      "offsets": {"from": 4500, "to": 9000},
      "text": " Today we cover transformers."
    },
    {
      "timestamps": {"from": "00:00:09,000", "to": "00:00:09,200"},
      "offsets": {"from": 9000, "to": 9200},
      "text": "   "
    }
  ]
}`

func TestParseOutput(t *testing.T) {
	tr, err := ParseOutput([]byte(sampleOutput))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tr.Language != "en" {
		t.Errorf("expected language en, got %q", tr.Language)
	}
	// The whitespace-only trailing segment must be dropped.
	if len(tr.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(tr.Segments))
	}
	if tr.Segments[0].Start != 0 || tr.Segments[0].End != 4.5 {
		t.Errorf("segment 0 offsets wrong: %+v", tr.Segments[0])
	}
	if tr.Segments[1].Text != "Today we cover transformers." {
		t.Errorf("segment 1 text wrong: %q", tr.Segments[1].Text)
	}
	if tr.Text != "Welcome to the talk. Today we cover transformers." {
		t.Errorf("full text wrong: %q", tr.Text)
	}
}

func TestParseOutput_MissingLanguage(t *testing.T) {
	tr, err := ParseOutput([]byte(`{"transcription": []}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Language != "unknown" {
		t.Errorf("expected language unknown, got %q", tr.Language)
	}
	if len(tr.Segments) != 0 {
		t.Errorf("expected no segments, got %d", len(tr.Segments))
	}
}

func TestParseOutput_InvalidJSON(t *testing.T) {
	if _, err := ParseOutput([]byte("not json")); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestModelPath(t *testing.T) {
	w := &WhisperCPP{ModelDir: "/opt/models", Model: "small"}
	want := filepath.Join("/opt/models", "ggml-small.bin")
	if got := w.ModelPath(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestModelPath_DefaultTier(t *testing.T) {
	w := &WhisperCPP{ModelDir: "models"}
	want := filepath.Join("models", "ggml-base.bin")
	if got := w.ModelPath(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
