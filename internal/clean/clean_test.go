package clean

import (
	"strings"
	"testing"
)

func TestStripHTML(t *testing.T) {
	in := `<html><head><style>body{color:red}</style></head><body><h1>Title</h1><p>Hello <b>world</b>.</p><script>alert(1)</script></body></html>`
	got := StripHTML(in)
	if got != "Title Hello world ." {
		t.Errorf("unexpected output %q", got)
	}
}

func TestStripHTMLPlainTextPassthrough(t *testing.T) {
	got := StripHTML("just   plain\n\ttext")
	if got != "just plain text" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestScrubPII(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"contact me at alice@example.com today", "contact me at [EMAIL] today"},
		{"call 555-867-5309 now", "call [PHONE] now"},
		{"call (212) 555-0182 now", "call [PHONE] now"},
		{"ssn is 123-45-6789 ok", "ssn is [SSN] ok"},
		{"card 4111 1111 1111 1111 expires", "card [CARD] expires"},
	}
	for _, tc := range cases {
		if got := ScrubPII(tc.in); got != tc.want {
			t.Errorf("ScrubPII(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScrubPIILeavesNormalTextAlone(t *testing.T) {
	in := "the talk covers go runtime internals in 45 minutes"
	if got := ScrubPII(in); got != in {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

func TestCollapseRepeats(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"the the the slide", "the slide"},
		{"new york new york city", "new york city"},
		{"agenda agenda agenda agenda", "agenda"},
		{"no repeats here at all", "no repeats here at all"},
		{"Loading Loading loading done", "Loading done"},
	}
	for _, tc := range cases {
		if got := CollapseRepeats(tc.in, 3); got != tc.want {
			t.Errorf("CollapseRepeats(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScrubFullPipeline(t *testing.T) {
	in := "<p>email bob@corp.io email bob@corp.io</p>"
	got := Scrub(in)
	if strings.Contains(got, "bob@corp.io") {
		t.Errorf("expected email masked, got %q", got)
	}
	if strings.Count(got, "[EMAIL]") != 1 {
		t.Errorf("expected repeated run collapsed, got %q", got)
	}
}

func TestSimilarityIdenticalAndDisjoint(t *testing.T) {
	a := Fingerprint("concurrency patterns with goroutines and channels in production services")
	if sim := Similarity(a, a); sim != 1 {
		t.Errorf("expected self-similarity 1, got %f", sim)
	}
	b := Fingerprint("cooking pasta requires salted boiling water and plenty of patience")
	if sim := Similarity(a, b); sim != 0 {
		t.Errorf("expected disjoint similarity 0, got %f", sim)
	}
}

func TestSimilarityToleratesGarbledWord(t *testing.T) {
	a := Fingerprint("Welcome to GopherCon 2023 concurrency patterns with goroutines and channels")
	b := Fingerprint("Welcome to GopherCon 2023 concurrency patterns with goroutlnes and channels")
	if sim := Similarity(a, b); sim < DefaultThreshold {
		t.Errorf("expected one garbled word to stay above %v, got %f", DefaultThreshold, sim)
	}
}

func TestDeduperDropsNearDuplicates(t *testing.T) {
	// Default threshold, same as the frame OCR path uses.
	d := NewDeduper(0)

	first := "Welcome to GopherCon 2023 concurrency patterns with goroutines and channels"
	if d.Seen(first) {
		t.Error("expected first text to be new")
	}
	// Same slide OCR'd a frame later, with one word garbled.
	near := "Welcome to GopherCon 2023 concurrency patterns with goroutlnes and channels"
	if !d.Seen(near) {
		t.Error("expected near-duplicate to be detected")
	}
	other := "Lunch break resumes at one thirty in the main conference hall downstairs"
	if d.Seen(other) {
		t.Error("expected unrelated text to be new")
	}
}

func TestDeduperEmptyText(t *testing.T) {
	d := NewDeduper(0.8)
	if d.Seen("") {
		t.Error("expected empty text to never count as duplicate")
	}
}
