// Package clean normalizes noisy extracted text: stripping leftover HTML,
// masking personal data, and collapsing the repetition that OCR and
// scraping tend to produce.
package clean

import (
	"regexp"
	"strings"

	"github.com/bbalet/stopwords"
	"github.com/jdkato/prose/v2"
	"golang.org/x/net/html"
)

// StripHTML removes markup from text that may contain HTML fragments,
// returning the visible text only. Script and style bodies are dropped.
// Input without any markup passes through with whitespace normalized.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapseWhitespace(s)
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return collapseWhitespace(s)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return collapseWhitespace(b.String())
}

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+?\d{1,2}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
	ssnRe   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardRe  = regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`)
)

// ScrubPII masks emails, phone numbers, SSNs and card numbers with typed
// placeholders. The order matters: SSNs would otherwise match the looser
// phone pattern.
func ScrubPII(s string) string {
	s = emailRe.ReplaceAllString(s, "[EMAIL]")
	s = ssnRe.ReplaceAllString(s, "[SSN]")
	s = cardRe.ReplaceAllString(s, "[CARD]")
	s = phoneRe.ReplaceAllString(s, "[PHONE]")
	return s
}

// CollapseRepeats removes immediately repeated runs of up to maxN words,
// so "the the the slide" becomes "the slide" and "new york new york city"
// becomes "new york city". OCR on near-identical frames produces a lot of
// this.
func CollapseRepeats(s string, maxN int) string {
	if maxN < 1 {
		maxN = 1
	}
	words := strings.Fields(s)
	for n := maxN; n >= 1; n-- {
		words = collapseNGramRuns(words, n)
	}
	return strings.Join(words, " ")
}

func collapseNGramRuns(words []string, n int) []string {
	if len(words) < 2*n {
		return words
	}
	out := words[:0:0]
	i := 0
	for i < len(words) {
		out = append(out, words[i:min(i+n, len(words))]...)
		j := i + n
		for j+n <= len(words) && equalFold(words[i:i+n], words[j:j+n]) {
			j += n
		}
		i = j
	}
	return out
}

func equalFold(a, b []string) bool {
	for k := range a {
		if !strings.EqualFold(a[k], b[k]) {
			return false
		}
	}
	return true
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Scrub is the full pipeline applied to one block of extracted text.
func Scrub(s string) string {
	s = StripHTML(s)
	s = ScrubPII(s)
	return CollapseRepeats(s, 3)
}

// Word bigrams rather than longer shingles: OCR garbles individual words,
// and every shingle touching a garbled word is lost. With bigrams one bad
// word costs at most two shingles, so noisy re-reads of the same slide
// still overlap heavily.
const shingleSize = 2

// DefaultThreshold is the Jaccard similarity above which two texts count
// as duplicates. Tuned for OCR noise: one garbled word in a ten-word slide
// leaves bigram similarity near 0.5, so 0.4 still catches it.
const DefaultThreshold = 0.4

// Fingerprint reduces text to a set of stopword-free word shingles for
// near-duplicate comparison. Short texts fall back to a single shingle so
// they still compare.
func Fingerprint(s string) map[string]struct{} {
	normalized := stopwords.CleanString(strings.ToLower(s), "en", false)

	var tokens []string
	if doc, err := prose.NewDocument(normalized, prose.WithExtraction(false), prose.WithSegmentation(false), prose.WithTagging(false)); err == nil {
		for _, tok := range doc.Tokens() {
			tokens = append(tokens, tok.Text)
		}
	} else {
		tokens = strings.Fields(normalized)
	}

	set := make(map[string]struct{})
	if len(tokens) == 0 {
		return set
	}
	if len(tokens) <= shingleSize {
		set[strings.Join(tokens, " ")] = struct{}{}
		return set
	}
	for i := 0; i+shingleSize <= len(tokens); i++ {
		set[strings.Join(tokens[i:i+shingleSize], " ")] = struct{}{}
	}
	return set
}

// Similarity returns the Jaccard overlap of two fingerprints in [0, 1].
func Similarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	inter := 0
	for sh := range a {
		if _, ok := b[sh]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Deduper drops texts that are near-duplicates of ones already seen.
// Consecutive OCR frames of the same slide collapse to a single extraction.
type Deduper struct {
	threshold float64
	seen      []map[string]struct{}
}

// NewDeduper creates a Deduper. threshold is the Jaccard similarity above
// which a text counts as a duplicate; pass 0 for DefaultThreshold.
func NewDeduper(threshold float64) *Deduper {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Deduper{threshold: threshold}
}

// Seen reports whether text near-duplicates an earlier input, recording it
// for future comparisons when it does not.
func (d *Deduper) Seen(text string) bool {
	fp := Fingerprint(text)
	if len(fp) == 0 {
		return false
	}
	for _, prev := range d.seen {
		if Similarity(fp, prev) >= d.threshold {
			return true
		}
	}
	d.seen = append(d.seen, fp)
	return false
}
