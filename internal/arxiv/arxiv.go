// Package arxiv fetches sample papers from the arXiv API, for seeding a
// corpus of scanned-style PDFs to run OCR against.
package arxiv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"

// Paper is one arXiv search result.
type Paper struct {
	ID        string
	Title     string
	Abstract  string
	AbsURL    string
	PDFURL    string
	Published time.Time
	Authors   []string
}

// Client queries the arXiv Atom API and downloads papers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	parser     *gofeed.Parser
}

func NewClient() *Client {
	parser := gofeed.NewParser()
	parser.AtomTranslator = &relatedLinkTranslator{inner: &gofeed.DefaultAtomTranslator{}}
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		parser: parser,
	}
}

// relatedLinkTranslator carries every Atom entry link through to Item.Links.
// The default translator keeps only rel alternate and self, and arXiv marks
// its pdf link rel="related".
type relatedLinkTranslator struct {
	inner *gofeed.DefaultAtomTranslator
}

func (t *relatedLinkTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	f, err := t.inner.Translate(feed)
	if err != nil {
		return nil, err
	}
	af, ok := feed.(*atom.Feed)
	if !ok {
		return f, nil
	}
	for i, entry := range af.Entries {
		if i >= len(f.Items) {
			break
		}
		for _, l := range entry.Links {
			if l == nil || l.Href == "" {
				continue
			}
			if !slices.Contains(f.Items[i].Links, l.Href) {
				f.Items[i].Links = append(f.Items[i].Links, l.Href)
			}
		}
	}
	return f, nil
}

// Search runs a full-text query and returns up to max results.
func (c *Client) Search(ctx context.Context, query string, max int) ([]Paper, error) {
	if max <= 0 {
		max = 10
	}
	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", "0")
	q.Set("max_results", fmt.Sprintf("%d", max))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv api status %d", resp.StatusCode)
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Items))
	for _, item := range feed.Items {
		p := Paper{
			// arXiv wraps titles and abstracts across lines.
			Title:    collapse(item.Title),
			Abstract: collapse(item.Description),
			AbsURL:   item.Link,
			ID:       idFromAbsURL(item.Link),
		}
		if item.PublishedParsed != nil {
			p.Published = *item.PublishedParsed
		}
		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				p.Authors = append(p.Authors, a.Name)
			}
		}
		for _, link := range item.Links {
			if strings.Contains(link, "/pdf/") {
				p.PDFURL = link
				break
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// FindPDFLink scrapes an abstract page for its PDF download link. Used when
// the feed entry carried no pdf link.
func (c *Client) FindPDFLink(ctx context.Context, absURL string) (string, error) {
	body, err := c.get(ctx, absURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parse abstract page: %w", err)
	}

	var href string
	doc.Find("a.download-pdf, a.abs-button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if h, ok := sel.Attr("href"); ok && strings.Contains(h, "/pdf/") {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if h, ok := sel.Attr("href"); ok && strings.Contains(h, "/pdf/") {
				href = h
				return false
			}
			return true
		})
	}
	if href == "" {
		return "", fmt.Errorf("no pdf link on %s", absURL)
	}
	return resolveRef(absURL, href)
}

// AbstractText fetches an abstract page and returns its readable text.
func (c *Client) AbstractText(ctx context.Context, absURL string) (string, error) {
	body, err := c.get(ctx, absURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	article, err := readability.FromReader(body, nil)
	if err != nil {
		return "", fmt.Errorf("extract abstract text: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}

// DownloadPDF writes the PDF at pdfURL to dest.
func (c *Client) DownloadPDF(ctx context.Context, pdfURL, dest string) error {
	body, err := c.get(ctx, pdfURL)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("download %s: %w", pdfURL, err)
	}
	return f.Close()
}

// DownloadSamples searches for query and downloads up to max PDFs into dir.
// Papers without a resolvable PDF link are skipped. Returns the written
// paths.
func (c *Client) DownloadSamples(ctx context.Context, query string, max int, dir string) ([]string, error) {
	papers, err := c.Search(ctx, query, max)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var paths []string
	for _, p := range papers {
		pdfURL := p.PDFURL
		if pdfURL == "" && p.AbsURL != "" {
			pdfURL, err = c.FindPDFLink(ctx, p.AbsURL)
			if err != nil {
				continue
			}
		}
		if pdfURL == "" {
			continue
		}
		name := p.ID
		if name == "" {
			name = fmt.Sprintf("paper_%02d", len(paths)+1)
		}
		dest := filepath.Join(dir, strings.ReplaceAll(name, "/", "_")+".pdf")
		if err := c.DownloadPDF(ctx, pdfURL, dest); err != nil {
			continue
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// idFromAbsURL turns "https://arxiv.org/abs/2301.00001v2" into
// "2301.00001v2".
func idFromAbsURL(absURL string) string {
	i := strings.Index(absURL, "/abs/")
	if i < 0 {
		return ""
	}
	return absURL[i+len("/abs/"):]
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse pdf link: %w", err)
	}
	return b.ResolveReference(r).String(), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
