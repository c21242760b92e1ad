package webcontent

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	// maxBodyBytes bounds how much HTML we read from a single page.
	maxBodyBytes = 2 * 1024 * 1024

	// minTextLen is the smallest extraction we consider usable. Pages below
	// this are usually bot walls or JS-only shells.
	minTextLen = 100
)

// Content is the readable portion of a web page.
type Content struct {
	Title    string
	Text     string
	Metadata map[string]string
}

// Extractor fetches a page and reduces it to readable text for prompt
// construction.
type Extractor struct {
	client *http.Client
}

// NewExtractor creates an Extractor with sensible transport defaults.
func NewExtractor() *Extractor {
	return &Extractor{
		client: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// NewExtractorWithClient creates an Extractor using the given HTTP client.
func NewExtractorWithClient(client *http.Client) *Extractor {
	return &Extractor{client: client}
}

// junkSelectors match elements that never carry disclosure content.
const junkSelectors = "script, style, noscript, nav, header, footer, form, iframe, svg, aside"

// blockSelectors match the elements whose text we collect, in document order.
const blockSelectors = "h1, h2, h3, h4, h5, h6, p, li, td, th, blockquote, figcaption"

var whitespaceRe = regexp.MustCompile(`[ \t\r\f]+`)

// FetchReadable downloads a page and extracts its title, readable text, and
// basic metadata. One fetch, no retries: a failed fetch fails the record.
func (e *Extractor) FetchReadable(ctx context.Context, pageURL string) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "webcontent: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ESGBot/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "webcontent: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("webcontent: status %d fetching %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "webcontent: parse document")
	}

	content := extract(doc)
	if len(content.Text) < minTextLen {
		return nil, eris.Errorf("webcontent: no readable content at %s", pageURL)
	}

	zap.L().Debug("webcontent: fetched page",
		zap.String("url", pageURL),
		zap.String("title", content.Title),
		zap.Int("text_len", len(content.Text)),
	)

	return content, nil
}

// extract reduces a parsed document to title, text, and metadata.
func extract(doc *goquery.Document) *Content {
	doc.Find(junkSelectors).Remove()

	content := &Content{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Metadata: extractMetadata(doc),
	}

	// Prefer semantic containers when the page has them.
	scope := doc.Selection
	if main := doc.Find("main, article, [role=main]").First(); main.Length() > 0 {
		scope = main
	}

	var blocks []string
	scope.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		// Skip containers whose text is already collected via children.
		if s.Find(blockSelectors).Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	content.Text = strings.Join(blocks, "\n")

	// Pages built entirely from divs yield nothing above; fall back to the
	// whole body.
	if len(content.Text) < minTextLen {
		content.Text = collapse(doc.Find("body").Text())
	}

	return content
}

// metaNames are the meta tags worth carrying into extraction context.
var metaNames = []string{"description", "keywords", "author"}

func extractMetadata(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)

	for _, name := range metaNames {
		if v, ok := doc.Find(`meta[name="` + name + `"]`).First().Attr("content"); ok {
			meta[name] = strings.TrimSpace(v)
		}
	}
	if v, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		meta["og:title"] = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		meta["og:description"] = strings.TrimSpace(v)
	}
	if v, ok := doc.Find("html").First().Attr("lang"); ok {
		meta["lang"] = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta["canonical"] = strings.TrimSpace(v)
	}

	return meta
}

// collapse normalizes runs of whitespace inside a text block and trims
// blank lines.
func collapse(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
