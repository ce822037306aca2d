package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-cli/internal/model"
)

const (
	maxBodyBytes = 2 << 20
	userAgent    = "Mozilla/5.0 (compatible; GeoVisibilityBot/1.0; +https://github.com/sells-group/geo-cli)"
)

// LocalScraper fetches HTML directly and converts it to lightweight
// markdown. Blocked or script-only pages fail so the chain falls through to
// the hosted readers.
type LocalScraper struct {
	client *http.Client
}

// NewLocalScraper creates a LocalScraper with the given request timeout.
func NewLocalScraper(timeout time.Duration) *LocalScraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LocalScraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Name implements Scraper.
func (l *LocalScraper) Name() string { return "local" }

// Supports implements Scraper.
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches targetURL and parses title, meta description, body text,
// language and same-site links.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local: create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local: read body")
	}

	if blocked, kind := DetectBlock(resp.StatusCode, resp.Header, body); blocked {
		return nil, eris.Errorf("local: blocked (%s)", kind)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local: status %d", resp.StatusCode)
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "html") {
		return nil, eris.Errorf("local: not html (%s)", ct)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page, links, err := ParseHTML(finalURL, body)
	if err != nil {
		return nil, err
	}
	if len(page.Markdown) < 100 {
		return nil, eris.New("local: empty page")
	}
	page.StatusCode = resp.StatusCode

	return &Result{Page: page, Source: "local", Links: links}, nil
}

// ParseHTML converts an HTML document to a CrawledPage and returns the
// same-host links it contains, in document order without duplicates.
func ParseHTML(pageURL string, body []byte) (model.CrawledPage, []string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return model.CrawledPage{}, nil, eris.Wrap(err, "local: parse html")
	}

	page := model.CrawledPage{URL: pageURL}
	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if val, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		page.Description = strings.TrimSpace(val)
	} else if val, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		page.Description = strings.TrimSpace(val)
	}

	links := extractLinks(doc, pageURL)

	doc.Find("script, style, noscript, svg, iframe, nav, footer").Remove()
	page.Markdown = toMarkdown(doc)
	page.Language = detectLanguage(page.Title + " " + page.Description + " " + page.Markdown)

	return page, links, nil
}

var headingPrefix = map[string]string{"h1": "# ", "h2": "## ", "h3": "### ", "h4": "#### "}

// toMarkdown renders headings, paragraphs and list items as markdown lines.
// Pages without any of those fall back to the collapsed body text.
func toMarkdown(doc *goquery.Document) string {
	var lines []string
	doc.Find("h1, h2, h3, h4, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		tag := goquery.NodeName(s)
		switch {
		case headingPrefix[tag] != "":
			lines = append(lines, headingPrefix[tag]+text)
		case tag == "li":
			lines = append(lines, "- "+text)
		case tag == "blockquote":
			lines = append(lines, "> "+text)
		default:
			// Paragraphs inside list items or quotes are already covered.
			if s.ParentsFiltered("li, blockquote").Length() > 0 {
				return
			}
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
	return strings.Join(lines, "\n\n")
}

var skipExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".zip", ".mp4", ".mp3", ".css", ".js", ".xml"}

func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		lower := strings.ToLower(href)
		for _, ext := range skipExtensions {
			if strings.HasSuffix(lower, ext) {
				return
			}
		}

		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if !SameSite(base, u) {
			return
		}
		u.Fragment = ""
		u.RawQuery = ""
		link := u.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// SameSite reports whether a and b share a host, ignoring a leading "www.".
func SameSite(a, b *url.URL) bool {
	return strings.TrimPrefix(strings.ToLower(a.Hostname()), "www.") ==
		strings.TrimPrefix(strings.ToLower(b.Hostname()), "www.")
}

// detectLanguage returns the ISO 639-3 code of text, or "" when the
// detector is not confident.
func detectLanguage(text string) string {
	words := strings.Fields(text)
	if len(words) > 200 {
		words = words[:200]
	}
	if len(words) < 5 {
		return ""
	}
	info := whatlanggo.Detect(strings.Join(words, " "))
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}
