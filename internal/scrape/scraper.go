// Package scrape fetches single pages through an ordered chain of scrapers:
// a local goquery fetcher first, then the Jina Reader and Firecrawl APIs.
package scrape

import (
	"context"

	"github.com/sells-group/geo-cli/internal/model"
)

// Result holds a scraped page with its source. Links is filled only by
// scrapers that see the raw HTML.
type Result struct {
	Page   model.CrawledPage
	Source string
	Links  []string
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
