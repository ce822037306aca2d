package model

import "time"

// CrawledPage represents a page fetched during crawling.
type CrawledPage struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Markdown    string `json:"markdown"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	StatusCode  int    `json:"status_code"`
}

// HasDescription reports whether the page carries a meta description.
func (p CrawledPage) HasDescription() bool {
	return p.Description != ""
}

// CrawlCache stores a cached crawl result.
type CrawlCache struct {
	ID        string        `json:"id"`
	SiteURL   string        `json:"site_url"`
	Pages     []CrawledPage `json:"pages"`
	MaxPages  int           `json:"max_pages"`
	CrawledAt time.Time     `json:"crawled_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// CrawlResult holds the outcome of a crawl.
type CrawlResult struct {
	Pages     []CrawledPage `json:"pages"`
	Source    string        `json:"source"` // "cache", "local" or "firecrawl"
	FromCache bool          `json:"from_cache"`
}

// ProbeResult holds the outcome of an HTTP probe.
type ProbeResult struct {
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code"`
	HasSitemap bool   `json:"has_sitemap"`
	Blocked    bool   `json:"blocked"`
	BlockType  string `json:"block_type,omitempty"`
	FinalURL   string `json:"final_url"`
}
