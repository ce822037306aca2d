package scrape

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/resilience"
	"github.com/sells-group/geo-cli/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as the last-resort Scraper.
type FirecrawlAdapter struct {
	client firecrawl.Client
	retry  resilience.RetryPolicy
}

// NewFirecrawlAdapter creates a FirecrawlAdapter.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	retry := resilience.DefaultRetryPolicy().WithRetries(1)
	retry.OnRetry = resilience.RetryLogger("firecrawl", "scrape")
	return &FirecrawlAdapter{client: client, retry: retry}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports implements Scraper.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via the Firecrawl scrape endpoint.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:             targetURL,
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
		})
		var apiErr *firecrawl.APIError
		if errors.As(err, &apiErr) {
			return nil, resilience.FromStatus(err, apiErr.StatusCode)
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data.Markdown == "" {
		return nil, eris.Errorf("firecrawl: no content for %s", targetURL)
	}
	page := PageFromFirecrawl(resp.Data)
	if page.URL == "" {
		page.URL = targetURL
	}
	return &Result{Page: page, Source: "firecrawl"}, nil
}

// PageFromFirecrawl converts a Firecrawl page to a CrawledPage.
func PageFromFirecrawl(d firecrawl.PageData) model.CrawledPage {
	page := model.CrawledPage{
		URL:         d.PageURL(),
		Title:       d.Metadata.Title,
		Markdown:    d.Markdown,
		Description: d.Metadata.Description,
		StatusCode:  d.Metadata.StatusCode,
	}
	page.Language = detectLanguage(page.Title + " " + page.Markdown)
	return page
}
