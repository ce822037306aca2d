package crawl

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/scrape"
	"github.com/sells-group/geo-cli/pkg/firecrawl"
)

// --- Cache Mock ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetCachedCrawl(ctx context.Context, siteURL string) (*model.CrawlCache, error) {
	args := m.Called(ctx, siteURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CrawlCache), args.Error(1)
}

func (m *mockCache) SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, maxPages int, ttl time.Duration) error {
	args := m.Called(ctx, siteURL, pages, maxPages, ttl)
	return args.Error(0)
}

// --- Firecrawl Mock ---

type mockFirecrawlClient struct {
	mock.Mock
}

func (m *mockFirecrawlClient) Crawl(ctx context.Context, req firecrawl.CrawlRequest) (*firecrawl.CrawlResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.CrawlResponse), args.Error(1)
}

func (m *mockFirecrawlClient) GetCrawlStatus(ctx context.Context, id string) (*firecrawl.CrawlStatusResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.CrawlStatusResponse), args.Error(1)
}

func (m *mockFirecrawlClient) Scrape(ctx context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.ScrapeResponse), args.Error(1)
}

// --- Scraper Stub ---

type failingScraper struct{}

func (failingScraper) Name() string           { return "failing" }
func (failingScraper) Supports(_ string) bool { return true }
func (failingScraper) Scrape(context.Context, string) (*scrape.Result, error) {
	return nil, eris.New("failing: no content")
}
