// Package crawl turns a site URL into a bounded set of crawled pages: a
// cached result when fresh, otherwise local link discovery fetched through
// the scrape chain, with a hosted Firecrawl crawl as the last resort.
package crawl

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/metrics"
	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/scrape"
	"github.com/sells-group/geo-cli/pkg/firecrawl"
)

// Crawler fetches up to maxPages pages of a site. An empty page list means
// the crawl failed; an error is returned only for invalid input or
// cancellation.
type Crawler interface {
	Crawl(ctx context.Context, siteURL string, maxPages int) (*model.CrawlResult, error)
}

// Cache stores crawl results per site. store.Store satisfies it.
type Cache interface {
	GetCachedCrawl(ctx context.Context, siteURL string) (*model.CrawlCache, error)
	SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, maxPages int, ttl time.Duration) error
}

// Options bounds a crawl.
type Options struct {
	MaxDepth       int
	MaxConcurrency int
	CacheTTL       time.Duration
	// PollTimeout bounds waiting for a hosted Firecrawl crawl.
	PollTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = 2
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 5
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 24 * time.Hour
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 3 * time.Minute
	}
	return o
}

// SiteCrawler implements Crawler.
type SiteCrawler struct {
	cache   Cache
	chain   *scrape.Chain
	fc      firecrawl.Client
	sitemap *sitemapFetcher
	opts    Options
}

// New creates a SiteCrawler. cache and fc may be nil to disable caching and
// the hosted fallback.
func New(cache Cache, chain *scrape.Chain, fc firecrawl.Client, opts Options) *SiteCrawler {
	return &SiteCrawler{
		cache:   cache,
		chain:   chain,
		fc:      fc,
		sitemap: newSitemapFetcher(),
		opts:    opts.withDefaults(),
	}
}

// Crawl implements Crawler.
func (c *SiteCrawler) Crawl(ctx context.Context, siteURL string, maxPages int) (*model.CrawlResult, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	home, err := NormalizeURL(siteURL)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("site", home), zap.Int("max_pages", maxPages))

	if pages := c.cached(ctx, home, maxPages); len(pages) > 0 {
		if len(pages) > maxPages {
			pages = pages[:maxPages]
		}
		log.Info("crawl: using cached result", zap.Int("pages", len(pages)))
		metrics.PagesCrawled.WithLabelValues("cache").Add(float64(len(pages)))
		return &model.CrawlResult{Pages: pages, Source: "cache", FromCache: true}, nil
	}

	pages := c.discover(ctx, home, maxPages)
	source := "local"
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "crawl: cancelled")
	}

	if len(pages) == 0 && c.fc != nil {
		log.Info("crawl: local discovery found nothing, falling back to firecrawl")
		pages, err = c.viaFirecrawl(ctx, home, maxPages)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "crawl: cancelled")
			}
			log.Warn("crawl: firecrawl fallback failed", zap.Error(err))
		}
		source = "firecrawl"
	}

	if len(pages) == 0 {
		log.Warn("crawl: no pages fetched")
		return &model.CrawlResult{Source: source}, nil
	}

	metrics.PagesCrawled.WithLabelValues(source).Add(float64(len(pages)))
	if c.cache != nil {
		if err := c.cache.SetCachedCrawl(ctx, home, pages, maxPages, c.opts.CacheTTL); err != nil {
			log.Warn("crawl: failed to cache result", zap.Error(err))
		}
	}
	log.Info("crawl: complete", zap.String("source", source), zap.Int("pages", len(pages)))
	return &model.CrawlResult{Pages: pages, Source: source}, nil
}

// cached returns the cached pages for home when the entry covers maxPages:
// either it already holds that many pages or it was crawled with at least
// that budget.
func (c *SiteCrawler) cached(ctx context.Context, home string, maxPages int) []model.CrawledPage {
	if c.cache == nil {
		return nil
	}
	cached, err := c.cache.GetCachedCrawl(ctx, home)
	if err != nil {
		zap.L().Warn("crawl: cache lookup failed", zap.String("site", home), zap.Error(err))
		return nil
	}
	if cached == nil {
		return nil
	}
	if len(cached.Pages) < maxPages && cached.MaxPages < maxPages {
		zap.L().Info("crawl: cached result below page budget, recrawling",
			zap.String("site", home), zap.Int("cached_pages", len(cached.Pages)),
			zap.Int("cached_budget", cached.MaxPages), zap.Int("max_pages", maxPages))
		return nil
	}
	return cached.Pages
}

// discover fetches the homepage, then walks same-site links breadth first
// up to MaxDepth, seeding the first level from sitemap.xml.
func (c *SiteCrawler) discover(ctx context.Context, home string, maxPages int) []model.CrawledPage {
	base, _ := url.Parse(home)

	seen := map[string]struct{}{canonical(home): {}}
	var pages []model.CrawledPage
	pageSeen := make(map[string]struct{})

	level := []string{home}
	for depth := 0; depth <= c.opts.MaxDepth && len(level) > 0 && len(pages) < maxPages; depth++ {
		if ctx.Err() != nil {
			return pages
		}

		var next []string
		if depth == 0 {
			next = c.sitemap.URLs(ctx, base)
		}

		for _, r := range c.chain.ScrapeAll(ctx, level, c.opts.MaxConcurrency) {
			key := canonical(r.Page.URL)
			if _, dup := pageSeen[key]; dup || len(pages) >= maxPages {
				continue
			}
			pageSeen[key] = struct{}{}
			pages = append(pages, r.Page)
			next = append(next, r.Links...)
		}

		level = level[:0]
		for _, link := range rankLinks(next) {
			if len(pages)+len(level) >= maxPages {
				break
			}
			key := canonical(link)
			if _, dup := seen[key]; dup {
				continue
			}
			if c.chain.PathMatcher.IsExcluded(link) {
				continue
			}
			if u, err := url.Parse(link); err != nil || !scrape.SameSite(base, u) {
				continue
			}
			seen[key] = struct{}{}
			level = append(level, link)
		}
	}
	return pages
}

func (c *SiteCrawler) viaFirecrawl(ctx context.Context, home string, maxPages int) ([]model.CrawledPage, error) {
	resp, err := c.fc.Crawl(ctx, firecrawl.CrawlRequest{
		URL:               home,
		Limit:             maxPages,
		MaxDiscoveryDepth: c.opts.MaxDepth,
		ExcludePaths:      firecrawlExcludes(c.chain.PathMatcher.Patterns()),
		ScrapeOptions:     &firecrawl.ScrapeOptions{Formats: []string{"markdown"}, OnlyMainContent: true},
	})
	if err != nil {
		return nil, eris.Wrap(err, "crawl: firecrawl start")
	}

	pollCtx, cancel := context.WithTimeout(ctx, c.opts.PollTimeout)
	defer cancel()
	status, err := firecrawl.PollCrawl(pollCtx, c.fc, resp.ID)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: firecrawl poll")
	}

	pages := make([]model.CrawledPage, 0, len(status.Data))
	for _, d := range status.Data {
		if strings.TrimSpace(d.Markdown) == "" {
			continue
		}
		pages = append(pages, scrape.PageFromFirecrawl(d))
		if len(pages) == maxPages {
			break
		}
	}
	return pages, nil
}

// firecrawlExcludes converts path globs to the regex patterns Firecrawl
// expects. Extension-only globs are dropped.
func firecrawlExcludes(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if !strings.HasPrefix(p, "/") {
			continue
		}
		p = strings.TrimPrefix(p, "/")
		if dir, ok := strings.CutSuffix(p, "/*"); ok {
			out = append(out, "^/?"+dir+"(/.*)?$")
			continue
		}
		out = append(out, "^/?"+strings.ReplaceAll(p, "*", ".*")+"$")
	}
	return out
}

// NormalizeURL adds a missing scheme, lowercases the host and defaults the
// path to "/".
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("crawl: empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "crawl: parse url %q", raw)
	}
	if u.Host == "" {
		return "", eris.Errorf("crawl: url %q has no host", raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// canonical is the dedupe key of a URL: scheme, "www." and trailing slash
// are ignored.
func canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host + strings.TrimSuffix(u.Path, "/")
}
