package scrape

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/resilience"
	"github.com/sells-group/geo-cli/pkg/jina"
)

// errUnusable marks a reader response that came back but has no real page.
var errUnusable = eris.New("scrape: unusable reader response")

// JinaAdapter wraps a Jina Reader client as a Scraper. Transient failures
// are retried and repeated failures open a breaker that makes the chain skip
// Jina until the cooldown passes.
type JinaAdapter struct {
	client  jina.Client
	retry   resilience.RetryPolicy
	breaker *resilience.Breaker
}

// NewJinaAdapter creates a JinaAdapter. Three consecutive failures open the
// breaker for a minute.
func NewJinaAdapter(client jina.Client) *JinaAdapter {
	retry := resilience.DefaultRetryPolicy().WithRetries(1)
	retry.OnRetry = resilience.RetryLogger("jina", "read")
	return &JinaAdapter{
		client: client,
		retry:  retry,
		breaker: resilience.NewBreaker("jina", resilience.BreakerConfig{
			Trips:    3,
			Cooldown: time.Minute,
		}),
	}
}

// Name implements Scraper.
func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns false while the breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.BreakerOpen
}

// Scrape reads targetURL through Jina Reader.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := resilience.DoVal(ctx, j.retry, func(ctx context.Context) (*jina.ReadResponse, error) {
			resp, err := j.client.Read(ctx, targetURL)
			var apiErr *jina.APIError
			if errors.As(err, &apiErr) {
				return nil, resilience.FromStatus(err, apiErr.StatusCode)
			}
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, errUnusable
		}
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "jina: read %s", targetURL)
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = targetURL
	}
	page := model.CrawledPage{
		URL:         pageURL,
		Title:       resp.Data.Title,
		Markdown:    resp.Data.Content,
		Description: resp.Data.Description,
		StatusCode:  200,
	}
	page.Language = detectLanguage(page.Title + " " + page.Markdown)
	return &Result{Page: page, Source: "jina"}, nil
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
	"verify you are human",
}

// needsFallback reports whether a reader response is empty or a challenge
// page rather than site content.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}
	if len(content) >= 1000 {
		return false
	}
	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
