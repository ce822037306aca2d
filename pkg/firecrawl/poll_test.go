package firecrawl

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusFunc func(ctx context.Context, id string) (*CrawlStatusResponse, error)

// stubClient implements Client with a scripted GetCrawlStatus.
type stubClient struct {
	status statusFunc
}

func (s *stubClient) Crawl(context.Context, CrawlRequest) (*CrawlResponse, error) {
	return nil, nil
}

func (s *stubClient) GetCrawlStatus(ctx context.Context, id string) (*CrawlStatusResponse, error) {
	return s.status(ctx, id)
}

func (s *stubClient) Scrape(context.Context, ScrapeRequest) (*ScrapeResponse, error) {
	return nil, nil
}

func TestPollCrawl_CompletesImmediately(t *testing.T) {
	c := &stubClient{status: func(context.Context, string) (*CrawlStatusResponse, error) {
		return &CrawlStatusResponse{Status: "completed", Total: 1, Data: []PageData{{Markdown: "# Home"}}}, nil
	}}

	resp, err := PollCrawl(context.Background(), c, "crawl-123", WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)
}

func TestPollCrawl_CompletesAfterScraping(t *testing.T) {
	var calls atomic.Int32
	c := &stubClient{status: func(context.Context, string) (*CrawlStatusResponse, error) {
		if calls.Add(1) < 3 {
			return &CrawlStatusResponse{Status: "scraping"}, nil
		}
		return &CrawlStatusResponse{Status: "completed"}, nil
	}}

	resp, err := PollCrawl(context.Background(), c, "crawl-123",
		WithPollInterval(time.Millisecond), WithPollCap(2*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPollCrawl_Failed(t *testing.T) {
	for _, status := range []string{"failed", "cancelled"} {
		t.Run(status, func(t *testing.T) {
			c := &stubClient{status: func(context.Context, string) (*CrawlStatusResponse, error) {
				return &CrawlStatusResponse{Status: status}, nil
			}}
			_, err := PollCrawl(context.Background(), c, "crawl-9", WithPollInterval(time.Millisecond))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "crawl crawl-9 "+status)
		})
	}
}

func TestPollCrawl_StatusError(t *testing.T) {
	c := &stubClient{status: func(context.Context, string) (*CrawlStatusResponse, error) {
		return nil, errors.New("boom")
	}}
	_, err := PollCrawl(context.Background(), c, "crawl-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll crawl crawl-1")
}

func TestPollCrawl_Timeout(t *testing.T) {
	c := &stubClient{status: func(context.Context, string) (*CrawlStatusResponse, error) {
		return &CrawlStatusResponse{Status: "scraping"}, nil
	}}
	_, err := PollCrawl(context.Background(), c, "crawl-1",
		WithPollInterval(5*time.Millisecond), WithPollTimeout(20*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
