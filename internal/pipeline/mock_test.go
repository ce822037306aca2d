package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/geo-cli/internal/lock"
	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/store"
)

// --- Crawler Mock ---

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) Crawl(ctx context.Context, siteURL string, maxPages int) (*model.CrawlResult, error) {
	args := m.Called(ctx, siteURL, maxPages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CrawlResult), args.Error(1)
}

// --- Querier Stub ---

type stubQuerier struct {
	providers []model.ProviderID
	answers   map[model.ProviderID]string
	// onQuery runs before each answer set is returned.
	onQuery func(prompt string)

	mu      sync.Mutex
	prompts []string
}

func (s *stubQuerier) Providers() []model.ProviderID { return s.providers }

func (s *stubQuerier) QueryAll(_ context.Context, prompt string) map[model.ProviderID]string {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.onQuery != nil {
		s.onQuery(prompt)
	}
	out := make(map[model.ProviderID]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// --- Traced Provider ---

type callEvent struct {
	prompt string
	start  bool
}

// callTrace records provider calls. Each call waits, up to a second, until
// want calls for the same prompt have started.
type callTrace struct {
	want int

	mu          sync.Mutex
	events      []callEvent
	started     map[string]int
	inFlight    int
	maxInFlight int
}

func (c *callTrace) enter(prompt string) {
	c.mu.Lock()
	if c.started == nil {
		c.started = make(map[string]int)
	}
	c.events = append(c.events, callEvent{prompt: prompt, start: true})
	c.started[prompt]++
	c.inFlight++
	c.maxInFlight = max(c.maxInFlight, c.inFlight)
	c.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		n := c.started[prompt]
		c.mu.Unlock()
		if n >= c.want {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *callTrace) exit(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, callEvent{prompt: prompt})
	c.inFlight--
}

func (c *callTrace) snapshot() []callEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]callEvent(nil), c.events...)
}

type traceProvider struct {
	id     model.ProviderID
	answer string
	trace  *callTrace
}

func (p *traceProvider) ID() model.ProviderID { return p.id }

func (p *traceProvider) Query(_ context.Context, prompt string) (string, error) {
	p.trace.enter(prompt)
	defer p.trace.exit(prompt)
	return p.answer, nil
}

// --- Completer Stub ---

// budgetCompleter answers by the maxTokens of the call, which identifies
// the analysis stage asking.
type budgetCompleter map[int]string

func (b budgetCompleter) Complete(_ context.Context, _, _ string, maxTokens int) (string, error) {
	return b[maxTokens], nil
}

// --- Recording Store ---

// recordingStore wraps a real store and records every progress write.
type recordingStore struct {
	store.Store

	mu      sync.Mutex
	updates []model.ProgressUpdate
}

func (r *recordingStore) StartAnalysis(ctx context.Context, id string, u model.ProgressUpdate) (*model.Analysis, error) {
	r.record(u)
	return r.Store.StartAnalysis(ctx, id, u)
}

func (r *recordingStore) UpdateProgress(ctx context.Context, id string, u model.ProgressUpdate) error {
	r.record(u)
	return r.Store.UpdateProgress(ctx, id, u)
}

func (r *recordingStore) record(u model.ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recordingStore) progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.Progress
	}
	return out
}

func (r *recordingStore) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.CurrentStep
	}
	return out
}

// --- Locker Stub ---

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string, time.Duration) (lock.ReleaseFunc, error) {
	return nil, lock.ErrLocked
}
