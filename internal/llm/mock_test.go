package llm

import (
	"context"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/pkg/openai"
)

// --- Provider Mock ---

type mockProvider struct {
	mock.Mock
	id model.ProviderID
}

func newMockProvider(id model.ProviderID) *mockProvider {
	return &mockProvider{id: id}
}

func (m *mockProvider) ID() model.ProviderID { return m.id }

func (m *mockProvider) Query(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// --- Blocking Provider ---

// gatedProvider reports each call on entered and answers once release is
// closed.
type gatedProvider struct {
	id      model.ProviderID
	entered chan<- model.ProviderID
	release <-chan struct{}

	inFlight    *atomic.Int32
	maxInFlight *atomic.Int32
}

func (g *gatedProvider) ID() model.ProviderID { return g.id }

func (g *gatedProvider) Query(ctx context.Context, _ string) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		m := g.maxInFlight.Load()
		if n <= m || g.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	g.entered <- g.id
	select {
	case <-g.release:
		return "answer from " + string(g.id), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// --- OpenAI Mock ---

type mockOpenAIClient struct {
	mock.Mock
}

func (m *mockOpenAIClient) Complete(ctx context.Context, req openai.CompletionRequest) (*openai.CompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.CompletionResponse), args.Error(1)
}
