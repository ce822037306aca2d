package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/resilience"
)

func fastRetry() resilience.RetryPolicy {
	return resilience.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Factor: 2}
}

func TestQueryAll_AllProvidersAnswer(t *testing.T) {
	oa := newMockProvider(model.ProviderOpenAI)
	an := newMockProvider(model.ProviderAnthropic)
	oa.On("Query", mock.Anything, "best seo agency?").Return("Try Acme.", nil)
	an.On("Query", mock.Anything, "best seo agency?").Return("Globex is good.", nil)

	f := NewFanOut([]Provider{oa, an}, FanOutConfig{Retry: fastRetry()})
	got := f.QueryAll(context.Background(), "best seo agency?")

	assert.Equal(t, map[model.ProviderID]string{
		model.ProviderOpenAI:    "Try Acme.",
		model.ProviderAnthropic: "Globex is good.",
	}, got)
	oa.AssertExpectations(t)
	an.AssertExpectations(t)
}

func TestQueryAll_FailingProviderYieldsEmpty(t *testing.T) {
	oa := newMockProvider(model.ProviderOpenAI)
	gg := newMockProvider(model.ProviderGoogle)
	pp := newMockProvider(model.ProviderPerplexity)
	oa.On("Query", mock.Anything, mock.Anything).Return("answer", nil)
	gg.On("Query", mock.Anything, mock.Anything).Return("", errors.New("invalid api key")).Once()
	pp.On("Query", mock.Anything, mock.Anything).Return("", ErrEmptyAnswer).Once()

	f := NewFanOut([]Provider{oa, gg, pp}, FanOutConfig{Retry: fastRetry()})
	got := f.QueryAll(context.Background(), "q")

	require.Len(t, got, 3)
	assert.Equal(t, "answer", got[model.ProviderOpenAI])
	assert.Empty(t, got[model.ProviderGoogle])
	assert.Empty(t, got[model.ProviderPerplexity])
	// Permanent and empty failures are not retried.
	gg.AssertNumberOfCalls(t, "Query", 1)
	pp.AssertNumberOfCalls(t, "Query", 1)
}

func TestQueryAll_RetriesTransientErrors(t *testing.T) {
	an := newMockProvider(model.ProviderAnthropic)
	an.On("Query", mock.Anything, "q").
		Return("", resilience.NewTransientError(errors.New("overloaded"), 529)).Once()
	an.On("Query", mock.Anything, "q").Return("recovered", nil).Once()

	f := NewFanOut([]Provider{an}, FanOutConfig{Retry: fastRetry()})
	got := f.QueryAll(context.Background(), "q")

	assert.Equal(t, "recovered", got[model.ProviderAnthropic])
	an.AssertNumberOfCalls(t, "Query", 2)
}

func TestQueryAll_TimeoutYieldsEmpty(t *testing.T) {
	slow := newMockProvider(model.ProviderGoogle)
	slow.On("Query", mock.Anything, "q").Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return("", context.DeadlineExceeded)
	fast := newMockProvider(model.ProviderOpenAI)
	fast.On("Query", mock.Anything, "q").Return("quick", nil)

	f := NewFanOut([]Provider{fast, slow}, FanOutConfig{Timeout: 20 * time.Millisecond, Retry: fastRetry()})

	start := time.Now()
	got := f.QueryAll(context.Background(), "q")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "quick", got[model.ProviderOpenAI])
	assert.Empty(t, got[model.ProviderGoogle])
	_, ok := got[model.ProviderGoogle]
	assert.True(t, ok)
}

func TestQueryAll_BreakerStopsCallingFailingProvider(t *testing.T) {
	pp := newMockProvider(model.ProviderPerplexity)
	pp.On("Query", mock.Anything, mock.Anything).Return("", errors.New("bad request"))

	var transitions []resilience.BreakerState
	f := NewFanOut([]Provider{pp}, FanOutConfig{
		Retry: fastRetry(),
		Breaker: resilience.BreakerConfig{
			Trips:    1,
			Cooldown: time.Hour,
			OnChange: func(_ string, _, to resilience.BreakerState) { transitions = append(transitions, to) },
		},
	})

	f.QueryAll(context.Background(), "q1")
	got := f.QueryAll(context.Background(), "q2")

	assert.Empty(t, got[model.ProviderPerplexity])
	pp.AssertNumberOfCalls(t, "Query", 1)
	assert.Equal(t, []resilience.BreakerState{resilience.BreakerOpen}, transitions)
}

func TestQueryAll_ProvidersRunConcurrently(t *testing.T) {
	ids := []model.ProviderID{model.ProviderOpenAI, model.ProviderAnthropic, model.ProviderGoogle, model.ProviderPerplexity}
	entered := make(chan model.ProviderID, len(ids))
	release := make(chan struct{})
	var inFlight, maxInFlight atomic.Int32

	providers := make([]Provider, len(ids))
	for i, id := range ids {
		providers[i] = &gatedProvider{id: id, entered: entered, release: release, inFlight: &inFlight, maxInFlight: &maxInFlight}
	}
	f := NewFanOut(providers, FanOutConfig{Timeout: 5 * time.Second, Retry: fastRetry()})

	done := make(chan map[model.ProviderID]string, 1)
	go func() { done <- f.QueryAll(context.Background(), "q") }()

	// Every provider must be inside Query before any is released.
	seen := make(map[model.ProviderID]bool)
	for range ids {
		select {
		case id := <-entered:
			seen[id] = true
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatalf("only %d of %d providers entered before release", len(seen), len(ids))
		}
	}
	close(release)

	got := <-done
	assert.Len(t, seen, len(ids))
	assert.Equal(t, int32(len(ids)), maxInFlight.Load())
	for _, id := range ids {
		assert.Equal(t, "answer from "+string(id), got[id])
	}
}

func TestQueryAll_PanickingProviderYieldsEmpty(t *testing.T) {
	bad := newMockProvider(model.ProviderGoogle)
	bad.On("Query", mock.Anything, "q").Run(func(mock.Arguments) {
		panic("nil client")
	}).Return("", nil)
	good := newMockProvider(model.ProviderOpenAI)
	good.On("Query", mock.Anything, "q").Return("fine", nil)

	f := NewFanOut([]Provider{good, bad}, FanOutConfig{Retry: fastRetry()})

	var got map[model.ProviderID]string
	require.NotPanics(t, func() { got = f.QueryAll(context.Background(), "q") })
	assert.Equal(t, "fine", got[model.ProviderOpenAI])
	v, ok := got[model.ProviderGoogle]
	assert.True(t, ok)
	assert.Empty(t, v)
	bad.AssertNumberOfCalls(t, "Query", 1)
}

func TestCallProvider_RecoversPanic(t *testing.T) {
	p := newMockProvider(model.ProviderPerplexity)
	p.On("Query", mock.Anything, "q").Run(func(mock.Arguments) { panic("boom") }).Return("", nil)

	answer, err := callProvider(context.Background(), p, "q")
	assert.Empty(t, answer)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrProviderPanic))
	assert.Contains(t, err.Error(), "boom")
}

func TestQueryAll_NoProviders(t *testing.T) {
	f := NewFanOut(nil, FanOutConfig{})
	assert.Empty(t, f.QueryAll(context.Background(), "q"))
	assert.Empty(t, f.Providers())
}

func TestProviders_PreservesOrder(t *testing.T) {
	f := NewFanOut([]Provider{
		newMockProvider(model.ProviderPerplexity),
		newMockProvider(model.ProviderOpenAI),
	}, FanOutConfig{})
	assert.Equal(t, []model.ProviderID{model.ProviderPerplexity, model.ProviderOpenAI}, f.Providers())
}

func TestLookup(t *testing.T) {
	assert.Equal(t, Info{ID: model.ProviderOpenAI, DisplayName: "ChatGPT", Color: "#10a37f"}, Lookup(model.ProviderOpenAI))
	assert.Equal(t, "#20b2aa", Lookup(model.ProviderPerplexity).Color)
	assert.Equal(t, "bing", Lookup("bing").DisplayName)
}
