package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func failing(context.Context) error { return errUpstream }

func execute(ctx context.Context, b *Breaker, fn func(context.Context) error) error {
	_, err := ExecuteVal(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
func passing(context.Context) error { return nil }

func TestBreaker_OpensAfterTrips(t *testing.T) {
	b := NewBreaker("openai", BreakerConfig{Trips: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, execute(ctx, b, failing), errUpstream)
	}
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := execute(ctx, b, func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, eris.Is(err, ErrBreakerOpen))
	assert.Contains(t, err.Error(), "openai")
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker("google", BreakerConfig{Trips: 2, Cooldown: time.Minute})
	ctx := context.Background()

	_ = execute(ctx, b, failing)
	require.NoError(t, execute(ctx, b, passing))
	_ = execute(ctx, b, failing)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	now := time.Now()
	b := NewBreaker("perplexity", BreakerConfig{Trips: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = execute(ctx, b, failing)
	assert.Equal(t, BreakerOpen, b.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, BreakerHalfOpen, b.State())

	// A failed trial call reopens immediately.
	_ = execute(ctx, b, failing)
	assert.Equal(t, BreakerOpen, b.State())

	now = now.Add(11 * time.Second)
	require.NoError(t, execute(ctx, b, passing))
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_CountsFilter(t *testing.T) {
	b := NewBreaker("anthropic", BreakerConfig{Trips: 1, Counts: IsTransient})
	_ = execute(context.Background(), b, func(context.Context) error { return errors.New("bad request") })
	assert.Equal(t, BreakerClosed, b.State())

	_ = execute(context.Background(), b, func(context.Context) error {
		return NewTransientError(errors.New("overloaded"), 529)
	})
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_OnChange(t *testing.T) {
	var got []string
	b := NewBreaker("openai", BreakerConfig{Trips: 1, OnChange: func(name string, from, to BreakerState) {
		got = append(got, name+":"+from.String()+"->"+to.String())
	}})
	_ = execute(context.Background(), b, failing)
	assert.Equal(t, []string{"openai:closed->open"}, got)
}

func TestExecuteVal(t *testing.T) {
	b := NewBreaker("openai", BreakerConfig{})
	v, err := ExecuteVal(context.Background(), b, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestBreakers_GetAndStates(t *testing.T) {
	r := NewBreakers(BreakerConfig{Trips: 1})
	a := r.Get("openai")
	assert.Same(t, a, r.Get("openai"))

	_ = execute(context.Background(), r.Get("google"), failing)
	assert.Equal(t, BreakerClosed, r.Get("openai").State())
	assert.Equal(t, BreakerOpen, r.Get("google").State())
}

func TestBreaker_Concurrent(t *testing.T) {
	b := NewBreaker("openai", BreakerConfig{Trips: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = execute(context.Background(), b, failing)
			} else {
				_ = execute(context.Background(), b, passing)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
