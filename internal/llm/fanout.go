package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/geo-cli/internal/metrics"
	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/resilience"
)

// ErrProviderPanic marks a provider call that panicked.
var ErrProviderPanic = eris.New("llm: provider panicked")

// FanOutConfig bounds each provider call.
type FanOutConfig struct {
	// Timeout caps one provider call including retries. Zero means 60s.
	Timeout time.Duration
	// RatePerSec limits requests per provider. Zero or less disables it.
	RatePerSec float64
	Retry      resilience.RetryPolicy
	Breaker    resilience.BreakerConfig
}

// FanOut queries every configured provider concurrently.
type FanOut struct {
	providers []Provider
	limiters  map[model.ProviderID]*rate.Limiter
	breakers  *resilience.Breakers
	retry     resilience.RetryPolicy
	timeout   time.Duration
}

// NewFanOut builds a fan-out over providers in the given order.
func NewFanOut(providers []Provider, cfg FanOutConfig) *FanOut {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	limiters := make(map[model.ProviderID]*rate.Limiter, len(providers))
	for _, p := range providers {
		limiters[p.ID()] = rate.NewLimiter(limit, 1)
	}

	bcfg := cfg.Breaker
	if bcfg.Counts == nil {
		bcfg.Counts = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}
	onChange := bcfg.OnChange
	bcfg.OnChange = func(name string, from, to resilience.BreakerState) {
		metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		zap.L().Warn("llm: provider breaker state changed",
			zap.String("provider", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		if onChange != nil {
			onChange(name, from, to)
		}
	}

	return &FanOut{
		providers: providers,
		limiters:  limiters,
		breakers:  resilience.NewBreakers(bcfg),
		retry:     cfg.Retry,
		timeout:   cfg.Timeout,
	}
}

// Providers returns the configured provider ids in order.
func (f *FanOut) Providers() []model.ProviderID {
	ids := make([]model.ProviderID, len(f.providers))
	for i, p := range f.providers {
		ids[i] = p.ID()
	}
	return ids
}

// QueryAll sends prompt to every provider and waits for all of them. The
// result has an entry for every configured provider; a failed or timed-out
// call maps to "". QueryAll never fails.
func (f *FanOut) QueryAll(ctx context.Context, prompt string) map[model.ProviderID]string {
	answers := make([]string, len(f.providers))

	var g errgroup.Group
	g.SetLimit(max(len(f.providers), 1))
	for i, p := range f.providers {
		g.Go(func() error {
			answers[i] = f.query(ctx, p, prompt)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[model.ProviderID]string, len(f.providers))
	for i, p := range f.providers {
		out[p.ID()] = answers[i]
	}
	return out
}

func (f *FanOut) query(ctx context.Context, p Provider, prompt string) string {
	id := p.ID()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	policy := f.retry
	policy.Retryable = func(err error) bool {
		return !eris.Is(err, ErrEmptyAnswer) && !eris.Is(err, ErrProviderPanic) && resilience.IsTransient(err)
	}
	policy.OnRetry = resilience.RetryLogger(string(id), "query")

	answer, err := resilience.ExecuteVal(ctx, f.breakers.Get(string(id)), func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, policy, func(ctx context.Context) (string, error) {
			if err := f.limiters[id].Wait(ctx); err != nil {
				return "", err
			}
			return callProvider(ctx, p, prompt)
		})
	})

	elapsed := time.Since(start)
	if err != nil {
		class := resilience.Classify(err)
		switch {
		case eris.Is(err, resilience.ErrBreakerOpen):
			class = "breaker_open"
		case eris.Is(err, ErrEmptyAnswer):
			class = "empty"
		case eris.Is(err, ErrProviderPanic):
			class = "panic"
		case ctx.Err() != nil:
			class = "timeout"
		}
		metrics.ProviderQueryDuration.WithLabelValues(string(id), "error").Observe(elapsed.Seconds())
		metrics.ProviderFailures.WithLabelValues(string(id), class).Inc()
		zap.L().Warn("llm: provider query failed",
			zap.String("provider", string(id)),
			zap.String("class", class),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return ""
	}

	metrics.ProviderQueryDuration.WithLabelValues(string(id), "ok").Observe(elapsed.Seconds())
	zap.L().Debug("llm: provider answered",
		zap.String("provider", string(id)),
		zap.Duration("duration", elapsed),
		zap.Int("chars", len(answer)),
	)
	return answer
}

// callProvider runs p.Query, turning a panic into ErrProviderPanic so one
// broken adapter cannot take down the run.
func callProvider(ctx context.Context, p Provider, prompt string) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			answer, err = "", eris.Wrapf(ErrProviderPanic, "%s: %v", p.ID(), r)
		}
	}()
	return p.Query(ctx, prompt)
}
