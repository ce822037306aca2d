package llm

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-cli/internal/config"
	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/resilience"
	"github.com/sells-group/geo-cli/pkg/anthropic"
	"github.com/sells-group/geo-cli/pkg/google"
	"github.com/sells-group/geo-cli/pkg/openai"
	"github.com/sells-group/geo-cli/pkg/perplexity"
)

// ProvidersFromConfig builds the enabled providers in configured order.
// The SDK clients' own retries are disabled; the fan-out retries instead.
func ProvidersFromConfig(cfg *config.Config) ([]Provider, error) {
	maxTokens := cfg.Providers.MaxTokens
	out := make([]Provider, 0, len(cfg.Providers.Enabled))
	for _, name := range cfg.Providers.Enabled {
		key := cfg.ProviderKey(name)
		if key == "" {
			return nil, eris.Errorf("llm: no api key for provider %q", name)
		}
		switch model.ProviderID(name) {
		case model.ProviderOpenAI:
			opts := []openai.Option{openai.WithModel(cfg.OpenAI.Model), openai.WithMaxRetries(0)}
			if cfg.OpenAI.BaseURL != "" {
				opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
			}
			out = append(out, NewOpenAI(openai.NewClient(key, opts...), cfg.OpenAI.Model, maxTokens))
		case model.ProviderAnthropic:
			client := anthropic.NewClient(key, anthropic.WithMaxRetries(0))
			out = append(out, NewAnthropic(client, cfg.Anthropic.QueryModel, maxTokens))
		case model.ProviderGoogle:
			opts := []google.Option{google.WithModel(cfg.Google.Model)}
			if cfg.Google.BaseURL != "" {
				opts = append(opts, google.WithBaseURL(cfg.Google.BaseURL))
			}
			client := google.NewClient(key, opts...)
			out = append(out, NewGemini(client, cfg.Google.Model, maxTokens))
		case model.ProviderPerplexity:
			opts := []perplexity.Option{perplexity.WithModel(cfg.Perplexity.Model)}
			if cfg.Perplexity.BaseURL != "" {
				opts = append(opts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
			}
			client := perplexity.NewClient(key, opts...)
			out = append(out, NewPerplexity(client, cfg.Perplexity.Model, maxTokens))
		default:
			return nil, eris.Errorf("llm: unknown provider %q", name)
		}
	}
	return out, nil
}

// FanOutFromConfig builds the provider fan-out.
func FanOutFromConfig(cfg *config.Config) (*FanOut, error) {
	providers, err := ProvidersFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewFanOut(providers, FanOutConfig{
		Timeout:    time.Duration(cfg.Providers.TimeoutSecs) * time.Second,
		RatePerSec: cfg.Providers.RatePerSec,
		Retry:      resilience.DefaultRetryPolicy().WithRetries(cfg.Providers.MaxRetries),
		Breaker:    resilience.BreakerConfig{Trips: cfg.Providers.BreakerTrips},
	}), nil
}

// CompleterFromConfig builds the analysis completer on the Anthropic
// analysis model.
func CompleterFromConfig(cfg *config.Config) (*AnthropicCompleter, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("llm: anthropic.key is required for analysis calls")
	}
	client := anthropic.NewClient(cfg.Anthropic.Key, anthropic.WithMaxRetries(0))
	return NewAnthropicCompleter(client, cfg.Anthropic.AnalysisModel, resilience.DefaultRetryPolicy()), nil
}
