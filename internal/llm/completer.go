package llm

import (
	"context"

	"github.com/sells-group/geo-cli/internal/resilience"
	"github.com/sells-group/geo-cli/pkg/anthropic"
)

// Completer runs the generative sub-calls of the analysis stages (profile,
// questions, competitors, recommendations).
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// AnthropicCompleter implements Completer on the Messages API with retries.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
	retry  resilience.RetryPolicy
}

// NewAnthropicCompleter creates a Completer for model.
func NewAnthropicCompleter(client anthropic.Client, model string, retry resilience.RetryPolicy) *AnthropicCompleter {
	retry.OnRetry = resilience.RetryLogger("anthropic", "complete")
	return &AnthropicCompleter{client: client, model: model, retry: retry}
}

// Complete returns the text of a single-turn completion at temperature 0.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   int64(maxTokens),
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		resp, err := c.client.CreateMessage(ctx, req)
		if err != nil {
			return nil, resilience.FromStatus(err, anthropic.StatusCode(err))
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(c.model, "analysis")
	return nonEmpty(resp.Text())
}
