package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/resilience"
	"github.com/sells-group/geo-cli/pkg/anthropic"
	"github.com/sells-group/geo-cli/pkg/google"
	"github.com/sells-group/geo-cli/pkg/openai"
	"github.com/sells-group/geo-cli/pkg/perplexity"
)

// ErrEmptyAnswer is returned when a provider responds without any text.
var ErrEmptyAnswer = eris.New("llm: empty answer")

// OpenAI queries the chat completions API.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAI wraps an OpenAI client.
func NewOpenAI(client openai.Client, model string, maxTokens int) *OpenAI {
	return &OpenAI{client: client, model: model, maxTokens: maxTokens}
}

// ID returns the provider id.
func (p *OpenAI) ID() model.ProviderID { return model.ProviderOpenAI }

// Query sends prompt as a single user message.
func (p *OpenAI) Query(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Complete(ctx, openai.CompletionRequest{
		Model:     p.model,
		Prompt:    prompt,
		MaxTokens: int64(p.maxTokens),
	})
	if err != nil {
		return "", resilience.FromStatus(err, openai.StatusCode(err))
	}
	return nonEmpty(resp.Content)
}

// Anthropic queries the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic wraps an Anthropic client.
func NewAnthropic(client anthropic.Client, model string, maxTokens int) *Anthropic {
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

// ID returns the provider id.
func (p *Anthropic) ID() model.ProviderID { return model.ProviderAnthropic }

// Query sends prompt as a single user message.
func (p *Anthropic) Query(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: int64(p.maxTokens),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", resilience.FromStatus(err, anthropic.StatusCode(err))
	}
	resp.Usage.LogCost(p.model, "probe")
	return nonEmpty(resp.Text())
}

// Gemini queries the Google generateContent API.
type Gemini struct {
	client    google.Client
	model     string
	maxTokens int
}

// NewGemini wraps a Gemini client.
func NewGemini(client google.Client, model string, maxTokens int) *Gemini {
	return &Gemini{client: client, model: model, maxTokens: maxTokens}
}

// ID returns the provider id.
func (p *Gemini) ID() model.ProviderID { return model.ProviderGoogle }

// Query sends prompt as a single user turn.
func (p *Gemini) Query(ctx context.Context, prompt string) (string, error) {
	req := google.UserText(prompt, p.maxTokens)
	req.Model = p.model
	resp, err := p.client.GenerateContent(ctx, req)
	if err != nil {
		var apiErr *google.APIError
		if errors.As(err, &apiErr) {
			return "", resilience.FromStatus(err, apiErr.StatusCode)
		}
		return "", err
	}
	return nonEmpty(resp.Text())
}

// Perplexity queries the Perplexity chat completions API.
type Perplexity struct {
	client    perplexity.Client
	model     string
	maxTokens int
}

// NewPerplexity wraps a Perplexity client.
func NewPerplexity(client perplexity.Client, model string, maxTokens int) *Perplexity {
	return &Perplexity{client: client, model: model, maxTokens: maxTokens}
}

// ID returns the provider id.
func (p *Perplexity) ID() model.ProviderID { return model.ProviderPerplexity }

// Query sends prompt as a single user message.
func (p *Perplexity) Query(ctx context.Context, prompt string) (string, error) {
	maxTokens := p.maxTokens
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:     p.model,
		Messages:  []perplexity.Message{{Role: "user", Content: prompt}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		var apiErr *perplexity.APIError
		if errors.As(err, &apiErr) {
			return "", resilience.FromStatus(err, apiErr.StatusCode)
		}
		return "", err
	}
	return nonEmpty(resp.Content())
}

func nonEmpty(s string) (string, error) {
	if s == "" {
		return "", ErrEmptyAnswer
	}
	return s, nil
}
