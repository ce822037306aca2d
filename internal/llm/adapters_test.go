package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/resilience"
	"github.com/sells-group/geo-cli/pkg/anthropic"
	anthropicmocks "github.com/sells-group/geo-cli/pkg/anthropic/mocks"
	"github.com/sells-group/geo-cli/pkg/google"
	"github.com/sells-group/geo-cli/pkg/openai"
	"github.com/sells-group/geo-cli/pkg/perplexity"
)

func TestOpenAI_Query(t *testing.T) {
	client := &mockOpenAIClient{}
	client.On("Complete", mock.Anything, openai.CompletionRequest{
		Model:     "gpt-4o-mini",
		Prompt:    "who is best?",
		MaxTokens: 1000,
	}).Return(&openai.CompletionResponse{Content: "Acme"}, nil)

	p := NewOpenAI(client, "gpt-4o-mini", 1000)
	got, err := p.Query(context.Background(), "who is best?")

	require.NoError(t, err)
	assert.Equal(t, "Acme", got)
	assert.Equal(t, model.ProviderOpenAI, p.ID())
	client.AssertExpectations(t)
}

func TestOpenAI_EmptyContent(t *testing.T) {
	client := &mockOpenAIClient{}
	client.On("Complete", mock.Anything, mock.Anything).Return(&openai.CompletionResponse{}, nil)

	_, err := NewOpenAI(client, "m", 10).Query(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestAnthropic_Query(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-3-haiku-20240307" &&
			req.MaxTokens == 1000 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Role == "user" &&
			req.Messages[0].Content == "q"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Claude says Acme"}},
	}, nil)

	got, err := NewAnthropic(client, "claude-3-haiku-20240307", 1000).Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Claude says Acme", got)
}

func TestAnthropic_ErrorPassesThrough(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: refused"))

	_, err := NewAnthropic(client, "m", 10).Query(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestGemini_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Gemini likes Acme"}]}}]}`))
	}))
	defer srv.Close()

	client := google.NewClient("key", google.WithBaseURL(srv.URL))
	got, err := NewGemini(client, "gemini-1.5-flash", 500).Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Gemini likes Acme", got)
}

func TestGemini_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := google.NewClient("key", google.WithBaseURL(srv.URL))
	_, err := NewGemini(client, "gemini-1.5-flash", 500).Query(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestPerplexity_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req perplexity.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sonar", req.Model)
		require.NotNil(t, req.MaxTokens)
		assert.Equal(t, 1000, *req.MaxTokens)
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Perplexity: Acme"}}]}`))
	}))
	defer srv.Close()

	client := perplexity.NewClient("key", perplexity.WithBaseURL(srv.URL))
	got, err := NewPerplexity(client, "sonar", 1000).Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Perplexity: Acme", got)
}

func TestPerplexity_PermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := perplexity.NewClient("key", perplexity.WithBaseURL(srv.URL))
	_, err := NewPerplexity(client, "sonar", 1000).Query(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestAnthropicCompleter_RetriesThenSucceeds(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.System == "sys" && req.Temperature != nil && *req.Temperature == 0
	})).Return(nil, resilience.NewTransientError(errors.New("overloaded"), 529)).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"ok":true}`}},
	}, nil).Once()

	c := NewAnthropicCompleter(client, "claude-3-haiku-20240307", fastRetry())
	got, err := c.Complete(context.Background(), "sys", "prompt", 2000)

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got)
}
