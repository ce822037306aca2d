package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasModel := body["model"]
		assert.False(t, hasModel)
		cfg := body["generationConfig"].(map[string]any)
		assert.EqualValues(t, 1000, cfg["maxOutputTokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Acme "}, {"text": "is reputable."}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 4}
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.GenerateContent(context.Background(), UserText("Who is Acme?", 1000))
	require.NoError(t, err)
	assert.Equal(t, "Acme is reputable.", resp.Text())
	assert.Equal(t, 4, resp.UsageMetadata.CandidatesTokenCount)
}

func TestGenerateContent_ModelOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithModel("gemini-2.0-flash"))
	resp, err := client.GenerateContent(context.Background(), UserText("q", 0))
	require.NoError(t, err)
	assert.Empty(t, resp.Text())
}

func TestGenerateContent_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded"}}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	_, err := client.GenerateContent(context.Background(), UserText("q", 10))
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestGenerateContent_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).GenerateContent(context.Background(), UserText("q", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestUserText_NoLimit(t *testing.T) {
	req := UserText("hello", 0)
	assert.Nil(t, req.GenerationConfig)
	require.Len(t, req.Contents, 1)
	assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)
}
