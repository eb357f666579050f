package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in       string
		provider Provider
		model    string
		wantErr  bool
	}{
		{"OpenAI: gpt-4o", ProviderOpenAI, "gpt-4o", false},
		{"OpenAI: gpt-4o-mini", ProviderOpenAI, "gpt-4o-mini", false},
		{"OpenRouter: meta-llama/llama-3-70b", ProviderOpenRouter, "meta-llama/llama-3-70b", false},
		{"OpenAI", ProviderOpenAI, "gpt-4o", false},
		{"OpenAI:", ProviderOpenAI, "gpt-4o", false},
		{"Anthropic: claude", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, m, err := ParseProvider(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p)
			assert.Equal(t, tt.model, m)
		})
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("OpenAI: gpt-4o", "")
	assert.Error(t, err)
}

func TestTransform_MessageShape(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": "cleaned text"}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient("OpenAI: gpt-4o", "sk-test", WithBaseURL(srv.URL))
	require.NoError(t, err)

	out, err := c.Transform(context.Background(), "raw ocr text", "(Batch 1 of 2)", "Fix the OCR errors.")
	require.NoError(t, err)
	assert.Equal(t, "cleaned text", out)

	assert.Equal(t, "gpt-4o", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "You are an expert assistant.", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t,
		"Fix the OCR errors.\n\nPlease process the following text content (Batch 1 of 2):\n\n---\nraw ocr text\n---",
		captured.Messages[1].Content)
}

func TestTransform_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c, err := NewClient("OpenAI", "sk-test", WithBaseURL(srv.URL))
	require.NoError(t, err)

	out, err := c.Transform(context.Background(), "text", "(Batch 1 of 1)", "prompt")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTransform_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient("OpenRouter: some/model", "sk-bad", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Transform(context.Background(), "text", "(Batch 1 of 1)", "prompt")
	assert.Error(t, err)
}

func TestTransform_RateLimitCancellable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient("OpenAI", "sk-test", WithBaseURL(srv.URL), WithRateLimit(0.001))
	require.NoError(t, err)

	// First call consumes the burst token; second blocks on the limiter
	// until the context is cancelled.
	_, err = c.Transform(context.Background(), "a", "(Batch 1 of 2)", "p")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Transform(ctx, "b", "(Batch 2 of 2)", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
