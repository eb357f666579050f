// Package chat sends OCR text batches to an LLM provider for rewriting.
package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Provider identifies a chat-completions API dialect.
type Provider string

const (
	ProviderOpenAI     Provider = "OpenAI"
	ProviderOpenRouter Provider = "OpenRouter"

	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is used when the provider string names no model.
	DefaultModel = "gpt-4o"

	systemPrompt = "You are an expert assistant."
)

// ParseProvider splits a "<Provider>: <model>" selection string. A bare
// provider name selects the default model.
func ParseProvider(s string) (Provider, string, error) {
	name, model := s, ""
	if i := strings.Index(s, ":"); i >= 0 {
		name = strings.TrimSpace(s[:i])
		model = strings.TrimSpace(s[i+1:])
	} else {
		name = strings.TrimSpace(s)
	}
	if model == "" {
		model = DefaultModel
	}

	switch Provider(name) {
	case ProviderOpenAI, ProviderOpenRouter:
		return Provider(name), model, nil
	default:
		return "", "", eris.Errorf("chat: unknown provider %q", name)
	}
}

// Client transforms text chunks via chat completions.
type Client interface {
	Transform(ctx context.Context, chunk, batchLabel, prompt string) (string, error)
}

// Option configures the client.
type Option func(*llmClient)

// WithBaseURL overrides the provider's API base URL.
func WithBaseURL(u string) Option {
	return func(c *llmClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *llmClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit for completion calls.
func WithRateLimit(rps float64) Option {
	return func(c *llmClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type llmClient struct {
	api     *openai.Client
	model   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a chat client for the given provider selection string.
func NewClient(providerSpec, apiKey string, opts ...Option) (Client, error) {
	provider, model, err := ParseProvider(providerSpec)
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		return nil, eris.New("chat: API key required")
	}

	c := &llmClient{model: model}
	switch provider {
	case ProviderOpenRouter:
		c.baseURL = openRouterBaseURL
	default:
		c.baseURL = openAIBaseURL
	}
	for _, o := range opts {
		o(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	if c.http != nil {
		cfg.HTTPClient = c.http
	}
	c.api = openai.NewClientWithConfig(cfg)
	return c, nil
}

// Transform sends one text chunk through the model. batchLabel annotates the
// chunk's position, e.g. "(Batch 2 of 3)".
func (c *llmClient) Transform(ctx context.Context, chunk, batchLabel, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "chat: rate limit")
		}
	}

	user := fmt.Sprintf("%s\n\nPlease process the following text content %s:\n\n---\n%s\n---", prompt, batchLabel, chunk)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "chat: create completion")
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
