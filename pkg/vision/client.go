// Package vision provides document text detection via the Google Cloud
// Vision REST API.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/scribelab/pdfscribe/pkg/googleauth"
)

const defaultBaseURL = "https://vision.googleapis.com"

// Client performs Vision API text detection.
type Client interface {
	// Annotate runs DOCUMENT_TEXT_DETECTION on the image and returns the
	// full detected text. An image with no detectable text yields "".
	Annotate(ctx context.Context, image []byte, languageHint string) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithAPIKey authenticates requests with an API key.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

// WithTokenSource authenticates requests with OAuth2 bearer tokens.
func WithTokenSource(ts googleauth.TokenSource) Option {
	return func(c *httpClient) {
		c.tokens = ts
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	tokens  googleauth.TokenSource
	http    *http.Client
}

// NewClient creates a Vision API client. Exactly one of WithAPIKey or
// WithTokenSource must be supplied.
func NewClient(opts ...Option) (Client, error) {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	if (c.apiKey == "") == (c.tokens == nil) {
		return nil, eris.New("vision: exactly one of API key or token source required")
	}
	return c, nil
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image        imagePayload  `json:"image"`
	Features     []feature     `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imagePayload struct {
	Content string `json:"content"`
}

type feature struct {
	Type string `json:"type"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

func (c *httpClient) Annotate(ctx context.Context, image []byte, languageHint string) (string, error) {
	entry := annotateEntry{
		Image:    imagePayload{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
	}
	if languageHint != "" {
		entry.ImageContext = &imageContext{LanguageHints: []string{languageHint}}
	}

	body, err := json.Marshal(annotateRequest{Requests: []annotateEntry{entry}})
	if err != nil {
		return "", eris.Wrap(err, "vision: marshal request")
	}

	endpoint := c.baseURL + "/v1/images:annotate"
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "vision: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return "", eris.Wrap(err, "vision: acquire token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "vision: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "vision: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("vision: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result annotateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", eris.Wrap(err, "vision: unmarshal response")
	}

	// A structurally valid reply with no responses means no text was found.
	if len(result.Responses) == 0 {
		return "", nil
	}
	r := result.Responses[0]
	if r.Error != nil {
		return "", eris.Errorf("vision: annotate error: %s", r.Error.Message)
	}
	return r.FullTextAnnotation.Text, nil
}
