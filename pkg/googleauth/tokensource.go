// Package googleauth exchanges service-account credentials for Google OAuth2
// access tokens via the JWT bearer grant.
package googleauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

const (
	defaultTokenEndpoint = "https://oauth2.googleapis.com/token"
	cloudPlatformScope   = "https://www.googleapis.com/auth/cloud-platform"

	// Tokens within this margin of expiry are treated as expired so a
	// request never goes out with a token about to lapse mid-flight.
	expirySkew = 60 * time.Second

	assertionLifetime = time.Hour
)

// TokenSource provides cached OAuth2 access tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Option configures the token source.
type Option func(*jwtSource)

// WithEndpoint overrides the OAuth2 token endpoint.
func WithEndpoint(endpoint string) Option {
	return func(s *jwtSource) {
		s.endpoint = endpoint
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *jwtSource) {
		s.http = hc
	}
}

// WithClock overrides the time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(s *jwtSource) {
		s.now = now
	}
}

type jwtSource struct {
	keyFile  string
	endpoint string
	http     *http.Client
	now      func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource creates a TokenSource backed by the service-account JSON
// key file at keyFile. The file is read lazily on the first Token call.
func NewTokenSource(keyFile string, opts ...Option) TokenSource {
	s := &jwtSource{
		keyFile:  keyFile,
		endpoint: defaultTokenEndpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Token returns a cached access token, minting a fresh one when the cached
// token is absent or expires within the skew window.
func (s *jwtSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.expiry.After(s.now().Add(expirySkew)) {
		return s.token, nil
	}

	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}

	token, expiresIn, err := s.exchange(ctx, assertion)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiry = s.now().Add(time.Duration(expiresIn) * time.Second)
	return s.token, nil
}

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

func (s *jwtSource) signAssertion() (string, error) {
	raw, err := os.ReadFile(s.keyFile)
	if err != nil {
		return "", eris.Wrap(err, "googleauth: read service account file")
	}

	var key serviceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return "", eris.Wrap(err, "googleauth: parse service account file")
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return "", eris.New("googleauth: service account file missing client_email or private_key")
	}

	rsaKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return "", eris.Wrap(err, "googleauth: parse private key")
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":   key.ClientEmail,
		"scope": cloudPlatformScope,
		"aud":   defaultTokenEndpoint,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(rsaKey)
	if err != nil {
		return "", eris.Wrap(err, "googleauth: sign assertion")
	}
	return assertion, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *jwtSource) exchange(ctx context.Context, assertion string) (string, int, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, eris.Wrap(err, "googleauth: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", 0, eris.Wrap(err, "googleauth: send token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, eris.Wrap(err, "googleauth: read token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, eris.Errorf("googleauth: token endpoint status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, eris.Wrap(err, "googleauth: unmarshal token response")
	}
	if tr.AccessToken == "" {
		return "", 0, eris.New("googleauth: token response missing access_token")
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = 3600
	}
	return tr.AccessToken, tr.ExpiresIn, nil
}
