package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dagforge/dagforge-go/routes"
)

const defaultUserAgent = "DagForgeSDK/1"

// Config controls how the token client talks to the DagForge API.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// Client issues token exchange and refresh requests against the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// TokenRequest carries the API key to exchange for a token pair.
type TokenRequest struct {
	APIKey string `json:"api_key"`
}

// RefreshRequest wraps the token used during refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse mirrors the backend response body.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Error conveys HTTP failures from the token endpoints.
type Error struct {
	Status int
	Body   string
}

func (e Error) Error() string {
	return fmt.Sprintf("auth: http %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// NewClient constructs a Client with sane defaults.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("auth: base url required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		baseURL:    strings.TrimSuffix(base, "/"),
		httpClient: client,
		userAgent:  ua,
	}, nil
}

// Exchange swaps an API key for access/refresh tokens. The access token
// carries the claims in this package and feeds Config.AccessToken on the
// main client.
func (c *Client) Exchange(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return TokenResponse{}, errors.New("auth: api key required")
	}
	return c.post(ctx, routes.AuthToken, req)
}

// Refresh swaps a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, req RefreshRequest) (TokenResponse, error) {
	if strings.TrimSpace(req.RefreshToken) == "" {
		return TokenResponse{}, errors.New("auth: refresh token required")
	}
	return c.post(ctx, routes.AuthRefresh, req)
}

func (c *Client) post(ctx context.Context, path string, payload any) (TokenResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return TokenResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return TokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenResponse{}, err
	}
	if resp.StatusCode >= 400 {
		return TokenResponse{}, Error{Status: resp.StatusCode, Body: string(body)}
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return TokenResponse{}, err
	}
	return tokens, nil
}
