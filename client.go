package dagforge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dagforge/dagforge-go/headers"
)

const defaultBaseURL = "https://api.dagforge.dev"
const defaultValidatorURL = "http://localhost:5051"
const defaultUserAgent = "dagforge-sdk/" + Version

// Config wires authentication, base URLs, and telemetry for the API client.
type Config struct {
	BaseURL      string
	ValidatorURL string
	APIKey       string
	AccessToken  string
	HTTPClient   *http.Client
	Telemetry    TelemetryHooks
	UserAgent    string
	// Retry overrides the default retry policy for all calls.
	Retry *RetryConfig
}

// Client provides high-level helpers for interacting with the DagForge API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       authChain
	telemetry  TelemetryHooks
	userAgent  string
	retry      RetryConfig

	// Grouped service clients.
	Chat      *ChatClient
	Pipelines *PipelinesClient
	Validator *ValidatorClient
}

// NewClient validates the configuration and returns a ready-to-use Client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	validatorURL := cfg.ValidatorURL
	if validatorURL == "" {
		validatorURL = defaultValidatorURL
	}
	normalizedValidator, err := normalizeBaseURL(validatorURL)
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	auth := buildAuthChain(cfg)
	if len(auth) == 0 {
		return nil, errors.New("dagforge: api key or access token required")
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	retry := defaultRetryConfig()
	if cfg.Retry != nil {
		retry = cfg.Retry.normalized()
	}
	client := &Client{
		baseURL:    normalized,
		httpClient: httpClient,
		auth:       auth,
		telemetry:  cfg.Telemetry,
		userAgent:  ua,
		retry:      retry,
	}
	client.Chat = &ChatClient{client: client}
	client.Pipelines = &PipelinesClient{client: client}
	client.Validator = &ValidatorClient{
		baseURL:    normalizedValidator,
		httpClient: httpClient,
		telemetry:  cfg.Telemetry,
		userAgent:  ua,
	}
	return client, nil
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("dagforge: base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("dagforge: invalid base URL: %w", err)
	}
	if u.Scheme == "" {
		return "", errors.New("dagforge: base URL missing scheme (http/https)")
	}
	if u.Host == "" {
		return "", errors.New("dagforge: base URL missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/"), nil
}

func buildAuthChain(cfg Config) authChain {
	var chain authChain
	if cfg.AccessToken != "" {
		token := strings.TrimSpace(cfg.AccessToken)
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[7:])
		}
		chain = append(chain, bearerAuth{token: token})
	}
	if cfg.APIKey != "" {
		chain = append(chain, apiKeyAuth{key: cfg.APIKey})
	}
	return chain
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	injectTraceparent(ctx, req)
	return req, nil
}

// newMultipartRequest builds a multipart/form-data POST carrying string
// fields plus file attachments under the given part name.
func (c *Client) newMultipartRequest(ctx context.Context, path string, fields map[string]string, partName string, attachments []Attachment) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	for _, att := range attachments {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, partName, att.Filename))
		header.Set("Content-Type", string(att.contentType()))
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	injectTraceparent(ctx, req)
	return req, nil
}

func (c *Client) prepare(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	c.auth.Apply(req)
}

// do executes the request with telemetry but leaves status handling to
// the caller.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.prepare(req)
	if c.telemetry.OnHTTPRequest != nil {
		c.telemetry.OnHTTPRequest(req.Context(), req)
	}
	c.telemetry.log(req.Context(), LogLevelInfo, "http_request", map[string]any{
		"method": req.Method,
		"url":    req.URL.String(),
	})
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.telemetry.OnHTTPResponse != nil {
		c.telemetry.OnHTTPResponse(req.Context(), req, resp, err, time.Since(start))
	}
	c.telemetry.metric(req.Context(), "sdk_http_request_latency_ms", float64(time.Since(start).Milliseconds()), map[string]string{
		"path": req.URL.Path,
	})
	return resp, err
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// sendRaw applies per-call headers and executes the request without
// decoding non-2xx statuses, for callers that interpret specific
// statuses themselves. Callers own the per-call timeout: cancelling
// here would cut off the body read.
func (c *Client) sendRaw(req *http.Request, opts callOptions) (*http.Response, error) {
	applyCallHeaders(req, opts)
	return c.do(req)
}

// sendWithOptions applies per-call headers and routes through the retry
// loop when the resolved policy allows it for this method.
func (c *Client) sendWithOptions(req *http.Request, opts callOptions) (*http.Response, error) {
	applyCallHeaders(req, opts)
	retry := c.retry
	if opts.retry != nil {
		retry = *opts.retry
	}
	retry = retry.normalized()
	if retry.MaxAttempts <= 1 || !retry.allowsMethod(req.Method) {
		return c.send(req)
	}
	return c.sendRetry(req, retry)
}

func (c *Client) sendRetry(req *http.Request, cfg RetryConfig) (*http.Response, error) {
	// A stable request ID lets the server deduplicate replayed attempts.
	if req.Header.Get(headers.RequestID) == "" {
		req.Header.Set(headers.RequestID, uuid.NewString())
	}
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if delay := cfg.backoffDelay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()
			case <-timer.C:
			}
		}
		attemptReq, err := cloneRequest(req)
		if err != nil {
			return nil, err
		}
		resp, err := c.send(attemptReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryableError(err) || attempt == cfg.MaxAttempts {
			return nil, err
		}
		c.telemetry.log(req.Context(), LogLevelInfo, "http_request_retry", map[string]any{
			"attempt": attempt,
			"max":     cfg.MaxAttempts,
			"error":   err.Error(),
		})
		c.telemetry.metric(req.Context(), "sdk_http_request_retries_total", 1, map[string]string{
			"path": req.URL.Path,
		})
	}
	return nil, lastErr
}

func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Status)
	}
	// Network-level failures are worth another attempt.
	return true
}

// cloneRequest produces a replayable copy of req for a retry attempt.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("dagforge: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

// sendAndDecode performs the request and decodes the JSON response into
// out (skipped when out is nil). It returns the echoed request ID.
func (c *Client) sendAndDecode(req *http.Request, opts callOptions, out any) (string, error) {
	if opts.timeout != nil && *opts.timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), *opts.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}
	resp, err := c.sendWithOptions(req, opts)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	requestID := resp.Header.Get(headers.RequestID)
	if out == nil {
		//nolint:errcheck // drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return requestID, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return requestID, TransportError{Message: "decode response", Cause: err}
	}
	return requestID, nil
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
