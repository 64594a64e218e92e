package dagforge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dagforge/dagforge-go/dag"
	"github.com/dagforge/dagforge-go/routes"
)

// ValidatorClient talks to the standalone DAG validator service. The
// service runs unauthenticated beside the pipeline backend; NewClient
// wires one against Config.ValidatorURL, or NewValidatorClient builds
// one directly for tooling that only validates.
type ValidatorClient struct {
	baseURL    string
	httpClient *http.Client
	telemetry  TelemetryHooks
	userAgent  string
}

// ValidatorConfig configures a standalone ValidatorClient.
type ValidatorConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Telemetry  TelemetryHooks
	UserAgent  string
}

// NewValidatorClient returns a client for the validator service.
func NewValidatorClient(cfg ValidatorConfig) (*ValidatorClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultValidatorURL
	}
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &ValidatorClient{
		baseURL:    normalized,
		httpClient: httpClient,
		telemetry:  cfg.Telemetry,
		userAgent:  ua,
	}, nil
}

// ValidatorHealth reports service liveness.
type ValidatorHealth struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// EnvironmentValidationRequest checks a specification against a target
// environment configuration (available connections, operators).
type EnvironmentValidationRequest struct {
	Spec        *dag.Spec      `json:"dag_spec,omitempty"`
	Environment map[string]any `json:"environment,omitempty"`
}

func (r EnvironmentValidationRequest) Validate() error {
	if r.Spec == nil && len(r.Environment) == 0 {
		return errors.New("dagforge: dag spec or environment is required")
	}
	return nil
}

// EnvironmentValidationResult is the environment check outcome.
type EnvironmentValidationResult struct {
	Valid    bool        `json:"valid"`
	Message  string      `json:"message"`
	Warnings []dag.Issue `json:"warnings"`
}

// Health checks that the validator service is up.
func (c *ValidatorClient) Health(ctx context.Context) (*ValidatorHealth, error) {
	req, err := c.newRequest(ctx, http.MethodGet, routes.ValidatorHealth, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}
	var out ValidatorHealth
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, TransportError{Message: "decode health response", Cause: err}
	}
	return &out, nil
}

// ValidateDAG submits code and/or a specification for validation. The
// service answers 422 for a failed validation; that is a normal outcome
// here and comes back as a report with Valid false, not as an error.
func (c *ValidatorClient) ValidateDAG(ctx context.Context, req ValidateRequest) (*dag.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, routes.ValidatorDAG, req)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(httpReq)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, TransportError{Message: "read validation response", Cause: err}
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity:
		var report dag.Report
		if err := json.Unmarshal(body, &report); err != nil {
			return nil, TransportError{Message: "decode validation report", Cause: err}
		}
		return &report, nil
	default:
		return nil, decodeAPIErrorFromBytes(resp.StatusCode, body, resp.Header)
	}
}

// ValidateEnvironment checks a specification against an execution
// environment.
func (c *ValidatorClient) ValidateEnvironment(ctx context.Context, req EnvironmentValidationRequest) (*EnvironmentValidationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, routes.ValidatorEnvironment, req)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}
	var out EnvironmentValidationResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, TransportError{Message: "decode environment response", Cause: err}
	}
	return &out, nil
}

func (c *ValidatorClient) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	injectTraceparent(ctx, req)
	return req, nil
}

func (c *ValidatorClient) send(req *http.Request) (*http.Response, error) {
	if c.telemetry.OnHTTPRequest != nil {
		c.telemetry.OnHTTPRequest(req.Context(), req)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.telemetry.OnHTTPResponse != nil {
		c.telemetry.OnHTTPResponse(req.Context(), req, resp, err, time.Since(start))
	}
	c.telemetry.metric(req.Context(), "sdk_validator_request_latency_ms", float64(time.Since(start).Milliseconds()), map[string]string{
		"path": req.URL.Path,
	})
	if err != nil {
		return nil, TransportError{Message: "validator request failed", Cause: err}
	}
	return resp, nil
}
