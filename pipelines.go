package dagforge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dagforge/dagforge-go/dag"
	"github.com/dagforge/dagforge-go/headers"
	"github.com/dagforge/dagforge-go/routes"
)

// PipelinesClient groups the pipeline generation, refinement, repair,
// validation, and export endpoints. All calls are plain request/response
// JSON except Generate with a reference attachment (multipart) and
// Export (zip download).
type PipelinesClient struct {
	client *Client
}

// GenerateRequest describes a natural-language pipeline request. When
// Reference is set the call is sent as multipart/form-data with the
// file attached under the "reference" part.
type GenerateRequest struct {
	Prompt    string      `json:"prompt"`
	Model     string      `json:"model,omitempty"`
	Reference *Attachment `json:"-"`
}

// Validate reports whether the request can be sent.
func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("dagforge: prompt is required")
	}
	if r.Reference != nil && len(r.Reference.Data) == 0 {
		return errors.New("dagforge: reference attachment has no data")
	}
	return nil
}

// GenerateResponse carries the generated pipeline specification and the
// assistant's commentary on it.
type GenerateResponse struct {
	Spec      *dag.Spec `json:"dag_spec"`
	Message   string    `json:"message,omitempty"`
	RequestID string    `json:"-"`
}

// RefineSpecRequest asks the backend to revise a specification
// according to free-form feedback.
type RefineSpecRequest struct {
	Spec     *dag.Spec `json:"dag_spec"`
	Feedback string    `json:"feedback"`
}

func (r RefineSpecRequest) Validate() error {
	if r.Spec == nil {
		return errors.New("dagforge: dag spec is required")
	}
	if strings.TrimSpace(r.Feedback) == "" {
		return errors.New("dagforge: feedback is required")
	}
	return nil
}

// RefineSpecResponse carries the revised specification.
type RefineSpecResponse struct {
	Spec      *dag.Spec `json:"dag_spec"`
	Message   string    `json:"message,omitempty"`
	RequestID string    `json:"-"`
}

// GenerateCodeRequest asks the backend to render a specification into
// DAG source code.
type GenerateCodeRequest struct {
	Spec *dag.Spec `json:"dag_spec"`
}

func (r GenerateCodeRequest) Validate() error {
	if r.Spec == nil {
		return errors.New("dagforge: dag spec is required")
	}
	return nil
}

// GenerateCodeResponse carries the generated source.
type GenerateCodeResponse struct {
	Code      string `json:"dag_code"`
	RequestID string `json:"-"`
}

// RefineCodeRequest asks the backend to revise generated source
// according to free-form feedback.
type RefineCodeRequest struct {
	Code     string `json:"dag_code"`
	Feedback string `json:"feedback"`
}

func (r RefineCodeRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return errors.New("dagforge: dag code is required")
	}
	if strings.TrimSpace(r.Feedback) == "" {
		return errors.New("dagforge: feedback is required")
	}
	return nil
}

// RefineCodeResponse carries the revised source.
type RefineCodeResponse struct {
	Code      string `json:"dag_code"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"-"`
}

// AutoFixRequest asks the backend to fix source code given the issues a
// validation run reported.
type AutoFixRequest struct {
	Code   string      `json:"dag_code"`
	Issues []dag.Issue `json:"issues,omitempty"`
}

func (r AutoFixRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return errors.New("dagforge: dag code is required")
	}
	return nil
}

// AutoFixResponse carries the fixed source. Fixed is false when the
// backend could not resolve the reported issues.
type AutoFixResponse struct {
	Code      string `json:"dag_code"`
	Fixed     bool   `json:"fixed"`
	RequestID string `json:"-"`
}

// RepairRequest drives the multi-iteration repair loop: the backend
// alternates validation and fixing until the code passes or the
// iteration budget runs out. MaxIterations zero leaves the budget to
// the server.
type RepairRequest struct {
	Code          string    `json:"dag_code"`
	Spec          *dag.Spec `json:"dag_spec,omitempty"`
	MaxIterations int       `json:"max_iterations,omitempty"`
}

func (r RepairRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return errors.New("dagforge: dag code is required")
	}
	if r.MaxIterations < 0 {
		return errors.New("dagforge: max iterations must not be negative")
	}
	return nil
}

// RepairIteration records one round of the repair loop.
type RepairIteration struct {
	Attempt int         `json:"attempt"`
	Errors  []dag.Issue `json:"errors,omitempty"`
	Fixed   bool        `json:"fixed"`
}

// RepairResponse carries the final source, whether it validated, and
// the per-iteration history.
type RepairResponse struct {
	Code       string            `json:"dag_code"`
	Valid      bool              `json:"valid"`
	Iterations []RepairIteration `json:"iterations"`
	RequestID  string            `json:"-"`
}

// ValidateRequest submits code and/or a specification to the backend's
// validation proxy. At least one of the two must be set.
type ValidateRequest struct {
	Code string    `json:"dag_code,omitempty"`
	Spec *dag.Spec `json:"dag_spec,omitempty"`
}

func (r ValidateRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" && r.Spec == nil {
		return errors.New("dagforge: either dag code or dag spec is required")
	}
	return nil
}

// Generate produces a pipeline specification from a prompt.
func (c *PipelinesClient) Generate(ctx context.Context, req GenerateRequest, options ...CallOption) (*GenerateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	var (
		httpReq *http.Request
		err     error
	)
	if req.Reference != nil {
		fields := map[string]string{
			"prompt": req.Prompt,
			"model":  req.Model,
		}
		httpReq, err = c.client.newMultipartRequest(ctx, routes.PipelineGenerate, fields, "reference", []Attachment{*req.Reference})
	} else {
		httpReq, err = c.client.newJSONRequest(ctx, http.MethodPost, routes.PipelineGenerate, req)
	}
	if err != nil {
		return nil, err
	}
	var out GenerateResponse
	requestID, err := c.client.sendAndDecode(httpReq, opts, &out)
	if err != nil {
		c.logFailure(ctx, "generate", err)
		return nil, err
	}
	out.RequestID = requestID
	return &out, nil
}

// RefineSpec revises a specification according to feedback.
func (c *PipelinesClient) RefineSpec(ctx context.Context, req RefineSpecRequest, options ...CallOption) (*RefineSpecResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, routes.PipelineRefine, req)
	if err != nil {
		return nil, err
	}
	var out RefineSpecResponse
	requestID, err := c.client.sendAndDecode(httpReq, opts, &out)
	if err != nil {
		c.logFailure(ctx, "refine_spec", err)
		return nil, err
	}
	out.RequestID = requestID
	return &out, nil
}

// GenerateCode renders a specification into DAG source code.
func (c *PipelinesClient) GenerateCode(ctx context.Context, req GenerateCodeRequest, options ...CallOption) (*GenerateCodeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, routes.PipelineGenerateCode, req)
	if err != nil {
		return nil, err
	}
	var out GenerateCodeResponse
	requestID, err := c.client.sendAndDecode(httpReq, opts, &out)
	if err != nil {
		c.logFailure(ctx, "generate_code", err)
		return nil, err
	}
	out.RequestID = requestID
	return &out, nil
}

// RefineCode revises generated source according to feedback.
func (c *PipelinesClient) RefineCode(ctx context.Context, req RefineCodeRequest, options ...CallOption) (*RefineCodeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, routes.PipelineRefineCode, req)
	if err != nil {
		return nil, err
	}
	var out RefineCodeResponse
	requestID, err := c.client.sendAndDecode(httpReq, opts, &out)
	if err != nil {
		c.logFailure(ctx, "refine_code", err)
		return nil, err
	}
	out.RequestID = requestID
	return &out, nil
}

// AutoFix asks the backend to resolve reported validation issues in one
// pass.
func (c *PipelinesClient) AutoFix(ctx context.Context, req AutoFixRequest, options ...CallOption) (*AutoFixResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, routes.PipelineAutoFix, req)
	if err != nil {
		return nil, err
	}
	var out AutoFixResponse
	requestID, err := c.client.sendAndDecode(httpReq, opts, &out)
	if err != nil {
		c.logFailure(ctx, "autofix", err)
		return nil, err
	}
	out.RequestID = requestID
	return &out, nil
}

// Repair runs the validate-and-fix loop server side until the code
// passes or the iteration budget runs out.
func (c *PipelinesClient) Repair(ctx context.Context, req RepairRequest, options ...CallOption) (*RepairResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, routes.PipelineRepair, req)
	if err != nil {
		return nil, err
	}
	var out RepairResponse
	requestID, err := c.client.sendAndDecode(httpReq, opts, &out)
	if err != nil {
		c.logFailure(ctx, "repair", err)
		return nil, err
	}
	out.RequestID = requestID
	return &out, nil
}

// Validate submits code and/or a specification for validation. A
// failed validation surfaces as ValidationFailedError carrying the full
// report; the report of a passing run is returned directly.
func (c *PipelinesClient) Validate(ctx context.Context, req ValidateRequest, options ...CallOption) (*dag.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	if opts.timeout != nil && *opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *opts.timeout)
		defer cancel()
	}
	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, routes.PipelineValidate, req)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.sendRaw(httpReq, opts)
	if err != nil {
		c.logFailure(ctx, "validate", err)
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, TransportError{Message: "read validation response", Cause: err}
	}
	requestID := resp.Header.Get(headers.RequestID)
	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusUnprocessableEntity {
			var report dag.Report
			if json.Unmarshal(body, &report) == nil && len(report.Errors) > 0 {
				return nil, ValidationFailedError{Report: report, RequestID: requestID}
			}
		}
		err := decodeAPIErrorFromBytes(resp.StatusCode, body, resp.Header)
		c.logFailure(ctx, "validate", err)
		return nil, err
	}
	var report dag.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, TransportError{Message: "decode validation report", Cause: err}
	}
	return &report, nil
}

func (c *PipelinesClient) logFailure(ctx context.Context, op string, err error) {
	c.client.telemetry.log(ctx, LogLevelError, "pipeline_"+op+"_failed", map[string]any{
		"error": err.Error(),
	})
}
