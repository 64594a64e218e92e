package dagforge

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dagforge/dagforge-go/dag"
	"github.com/dagforge/dagforge-go/headers"
)

// APIError captures structured error metadata from non-2xx API responses.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	Fields    []FieldError
}

// FieldError represents a validation failure for a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e APIError) Error() string {
	if e.Code == "" {
		e.Code = "UNKNOWN"
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("%s (%d)", e.Code, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// TransportError wraps network and read failures that occur before a
// well-formed API response is available.
type TransportError struct {
	Message string
	Cause   error
}

func (e TransportError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e TransportError) Unwrap() error { return e.Cause }

// StreamError is returned when the server terminates a stream with an
// explicit error event. Message carries the server-provided text.
type StreamError struct {
	Message   string
	RequestID string
}

func (e StreamError) Error() string {
	if e.Message == "" {
		return "stream error"
	}
	return e.Message
}

// StreamDecodeError is returned when a dispatched stream frame carries a
// data payload that is not valid JSON. Payload holds the raw bytes.
type StreamDecodeError struct {
	Payload []byte
	Err     error
}

func (e StreamDecodeError) Error() string {
	return fmt.Sprintf("decode stream frame: %v", e.Err)
}

func (e StreamDecodeError) Unwrap() error { return e.Err }

// ValidationFailedError is returned by Pipelines.Validate when the backend
// rejects a pipeline with HTTP 422. Report holds the full validation outcome.
type ValidationFailedError struct {
	Report    dag.Report
	RequestID string
}

func (e ValidationFailedError) Error() string {
	return fmt.Sprintf("pipeline validation failed: %d error(s), %d warning(s)", len(e.Report.Errors), len(e.Report.Warnings))
}

// decodeAPIError extracts a structured error from a non-2xx response.
func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	return decodeAPIErrorFromBytes(resp.StatusCode, data, resp.Header)
}

// decodeAPIErrorFromBytes builds an APIError from an already-read body.
// The error field may be a rich object or a bare string; both envelopes
// are in use across the backend and the validator service.
func decodeAPIErrorFromBytes(status int, data []byte, header http.Header) error {
	apiErr := APIError{Status: status}
	if header != nil {
		apiErr.RequestID = header.Get(headers.RequestID)
	}
	if len(data) == 0 {
		apiErr.Message = http.StatusText(status)
		return apiErr
	}
	var payload struct {
		Error     json.RawMessage `json:"error"`
		RequestID string          `json:"request_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = string(data)
		return apiErr
	}
	if payload.RequestID != "" {
		apiErr.RequestID = payload.RequestID
	}
	if len(payload.Error) > 0 {
		var rich struct {
			Code    string       `json:"code"`
			Message string       `json:"message"`
			Status  int          `json:"status"`
			Fields  []FieldError `json:"fields"`
		}
		if err := json.Unmarshal(payload.Error, &rich); err == nil {
			apiErr.Code = rich.Code
			apiErr.Message = rich.Message
			if rich.Status != 0 {
				apiErr.Status = rich.Status
			}
			apiErr.Fields = rich.Fields
		} else {
			var flat string
			if json.Unmarshal(payload.Error, &flat) == nil {
				apiErr.Message = flat
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
