package dagforge

import (
	"net/http"
	"strings"
	"time"

	"github.com/dagforge/dagforge-go/headers"
)

// CallOption customizes outgoing requests (headers, request IDs, retry, timeouts).
type CallOption func(*callOptions)

type callOptions struct {
	headers  http.Header
	metadata map[string]string
	timeout  *time.Duration
	retry    *RetryConfig
	timeouts StreamTimeouts
}

// WithRequestID sets the X-DagForge-Request-Id header for the request.
func WithRequestID(requestID string) CallOption {
	return func(opts *callOptions) {
		clean := strings.TrimSpace(requestID)
		if clean == "" {
			return
		}
		if opts.headers == nil {
			opts.headers = make(http.Header)
		}
		opts.headers.Set(headers.RequestID, clean)
	}
}

// WithHeader attaches an arbitrary header to the underlying HTTP request.
func WithHeader(key, value string) CallOption {
	return func(opts *callOptions) {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			return
		}
		if opts.headers == nil {
			opts.headers = make(http.Header)
		}
		opts.headers.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
}

// WithHeaders attaches multiple headers to the underlying HTTP request.
func WithHeaders(headers map[string]string) CallOption {
	return func(opts *callOptions) {
		if len(headers) == 0 {
			return
		}
		if opts.headers == nil {
			opts.headers = make(http.Header)
		}
		for key, value := range headers {
			k := strings.TrimSpace(key)
			v := strings.TrimSpace(value)
			if k == "" || v == "" {
				continue
			}
			opts.headers.Add(k, v)
		}
	}
}

// WithMetadataEntry adds a single metadata key/value to the request payload.
func WithMetadataEntry(key, value string) CallOption {
	return func(opts *callOptions) {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			return
		}
		if opts.metadata == nil {
			opts.metadata = make(map[string]string)
		}
		opts.metadata[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
}

// WithMetadata merges the provided metadata map into the request payload.
func WithMetadata(metadata map[string]string) CallOption {
	return func(opts *callOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata == nil {
			opts.metadata = make(map[string]string, len(metadata))
		}
		for key, value := range metadata {
			k := strings.TrimSpace(key)
			v := strings.TrimSpace(value)
			if k == "" || v == "" {
				continue
			}
			opts.metadata[k] = v
		}
	}
}

// WithTimeout overrides the request timeout for this call (0 disables timeout).
func WithTimeout(timeout time.Duration) CallOption {
	return func(opts *callOptions) {
		opts.timeout = &timeout
	}
}

// WithStreamTimeouts configures TTFT/idle/total timeouts for streaming calls.
// Non-streaming calls ignore it.
func WithStreamTimeouts(timeouts StreamTimeouts) CallOption {
	return func(opts *callOptions) {
		opts.timeouts = timeouts
	}
}

// WithRetry overrides the retry policy for this call.
func WithRetry(cfg RetryConfig) CallOption {
	return func(opts *callOptions) {
		copy := cfg
		if copy.BaseBackoff == 0 {
			copy.BaseBackoff = defaultRetryConfig().BaseBackoff
		}
		if copy.MaxBackoff == 0 {
			copy.MaxBackoff = defaultRetryConfig().MaxBackoff
		}
		opts.retry = &copy
	}
}

// DisableRetry forces a single attempt for this call.
func DisableRetry() CallOption {
	return func(opts *callOptions) {
		cfg := RetryConfig{MaxAttempts: 1, BaseBackoff: 0, MaxBackoff: 0, RetryPost: false}
		opts.retry = &cfg
	}
}

func buildCallOptions(options []CallOption) callOptions {
	if len(options) == 0 {
		return callOptions{}
	}
	cfg := callOptions{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	cfg.headers = sanitizeHeaders(cfg.headers)
	cfg.metadata = sanitizeMetadata(cfg.metadata)
	return cfg
}

func applyCallHeaders(req *http.Request, opts callOptions) {
	for key, values := range opts.headers {
		req.Header.Del(key)
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
}

func sanitizeHeaders(h http.Header) http.Header {
	if len(h) == 0 {
		return nil
	}
	clean := make(http.Header, len(h))
	for key, values := range h {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		for _, value := range values {
			v := strings.TrimSpace(value)
			if v == "" {
				continue
			}
			clean.Add(k, v)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func sanitizeMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	clean := make(map[string]string, len(m))
	for key, value := range m {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k == "" || v == "" {
			continue
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}
