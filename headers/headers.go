// Package headers defines HTTP header constants used across the DagForge platform.
// This is the single source of truth for header names used in API requests/responses.
package headers

const (
	// RequestID is the header for request correlation / idempotency.
	// Clients can supply this header for idempotency on retries.
	RequestID = "X-DagForge-Request-Id"

	// APIKey is the header for API key authentication.
	APIKey = "X-DagForge-Api-Key" //nolint:gosec // This is a header name, not a credential

	// SessionID is the header for session-attributed chat requests.
	// When set, the backend resumes the named conversation instead of
	// starting a fresh one.
	SessionID = "X-DagForge-Session-Id"
)
