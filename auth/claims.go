// Package auth provides authentication helpers for the DagForge SDK.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims encodes JWT claims embedded into access tokens.
//
// This is a DTO matching the server's access token contract. The SDK keeps this
// struct local so it can decode tokens without importing server internals.
type Claims struct {
	AccountID string `json:"uid"`
	SessionID string `json:"sid"`
	TokenType string `json:"typ,omitempty"`
	KeyID     string `json:"key_id,omitempty"`

	// ProjectID scopes a token to a single pipeline project. Tokens minted
	// for the studio UI carry it; API-key-derived tokens may not.
	ProjectID string `json:"pid,omitempty"`

	jwt.RegisteredClaims
}

// Decode extracts claims from a JWT without verifying its signature.
//
// Signature verification happens server-side; clients only need the embedded
// identifiers for display and request correlation.
func Decode(token string) (*Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, errors.New("auth: token required")
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(trimmed, claims); err != nil {
		return nil, fmt.Errorf("auth: decode claims: %w", err)
	}
	return claims, nil
}

// ExpiresWithin reports whether the token expires within d from now.
// Tokens without an exp claim never report as expiring.
func (c *Claims) ExpiresWithin(d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Until(c.ExpiresAt.Time) <= d
}
