// Package dagforge provides the DagForge Go SDK: a streaming chat client,
// typed wrappers over the pipeline generation endpoints, and a client for
// the DAG validator service.
package dagforge

import (
	"net/http"

	"github.com/dagforge/dagforge-go/headers"
)

type authStrategy interface {
	Apply(req *http.Request)
}

type authChain []authStrategy

func (c authChain) Apply(req *http.Request) {
	for _, s := range c {
		if s == nil {
			continue
		}
		s.Apply(req)
	}
}

type bearerAuth struct {
	token string
}

func (b bearerAuth) Apply(req *http.Request) {
	if b.token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
}

type apiKeyAuth struct {
	key string
}

func (a apiKeyAuth) Apply(req *http.Request) {
	if a.key == "" {
		return
	}
	req.Header.Set(headers.APIKey, a.key)
}
