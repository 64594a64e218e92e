// Package validatord implements the standalone DAG validation service,
// an HTTP wrapper around the dag package's syntax and structure checks.
package validatord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dagforge/dagforge-go/dag"
	"github.com/dagforge/dagforge-go/routes"
)

const (
	serviceName    = "dagforge-validator"
	serviceVersion = "1.0.0"
)

// Service handles validation requests.
type Service struct {
	cfg Config
	log *slog.Logger
}

// New returns a Service with cfg's defaults filled in.
func New(cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{cfg: cfg, log: cfg.Log}
}

// Handler returns the HTTP handler with CORS, request logging, and
// panic recovery applied. It is safe to mount in tests via httptest.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+routes.ValidatorHealth, s.handleHealth)
	mux.HandleFunc("POST "+routes.ValidatorDAG, s.handleValidateDAG)
	mux.HandleFunc("POST "+routes.ValidatorEnvironment, s.handleValidateEnvironment)
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return s.recoverer(s.logging(s.cors(mux)))
}

// ListenAndServe runs the service until ctx is cancelled, then shuts
// down gracefully.
func (s *Service) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("validator service listening", "addr", s.cfg.Addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

func (s *Service) handleValidateDAG(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readJSONBody(w, r)
	if !ok {
		return
	}
	var code string
	if raw, exists := doc["dag_code"]; exists && truthy(raw) {
		if err := json.Unmarshal(raw, &code); err != nil {
			writeError(w, http.StatusBadRequest, "dag_code must be a string")
			return
		}
	}
	spec := doc["dag_spec"]
	specProvided := truthy(spec)
	if code == "" && !specProvided {
		writeError(w, http.StatusBadRequest, "Either dag_code or dag_spec must be provided")
		return
	}

	var syntax, structure *dag.Result
	if code != "" {
		s.log.Info("validating dag code syntax")
		res := dag.CheckCode(code)
		syntax = &res
		if !res.Valid {
			s.log.Warn("syntax validation failed", "errors", len(res.Errors))
		}
	}
	if specProvided {
		s.log.Info("validating dag specification structure")
		res := dag.ValidateSpecJSON(spec)
		structure = &res
		if !res.Valid {
			s.log.Warn("structure validation failed", "errors", len(res.Errors))
		}
	}

	report := dag.BuildReport(syntax, structure)
	status := http.StatusOK
	if !report.Valid {
		// Unprocessable Entity for validation failures.
		status = http.StatusUnprocessableEntity
	}
	s.log.Info("validation complete",
		"valid", report.Valid,
		"errors", len(report.Errors),
		"warnings", len(report.Warnings))
	writeJSON(w, status, report)
}

func (s *Service) handleValidateEnvironment(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.readJSONBody(w, r); !ok {
		return
	}
	// Environment checks (connections, operator availability) are not
	// implemented yet; the endpoint answers so callers can probe for it.
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    true,
		"message":  "Environment validation endpoint ready",
		"warnings": []dag.Issue{},
	})
}

// readJSONBody reads and decodes the request body as a JSON object.
// Empty, null, and {} bodies are all rejected as "No data provided".
func (s *Service) readJSONBody(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Could not read request body")
		return nil, false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No data provided")
		return nil, false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		if json.Valid(body) {
			writeError(w, http.StatusBadRequest, "Request body must be a JSON object")
		} else {
			writeError(w, http.StatusBadRequest, "Request body is not valid JSON")
		}
		return nil, false
	}
	if len(doc) == 0 {
		writeError(w, http.StatusBadRequest, "No data provided")
		return nil, false
	}
	return doc, true
}

// truthy mirrors the loose presence check callers rely on: null, empty
// strings, empty containers, zero, and false all count as absent.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	return true
}

func (s *Service) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func (s *Service) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func (s *Service) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("validation panic", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error":   "Internal validation error",
					"details": fmt.Sprint(rec),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
