package dagforge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dagforge/dagforge-go/dag"
	"github.com/dagforge/dagforge-go/headers"
)

// SessionState names a phase of the pipeline generation workflow.
type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateGenerating     SessionState = "generating"
	StateSpecReview     SessionState = "spec_review"
	StateCodeGenerating SessionState = "code_generating"
	StateCodeReview     SessionState = "code_review"
	StateRepairing      SessionState = "repairing"
	StateExporting      SessionState = "exporting"
	StateDone           SessionState = "done"
	StateFailed         SessionState = "failed"
)

// ErrInvalidTransition is returned when an action is not legal in the
// session's current state, including while another action is in flight.
var ErrInvalidTransition = errors.New("dagforge: invalid session transition")

// Transition records one state change and what caused it.
type Transition struct {
	From  SessionState
	To    SessionState
	Cause string
	Err   string
	At    time.Time
}

// Session drives the pipeline generation workflow as an explicit state
// machine: prompt to specification, review and refinement, code
// generation, repair, and export. Exactly one action may be in flight
// at a time; the in-between states (generating, repairing, exporting)
// reject further actions until the current one settles.
//
// Failures during refinement, repair, or export revert to the review
// state they started from, keeping the last good spec and code. Only a
// failed initial generation lands in StateFailed, because there is no
// artifact to fall back to.
type Session struct {
	id     string
	client *Client

	mu       sync.Mutex
	state    SessionState
	spec     *dag.Spec
	code     string
	report   *dag.Report
	archive  *ExportArchive
	lastErr  error
	history  []Transition
	listener func(Transition)
}

// SessionOption customizes a new Session.
type SessionOption func(*Session)

// WithSessionID pins the session identifier instead of generating one.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithTransitionListener registers a hook invoked after every state
// change, outside the session lock.
func WithTransitionListener(fn func(Transition)) SessionOption {
	return func(s *Session) {
		s.listener = fn
	}
}

// NewSession starts an idle workflow session backed by the client.
func NewSession(client *Client, options ...SessionOption) *Session {
	s := &Session{
		id:     uuid.NewString(),
		client: client,
		state:  StateIdle,
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ID returns the session identifier, sent with every backend call.
func (s *Session) ID() string { return s.id }

// State returns the current workflow state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Spec returns the latest pipeline specification snapshot.
func (s *Session) Spec() *dag.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Code returns the latest generated source snapshot.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Report returns the most recent validation report, nil when the code
// changed since the last validation.
func (s *Session) Report() *dag.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Archive returns the exported package once the session reaches
// StateDone.
func (s *Session) Archive() *ExportArchive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archive
}

// Err returns the error recorded by the most recent failed action.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// History returns a copy of the transition log.
func (s *Session) History() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.history))
	copy(out, s.history)
	return out
}

// Generate produces the initial specification from a prompt. Legal
// from StateIdle and StateFailed (retry).
func (s *Session) Generate(ctx context.Context, req GenerateRequest) error {
	if err := s.begin("generate", StateGenerating, StateIdle, StateFailed); err != nil {
		return err
	}
	resp, err := s.client.Pipelines.Generate(ctx, req, s.callOptions()...)
	if err != nil {
		s.settle(StateFailed, "generate", err)
		return err
	}
	s.mu.Lock()
	s.spec = resp.Spec
	s.mu.Unlock()
	s.settle(StateSpecReview, "generate", nil)
	return nil
}

// RefineSpec revises the specification under review.
func (s *Session) RefineSpec(ctx context.Context, feedback string) error {
	if err := s.begin("refine_spec", StateGenerating, StateSpecReview); err != nil {
		return err
	}
	s.mu.Lock()
	spec := s.spec
	s.mu.Unlock()
	resp, err := s.client.Pipelines.RefineSpec(ctx, RefineSpecRequest{Spec: spec, Feedback: feedback}, s.callOptions()...)
	if err != nil {
		s.settle(StateSpecReview, "refine_spec", err)
		return err
	}
	s.mu.Lock()
	s.spec = resp.Spec
	s.mu.Unlock()
	s.settle(StateSpecReview, "refine_spec", nil)
	return nil
}

// ApproveSpec accepts the specification and generates source code from
// it.
func (s *Session) ApproveSpec(ctx context.Context) error {
	if err := s.begin("approve_spec", StateCodeGenerating, StateSpecReview); err != nil {
		return err
	}
	s.mu.Lock()
	spec := s.spec
	s.mu.Unlock()
	resp, err := s.client.Pipelines.GenerateCode(ctx, GenerateCodeRequest{Spec: spec}, s.callOptions()...)
	if err != nil {
		s.settle(StateSpecReview, "approve_spec", err)
		return err
	}
	s.mu.Lock()
	s.code = resp.Code
	s.report = nil
	s.mu.Unlock()
	s.settle(StateCodeReview, "approve_spec", nil)
	return nil
}

// RefineCode revises the generated source under review.
func (s *Session) RefineCode(ctx context.Context, feedback string) error {
	if err := s.begin("refine_code", StateCodeGenerating, StateCodeReview); err != nil {
		return err
	}
	s.mu.Lock()
	code := s.code
	s.mu.Unlock()
	resp, err := s.client.Pipelines.RefineCode(ctx, RefineCodeRequest{Code: code, Feedback: feedback}, s.callOptions()...)
	if err != nil {
		s.settle(StateCodeReview, "refine_code", err)
		return err
	}
	s.mu.Lock()
	s.code = resp.Code
	s.report = nil
	s.mu.Unlock()
	s.settle(StateCodeReview, "refine_code", nil)
	return nil
}

// Validate checks the current code and spec without changing state. A
// failed validation is a normal outcome: the report is recorded and
// returned, not surfaced as an error.
func (s *Session) Validate(ctx context.Context) (*dag.Report, error) {
	s.mu.Lock()
	if s.state != StateCodeReview {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot validate while %s", ErrInvalidTransition, state)
	}
	code, spec := s.code, s.spec
	s.mu.Unlock()

	report, err := s.client.Pipelines.Validate(ctx, ValidateRequest{Code: code, Spec: spec}, s.callOptions()...)
	var failed ValidationFailedError
	if errors.As(err, &failed) {
		report, err = &failed.Report, nil
	}
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.report = report
	s.mu.Unlock()
	return report, nil
}

// AutoFix asks the backend to resolve the issues from the last
// validation in a single pass.
func (s *Session) AutoFix(ctx context.Context) error {
	if err := s.begin("autofix", StateRepairing, StateCodeReview); err != nil {
		return err
	}
	s.mu.Lock()
	code := s.code
	var issues []dag.Issue
	if s.report != nil {
		issues = s.report.Errors
	}
	s.mu.Unlock()
	resp, err := s.client.Pipelines.AutoFix(ctx, AutoFixRequest{Code: code, Issues: issues}, s.callOptions()...)
	if err != nil {
		s.settle(StateCodeReview, "autofix", err)
		return err
	}
	s.mu.Lock()
	s.code = resp.Code
	s.report = nil
	s.mu.Unlock()
	s.settle(StateCodeReview, "autofix", nil)
	return nil
}

// Repair runs the server-side validate-and-fix loop and adopts the
// resulting code.
func (s *Session) Repair(ctx context.Context, maxIterations int) (*RepairResponse, error) {
	if err := s.begin("repair", StateRepairing, StateCodeReview); err != nil {
		return nil, err
	}
	s.mu.Lock()
	code, spec := s.code, s.spec
	s.mu.Unlock()
	resp, err := s.client.Pipelines.Repair(ctx, RepairRequest{Code: code, Spec: spec, MaxIterations: maxIterations}, s.callOptions()...)
	if err != nil {
		s.settle(StateCodeReview, "repair", err)
		return nil, err
	}
	s.mu.Lock()
	s.code = resp.Code
	s.report = nil
	s.mu.Unlock()
	s.settle(StateCodeReview, "repair", nil)
	return resp, nil
}

// Export packages the pipeline and completes the session.
func (s *Session) Export(ctx context.Context) (*ExportArchive, error) {
	if err := s.begin("export", StateExporting, StateCodeReview); err != nil {
		return nil, err
	}
	s.mu.Lock()
	code, spec := s.code, s.spec
	s.mu.Unlock()
	archive, err := s.client.Pipelines.Export(ctx, ExportRequest{Code: code, Spec: spec}, s.callOptions()...)
	if err != nil {
		s.settle(StateCodeReview, "export", err)
		return nil, err
	}
	s.mu.Lock()
	s.archive = archive
	s.mu.Unlock()
	s.settle(StateDone, "export", nil)
	return archive, nil
}

// Reset returns the session to StateIdle, discarding all snapshots.
// Rejected while an action is in flight.
func (s *Session) Reset() error {
	s.mu.Lock()
	switch s.state {
	case StateGenerating, StateCodeGenerating, StateRepairing, StateExporting:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot reset while %s", ErrInvalidTransition, state)
	}
	s.spec = nil
	s.code = ""
	s.report = nil
	s.archive = nil
	s.lastErr = nil
	listener, rec := s.recordLocked(StateIdle, "reset", nil)
	s.mu.Unlock()
	if listener != nil {
		listener(rec)
	}
	return nil
}

// begin atomically checks that the current state is one of from and
// enters the in-flight state, serializing concurrent actions.
func (s *Session) begin(cause string, to SessionState, from ...SessionState) error {
	s.mu.Lock()
	legal := false
	for _, f := range from {
		if s.state == f {
			legal = true
			break
		}
	}
	if !legal {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, cause, state)
	}
	listener, rec := s.recordLocked(to, cause, nil)
	s.mu.Unlock()
	if listener != nil {
		listener(rec)
	}
	return nil
}

// settle commits the outcome of an in-flight action.
func (s *Session) settle(to SessionState, cause string, err error) {
	s.mu.Lock()
	s.lastErr = err
	listener, rec := s.recordLocked(to, cause, err)
	s.mu.Unlock()
	if listener != nil {
		listener(rec)
	}
}

// recordLocked applies a state change and appends it to the history.
// Callers hold the lock and fire the returned listener after releasing
// it.
func (s *Session) recordLocked(to SessionState, cause string, err error) (func(Transition), Transition) {
	rec := Transition{From: s.state, To: to, Cause: cause, At: time.Now()}
	if err != nil {
		rec.Err = err.Error()
	}
	s.state = to
	s.history = append(s.history, rec)
	return s.listener, rec
}

func (s *Session) callOptions() []CallOption {
	return []CallOption{WithHeader(headers.SessionID, s.id)}
}
