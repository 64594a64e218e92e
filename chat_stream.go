package dagforge

import (
	"context"
	"strings"
)

// ChatStream yields the incremental reply text of a streaming chat turn
// while preserving access to the underlying raw events.
type ChatStream struct {
	handle *StreamHandle
}

func newChatStream(handle *StreamHandle) *ChatStream {
	return &ChatStream{handle: handle}
}

// Next advances the stream, returning false when the stream is complete.
// Calls are pull-based: no internal buffering beyond the current frame, so
// slow consumers backpressure the server naturally.
func (s *ChatStream) Next() (StreamEvent, bool, error) {
	return s.handle.Next()
}

// Each invokes onDelta for every text fragment in arrival order until the
// stream terminates. A non-nil return from onDelta stops consumption and
// is returned as-is. The stream is closed when the call returns.
func (s *ChatStream) Each(ctx context.Context, onDelta func(delta string) error) error {
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = s.Close() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, ok, err := s.handle.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch event.Kind {
		case EventDelta:
			if err := onDelta(event.Delta); err != nil {
				return err
			}
		case EventDone:
			return nil
		}
	}
}

// Collect drains the stream and returns the concatenated reply text. It
// respects context cancellation and closes the stream before returning.
func (s *ChatStream) Collect(ctx context.Context) (string, error) {
	var builder strings.Builder
	if err := s.Each(ctx, func(delta string) error {
		builder.WriteString(delta)
		return nil
	}); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// Completed reports whether the server finished the reply with a done
// frame. False after a bare EOF, letting callers treat a silently dropped
// connection differently from a finished reply.
func (s *ChatStream) Completed() bool {
	return s.handle.Completed()
}

// RequestID echoes the X-DagForge-Request-Id header returned by the API.
func (s *ChatStream) RequestID() string {
	return s.handle.RequestID
}

// Raw exposes the underlying StreamHandle for callers that need low-level access.
func (s *ChatStream) Raw() *StreamHandle {
	return s.handle
}

// Close terminates the underlying stream.
func (s *ChatStream) Close() error {
	return s.handle.Close()
}
