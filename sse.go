package dagforge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
)

// eventSource abstracts the frame source behind a StreamHandle so tests can
// substitute scripted events.
type eventSource interface {
	Next() (StreamEvent, bool, error)
	Close() error
	Completed() bool
}

// StreamHandle exposes the streaming interface plus associated metadata.
type StreamHandle struct {
	RequestID string
	stream    eventSource
}

// Next advances the stream, returning false when the stream is complete.
func (s *StreamHandle) Next() (StreamEvent, bool, error) {
	return s.stream.Next()
}

// Close terminates the underlying stream.
func (s *StreamHandle) Close() error {
	return s.stream.Close()
}

// Completed reports whether the server terminated the stream with a done
// frame. A stream that hit bare EOF still ends cleanly, but Completed
// returns false so callers can tell the two apart.
func (s *StreamHandle) Completed() bool {
	return s.stream.Completed()
}

// sseStream decodes server-sent event frames from a response body. Frames
// are blank-line separated; the first event: line names the frame and the
// first data: line carries its payload. Decoding is chunk-boundary
// agnostic: bufio carries partial lines (and partial UTF-8 sequences)
// across reads, so the transport may split the bytes anywhere.
type sseStream struct {
	ctx       context.Context
	cancel    context.CancelFunc
	reader    *bufio.Reader
	body      io.ReadCloser
	telemetry TelemetryHooks
	requestID string
	monitor   *streamTimeoutMonitor

	mu        sync.Mutex
	closed    bool
	completed bool // done frame observed
	closeOnce sync.Once
	done      chan struct{}
}

func newSSEStream(ctx context.Context, body io.ReadCloser, requestID string, telemetry TelemetryHooks, timeouts StreamTimeouts) *sseStream {
	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	stream := &sseStream{
		ctx:       streamCtx,
		cancel:    cancel,
		reader:    bufio.NewReader(body),
		body:      body,
		telemetry: telemetry,
		requestID: requestID,
		done:      done,
		monitor:   newStreamTimeoutMonitor(streamCtx, timeouts, done, cancel),
	}
	go func() {
		select {
		case <-streamCtx.Done():
			//nolint:errcheck // best-effort cleanup on context cancellation
			_ = stream.Close()
		case <-stream.done:
			return
		}
	}()
	stream.monitor.Start()
	return stream
}

// Next advances the stream and returns the next dispatched event. Done
// frames are returned once and end the stream; error frames surface as a
// StreamError; frames without a data: line and frames with undispatched
// event names are skipped.
func (s *sseStream) Next() (StreamEvent, bool, error) {
	if s.isClosed() {
		return StreamEvent{}, false, nil
	}
	for {
		name, data, hasData, err := s.readEvent()
		if err != nil {
			if terr := s.monitor.GetTimeoutErr(); terr != nil && s.ctx.Err() != nil {
				//nolint:errcheck // best-effort cleanup after timeout
				_ = s.Close()
				return StreamEvent{}, false, terr
			}
			if cerr := s.ctx.Err(); cerr != nil {
				//nolint:errcheck // best-effort cleanup after cancellation
				_ = s.Close()
				return StreamEvent{}, false, cerr
			}
			if errors.Is(err, io.EOF) {
				// Clean end without a done frame. Completed() stays false.
				//nolint:errcheck // best-effort cleanup
				_ = s.Close()
				return StreamEvent{}, false, nil
			}
			//nolint:errcheck // best-effort cleanup
			_ = s.Close()
			return StreamEvent{}, false, TransportError{Message: "stream read failed", Cause: err}
		}
		if !hasData {
			// Frames without a data: line are silently skipped.
			continue
		}
		event := StreamEvent{
			Kind: parseEventKind(name),
			Name: name,
			Data: append([]byte(nil), data...),
		}

		switch event.Kind {
		case EventDelta:
			var payload struct {
				Delta string `json:"delta"`
			}
			if err := json.Unmarshal(event.Data, &payload); err != nil {
				//nolint:errcheck // best-effort cleanup after decode failure
				_ = s.Close()
				return StreamEvent{}, false, StreamDecodeError{Payload: event.Data, Err: err}
			}
			event.Delta = payload.Delta
			s.monitor.SignalFirstContent()
			s.emit(event)
			return event, true, nil
		case EventDone:
			s.markCompleted()
			s.emit(event)
			//nolint:errcheck // no further frames are read after done
			_ = s.Close()
			return event, true, nil
		case EventError:
			var payload struct {
				Error string `json:"error"`
			}
			//nolint:errcheck // unparsable error payloads fall back to a generic message
			_ = json.Unmarshal(event.Data, &payload)
			event.Message = payload.Error
			s.emit(event)
			//nolint:errcheck // no further frames are read after a server error
			_ = s.Close()
			return StreamEvent{}, false, StreamError{Message: payload.Error, RequestID: s.requestID}
		default:
			// Unknown event names are ignored for forward compatibility.
			s.emit(event)
			continue
		}
	}
}

func (s *sseStream) emit(event StreamEvent) {
	if s.telemetry.OnStreamEvent != nil {
		s.telemetry.OnStreamEvent(s.ctx, event)
	}
	s.telemetry.metric(s.ctx, "sdk_stream_events_total", 1, map[string]string{"event": event.EventName()})
}

// readEvent accumulates lines until a blank line terminates the frame. The
// first event: and data: lines win; comment lines starting with ':' are
// skipped. Trailing bytes not terminated by a blank line before EOF are
// dropped.
func (s *sseStream) readEvent() (string, []byte, bool, error) {
	var (
		eventName string
		haveEvent bool
		data      string
		haveData  bool
	)
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" {
				return "", nil, false, io.EOF
			}
			if errors.Is(err, io.EOF) {
				line = strings.TrimRight(line, "\r\n")
				if line == "" {
					return eventName, []byte(data), haveData, nil
				}
				// Process the partial line; the next read reports EOF and
				// the unterminated frame is dropped.
			} else {
				return "", nil, false, err
			}
		}
		s.monitor.SignalActivity()
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if haveEvent || haveData {
				return eventName, []byte(data), haveData, nil
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "event:"):
			if !haveEvent {
				eventName = strings.TrimSpace(line[len("event:"):])
				haveEvent = true
			}
		case strings.HasPrefix(line, "data:"):
			if !haveData {
				data = strings.TrimSpace(line[len("data:"):])
				haveData = true
			}
		}
	}
}

// Close terminates the underlying response body and signals completion.
func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
		if cwe, ok := s.body.(interface{ CloseWithError(error) error }); ok {
			//nolint:errcheck // best-effort cleanup
			_ = cwe.CloseWithError(context.Canceled)
		}
		err = s.body.Close()
	})
	return err
}

func (s *sseStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *sseStream) markCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true
}

// Completed reports whether a done frame terminated the stream.
func (s *sseStream) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}
