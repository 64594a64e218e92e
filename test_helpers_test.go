package dagforge

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("new test client: %v", err)
	}
	return client
}

// recordingTelemetry captures hook invocations for assertions.
type recordingTelemetry struct {
	mu      sync.Mutex
	logs    []LogEntry
	metrics []Metric
	events  []StreamEvent
}

func (r *recordingTelemetry) hooks() TelemetryHooks {
	return TelemetryHooks{
		OnStreamEvent: func(_ context.Context, ev StreamEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
		},
		OnLogEntry: func(_ context.Context, entry LogEntry) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.logs = append(r.logs, entry)
		},
		OnMetric: func(_ context.Context, metric Metric) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.metrics = append(r.metrics, metric)
		},
	}
}

func (r *recordingTelemetry) logMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]string, len(r.logs))
	for i, entry := range r.logs {
		msgs[i] = entry.Message
	}
	return msgs
}

func (r *recordingTelemetry) eventNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.EventName()
	}
	return names
}

func (r *recordingTelemetry) metricCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.metrics {
		if m.Name == name {
			count++
		}
	}
	return count
}

// chunkedReadCloser replays wire bytes in fixed-size reads, simulating
// arbitrary transport chunking.
type chunkedReadCloser struct {
	chunks [][]byte
	closed bool
}

func newChunkedBody(wire string, size int) *chunkedReadCloser {
	if size <= 0 {
		size = len(wire)
	}
	var chunks [][]byte
	data := []byte(wire)
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		chunks = append(chunks, data)
	}
	return &chunkedReadCloser{chunks: chunks}
}

func (c *chunkedReadCloser) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := c.chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		c.chunks[0] = chunk[n:]
	} else {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func (c *chunkedReadCloser) Close() error {
	c.closed = true
	return nil
}

// streamSummary is the comparable shape of a dispatched event.
type streamSummary struct {
	kind  EventKind
	name  string
	delta string
}

// drainStream pulls events until the stream ends, returning dispatched
// events and the terminating error, if any.
func drainStream(s *sseStream) ([]streamSummary, error) {
	var events []streamSummary
	for {
		ev, ok, err := s.Next()
		if err != nil {
			return events, err
		}
		if !ok {
			return events, nil
		}
		events = append(events, streamSummary{kind: ev.Kind, name: ev.Name, delta: ev.Delta})
	}
}
