package dagforge

import (
	"context"
	"sync"
)

// MockClient provides an in-memory client for unit tests without
// hitting the API. It currently covers the chat surface.
type MockClient struct {
	Chat *MockChatClient
}

// MockClientError is returned when a mock client is used without
// configuration.
type MockClientError struct {
	Reason string
}

func (e MockClientError) Error() string { return "mock client: " + e.Reason }

type mockChatResult struct {
	resp ChatResponse
	err  error
}

type mockStreamResult struct {
	events []StreamEvent
	err    error
}

// MockChatClient replays preconfigured responses in FIFO order.
type MockChatClient struct {
	mu          sync.Mutex
	sendQueue   []mockChatResult
	streamQueue []mockStreamResult
}

// NewMockClient creates an empty mock client.
func NewMockClient() *MockClient {
	return &MockClient{Chat: &MockChatClient{}}
}

// WithChatResponse enqueues a blocking ChatResponse for the next Send
// call.
func (c *MockClient) WithChatResponse(resp ChatResponse) *MockClient {
	c.Chat.enqueueSend(resp, nil)
	return c
}

// WithChatError enqueues an error for the next Send call.
func (c *MockClient) WithChatError(err error) *MockClient {
	c.Chat.enqueueSend(ChatResponse{}, err)
	return c
}

// WithStreamEvents enqueues a stream of events for the next SendStream
// call.
func (c *MockClient) WithStreamEvents(events []StreamEvent) *MockClient {
	c.Chat.enqueueStream(events, nil)
	return c
}

// WithStreamError enqueues an error for the next SendStream call.
func (c *MockClient) WithStreamError(err error) *MockClient {
	c.Chat.enqueueStream(nil, err)
	return c
}

func (c *MockChatClient) enqueueSend(resp ChatResponse, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendQueue = append(c.sendQueue, mockChatResult{resp: resp, err: err})
}

func (c *MockChatClient) enqueueStream(events []StreamEvent, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := append([]StreamEvent(nil), events...)
	c.streamQueue = append(c.streamQueue, mockStreamResult{events: copied, err: err})
}

func (c *MockChatClient) dequeueSend() (mockChatResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sendQueue) == 0 {
		return mockChatResult{}, MockClientError{Reason: "no chat responses configured"}
	}
	res := c.sendQueue[0]
	c.sendQueue = c.sendQueue[1:]
	return res, nil
}

func (c *MockChatClient) dequeueStream() (mockStreamResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.streamQueue) == 0 {
		return mockStreamResult{}, MockClientError{Reason: "no stream events configured"}
	}
	res := c.streamQueue[0]
	c.streamQueue = c.streamQueue[1:]
	return res, nil
}

// Send returns the next queued ChatResponse or error.
func (c *MockChatClient) Send(ctx context.Context, req ChatRequest, _ ...CallOption) (*ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res, err := c.dequeueSend()
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	respCopy := res.resp
	return &respCopy, nil
}

// SendStream returns a ChatStream that replays the next queued events.
func (c *MockChatClient) SendStream(ctx context.Context, req ChatRequest, _ ...CallOption) (*ChatStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res, err := c.dequeueStream()
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	return newChatStream(&StreamHandle{stream: &mockStreamReader{events: res.events}}), nil
}

// mockStreamReader replays events with the same terminal behavior as a
// live stream: a done event completes and closes it, an error event
// surfaces as StreamError, and running out of events is a clean end
// without completion.
type mockStreamReader struct {
	events    []StreamEvent
	idx       int
	closed    bool
	completed bool
}

func (m *mockStreamReader) Next() (StreamEvent, bool, error) {
	if m.closed || m.idx >= len(m.events) {
		return StreamEvent{}, false, nil
	}
	ev := m.events[m.idx]
	m.idx++
	switch ev.Kind {
	case EventDone:
		m.completed = true
		m.closed = true
		return ev, true, nil
	case EventError:
		m.closed = true
		return StreamEvent{}, false, StreamError{Message: ev.Message}
	}
	return ev, true, nil
}

func (m *mockStreamReader) Close() error {
	m.closed = true
	return nil
}

func (m *mockStreamReader) Completed() bool { return m.completed }
