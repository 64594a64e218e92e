package dagforge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dagforge/dagforge-go/headers"
	"github.com/dagforge/dagforge-go/routes"
	"github.com/dagforge/dagforge-go/ssetest"
)

func chatTurn(content string) ChatRequest {
	return ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: content}}}
}

func TestChatStreamCollect(t *testing.T) {
	mock := NewMockClient().WithStreamEvents([]StreamEvent{
		{Kind: EventDelta, Name: "delta", Delta: "Hello"},
		{Kind: EventDelta, Name: "delta", Delta: " world"},
		{Kind: EventDone, Name: "done"},
	})

	stream, err := mock.Chat.SendStream(context.Background(), chatTurn("hi"))
	if err != nil {
		t.Fatalf("send stream: %v", err)
	}
	text, err := stream.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "Hello world" {
		t.Fatalf("unexpected text %q", text)
	}
	if !stream.Completed() {
		t.Fatal("expected completed stream")
	}
}

func TestChatStreamEachStopsOnCallbackError(t *testing.T) {
	sentinel := errors.New("stop here")
	mock := NewMockClient().WithStreamEvents([]StreamEvent{
		{Kind: EventDelta, Delta: "a"},
		{Kind: EventDelta, Delta: "b"},
		{Kind: EventDone, Name: "done"},
	})

	stream, err := mock.Chat.SendStream(context.Background(), chatTurn("hi"))
	if err != nil {
		t.Fatalf("send stream: %v", err)
	}
	var seen []string
	err = stream.Each(context.Background(), func(delta string) error {
		seen = append(seen, delta)
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if len(seen) != 1 || seen[0] != "a" {
		t.Fatalf("callback failure must stop consumption, saw %v", seen)
	}
}

func TestChatStreamEachContextCancel(t *testing.T) {
	mock := NewMockClient().WithStreamEvents([]StreamEvent{
		{Kind: EventDelta, Delta: "never"},
	})

	stream, err := mock.Chat.SendStream(context.Background(), chatTurn("hi"))
	if err != nil {
		t.Fatalf("send stream: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err = stream.Each(ctx, func(string) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("callback ran %d times after cancellation", calls)
	}
}

func TestChatStreamCollectServerError(t *testing.T) {
	mock := NewMockClient().WithStreamEvents([]StreamEvent{
		{Kind: EventDelta, Delta: "partial"},
		{Kind: EventError, Name: "error", Message: "model overloaded"},
	})

	stream, err := mock.Chat.SendStream(context.Background(), chatTurn("hi"))
	if err != nil {
		t.Fatalf("send stream: %v", err)
	}
	text, err := stream.Collect(context.Background())
	var streamErr StreamError
	if !errors.As(err, &streamErr) || streamErr.Message != "model overloaded" {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if text != "" {
		t.Fatalf("failed collect must not return partial text, got %q", text)
	}
	if stream.Completed() {
		t.Fatal("errored stream must not report completion")
	}
}

func TestChatSendStreamRequestShape(t *testing.T) {
	var (
		gotPath    string
		gotAccept  string
		gotSession string
		gotAPIKey  string
		gotBody    chatRequestPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotSession = r.Header.Get(headers.SessionID)
		gotAPIKey = r.Header.Get(headers.APIKey)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set(headers.RequestID, "req-stream-1")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, frame := range []string{ssetest.DeltaFrame("Build a"), ssetest.DeltaFrame(" DAG"), ssetest.DoneFrame()} {
			_, _ = w.Write([]byte(frame))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	req := ChatRequest{
		Messages:  []ChatMessage{{Role: RoleUser, Content: "Build me an ETL pipeline"}},
		SessionID: "sess-42",
		Metadata:  map[string]string{"source": "unit"},
	}
	stream, err := client.Chat.SendStream(context.Background(), req)
	if err != nil {
		t.Fatalf("send stream: %v", err)
	}
	text, err := stream.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if text != "Build a DAG" {
		t.Fatalf("unexpected text %q", text)
	}
	if stream.RequestID() != "req-stream-1" {
		t.Fatalf("unexpected request id %q", stream.RequestID())
	}
	if !stream.Completed() {
		t.Fatal("expected completed stream")
	}
	if gotPath != routes.ChatStream {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAccept != "text/event-stream" {
		t.Fatalf("unexpected accept header %q", gotAccept)
	}
	if gotSession != "sess-42" {
		t.Fatalf("unexpected session header %q", gotSession)
	}
	if gotAPIKey != "test-key" {
		t.Fatalf("unexpected api key header %q", gotAPIKey)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Content != "Build me an ETL pipeline" {
		t.Fatalf("unexpected payload messages %+v", gotBody.Messages)
	}
	if gotBody.Metadata["source"] != "unit" {
		t.Fatalf("unexpected payload metadata %+v", gotBody.Metadata)
	}
}

func TestChatSendStreamScriptedChunks(t *testing.T) {
	wire := ssetest.Comment("keepalive") +
		ssetest.DeltaFrame("héllo") +
		ssetest.DeltaFrame(" 世界") +
		ssetest.Frame("heartbeat", "{}") +
		ssetest.DoneFrame()
	srv := ssetest.NewServer(ssetest.SplitEvery(wire, 7), ssetest.Config{
		Headers: map[string]string{headers.RequestID: "req-chunked"},
	})
	defer srv.Close()

	client := newTestClient(t, srv)
	stream, err := client.Chat.SendStream(context.Background(), chatTurn("hi"))
	if err != nil {
		t.Fatalf("send stream: %v", err)
	}
	text, err := stream.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "héllo 世界" {
		t.Fatalf("unexpected text %q", text)
	}
	if stream.RequestID() != "req-chunked" {
		t.Fatalf("unexpected request id %q", stream.RequestID())
	}
}

func TestChatSendStreamValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("invalid requests must not reach the server")
	}))
	defer srv.Close()
	client := newTestClient(t, srv)

	if _, err := client.Chat.SendStream(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected validation error for empty request")
	}
	bad := ChatRequest{Messages: []ChatMessage{{Role: "operator", Content: "hi"}}}
	if _, err := client.Chat.SendStream(context.Background(), bad); err == nil {
		t.Fatal("expected validation error for unsupported role")
	}
}

func TestChatSendStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"code": "unauthorized", "message": "invalid API key"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.Chat.SendStream(context.Background(), chatTurn("hi"))
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "unauthorized" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if apiErr.Message != "invalid API key" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}
