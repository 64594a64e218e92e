package dagforge

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMockClientUnconfigured(t *testing.T) {
	mock := NewMockClient()
	ctx := context.Background()

	_, err := mock.Chat.Send(ctx, chatTurn("hi"))
	var mockErr MockClientError
	if !errors.As(err, &mockErr) {
		t.Fatalf("expected MockClientError, got %v", err)
	}
	if mockErr.Reason != "no chat responses configured" {
		t.Fatalf("unexpected reason %q", mockErr.Reason)
	}
	if err.Error() != "mock client: no chat responses configured" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	_, err = mock.Chat.SendStream(ctx, chatTurn("hi"))
	if !errors.As(err, &mockErr) || mockErr.Reason != "no stream events configured" {
		t.Fatalf("unexpected stream error %v", err)
	}
}

func TestMockClientSendOrder(t *testing.T) {
	transient := errors.New("transient")
	mock := NewMockClient().
		WithChatResponse(ChatResponse{Message: "first"}).
		WithChatError(transient).
		WithChatResponse(ChatResponse{Message: "third"})
	ctx := context.Background()

	resp, err := mock.Chat.Send(ctx, chatTurn("one"))
	if err != nil || resp.Message != "first" {
		t.Fatalf("unexpected first reply %v %v", resp, err)
	}
	if _, err := mock.Chat.Send(ctx, chatTurn("two")); !errors.Is(err, transient) {
		t.Fatalf("expected queued error, got %v", err)
	}
	resp, err = mock.Chat.Send(ctx, chatTurn("three"))
	if err != nil || resp.Message != "third" {
		t.Fatalf("unexpected third reply %v %v", resp, err)
	}

	var mockErr MockClientError
	if _, err := mock.Chat.Send(ctx, chatTurn("four")); !errors.As(err, &mockErr) {
		t.Fatalf("expected exhausted queue, got %v", err)
	}
}

func TestMockClientValidatesBeforeDequeue(t *testing.T) {
	mock := NewMockClient().WithChatResponse(ChatResponse{Message: "kept"})
	ctx := context.Background()

	_, err := mock.Chat.Send(ctx, ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "at least one message is required") {
		t.Fatalf("unexpected validation error %v", err)
	}
	_, err = mock.Chat.Send(ctx, ChatRequest{Messages: []ChatMessage{{Role: "operator", Content: "hi"}}})
	if err == nil || !strings.Contains(err.Error(), `unsupported role "operator"`) {
		t.Fatalf("unexpected validation error %v", err)
	}

	// Rejected requests must not consume the queue.
	resp, err := mock.Chat.Send(ctx, chatTurn("ok"))
	if err != nil || resp.Message != "kept" {
		t.Fatalf("queued response lost: %v %v", resp, err)
	}
}

func TestMockClientStreamTerminals(t *testing.T) {
	ctx := context.Background()

	t.Run("done completes the stream", func(t *testing.T) {
		mock := NewMockClient().WithStreamEvents([]StreamEvent{
			{Kind: EventDelta, Delta: "Hello "},
			{Kind: EventDelta, Delta: "world"},
			{Kind: EventDone},
		})
		stream, err := mock.Chat.SendStream(ctx, chatTurn("hi"))
		if err != nil {
			t.Fatalf("send stream: %v", err)
		}
		text, err := stream.Collect(ctx)
		if err != nil || text != "Hello world" {
			t.Fatalf("unexpected collect %q %v", text, err)
		}
		if !stream.Completed() {
			t.Fatal("expected completed stream")
		}
	})

	t.Run("running out of events is clean but incomplete", func(t *testing.T) {
		mock := NewMockClient().WithStreamEvents([]StreamEvent{
			{Kind: EventDelta, Delta: "partial"},
		})
		stream, err := mock.Chat.SendStream(ctx, chatTurn("hi"))
		if err != nil {
			t.Fatalf("send stream: %v", err)
		}
		text, err := stream.Collect(ctx)
		if err != nil || text != "partial" {
			t.Fatalf("unexpected collect %q %v", text, err)
		}
		if stream.Completed() {
			t.Fatal("a stream without a done event must not report completion")
		}
	})

	t.Run("error event surfaces as StreamError", func(t *testing.T) {
		mock := NewMockClient().WithStreamEvents([]StreamEvent{
			{Kind: EventDelta, Delta: "partial"},
			{Kind: EventError, Message: "overloaded"},
		})
		stream, err := mock.Chat.SendStream(ctx, chatTurn("hi"))
		if err != nil {
			t.Fatalf("send stream: %v", err)
		}
		_, err = stream.Collect(ctx)
		var streamErr StreamError
		if !errors.As(err, &streamErr) || streamErr.Message != "overloaded" {
			t.Fatalf("unexpected error %v", err)
		}
	})
}

func TestMockClientStreamQueueIndependent(t *testing.T) {
	mock := NewMockClient().
		WithChatResponse(ChatResponse{Message: "blocking"}).
		WithStreamError(errors.New("stream down"))
	ctx := context.Background()

	if _, err := mock.Chat.SendStream(ctx, chatTurn("hi")); err == nil || err.Error() != "stream down" {
		t.Fatalf("unexpected stream error %v", err)
	}
	resp, err := mock.Chat.Send(ctx, chatTurn("hi"))
	if err != nil || resp.Message != "blocking" {
		t.Fatalf("send queue disturbed: %v %v", resp, err)
	}
}
