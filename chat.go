package dagforge

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dagforge/dagforge-go/headers"
	"github.com/dagforge/dagforge-go/routes"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one turn of a pipeline-building conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest mirrors the chat endpoint JSON contract.
type ChatRequest struct {
	Messages []ChatMessage
	// SessionID threads the conversation through a generation session.
	SessionID string
	Metadata  map[string]string
}

// Validate returns an error when required fields are missing.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	for i, msg := range r.Messages {
		switch msg.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("message %d has unsupported role %q", i, msg.Role)
		}
		if strings.TrimSpace(msg.Content) == "" {
			return fmt.Errorf("message %d has empty content", i)
		}
	}
	return nil
}

// ChatResponse is the aggregated reply from a blocking chat call.
type ChatResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"-"`
}

type chatRequestPayload struct {
	Messages []ChatMessage     `json:"messages"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func newChatRequestPayload(req ChatRequest, opts callOptions) chatRequestPayload {
	payload := chatRequestPayload{Messages: req.Messages}
	merged := make(map[string]string, len(req.Metadata)+len(opts.metadata))
	for k, v := range req.Metadata {
		merged[k] = v
	}
	for k, v := range opts.metadata {
		merged[k] = v
	}
	if len(merged) > 0 {
		payload.Metadata = merged
	}
	return payload
}

// ChatClient sends pipeline-building conversations to the backend.
type ChatClient struct {
	client *Client
}

// Send performs a blocking chat turn and returns the aggregated reply.
func (c *ChatClient) Send(ctx context.Context, req ChatRequest, options ...CallOption) (*ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, routes.Chat, newChatRequestPayload(req, opts))
	if err != nil {
		return nil, err
	}
	if req.SessionID != "" {
		httpReq.Header.Set(headers.SessionID, req.SessionID)
	}
	var resp ChatResponse
	requestID, err := c.client.sendAndDecode(httpReq, opts, &resp)
	if err != nil {
		c.client.telemetry.log(ctx, LogLevelError, "chat_send_failed", map[string]any{"error": err.Error()})
		return nil, err
	}
	resp.RequestID = requestID
	return &resp, nil
}

// SendStream opens a streaming chat turn. The reply arrives as delta
// frames on the returned ChatStream.
func (c *ChatClient) SendStream(ctx context.Context, req ChatRequest, options ...CallOption) (*ChatStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, routes.ChatStream, newChatRequestPayload(req, opts))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.SessionID != "" {
		httpReq.Header.Set(headers.SessionID, req.SessionID)
	}
	resp, err := c.client.sendWithOptions(httpReq, opts)
	if err != nil {
		c.client.telemetry.log(ctx, LogLevelError, "chat_stream_failed", map[string]any{"error": err.Error()})
		return nil, err
	}
	requestID := resp.Header.Get(headers.RequestID)
	handle := &StreamHandle{
		RequestID: requestID,
		stream:    newSSEStream(ctx, resp.Body, requestID, c.client.telemetry, opts.timeouts),
	}
	return newChatStream(handle), nil
}
