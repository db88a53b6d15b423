// Package genai is the contract of the AI chat/history API: request and response envelopes,
// the Client capability the conversation controller depends on, and an HTTP implementation
// for the hosted service.
package genai

import "context"

// Client asks questions and manages thread history for a workspace. Implementations return an
// error only when the call itself failed; a completed call with a non-200 status is reported in
// Response.Status.
type Client interface {
	Chat(ctx context.Context, workspaceID string, req ChatRequest) (*Response[ChatResult], error)
	ChatHistory(ctx context.Context, workspaceID string, req ChatHistoryRequest) (*Response[ChatHistoryResult], error)
}

// HealthChecker is implemented by clients that can verify backend reachability
type HealthChecker interface {
	Health(ctx context.Context) error
}
