// Package llm wraps the LLM providers the self-hosted assistant can answer with.
package llm

import (
	"context"
	"errors"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a provider answers without content
var ErrEmptyResponse = errors.New("empty response from LLM provider")

// Message represents a conversation message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer returns a JSON document answering the conversation in messages
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
