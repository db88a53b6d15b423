package genai

import (
	"time"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/visualization"
)

// StatusOK is the only response status treated as success
const StatusOK = 200

// Response is the envelope of every AI API call
type Response[T any] struct {
	Status int
	Data   T
}

// OK reports whether the call succeeded
func (r *Response[T]) OK() bool {
	return r != nil && r.Status == StatusOK
}

// ChatRequest asks a question within a thread
type ChatRequest struct {
	Question       string `json:"question"`
	ThreadIDSuffix string `json:"threadIdSuffix,omitempty"`
}

// ChatHistoryRequest reads, or with Reset clears, the history of a thread
type ChatHistoryRequest struct {
	ThreadIDSuffix string `json:"threadIdSuffix,omitempty"`
	Reset          bool   `json:"reset,omitempty"`
}

// CreatedVisualizations holds the visualizations produced for one question
type CreatedVisualizations struct {
	Objects   []visualization.Description `json:"objects"`
	Reasoning string                      `json:"reasoning,omitempty"`
}

// First returns the first produced visualization or nil
func (c *CreatedVisualizations) First() *visualization.Description {
	if c == nil || len(c.Objects) == 0 {
		return nil
	}
	v := c.Objects[0]
	return &v
}

// Routing explains how the backend classified a question
type Routing struct {
	UseCase   string `json:"useCase"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ChatResult is the answer to a ChatRequest
type ChatResult struct {
	Routing                  *Routing               `json:"routing,omitempty"`
	TextResponse             string                 `json:"textResponse,omitempty"`
	CreatedVisualizations    *CreatedVisualizations `json:"createdVisualizations,omitempty"`
	ChatHistoryInteractionID string                 `json:"chatHistoryInteractionId,omitempty"`
	ThreadIDSuffix           string                 `json:"threadIdSuffix,omitempty"`
}

// Interaction is one question/answer turn of a thread
type Interaction struct {
	ChatHistoryInteractionID string                 `json:"chatHistoryInteractionId"`
	Question                 string                 `json:"question"`
	InteractionFinished      bool                   `json:"interactionFinished"`
	Routing                  *Routing               `json:"routing,omitempty"`
	TextResponse             string                 `json:"textResponse,omitempty"`
	CreatedVisualizations    *CreatedVisualizations `json:"createdVisualizations,omitempty"`
	CreatedAt                time.Time              `json:"createdAt,omitzero"`
}

// ChatHistoryResult lists the interactions of a thread, oldest first
type ChatHistoryResult struct {
	Interactions []Interaction `json:"interactions"`
	ThreadID     string        `json:"threadId,omitempty"`
}

// LastVisualization returns the first visualization of the most recent interaction, or nil
func (h *ChatHistoryResult) LastVisualization() *visualization.Description {
	if h == nil || len(h.Interactions) == 0 {
		return nil
	}
	return h.Interactions[len(h.Interactions)-1].CreatedVisualizations.First()
}
