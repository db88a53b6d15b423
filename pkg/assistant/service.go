// Package assistant answers visualization questions with an LLM when no hosted AI service is
// configured. It implements genai.Client so the conversation controller cannot tell the two
// apart.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/genai"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/history"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/llm"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/visualization"
)

// DefaultThread is used when a request carries no thread suffix
const DefaultThread = "default"

// answer is the JSON object the model is asked to produce
type answer struct {
	UseCase       string                     `json:"useCase"`
	Reasoning     string                     `json:"reasoning,omitempty"`
	TextResponse  string                     `json:"textResponse,omitempty"`
	Visualization *visualization.Description `json:"visualization"`
}

// Service implements genai.Client on top of an LLM and a history store
type Service struct {
	completer llm.Completer
	store     history.Store
	logger    log.Logger
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(l log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new assistant service
func NewService(completer llm.Completer, store history.Store, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		store:     store,
		logger:    log.DefaultLogger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ThreadKey identifies a thread across workspaces
func ThreadKey(workspaceID, suffix string) string {
	if suffix == "" {
		suffix = DefaultThread
	}
	return workspaceID + "/" + suffix
}

// Chat asks the model, stores the turn and returns it. An answer that is not a valid
// visualization object is returned as text only.
func (s *Service) Chat(ctx context.Context, workspaceID string, req genai.ChatRequest) (*genai.Response[genai.ChatResult], error) {
	thread := ThreadKey(workspaceID, req.ThreadIDSuffix)

	previous, err := s.store.Interactions(ctx, thread)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread history: %w", err)
	}

	now := s.now()
	messages := buildMessages(BuildSystemPrompt(now), previous, req.Question)

	content, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("LLM completion failed: %w", err)
	}

	interaction := s.decodeAnswer(content)
	interaction.ChatHistoryInteractionID = uuid.NewString()
	interaction.Question = req.Question
	interaction.InteractionFinished = true
	interaction.CreatedAt = now.UTC()

	if err := s.store.Append(ctx, thread, interaction); err != nil {
		s.logger.Warn("Failed to store interaction", "thread", thread, "error", err)
	}

	return &genai.Response[genai.ChatResult]{
		Status: genai.StatusOK,
		Data: genai.ChatResult{
			Routing:                  interaction.Routing,
			TextResponse:             interaction.TextResponse,
			CreatedVisualizations:    interaction.CreatedVisualizations,
			ChatHistoryInteractionID: interaction.ChatHistoryInteractionID,
			ThreadIDSuffix:           req.ThreadIDSuffix,
		},
	}, nil
}

// ChatHistory returns the stored interactions of the thread, or clears them when Reset is set
func (s *Service) ChatHistory(ctx context.Context, workspaceID string, req genai.ChatHistoryRequest) (*genai.Response[genai.ChatHistoryResult], error) {
	thread := ThreadKey(workspaceID, req.ThreadIDSuffix)

	if req.Reset {
		if err := s.store.Reset(ctx, thread); err != nil {
			return nil, fmt.Errorf("failed to reset thread: %w", err)
		}
		return &genai.Response[genai.ChatHistoryResult]{
			Status: genai.StatusOK,
			Data:   genai.ChatHistoryResult{Interactions: []genai.Interaction{}, ThreadID: thread},
		}, nil
	}

	interactions, err := s.store.Interactions(ctx, thread)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread history: %w", err)
	}

	return &genai.Response[genai.ChatHistoryResult]{
		Status: genai.StatusOK,
		Data:   genai.ChatHistoryResult{Interactions: interactions, ThreadID: thread},
	}, nil
}

// Health checks the underlying LLM provider when it supports it
func (s *Service) Health(ctx context.Context) error {
	if hc, ok := s.completer.(genai.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

func (s *Service) decodeAnswer(content string) genai.Interaction {
	var a answer
	if err := json.Unmarshal([]byte(stripFences(content)), &a); err != nil {
		s.logger.Warn("LLM answer is not a visualization object", "error", err)
		return genai.Interaction{TextResponse: content}
	}

	interaction := genai.Interaction{TextResponse: a.TextResponse}
	if a.UseCase != "" {
		interaction.Routing = &genai.Routing{UseCase: a.UseCase, Reasoning: a.Reasoning}
	}
	if a.Visualization != nil {
		if a.Visualization.ID == "" {
			a.Visualization.ID = uuid.NewString()
		}
		interaction.CreatedVisualizations = &genai.CreatedVisualizations{
			Objects:   []visualization.Description{*a.Visualization},
			Reasoning: a.Reasoning,
		}
	}
	return interaction
}

// buildMessages replays prior turns after the system prompt. Assistant turns are re-encoded
// in the answer format so the model sees its own previous visualizations.
func buildMessages(systemPrompt string, previous []genai.Interaction, question string) []llm.Message {
	messages := make([]llm.Message, 0, 2*len(previous)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	for _, in := range previous {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in.Question})
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: encodeAnswer(in)})
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: question})
}

func encodeAnswer(in genai.Interaction) string {
	a := answer{TextResponse: in.TextResponse}
	if in.Routing != nil {
		a.UseCase = in.Routing.UseCase
		a.Reasoning = in.Routing.Reasoning
	}
	a.Visualization = in.CreatedVisualizations.First()

	data, err := json.Marshal(a)
	if err != nil {
		return in.TextResponse
	}
	return string(data)
}

// stripFences removes a Markdown code fence some models wrap JSON in
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
