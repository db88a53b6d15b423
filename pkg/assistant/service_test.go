package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/genai"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/history"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/llm"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/visualization"
)

type fakeCompleter struct {
	answers  []string
	err      error
	requests [][]llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.requests = append(f.requests, messages)
	if f.err != nil {
		return "", f.err
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

const barAnswer = `{
	"useCase": "CREATE_VISUALIZATION",
	"reasoning": "asks for revenue split",
	"textResponse": "Here is revenue by region.",
	"visualization": {
		"id": "revenue-by-region",
		"title": "Revenue by Region",
		"visualizationType": "BAR",
		"metrics": [{"id": "revenue", "type": "metric"}],
		"dimensionality": [{"id": "region"}],
		"filters": [{"using": "date", "granularity": "YEAR", "from": -1, "to": 0}]
	}
}`

var fixedNow = time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)

func newService(c llm.Completer) (*Service, history.Store) {
	store := history.NewMemoryStore(0)
	return NewService(c, store, WithClock(func() time.Time { return fixedNow })), store
}

func TestChatCreatesVisualization(t *testing.T) {
	c := &fakeCompleter{answers: []string{barAnswer}}
	s, store := newService(c)

	resp, err := s.Chat(context.Background(), "ws1", genai.ChatRequest{Question: "Revenue by region", ThreadIDSuffix: "dash"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !resp.OK() {
		t.Fatalf("Chat() status = %d", resp.Status)
	}

	got := resp.Data.CreatedVisualizations.First()
	if got == nil {
		t.Fatal("Chat() returned no visualization")
	}
	want := &visualization.Description{
		ID:                "revenue-by-region",
		Title:             "Revenue by Region",
		VisualizationType: "BAR",
		Metrics:           []visualization.Metric{{ID: "revenue", Type: visualization.MetricPredefined}},
		Dimensionality:    []visualization.Dimension{{ID: "region"}},
		Filters:           []visualization.Filter{visualization.NewRelativeDateFilter("date", visualization.GranularityYear, -1, 0)},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(visualization.Filter{})); diff != "" {
		t.Errorf("visualization mismatch (-want +got):\n%s", diff)
	}
	if resp.Data.Routing == nil || resp.Data.Routing.UseCase != UseCaseCreateVisualization {
		t.Errorf("Routing = %+v", resp.Data.Routing)
	}
	if resp.Data.ChatHistoryInteractionID == "" {
		t.Error("ChatHistoryInteractionID should be set")
	}

	stored, _ := store.Interactions(context.Background(), "ws1/dash")
	if len(stored) != 1 {
		t.Fatalf("stored %d interactions, want 1", len(stored))
	}
	if stored[0].Question != "Revenue by region" || !stored[0].InteractionFinished || !stored[0].CreatedAt.Equal(fixedNow) {
		t.Errorf("stored interaction = %+v", stored[0])
	}
}

func TestChatReplaysHistory(t *testing.T) {
	c := &fakeCompleter{answers: []string{barAnswer, barAnswer}}
	s, _ := newService(c)
	ctx := context.Background()

	s.Chat(ctx, "ws1", genai.ChatRequest{Question: "first"})
	s.Chat(ctx, "ws1", genai.ChatRequest{Question: "second"})

	msgs := c.requests[1]
	if len(msgs) != 4 {
		t.Fatalf("second request has %d messages, want 4", len(msgs))
	}
	roles := []string{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role}
	if diff := cmp.Diff([]string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleUser}, roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	if msgs[1].Content != "first" || msgs[3].Content != "second" {
		t.Errorf("questions = %q, %q", msgs[1].Content, msgs[3].Content)
	}
	if !strings.Contains(msgs[2].Content, `"revenue-by-region"`) {
		t.Errorf("assistant turn should carry the previous visualization: %s", msgs[2].Content)
	}
	if !strings.Contains(msgs[0].Content, "Today is 2024-05-17.") {
		t.Error("system prompt should carry the current day")
	}
}

func TestChatUndecodableAnswer(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{name: "prose", answer: "I cannot help with that."},
		{name: "unknown granularity", answer: `{"useCase":"CREATE_VISUALIZATION","visualization":{"id":"x","visualizationType":"BAR","metrics":[],"dimensionality":[],"filters":[{"using":"d","granularity":"FORTNIGHT","from":0,"to":0}]}}`},
		{name: "unknown metric type", answer: `{"useCase":"CREATE_VISUALIZATION","visualization":{"id":"x","visualizationType":"BAR","metrics":[{"id":"m","type":"kpi"}],"dimensionality":[],"filters":[]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newService(&fakeCompleter{answers: []string{tt.answer}})

			resp, err := s.Chat(context.Background(), "ws1", genai.ChatRequest{Question: "q"})
			if err != nil {
				t.Fatalf("Chat() error = %v", err)
			}
			if !resp.OK() {
				t.Errorf("Chat() status = %d, want 200", resp.Status)
			}
			if resp.Data.CreatedVisualizations.First() != nil {
				t.Error("undecodable answer should carry no visualization")
			}
			if resp.Data.TextResponse != tt.answer {
				t.Errorf("TextResponse = %q, want raw answer", resp.Data.TextResponse)
			}
		})
	}
}

func TestChatGeneralQuestion(t *testing.T) {
	s, _ := newService(&fakeCompleter{answers: []string{"```json\n{\"useCase\":\"GENERAL\",\"textResponse\":\"Hello!\",\"visualization\":null}\n```"}})

	resp, err := s.Chat(context.Background(), "ws1", genai.ChatRequest{Question: "hi"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Data.TextResponse != "Hello!" || resp.Data.CreatedVisualizations != nil {
		t.Errorf("Chat() = %+v", resp.Data)
	}
}

func TestChatCompleterError(t *testing.T) {
	c := &fakeCompleter{err: errors.New("rate limited")}
	s, store := newService(c)

	if _, err := s.Chat(context.Background(), "ws1", genai.ChatRequest{Question: "q"}); err == nil {
		t.Fatal("Chat() should fail when the completer fails")
	}
	stored, _ := store.Interactions(context.Background(), ThreadKey("ws1", ""))
	if len(stored) != 0 {
		t.Error("failed turn should not be stored")
	}
}

func TestChatHistory(t *testing.T) {
	c := &fakeCompleter{answers: []string{barAnswer}}
	s, _ := newService(c)
	ctx := context.Background()

	s.Chat(ctx, "ws1", genai.ChatRequest{Question: "q", ThreadIDSuffix: "d1"})

	resp, err := s.ChatHistory(ctx, "ws1", genai.ChatHistoryRequest{ThreadIDSuffix: "d1"})
	if err != nil {
		t.Fatalf("ChatHistory() error = %v", err)
	}
	if vis := resp.Data.LastVisualization(); vis == nil || vis.ID != "revenue-by-region" {
		t.Errorf("LastVisualization() = %+v", vis)
	}

	other, _ := s.ChatHistory(ctx, "ws2", genai.ChatHistoryRequest{ThreadIDSuffix: "d1"})
	if len(other.Data.Interactions) != 0 {
		t.Error("threads must be scoped by workspace")
	}

	reset, err := s.ChatHistory(ctx, "ws1", genai.ChatHistoryRequest{ThreadIDSuffix: "d1", Reset: true})
	if err != nil || !reset.OK() {
		t.Fatalf("ChatHistory(reset) = %+v, %v", reset, err)
	}

	after, _ := s.ChatHistory(ctx, "ws1", genai.ChatHistoryRequest{ThreadIDSuffix: "d1"})
	if len(after.Data.Interactions) != 0 {
		t.Errorf("history after reset has %d interactions", len(after.Data.Interactions))
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(fixedNow)

	for _, want := range []string{"QUARTER_OF_YEAR", "HEADLINE", `"include"`, "Today is 2024-05-17."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "%!") {
		t.Error("prompt has formatting errors")
	}
}
