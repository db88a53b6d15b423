package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grafana/grafana-plugin-sdk-go/backend"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/dashboard"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/genai"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/history"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/render"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/visualization"
)

type fakeClient struct {
	mu        sync.Mutex
	questions []string
	history   []genai.ChatHistoryRequest
	chatErr   error
	healthErr error
}

func (f *fakeClient) Chat(_ context.Context, _ string, req genai.ChatRequest) (*genai.Response[genai.ChatResult], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, req.Question)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &genai.Response[genai.ChatResult]{
		Status: genai.StatusOK,
		Data: genai.ChatResult{
			CreatedVisualizations: &genai.CreatedVisualizations{
				Objects: []visualization.Description{{
					ID:                "v1",
					Title:             "Revenue by Region",
					VisualizationType: "BAR",
					Metrics:           []visualization.Metric{{ID: "revenue", Type: visualization.MetricPredefined}},
					Dimensionality:    []visualization.Dimension{{ID: "region"}},
				}},
			},
		},
	}, nil
}

func (f *fakeClient) ChatHistory(_ context.Context, _ string, req genai.ChatHistoryRequest) (*genai.Response[genai.ChatHistoryResult], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, req)
	return &genai.Response[genai.ChatHistoryResult]{
		Status: genai.StatusOK,
		Data:   genai.ChatHistoryResult{Interactions: []genai.Interaction{}},
	}, nil
}

func (f *fakeClient) Health(context.Context) error {
	return f.healthErr
}

func (f *fakeClient) historyCalls() []genai.ChatHistoryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]genai.ChatHistoryRequest(nil), f.history...)
}

const hostedJSON = `{"api_url":"https://ai.example.com","workspace_id":"ws1"}`

func newTestPlugin(client genai.Client) *Plugin {
	p := NewPlugin()
	p.newClient = func(context.Context, *PluginSettings) (genai.Client, history.Store, error) {
		return client, nil, nil
	}
	return p
}

func pluginContext(jsonData string) backend.PluginContext {
	return backend.PluginContext{
		OrgID: 1,
		AppInstanceSettings: &backend.AppInstanceSettings{
			JSONData:                []byte(jsonData),
			DecryptedSecureJSONData: map[string]string{"api_token": "tok"},
		},
	}
}

func call(t *testing.T, p *Plugin, method, path, body string) []*backend.CallResourceResponse {
	t.Helper()

	var responses []*backend.CallResourceResponse
	sender := backend.CallResourceResponseSenderFunc(func(res *backend.CallResourceResponse) error {
		responses = append(responses, res)
		return nil
	})

	err := p.CallResource(context.Background(), &backend.CallResourceRequest{
		PluginContext: pluginContext(hostedJSON),
		Path:          path,
		Method:        method,
		Body:          []byte(body),
	}, sender)
	if err != nil {
		t.Fatalf("CallResource(%s %s) error = %v", method, path, err)
	}
	if len(responses) == 0 {
		t.Fatalf("CallResource(%s %s) sent no response", method, path)
	}
	return responses
}

func decode[T any](t *testing.T, res *backend.CallResourceResponse) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(res.Body, &v); err != nil {
		t.Fatalf("invalid response body %s: %v", res.Body, err)
	}
	return v
}

// mounted opens the dashboard conversation and waits for the history load to finish
func mounted(t *testing.T, p *Plugin, dashboardID string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res := call(t, p, "GET", "conversations/"+dashboardID, "")
		if decode[ConversationResponse](t, res[0]).View.Mode != render.ModeLoading {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("conversation did not finish loading")
}

func TestManifest(t *testing.T) {
	p := newTestPlugin(&fakeClient{})

	res := call(t, p, "GET", "manifest", "")
	if res[0].Status != 200 {
		t.Fatalf("status = %d", res[0].Status)
	}

	got := decode[ManifestResponse](t, res[0])
	if len(got.Widgets) != 1 || got.Widgets[0] != dashboard.WidgetType {
		t.Errorf("Widgets = %v", got.Widgets)
	}
	if got.Metadata.DisplayName != dashboard.DefaultMetadata.DisplayName || got.Backend != BackendHosted {
		t.Errorf("manifest = %+v", got)
	}
}

func TestLayout(t *testing.T) {
	p := newTestPlugin(&fakeClient{})

	res := call(t, p, "POST", "layout", `{"layout":{"sections":[{"header":"KPIs","items":[]}]}}`)
	if res[0].Status != 200 {
		t.Fatalf("status = %d: %s", res[0].Status, res[0].Body)
	}

	got := decode[LayoutResponse](t, res[0])
	if got.DashboardID != dashboard.DefaultDashboardID {
		t.Errorf("DashboardID = %q", got.DashboardID)
	}
	if len(got.Layout.Sections) != 2 || got.Layout.Sections[1].Header != dashboard.SectionHeader {
		t.Errorf("Layout = %+v", got.Layout)
	}

	if res := call(t, p, "POST", "layout", `not json`); res[0].Status != 400 {
		t.Errorf("invalid body status = %d, want 400", res[0].Status)
	}
}

func TestRouting(t *testing.T) {
	p := newTestPlugin(&fakeClient{})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "unknown", 404},
		{"GET", "conversations/d1/unknown", 404},
		{"GET", "conversations/d1/a/b", 404},
		{"POST", "manifest", 405},
		{"GET", "layout", 405},
		{"GET", "conversations/d1/submit", 405},
		{"POST", "conversations/d1/question", 405},
		{"DELETE", "conversations/d1", 405},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			res := call(t, p, tt.method, tt.path, "")
			if res[0].Status != tt.want {
				t.Errorf("status = %d, want %d", res[0].Status, tt.want)
			}
		})
	}
}

func TestConversationLifecycle(t *testing.T) {
	client := &fakeClient{}
	p := newTestPlugin(client)
	mounted(t, p, "d1")

	res := call(t, p, "PUT", "conversations/d1/question", `{"question":"Revenue by region"}`)
	got := decode[ConversationResponse](t, res[0])
	if got.View.Form == nil || got.View.Form.Question != "Revenue by region" || !got.View.Form.CanSubmit {
		t.Fatalf("view after question = %+v", got.View)
	}
	if got.ThreadID != "d1" {
		t.Errorf("ThreadID = %q, want d1", got.ThreadID)
	}

	res = call(t, p, "POST", "conversations/d1/submit", "")
	got = decode[ConversationResponse](t, res[0])
	if got.View.Mode != render.ModeChart || got.View.Result == nil {
		t.Fatalf("view after submit = %+v", got.View)
	}
	if got.View.Result.Chart.Component != render.ComponentBarChart || got.View.Result.Title != "Revenue by Region" {
		t.Errorf("result = %+v", got.View.Result)
	}

	res = call(t, p, "POST", "conversations/d1/reset", "")
	got = decode[ConversationResponse](t, res[0])
	if got.View.Mode != render.ModeForm {
		t.Errorf("view after reset = %+v", got.View)
	}

	calls := client.historyCalls()
	if len(calls) != 2 || calls[0].Reset || !calls[1].Reset || calls[1].ThreadIDSuffix != "d1" {
		t.Errorf("history calls = %+v", calls)
	}
}

func TestSubmitWithQuestionInBody(t *testing.T) {
	client := &fakeClient{}
	p := newTestPlugin(client)
	mounted(t, p, "d2")

	res := call(t, p, "POST", "conversations/d2/submit", `{"question":"Orders by month"}`)
	if got := decode[ConversationResponse](t, res[0]); got.View.Mode != render.ModeChart {
		t.Errorf("view = %+v", got.View)
	}
	if len(client.questions) != 1 || client.questions[0] != "Orders by month" {
		t.Errorf("questions = %v", client.questions)
	}
}

func TestSubmitFaultIsShownInView(t *testing.T) {
	p := newTestPlugin(&fakeClient{chatErr: errors.New("connection refused")})
	mounted(t, p, "d1")

	res := call(t, p, "POST", "conversations/d1/submit", `{"question":"Revenue"}`)
	if res[0].Status != 200 {
		t.Fatalf("status = %d", res[0].Status)
	}
	got := decode[ConversationResponse](t, res[0])
	if got.View.Form == nil || got.View.Form.Notice == nil {
		t.Fatalf("view = %+v", got.View)
	}
	if got.View.Form.Question != "Revenue" {
		t.Errorf("question should be kept after a fault, got %q", got.View.Form.Question)
	}
}

func TestSubmitRateLimit(t *testing.T) {
	p := NewPlugin()
	client := &fakeClient{}
	p.newClient = func(context.Context, *PluginSettings) (genai.Client, history.Store, error) {
		return client, nil, nil
	}

	limited := func(path string) int {
		var status int
		p.CallResource(context.Background(), &backend.CallResourceRequest{
			PluginContext: pluginContext(`{"api_url":"https://ai.example.com","workspace_id":"ws1","rate_limit_rps":0.001,"rate_limit_burst":1}`),
			Path:          path,
			Method:        "POST",
			Body:          []byte(`{"question":"q"}`),
		}, backend.CallResourceResponseSenderFunc(func(res *backend.CallResourceResponse) error {
			if status == 0 {
				status = res.Status
			}
			return nil
		}))
		return status
	}

	if got := limited("conversations/d1/submit"); got != 200 {
		t.Fatalf("first submit status = %d, want 200", got)
	}
	if got := limited("conversations/d1/submit"); got != 429 {
		t.Errorf("second submit status = %d, want 429", got)
	}
	if got := limited("conversations/d1/submit-stream"); got != 429 {
		t.Errorf("stream submit status = %d, want 429", got)
	}
}

func TestSubmitStream(t *testing.T) {
	p := newTestPlugin(&fakeClient{})
	mounted(t, p, "d1")

	res := call(t, p, "POST", "conversations/d1/submit-stream", `{"question":"Revenue by region"}`)
	if res[0].Status != 200 || res[0].Headers["Content-Type"][0] != "text/event-stream" {
		t.Fatalf("stream header = %+v", res[0])
	}
	if len(res) < 2 {
		t.Fatalf("got %d responses, want events", len(res))
	}

	var last ConversationResponse
	for _, ev := range res[1:] {
		body := string(ev.Body)
		if !strings.HasPrefix(body, "data: ") || !strings.HasSuffix(body, "\n\n") {
			t.Fatalf("malformed event %q", body)
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(body, "data: "))), &last); err != nil {
			t.Fatalf("invalid event payload: %v", err)
		}
	}
	if last.View.Mode != render.ModeChart {
		t.Errorf("last event view = %+v", last.View)
	}
}

func TestHealth(t *testing.T) {
	client := &fakeClient{}
	p := newTestPlugin(client)

	res := call(t, p, "GET", "health", "")
	if res[0].Status != 200 || decode[HealthResponse](t, res[0]).Status != "healthy" {
		t.Errorf("health = %d %s", res[0].Status, res[0].Body)
	}

	client.healthErr = errors.New("401 unauthorized")
	res = call(t, p, "GET", "health", "")
	got := decode[HealthResponse](t, res[0])
	if res[0].Status != 503 || got.Error != "401 unauthorized" {
		t.Errorf("health = %d %+v", res[0].Status, got)
	}
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name      string
		jsonData  string
		healthErr error
		want      backend.HealthStatus
	}{
		{name: "reachable", jsonData: hostedJSON, want: backend.HealthStatusOk},
		{name: "unreachable", jsonData: hostedJSON, healthErr: errors.New("timeout"), want: backend.HealthStatusError},
		{name: "invalid settings", jsonData: `{"backend":"watson"}`, want: backend.HealthStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlugin(&fakeClient{healthErr: tt.healthErr})

			got, err := p.CheckHealth(context.Background(), &backend.CheckHealthRequest{PluginContext: pluginContext(tt.jsonData)})
			if err != nil {
				t.Fatalf("CheckHealth() error = %v", err)
			}
			if got.Status != tt.want {
				t.Errorf("CheckHealth() = %v %q, want %v", got.Status, got.Message, tt.want)
			}
		})
	}
}

func TestInstanceRebuiltOnSettingsChange(t *testing.T) {
	p := newTestPlugin(&fakeClient{})
	ctx := context.Background()

	pc := pluginContext(hostedJSON)
	first, err := p.getInstance(ctx, pc)
	if err != nil {
		t.Fatalf("getInstance() error = %v", err)
	}
	same, _ := p.getInstance(ctx, pc)
	if same != first {
		t.Error("unchanged settings should reuse the instance")
	}

	pc.AppInstanceSettings.Updated = time.Now()
	pc.AppInstanceSettings.JSONData = []byte(`{"api_url":"https://ai.example.com","workspace_id":"ws2"}`)
	second, err := p.getInstance(ctx, pc)
	if err != nil {
		t.Fatalf("getInstance() error = %v", err)
	}
	if second == first || second.settings.WorkspaceID != "ws2" {
		t.Error("changed settings should rebuild the instance")
	}
}

func TestInstanceRebuiltWithBadgerHistory(t *testing.T) {
	p := NewPlugin()
	ctx := context.Background()
	dir := t.TempDir()

	pc := backend.PluginContext{
		OrgID: 1,
		AppInstanceSettings: &backend.AppInstanceSettings{
			JSONData:                []byte(`{"backend":"openai","history_path":` + strconv.Quote(dir) + `}`),
			DecryptedSecureJSONData: map[string]string{"openai_api_key": "sk"},
		},
	}

	first, err := p.getInstance(ctx, pc)
	if err != nil {
		t.Fatalf("getInstance() error = %v", err)
	}

	pc.AppInstanceSettings.Updated = time.Now()
	pc.AppInstanceSettings.JSONData = []byte(`{"backend":"openai","openai_model":"gpt-4o-mini","history_path":` + strconv.Quote(dir) + `}`)

	second, err := p.getInstance(ctx, pc)
	if err != nil {
		t.Fatalf("getInstance() after settings change error = %v", err)
	}
	t.Cleanup(second.dispose)

	if second == first || second.settings.OpenAIModel != "gpt-4o-mini" {
		t.Fatal("changed settings should rebuild the instance")
	}
	if err := second.store.Append(ctx, "ws/t", genai.Interaction{Question: "q"}); err != nil {
		t.Errorf("Append() on rebuilt store error = %v", err)
	}
	if err := first.store.Append(ctx, "ws/t", genai.Interaction{Question: "q"}); !errors.Is(err, history.ErrClosed) {
		t.Errorf("Append() on replaced store error = %v, want ErrClosed", err)
	}

	again, err := p.getInstance(ctx, pc)
	if err != nil || again != second {
		t.Errorf("getInstance() = %p, %v; want the rebuilt instance", again, err)
	}
}

func TestControllerWithoutRegisteredWidget(t *testing.T) {
	settings, _ := LoadSettings([]byte(hostedJSON), map[string]string{"api_token": "tok"})
	i := &Instance{
		settings:    settings,
		client:      &fakeClient{},
		dashboard:   &dashboard.Plugin{Metadata: dashboard.DefaultMetadata, Registry: dashboard.NewRegistry()},
		controllers: cache.New(time.Minute, time.Minute),
		limiter:     rate.NewLimiter(rate.Inf, 1),
		logger:      log.DefaultLogger,
	}

	if got := i.controller("d9").ThreadID(); got != "d9" {
		t.Errorf("ThreadID() = %q, want d9", got)
	}
}

func TestNewClientSelfHosted(t *testing.T) {
	s := &PluginSettings{Backend: BackendOpenAI, OpenAIAPIKey: "sk", HistoryPath: t.TempDir()}

	client, store, err := newClient(context.Background(), s)
	if err != nil {
		t.Fatalf("newClient() error = %v", err)
	}
	defer store.Close()

	if _, ok := store.(*history.BadgerStore); !ok {
		t.Errorf("store = %T, want *history.BadgerStore", store)
	}
	if _, ok := client.(genai.HealthChecker); !ok {
		t.Error("self-hosted client should support health checks")
	}
}

func TestNewClientHosted(t *testing.T) {
	s := &PluginSettings{Backend: BackendHosted, APIURL: "https://ai.example.com", WorkspaceID: "ws", APIToken: "tok", RequestTimeoutSeconds: 5}

	client, store, err := newClient(context.Background(), s)
	if err != nil {
		t.Fatalf("newClient() error = %v", err)
	}
	if store != nil {
		t.Errorf("hosted backend should have no history store")
	}
	if _, ok := client.(*genai.HTTPClient); !ok {
		t.Errorf("client = %T, want *genai.HTTPClient", client)
	}
}
