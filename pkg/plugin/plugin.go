package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/grafana/grafana-plugin-sdk-go/backend"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/assistant"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/conversation"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/dashboard"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/genai"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/history"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/llm"
)

// Make sure Plugin implements required interfaces
var (
	_ backend.CallResourceHandler = (*Plugin)(nil)
	_ backend.CheckHealthHandler  = (*Plugin)(nil)
)

// ErrNotFound is returned for resource paths the plugin does not serve
var ErrNotFound = errors.New("not found")

const healthTimeout = 5 * time.Second

// clientFactory builds the AI backend client for a set of settings. The returned store is
// nil for the hosted backend.
type clientFactory func(ctx context.Context, settings *PluginSettings) (genai.Client, history.Store, error)

// Plugin is the main plugin struct that manages instances
type Plugin struct {
	mu        sync.RWMutex
	instances map[int64]*Instance
	newClient clientFactory
}

// Instance holds the per-organization state of the app
type Instance struct {
	settings    *PluginSettings
	client      genai.Client
	store       history.Store
	dashboard   *dashboard.Plugin
	controllers *cache.Cache
	limiter     *rate.Limiter
	logger      log.Logger
	updated     time.Time

	// serializes controller creation so each dashboard gets one controller
	mu sync.Mutex
}

// NewPlugin creates a new Plugin
func NewPlugin() *Plugin {
	return &Plugin{
		instances: make(map[int64]*Instance),
		newClient: newClient,
	}
}

// CallResource handles HTTP requests to plugin resources
func (p *Plugin) CallResource(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	log.DefaultLogger.Debug("CallResource", "path", req.Path, "method", req.Method)

	// Get or create instance
	instance, err := p.getInstance(ctx, req.PluginContext)
	if err != nil {
		log.DefaultLogger.Error("Failed to get plugin instance", "org_id", req.PluginContext.OrgID, "error", err)
		return sendError(sender, 500, fmt.Sprintf("Failed to get plugin instance: %v", err))
	}

	return instance.route(ctx, req, sender)
}

// CheckHealth reports whether the configured AI backend is reachable
func (p *Plugin) CheckHealth(ctx context.Context, req *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
	instance, err := p.getInstance(ctx, req.PluginContext)
	if err != nil {
		return &backend.CheckHealthResult{
			Status:  backend.HealthStatusError,
			Message: fmt.Sprintf("Invalid configuration: %v", err),
		}, nil
	}

	if err := instance.health(ctx); err != nil {
		return &backend.CheckHealthResult{
			Status:  backend.HealthStatusError,
			Message: fmt.Sprintf("%s backend unreachable: %v", instance.settings.Backend, err),
		}, nil
	}

	return &backend.CheckHealthResult{
		Status:  backend.HealthStatusOk,
		Message: fmt.Sprintf("%s backend is reachable", instance.settings.Backend),
	}, nil
}

// getInstance gets or creates an instance for the given plugin context. Instances are
// rebuilt when the app settings change.
func (p *Plugin) getInstance(ctx context.Context, pluginCtx backend.PluginContext) (*Instance, error) {
	instanceID := pluginCtx.OrgID
	updated := settingsUpdated(pluginCtx)

	// Check if instance already exists
	p.mu.RLock()
	instance, exists := p.instances[instanceID]
	p.mu.RUnlock()

	if exists && instance.updated.Equal(updated) {
		return instance, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	instance, exists = p.instances[instanceID]
	if exists && instance.updated.Equal(updated) {
		return instance, nil
	}

	// The old instance must release its history store first: badger locks its directory.
	if exists {
		delete(p.instances, instanceID)
		instance.dispose()
	}

	fresh, err := p.createInstance(ctx, pluginCtx)
	if err != nil {
		return nil, err
	}

	p.instances[instanceID] = fresh
	return fresh, nil
}

func settingsUpdated(pluginCtx backend.PluginContext) time.Time {
	if pluginCtx.AppInstanceSettings == nil {
		return time.Time{}
	}
	return pluginCtx.AppInstanceSettings.Updated
}

// createInstance creates a new plugin instance
func (p *Plugin) createInstance(ctx context.Context, pluginCtx backend.PluginContext) (*Instance, error) {
	logger := log.DefaultLogger.With("org_id", pluginCtx.OrgID)
	logger.Info("Creating new plugin instance")

	var jsonData []byte
	var decryptedSecrets map[string]string

	if pluginCtx.AppInstanceSettings != nil {
		jsonData = pluginCtx.AppInstanceSettings.JSONData
		decryptedSecrets = pluginCtx.AppInstanceSettings.DecryptedSecureJSONData
	}

	// Parse plugin settings
	pluginSettings, err := LoadSettings(jsonData, decryptedSecrets)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings
	if err := pluginSettings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	client, store, err := p.newClient(ctx, pluginSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", pluginSettings.Backend, err)
	}

	ttl := pluginSettings.ConversationTTL()
	logger.Info("Plugin instance ready", "backend", pluginSettings.Backend, "workspace", pluginSettings.WorkspaceID)

	return &Instance{
		settings:    pluginSettings,
		client:      client,
		store:       store,
		dashboard:   dashboard.NewPlugin(dashboard.DefaultMetadata),
		controllers: cache.New(ttl, ttl/2),
		limiter:     rate.NewLimiter(pluginSettings.SubmitLimit(), pluginSettings.RateLimitBurst),
		logger:      logger,
		updated:     settingsUpdated(pluginCtx),
	}, nil
}

// newClient wires the configured backend: the hosted AI API, or an LLM with a history store
func newClient(ctx context.Context, s *PluginSettings) (genai.Client, history.Store, error) {
	var completer llm.Completer

	switch s.Backend {
	case BackendHosted:
		return genai.NewHTTPClient(genai.HTTPConfig{
			BaseURL:    s.APIURL,
			Token:      s.APIToken,
			Timeout:    s.RequestTimeout(),
			RetryCount: s.RetryCount,
		}, s.WorkspaceID), nil, nil
	case BackendOpenAI:
		c, err := llm.NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIModel)
		if err != nil {
			return nil, nil, err
		}
		completer = c
	case BackendGemini:
		c, err := llm.NewGeminiClient(ctx, s.GeminiAPIKey, s.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		completer = c
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", s.Backend)
	}

	var store history.Store = history.NewMemoryStore(s.MaxInteractions)
	if s.HistoryPath != "" {
		bs, err := history.NewBadgerStore(s.HistoryPath, s.MaxInteractions)
		if err != nil {
			return nil, nil, err
		}
		store = bs
	}

	return assistant.NewService(completer, store), store, nil
}

// controller returns the conversation of a dashboard, creating and mounting it on first use.
// Every access extends the conversation's lifetime.
func (i *Instance) controller(dashboardID string) *conversation.Controller {
	i.mu.Lock()
	defer i.mu.Unlock()

	if v, ok := i.controllers.Get(dashboardID); ok {
		ctrl := v.(*conversation.Controller)
		i.controllers.SetDefault(dashboardID, ctrl)
		return ctrl
	}

	factory, ok := i.dashboard.Registry.Widget(dashboard.WidgetType)
	if !ok {
		factory = dashboard.DashboardID
	}
	ctrl := conversation.New(i.client, i.settings.WorkspaceID, factory(dashboardID),
		conversation.WithLogger(i.logger.With("dashboard", dashboardID)))
	i.controllers.SetDefault(dashboardID, ctrl)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), i.settings.RequestTimeout())
		defer cancel()
		// failures are recorded in the conversation state
		_ = ctrl.Mount(ctx)
	}()

	return ctrl
}

func (i *Instance) health(ctx context.Context) error {
	hc, ok := i.client.(genai.HealthChecker)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return hc.Health(ctx)
}

// dispose drops the conversations and closes the history store. Requests still running on
// the instance fail their history calls with history.ErrClosed.
func (i *Instance) dispose() {
	i.controllers.Flush()
	if i.store == nil {
		return
	}
	i.logger.Info("Closing history store of replaced instance; in-flight requests will fail", "backend", i.settings.Backend)
	if err := i.store.Close(); err != nil {
		i.logger.Warn("Failed to close history store", "error", err)
	}
}

// sendJSON sends a JSON response
func sendJSON(sender backend.CallResourceResponseSender, status int, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return sendError(sender, 500, fmt.Sprintf("Failed to marshal JSON: %v", err))
	}

	return sender.Send(&backend.CallResourceResponse{
		Status:  status,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
	})
}

// sendError sends an error response
func sendError(sender backend.CallResourceResponseSender, status int, message string) error {
	body, _ := json.Marshal(map[string]string{"error": message})
	return sender.Send(&backend.CallResourceResponse{
		Status:  status,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
	})
}
