package genai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPConfig configures the hosted AI API client
type HTTPConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
}

// HTTPClient talks to the hosted AI chat API
type HTTPClient struct {
	baseURL     string
	workspaceID string
	client      *resty.Client
}

// NewHTTPClient creates a client for the hosted AI API. workspaceID is only used by Health.
func NewHTTPClient(cfg HTTPConfig, workspaceID string) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	if cfg.RetryCount > 0 {
		client.SetRetryCount(cfg.RetryCount)
		client.SetRetryWaitTime(1 * time.Second)
		client.SetRetryMaxWaitTime(5 * time.Second)
	}

	return &HTTPClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		workspaceID: workspaceID,
		client:      client,
	}
}

// workspaceURL joins an action path below the workspace
func (c *HTTPClient) workspaceURL(workspaceID, action string) string {
	return fmt.Sprintf("%s/api/v1/actions/workspaces/%s/ai/%s", c.baseURL, url.PathEscape(workspaceID), action)
}

// Chat asks a question
func (c *HTTPClient) Chat(ctx context.Context, workspaceID string, req ChatRequest) (*Response[ChatResult], error) {
	var result ChatResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		ForceContentType("application/json").
		Post(c.workspaceURL(workspaceID, "chat"))

	if err != nil {
		return nil, fmt.Errorf("failed to send chat request: %w", err)
	}

	return &Response[ChatResult]{Status: resp.StatusCode(), Data: result}, nil
}

// ChatHistory reads or resets thread history
func (c *HTTPClient) ChatHistory(ctx context.Context, workspaceID string, req ChatHistoryRequest) (*Response[ChatHistoryResult], error) {
	var result ChatHistoryResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		ForceContentType("application/json").
		Post(c.workspaceURL(workspaceID, "chatHistory"))

	if err != nil {
		return nil, fmt.Errorf("failed to send chat history request: %w", err)
	}

	return &Response[ChatHistoryResult]{Status: resp.StatusCode(), Data: result}, nil
}

// Health checks that the configured workspace is reachable with the configured token
func (c *HTTPClient) Health(ctx context.Context) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/api/v1/entities/workspaces/%s", c.baseURL, url.PathEscape(c.workspaceID)))

	if err != nil {
		return fmt.Errorf("failed to reach AI API: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("AI API health check failed with status: %d", resp.StatusCode())
	}

	return nil
}
