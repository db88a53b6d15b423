package plugin

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Supported AI backends
const (
	BackendHosted = "hosted"
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

// Setting defaults
const (
	DefaultRequestTimeoutSeconds  = 60
	DefaultConversationTTLMinutes = 30
	DefaultRateLimitRPS           = 2
	DefaultRateLimitBurst         = 5
	DefaultWorkspaceID            = "default"
)

// PluginSettings holds the plugin configuration
type PluginSettings struct {
	Backend                string  `json:"backend"`
	APIURL                 string  `json:"api_url"`
	WorkspaceID            string  `json:"workspace_id"`
	OpenAIModel            string  `json:"openai_model"`
	GeminiModel            string  `json:"gemini_model"`
	HistoryPath            string  `json:"history_path"`
	MaxInteractions        int     `json:"max_interactions"`
	RequestTimeoutSeconds  int     `json:"request_timeout_seconds"`
	RetryCount             int     `json:"retry_count"`
	ConversationTTLMinutes int     `json:"conversation_ttl_minutes"`
	RateLimitRPS           float64 `json:"rate_limit_rps"`
	RateLimitBurst         int     `json:"rate_limit_burst"`

	// Secrets, only read from DecryptedSecureJSONData
	APIToken     string `json:"-"`
	OpenAIAPIKey string `json:"-"`
	GeminiAPIKey string `json:"-"`
}

// LoadSettings loads plugin settings from JSON and decrypted secrets, applying defaults
func LoadSettings(jsonData []byte, secrets map[string]string) (*PluginSettings, error) {
	settings := &PluginSettings{}

	if len(jsonData) > 0 {
		if err := json.Unmarshal(jsonData, settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	settings.APIToken = secrets["api_token"]
	settings.OpenAIAPIKey = secrets["openai_api_key"]
	settings.GeminiAPIKey = secrets["gemini_api_key"]

	if settings.Backend == "" {
		settings.Backend = BackendHosted
	}
	if settings.WorkspaceID == "" && settings.Backend != BackendHosted {
		settings.WorkspaceID = DefaultWorkspaceID
	}
	if settings.RequestTimeoutSeconds == 0 {
		settings.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if settings.ConversationTTLMinutes == 0 {
		settings.ConversationTTLMinutes = DefaultConversationTTLMinutes
	}
	if settings.RateLimitRPS == 0 {
		settings.RateLimitRPS = DefaultRateLimitRPS
	}
	if settings.RateLimitBurst == 0 {
		settings.RateLimitBurst = DefaultRateLimitBurst
	}

	return settings, nil
}

// Validate checks if required settings are present
func (s *PluginSettings) Validate() error {
	switch s.Backend {
	case BackendHosted:
		if s.APIURL == "" {
			return fmt.Errorf("API URL is required for the hosted backend")
		}
		if s.WorkspaceID == "" {
			return fmt.Errorf("workspace ID is required for the hosted backend")
		}
		if s.APIToken == "" {
			return fmt.Errorf("API token is required for the hosted backend")
		}
	case BackendOpenAI:
		if s.OpenAIAPIKey == "" {
			return fmt.Errorf("OpenAI API key is required")
		}
	case BackendGemini:
		if s.GeminiAPIKey == "" {
			return fmt.Errorf("Gemini API key is required")
		}
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	if s.RequestTimeoutSeconds < 0 || s.RetryCount < 0 || s.ConversationTTLMinutes < 0 {
		return fmt.Errorf("timeouts and retry count must not be negative")
	}
	if s.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit burst must not be negative")
	}

	return nil
}

// RequestTimeout bounds every AI backend call
func (s *PluginSettings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// ConversationTTL is how long an idle conversation is kept in memory
func (s *PluginSettings) ConversationTTL() time.Duration {
	return time.Duration(s.ConversationTTLMinutes) * time.Minute
}

// SubmitLimit is the per-instance submit rate. A negative rate disables limiting.
func (s *PluginSettings) SubmitLimit() rate.Limit {
	if s.RateLimitRPS < 0 {
		return rate.Inf
	}
	return rate.Limit(s.RateLimitRPS)
}
