package plugin

import (
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/dashboard"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/render"
)

// ManifestResponse describes the plugin and the widgets it provides
type ManifestResponse struct {
	Metadata dashboard.Metadata `json:"metadata"`
	Widgets  []string           `json:"widgets"`
	Backend  string             `json:"backend"`
}

// LayoutRequest asks for a dashboard layout with the plugin section appended
type LayoutRequest struct {
	DashboardID string           `json:"dashboardId"`
	Layout      dashboard.Layout `json:"layout"`
}

// LayoutResponse carries the customized layout
type LayoutResponse struct {
	DashboardID string           `json:"dashboardId"`
	Layout      dashboard.Layout `json:"layout"`
}

// QuestionRequest sets the question text. On submit a nil Question keeps the current text.
type QuestionRequest struct {
	Question *string `json:"question"`
}

// ConversationResponse is the widget view of one dashboard conversation
type ConversationResponse struct {
	DashboardID string      `json:"dashboardId"`
	ThreadID    string      `json:"threadId"`
	View        render.View `json:"view"`
}

// HealthResponse reports backend reachability
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}
