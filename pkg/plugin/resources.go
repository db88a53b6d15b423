package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/grafana/grafana-plugin-sdk-go/backend"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/conversation"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/dashboard"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/render"
)

// route dispatches a resource call:
//
//	GET  manifest
//	POST layout
//	GET  health
//	GET  conversations/{dashboardId}
//	PUT  conversations/{dashboardId}/question
//	POST conversations/{dashboardId}/submit
//	POST conversations/{dashboardId}/submit-stream
//	POST conversations/{dashboardId}/reset
func (i *Instance) route(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	parts := strings.Split(strings.Trim(req.Path, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] == "manifest":
		return i.withMethod(req, sender, http.MethodGet, i.handleManifest)
	case len(parts) == 1 && parts[0] == "layout":
		return i.withMethod(req, sender, http.MethodPost, i.handleLayout)
	case len(parts) == 1 && parts[0] == "health":
		return i.withMethod(req, sender, http.MethodGet, func(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
			return i.handleHealth(ctx, sender)
		})
	case parts[0] == "conversations" && (len(parts) == 2 || len(parts) == 3):
		dashboardID := dashboard.DashboardID(parts[1])
		action := ""
		if len(parts) == 3 {
			action = parts[2]
		}
		return i.routeConversation(ctx, req, sender, dashboardID, action)
	}

	return sendError(sender, 404, fmt.Sprintf("%v: %s", ErrNotFound, req.Path))
}

func (i *Instance) routeConversation(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender, dashboardID, action string) error {
	switch action {
	case "":
		return i.withMethod(req, sender, http.MethodGet, func(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
			return sendJSON(sender, 200, i.conversationResponse(dashboardID, i.controller(dashboardID)))
		})
	case "question":
		return i.withMethod(req, sender, http.MethodPut, func(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
			return i.handleQuestion(req, sender, dashboardID)
		})
	case "submit":
		return i.withMethod(req, sender, http.MethodPost, func(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
			return i.handleSubmit(ctx, req, sender, dashboardID)
		})
	case "submit-stream":
		return i.withMethod(req, sender, http.MethodPost, func(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
			return i.handleSubmitStream(ctx, req, sender, dashboardID)
		})
	case "reset":
		return i.withMethod(req, sender, http.MethodPost, func(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
			return i.handleReset(ctx, sender, dashboardID)
		})
	}

	return sendError(sender, 404, fmt.Sprintf("%v: %s", ErrNotFound, req.Path))
}

func (i *Instance) withMethod(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender, method string, handler func(*backend.CallResourceRequest, backend.CallResourceResponseSender) error) error {
	if req.Method != method {
		return sendError(sender, 405, fmt.Sprintf("Method %s not allowed", req.Method))
	}
	return handler(req, sender)
}

// handleManifest returns the plugin metadata and registered widgets
func (i *Instance) handleManifest(_ *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	return sendJSON(sender, 200, ManifestResponse{
		Metadata: i.dashboard.Metadata,
		Widgets:  i.dashboard.Registry.Types(),
		Backend:  i.settings.Backend,
	})
}

// handleLayout appends the plugin section to a dashboard layout
func (i *Instance) handleLayout(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	var layoutReq LayoutRequest
	if err := json.Unmarshal(req.Body, &layoutReq); err != nil {
		return sendError(sender, 400, fmt.Sprintf("Invalid request body: %v", err))
	}

	return sendJSON(sender, 200, LayoutResponse{
		DashboardID: dashboard.DashboardID(layoutReq.DashboardID),
		Layout:      i.dashboard.Customize(layoutReq.Layout),
	})
}

// handleHealth returns health status
func (i *Instance) handleHealth(ctx context.Context, sender backend.CallResourceResponseSender) error {
	if err := i.health(ctx); err != nil {
		return sendJSON(sender, 503, HealthResponse{
			Status:  "unhealthy",
			Backend: i.settings.Backend,
			Error:   err.Error(),
		})
	}

	return sendJSON(sender, 200, HealthResponse{Status: "healthy", Backend: i.settings.Backend})
}

func (i *Instance) handleQuestion(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender, dashboardID string) error {
	var questionReq QuestionRequest
	if err := json.Unmarshal(req.Body, &questionReq); err != nil {
		return sendError(sender, 400, fmt.Sprintf("Invalid request body: %v", err))
	}
	if questionReq.Question == nil {
		return sendError(sender, 400, "Question is required")
	}

	ctrl := i.controller(dashboardID)
	ctrl.SetQuestion(*questionReq.Question)
	return sendJSON(sender, 200, i.conversationResponse(dashboardID, ctrl))
}

func (i *Instance) handleSubmit(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender, dashboardID string) error {
	ctrl, err := i.prepareSubmit(req, dashboardID)
	if err != nil {
		return sendSubmitError(sender, err)
	}

	ctx, cancel := context.WithTimeout(ctx, i.settings.RequestTimeout())
	defer cancel()

	// failures are recorded in the conversation state and shown in the view
	_ = ctrl.Submit(ctx)

	return sendJSON(sender, 200, i.conversationResponse(dashboardID, ctrl))
}

func (i *Instance) handleReset(ctx context.Context, sender backend.CallResourceResponseSender, dashboardID string) error {
	ctrl := i.controller(dashboardID)

	ctx, cancel := context.WithTimeout(ctx, i.settings.RequestTimeout())
	defer cancel()

	_ = ctrl.Reset(ctx)

	return sendJSON(sender, 200, i.conversationResponse(dashboardID, ctrl))
}

type submitError struct {
	status  int
	message string
}

func (e *submitError) Error() string { return e.message }

// prepareSubmit applies the optional question from the body and the submit rate limit
func (i *Instance) prepareSubmit(req *backend.CallResourceRequest, dashboardID string) (*conversation.Controller, error) {
	var questionReq QuestionRequest
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &questionReq); err != nil {
			return nil, &submitError{400, fmt.Sprintf("Invalid request body: %v", err)}
		}
	}

	if !i.limiter.Allow() {
		return nil, &submitError{429, "Too many requests, please slow down"}
	}

	ctrl := i.controller(dashboardID)
	if questionReq.Question != nil {
		ctrl.SetQuestion(*questionReq.Question)
	}
	return ctrl, nil
}

func sendSubmitError(sender backend.CallResourceResponseSender, err error) error {
	if se, ok := err.(*submitError); ok {
		return sendError(sender, se.status, se.message)
	}
	return sendError(sender, 500, err.Error())
}

func (i *Instance) conversationResponse(dashboardID string, ctrl *conversation.Controller) ConversationResponse {
	return i.viewResponse(dashboardID, ctrl, ctrl.State())
}

func (i *Instance) viewResponse(dashboardID string, ctrl *conversation.Controller, state conversation.State) ConversationResponse {
	return ConversationResponse{
		DashboardID: dashboardID,
		ThreadID:    ctrl.ThreadID(),
		View:        render.BuildView(state, time.Now()),
	}
}
