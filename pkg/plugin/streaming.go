package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grafana/grafana-plugin-sdk-go/backend"
)

// handleSubmitStream runs a submit and streams every view change as Server-Sent Events until
// the submit settles. The last event always carries the settled view.
func (i *Instance) handleSubmitStream(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender, dashboardID string) error {
	ctrl, err := i.prepareSubmit(req, dashboardID)
	if err != nil {
		return sendSubmitError(sender, err)
	}

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	// Set SSE headers
	if err := sender.Send(&backend.CallResourceResponse{
		Status:  200,
		Headers: map[string][]string{"Content-Type": {"text/event-stream"}},
	}); err != nil {
		return err
	}

	submitCtx, cancel := context.WithTimeout(ctx, i.settings.RequestTimeout())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Submit(submitCtx)
	}()

	for {
		select {
		case state, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if err := sendSSE(sender, i.viewResponse(dashboardID, ctrl, state)); err != nil {
				i.logger.Error("Failed to send SSE", "error", err)
				return err
			}
		case <-done:
			return sendSSE(sender, i.conversationResponse(dashboardID, ctrl))
		case <-ctx.Done():
			<-done
			return ctx.Err()
		}
	}
}

// sendSSE sends a view as a Server-Sent Event
func sendSSE(sender backend.CallResourceResponseSender, resp ConversationResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}

	sseData := fmt.Sprintf("data: %s\n\n", string(data))

	return sender.Send(&backend.CallResourceResponse{
		Body: []byte(sseData),
	})
}
