package render

import (
	"strings"
	"time"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/conversation"
	"github.com/sabio/grafana-ai-visualization-plugin/pkg/execution"
)

// Mode selects which shell the widget shows
type Mode string

const (
	ModeLoading Mode = "loading"
	ModeForm    Mode = "form"
	ModeChart   Mode = "chart"
)

const (
	defaultTitle    = "AI-Generated Visualization"
	loadingMessage  = "Loading previous visualizations..."
	initialHint     = "Failed to load previous visualizations. You can still create new ones."
	retryHint       = "Please try again later."
	busyMessage     = "AI is processing your request... This may take a few moments."
	submitLabel     = "Generate Visualization"
	submittingLabel = "Generating..."
	askAgainLabel   = "Ask again"
	introText       = "Didn't find the visualization you were looking for? Request a custom AI-generated chart or graph here!"
)

// Notice is an error banner
type Notice struct {
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

// Form is the question form
type Form struct {
	Intro       string  `json:"intro"`
	Question    string  `json:"question"`
	Notice      *Notice `json:"notice,omitempty"`
	SubmitLabel string  `json:"submitLabel"`
	CanSubmit   bool    `json:"canSubmit"`
	ShowClear   bool    `json:"showClear"`
	Busy        string  `json:"busy,omitempty"`
}

// Result is the rendered visualization with its re-ask action
type Result struct {
	Title         string `json:"title"`
	Chart         *Chart `json:"chart"`
	ActionLabel   string `json:"actionLabel"`
	ActionEnabled bool   `json:"actionEnabled"`
}

// View is everything the widget shell needs to draw itself
type View struct {
	Mode    Mode               `json:"mode"`
	Phase   conversation.Phase `json:"phase"`
	Message string             `json:"message,omitempty"`
	Form    *Form              `json:"form,omitempty"`
	Result  *Result            `json:"result,omitempty"`
}

// BuildView chooses between the loading state, the chart and the question form
func BuildView(s conversation.State, now time.Time) View {
	v := View{Phase: s.Phase}

	switch {
	case s.IsInitialLoading:
		v.Mode = ModeLoading
		v.Message = loadingMessage

	case s.InitialError != "" && s.Visualization == nil:
		v.Mode = ModeForm
		v.Form = newForm(s, &Notice{Message: s.InitialError, Hint: initialHint})

	case s.Visualization != nil:
		exec := execution.Prepare(s.Visualization, now)
		title := s.Visualization.Title
		if title == "" {
			title = defaultTitle
		}
		v.Mode = ModeChart
		v.Result = &Result{
			Title:         title,
			Chart:         Render(&exec, s.Visualization.VisualizationType),
			ActionLabel:   askAgainLabel,
			ActionEnabled: !s.IsLoading,
		}

	default:
		v.Mode = ModeForm
		var notice *Notice
		if s.Error != "" {
			notice = &Notice{Message: s.Error, Hint: retryHint}
		}
		v.Form = newForm(s, notice)
	}

	return v
}

func newForm(s conversation.State, notice *Notice) *Form {
	hasQuestion := strings.TrimSpace(s.Question) != ""

	f := &Form{
		Intro:       introText,
		Question:    s.Question,
		Notice:      notice,
		SubmitLabel: submitLabel,
		CanSubmit:   hasQuestion && !s.IsLoading,
		ShowClear:   hasQuestion,
	}
	if s.IsLoading {
		f.SubmitLabel = submittingLabel
		f.Busy = busyMessage
	}
	return f
}
