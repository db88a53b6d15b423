package conversation

import "github.com/sabio/grafana-ai-visualization-plugin/pkg/visualization"

// User-facing messages of the three error channels
const (
	MsgInitialLoadFailed = "Failed to load previous visualizations"
	MsgGenerateFailed    = "Failed to generate visualization"
	MsgGenerateFault     = "Failed to generate visualization. Please try again later."
	MsgResetFailed       = "Failed to reset visualization"
)

// Phase is the state-machine position derived from State
type Phase string

const (
	PhaseInitialLoading Phase = "initialLoading"
	PhaseIdle           Phase = "idle"
	PhaseHasResult      Phase = "hasResult"
	PhaseInitialError   Phase = "initialError"
	PhaseSubmitting     Phase = "submitting"
	PhaseSubmitError    Phase = "submitError"
	PhaseResetting      Phase = "resetting"
	PhaseResetError     Phase = "resetError"
)

type operation int

const (
	opNone operation = iota
	opSubmit
	opReset
)

// State is a snapshot of the conversation
type State struct {
	Question         string                     `json:"question"`
	IsInitialLoading bool                       `json:"isInitialLoading"`
	IsLoading        bool                       `json:"isLoading"`
	Visualization    *visualization.Description `json:"visualization"`
	InitialError     string                     `json:"initialError,omitempty"`
	Error            string                     `json:"error,omitempty"`
	Phase            Phase                      `json:"phase"`
}

// phase derives the state-machine position. last is the most recent operation started.
// A kept visualization wins over the submit error, since the chart is what the widget shows.
func phase(s State, last operation) Phase {
	switch {
	case s.IsInitialLoading:
		return PhaseInitialLoading
	case s.IsLoading && last == opReset:
		return PhaseResetting
	case s.IsLoading:
		return PhaseSubmitting
	case s.Visualization != nil:
		return PhaseHasResult
	case s.Error != "" && last == opReset:
		return PhaseResetError
	case s.Error != "":
		return PhaseSubmitError
	case s.InitialError != "":
		return PhaseInitialError
	default:
		return PhaseIdle
	}
}
