package visualization

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMetricType is returned when a metric carries a kind outside the known set.
var ErrUnknownMetricType = errors.New("unknown metric type")

// MetricType tags how a metric identifier should be interpreted
type MetricType string

const (
	// MetricAttribute is a raw attribute, counted
	MetricAttribute MetricType = "attribute"
	// MetricFact is a raw numeric fact, aggregated with AggFunction
	MetricFact MetricType = "fact"
	// MetricPredefined is a named metric used as-is
	MetricPredefined MetricType = "metric"
)

// Valid reports whether t is one of the known metric kinds
func (t MetricType) Valid() bool {
	switch t {
	case MetricAttribute, MetricFact, MetricPredefined:
		return true
	}
	return false
}

// Metric describes one measure suggested by the AI backend
type Metric struct {
	ID          string     `json:"id"`
	Type        MetricType `json:"type"`
	Title       string     `json:"title,omitempty"`
	AggFunction string     `json:"aggFunction,omitempty"`
}

// UnmarshalJSON rejects metrics with an unknown type
func (m *Metric) UnmarshalJSON(data []byte) error {
	type plain Metric
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMetricType, p.Type)
	}
	*m = Metric(p)
	return nil
}

// Dimension references a categorical breakdown axis
type Dimension struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Suggestion is a follow-up question proposed by the backend
type Suggestion struct {
	Query string `json:"query"`
	Label string `json:"label"`
}

// Description is the structured answer to a natural-language question: a chart type hint plus
// the metrics, dimensions and filters needed to draw it.
type Description struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	VisualizationType string       `json:"visualizationType"`
	Metrics           []Metric     `json:"metrics"`
	Dimensionality    []Dimension  `json:"dimensionality"`
	Filters           []Filter     `json:"filters"`
	Suggestions       []Suggestion `json:"suggestions,omitempty"`
}
