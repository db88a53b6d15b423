package visualization

import (
	"encoding/json"
	"errors"
	"testing"
)

const salesByRegion = `{
	"id": "sales_by_region",
	"title": "Sales by region",
	"visualizationType": "BAR",
	"metrics": [{"id": "sales", "type": "fact", "title": "Sales", "aggFunction": "SUM"}],
	"dimensionality": [{"id": "region", "title": "Region"}],
	"filters": [
		{"using": "region", "exclude": ["Unknown"]},
		{"using": "region", "ranking": "top"}
	],
	"suggestions": [{"query": "Show it as a pie chart", "label": "Pie chart"}]
}`

func TestDescriptionUnmarshal(t *testing.T) {
	var d Description
	if err := json.Unmarshal([]byte(salesByRegion), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if d.VisualizationType != "BAR" {
		t.Errorf("VisualizationType = %q, want BAR", d.VisualizationType)
	}
	if len(d.Metrics) != 1 || d.Metrics[0].Type != MetricFact || d.Metrics[0].AggFunction != "SUM" {
		t.Errorf("Metrics = %+v", d.Metrics)
	}
	if len(d.Dimensionality) != 1 || d.Dimensionality[0].ID != "region" {
		t.Errorf("Dimensionality = %+v", d.Dimensionality)
	}
	if len(d.Filters) != 2 {
		t.Fatalf("got %d filters, want 2", len(d.Filters))
	}
	if d.Filters[0].Kind != FilterNegative {
		t.Errorf("first filter kind = %v, want negative", d.Filters[0].Kind)
	}
	if d.Filters[1].Recognized() {
		t.Errorf("second filter should be unrecognized")
	}
}

func TestMetricUnknownType(t *testing.T) {
	var m Metric
	err := json.Unmarshal([]byte(`{"id":"x","type":"dataset"}`), &m)
	if !errors.Is(err, ErrUnknownMetricType) {
		t.Errorf("Unmarshal() error = %v, want ErrUnknownMetricType", err)
	}
}
