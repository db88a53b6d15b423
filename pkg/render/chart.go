// Package render picks and configures the chart component for a translated execution.
package render

import (
	"strings"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/execution"
)

// VisHeight is the fixed height of every rendered chart
const VisHeight = 400

// TooltipClassName styles chart tooltips inside the widget
const TooltipClassName = "gd-gen-ai-chat__vis_tooltip"

// ChartType is the chart-type hint of a visualization description
type ChartType string

const (
	ChartBar      ChartType = "BAR"
	ChartColumn   ChartType = "COLUMN"
	ChartLine     ChartType = "LINE"
	ChartPie      ChartType = "PIE"
	ChartTable    ChartType = "TABLE"
	ChartHeadline ChartType = "HEADLINE"
)

// ParseChartType normalizes a chart-type hint. Unknown or empty values fall back to ChartBar.
func ParseChartType(s string) ChartType {
	switch t := ChartType(strings.ToUpper(strings.TrimSpace(s))); t {
	case ChartBar, ChartColumn, ChartLine, ChartPie, ChartTable, ChartHeadline:
		return t
	}
	return ChartBar
}

// Component names the chart component drawing the visualization
type Component string

const (
	ComponentBarChart    Component = "BarChart"
	ComponentColumnChart Component = "ColumnChart"
	ComponentLineChart   Component = "LineChart"
	ComponentPieChart    Component = "PieChart"
	ComponentPivotTable  Component = "PivotTable"
	ComponentHeadline    Component = "Headline"
)

// TooltipConfig styles the tooltip
type TooltipConfig struct {
	ClassName string `json:"className"`
}

// LegendConfig positions the legend
type LegendConfig struct {
	Responsive string `json:"responsive"`
}

// Config is the configuration bag passed to a chart component
type Config struct {
	Tooltip       *TooltipConfig `json:"tooltip,omitempty"`
	Legend        *LegendConfig  `json:"legend,omitempty"`
	StackMeasures bool           `json:"stackMeasures,omitempty"`
}

// Chart is a configured chart component. Only the buckets used by Component are set.
type Chart struct {
	Type      ChartType `json:"type"`
	Component Component `json:"component"`
	Height    int       `json:"height"`

	Measures          []execution.Measure   `json:"measures,omitempty"`
	ViewBy            []execution.Attribute `json:"viewBy,omitempty"`
	StackBy           *execution.Attribute  `json:"stackBy,omitempty"`
	TrendBy           *execution.Attribute  `json:"trendBy,omitempty"`
	SegmentBy         *execution.Attribute  `json:"segmentBy,omitempty"`
	Rows              []execution.Attribute `json:"rows,omitempty"`
	PrimaryMeasure    *execution.Measure    `json:"primaryMeasure,omitempty"`
	SecondaryMeasures []execution.Measure   `json:"secondaryMeasures,omitempty"`
	Filters           []execution.Filter    `json:"filters"`

	Config *Config `json:"config,omitempty"`
}

// Render configures the chart for exec. It returns nil when there is nothing to render.
func Render(exec *execution.Execution, chartType string) *Chart {
	if exec == nil {
		return nil
	}

	switch t := ParseChartType(chartType); t {
	case ChartColumn:
		return stacked(exec, t, ComponentColumnChart)
	case ChartLine:
		return line(exec)
	case ChartPie:
		return pie(exec)
	case ChartTable:
		return table(exec)
	case ChartHeadline:
		return headline(exec)
	default:
		return stacked(exec, ChartBar, ComponentBarChart)
	}
}

func tooltipOptions() *TooltipConfig {
	return &TooltipConfig{ClassName: TooltipClassName}
}

func legendOptions() *LegendConfig {
	return &LegendConfig{Responsive: "autoPositionWithPopup"}
}

func newChart(exec *execution.Execution, t ChartType, c Component) *Chart {
	return &Chart{
		Type:      t,
		Component: c,
		Height:    VisHeight,
		Filters:   exec.Filters,
	}
}

// stacked lays out bar and column charts
func stacked(exec *execution.Execution, t ChartType, c Component) *Chart {
	chart := newChart(exec, t, c)
	chart.Measures = exec.Measures
	chart.ViewBy = firstN(exec.Dimensions, 2)
	if len(exec.Measures) <= 1 {
		chart.StackBy = at(exec.Dimensions, 2)
	}
	chart.Config = &Config{
		Tooltip: tooltipOptions(),
		Legend:  legendOptions(),
		// several series over two categories read better stacked
		StackMeasures: len(exec.Measures) > 1 && len(exec.Dimensions) == 2,
	}
	return chart
}

func line(exec *execution.Execution) *Chart {
	chart := newChart(exec, ChartLine, ComponentLineChart)
	chart.Measures = exec.Measures
	chart.TrendBy = at(exec.Dimensions, 0)
	if len(exec.Measures) <= 1 {
		chart.SegmentBy = at(exec.Dimensions, 1)
	}
	chart.Config = &Config{Tooltip: tooltipOptions(), Legend: legendOptions()}
	return chart
}

func pie(exec *execution.Execution) *Chart {
	chart := newChart(exec, ChartPie, ComponentPieChart)
	chart.Measures = exec.Measures
	if len(exec.Measures) <= 1 {
		chart.ViewBy = firstN(exec.Dimensions, 1)
	}
	chart.Config = &Config{Tooltip: tooltipOptions()}
	return chart
}

func table(exec *execution.Execution) *Chart {
	chart := newChart(exec, ChartTable, ComponentPivotTable)
	chart.Measures = exec.Measures
	chart.Rows = exec.Dimensions
	return chart
}

func headline(exec *execution.Execution) *Chart {
	chart := newChart(exec, ChartHeadline, ComponentHeadline)
	chart.PrimaryMeasure = measureAt(exec.Measures, 0)
	for _, i := range []int{1, 2} {
		if m := measureAt(exec.Measures, i); m != nil {
			chart.SecondaryMeasures = append(chart.SecondaryMeasures, *m)
		}
	}
	return chart
}

func firstN(attrs []execution.Attribute, n int) []execution.Attribute {
	if len(attrs) < n {
		n = len(attrs)
	}
	return attrs[:n:n]
}

func at(attrs []execution.Attribute, i int) *execution.Attribute {
	if i >= len(attrs) {
		return nil
	}
	a := attrs[i]
	return &a
}

func measureAt(measures []execution.Measure, i int) *execution.Measure {
	if i >= len(measures) {
		return nil
	}
	m := measures[i]
	return &m
}
