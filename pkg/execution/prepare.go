// Package execution translates an AI visualization description into the measures,
// attributes and filters a chart component executes.
package execution

import (
	"fmt"
	"strings"
	"time"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/visualization"
)

// ISOTimestamp is the layout used for defaulted absolute date bounds
const ISOTimestamp = "2006-01-02T15:04:05.000Z"

// Execution is the translated, ordered input of a chart component
type Execution struct {
	Measures   []Measure   `json:"measures"`
	Dimensions []Attribute `json:"dimensions"`
	Filters    []Filter    `json:"filters"`
}

var objectTypes = map[visualization.MetricType]ObjectType{
	visualization.MetricAttribute:  ObjectAttribute,
	visualization.MetricFact:       ObjectFact,
	visualization.MetricPredefined: ObjectMeasure,
}

var granularities = map[visualization.Granularity]string{
	visualization.GranularityMinute:        "GDC.time.minute",
	visualization.GranularityHour:          "GDC.time.hour",
	visualization.GranularityDay:           "GDC.time.date",
	visualization.GranularityWeek:          "GDC.time.week",
	visualization.GranularityMonth:         "GDC.time.month",
	visualization.GranularityQuarter:       "GDC.time.quarter",
	visualization.GranularityYear:          "GDC.time.year",
	visualization.GranularityMinuteOfHour:  "GDC.time.minute_in_hour",
	visualization.GranularityHourOfDay:     "GDC.time.hour_in_day",
	visualization.GranularityDayOfWeek:     "GDC.time.day_in_week",
	visualization.GranularityDayOfMonth:    "GDC.time.day_in_month",
	visualization.GranularityDayOfYear:     "GDC.time.day_in_year",
	visualization.GranularityWeekOfYear:    "GDC.time.week_in_year",
	visualization.GranularityMonthOfYear:   "GDC.time.month_in_year",
	visualization.GranularityQuarterOfYear: "GDC.time.quarter_in_year",
}

// Prepare translates desc. A nil description yields three empty sequences. now resolves
// absolute date filters without bounds.
func Prepare(desc *visualization.Description, now time.Time) Execution {
	exec := Execution{
		Measures:   []Measure{},
		Dimensions: []Attribute{},
		Filters:    []Filter{},
	}
	if desc == nil {
		return exec
	}

	for i, d := range desc.Dimensionality {
		exec.Dimensions = append(exec.Dimensions, NewAttribute(i, d.ID))
	}

	for i, md := range desc.Metrics {
		exec.Measures = append(exec.Measures, NewMeasure(i, md))
	}

	for _, fd := range desc.Filters {
		if f, ok := ConvertFilter(fd, now); ok {
			exec.Filters = append(exec.Filters, f)
		}
	}

	return exec
}

// NewAttribute builds the attribute for the dimension at position i
func NewAttribute(i int, id string) Attribute {
	return Attribute{
		LocalIdentifier: fmt.Sprintf("a_%d", i),
		DisplayForm:     IDRef(id, ObjectDisplayForm),
	}
}

// NewMeasure builds the measure for the metric at position i. Attributes are always counted,
// facts take the lower-cased aggregation when one is given, predefined metrics are used as-is.
func NewMeasure(i int, md visualization.Metric) Measure {
	m := Measure{
		LocalIdentifier: fmt.Sprintf("m_%d", i),
		Item:            IDRef(md.ID, objectTypes[md.Type]),
		Title:           md.Title,
	}

	switch md.Type {
	case visualization.MetricAttribute:
		m.Aggregation = "count"
	case visualization.MetricFact:
		if md.AggFunction != "" {
			m.Aggregation = strings.ToLower(md.AggFunction)
		}
	}

	return m
}

// ConvertFilter converts a recognized descriptor. It returns false for unrecognized shapes.
func ConvertFilter(fd visualization.Filter, now time.Time) (Filter, bool) {
	switch fd.Kind {
	case visualization.FilterPositive:
		return PositiveAttributeFilter{
			DisplayForm: IDRef(fd.Using, ObjectDisplayForm),
			In:          fd.Values,
		}, true
	case visualization.FilterNegative:
		return NegativeAttributeFilter{
			DisplayForm: IDRef(fd.Using, ObjectDisplayForm),
			NotIn:       fd.Values,
		}, true
	case visualization.FilterRelativeDate:
		return RelativeDateFilter{
			DataSet:     IDRef(fd.Using, ObjectDataSet),
			Granularity: HostGranularity(fd.Granularity),
			From:        fd.RelativeFrom,
			To:          fd.RelativeTo,
		}, true
	case visualization.FilterAbsoluteDate:
		f := AbsoluteDateFilter{DataSet: IDRef(fd.Using, ObjectDataSet)}
		if fd.AbsoluteFrom != nil {
			f.From = *fd.AbsoluteFrom
		} else {
			f.From = StartOfDay(now).Format(ISOTimestamp)
		}
		if fd.AbsoluteTo != nil {
			f.To = *fd.AbsoluteTo
		} else {
			f.To = now.UTC().Format(ISOTimestamp)
		}
		return f, true
	}
	return nil, false
}

// HostGranularity maps a granularity to the host date vocabulary. Granularities are validated
// when descriptors are decoded, so an unmapped value is a programming error.
func HostGranularity(g visualization.Granularity) string {
	host, ok := granularities[g]
	if !ok {
		panic(fmt.Sprintf("execution: unmapped granularity %q", g))
	}
	return host
}

// StartOfDay returns UTC midnight of the day containing t
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
