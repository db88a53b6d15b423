package visualization

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownGranularity is returned for a date granularity outside the supported enumeration.
var ErrUnknownGranularity = errors.New("unknown date granularity")

// FilterKind discriminates the filter variants
type FilterKind int

const (
	FilterUnrecognized FilterKind = iota
	FilterPositive
	FilterNegative
	FilterRelativeDate
	FilterAbsoluteDate
)

func (k FilterKind) String() string {
	switch k {
	case FilterPositive:
		return "positive"
	case FilterNegative:
		return "negative"
	case FilterRelativeDate:
		return "relativeDate"
	case FilterAbsoluteDate:
		return "absoluteDate"
	default:
		return "unrecognized"
	}
}

// Granularity is the date part a relative date filter is expressed in
type Granularity string

const (
	GranularityMinute        Granularity = "MINUTE"
	GranularityHour          Granularity = "HOUR"
	GranularityDay           Granularity = "DAY"
	GranularityWeek          Granularity = "WEEK"
	GranularityMonth         Granularity = "MONTH"
	GranularityQuarter       Granularity = "QUARTER"
	GranularityYear          Granularity = "YEAR"
	GranularityMinuteOfHour  Granularity = "MINUTE_OF_HOUR"
	GranularityHourOfDay     Granularity = "HOUR_OF_DAY"
	GranularityDayOfWeek     Granularity = "DAY_OF_WEEK"
	GranularityDayOfMonth    Granularity = "DAY_OF_MONTH"
	GranularityDayOfYear     Granularity = "DAY_OF_YEAR"
	GranularityWeekOfYear    Granularity = "WEEK_OF_YEAR"
	GranularityMonthOfYear   Granularity = "MONTH_OF_YEAR"
	GranularityQuarterOfYear Granularity = "QUARTER_OF_YEAR"
)

// Granularities lists every supported granularity in declaration order
var Granularities = []Granularity{
	GranularityMinute,
	GranularityHour,
	GranularityDay,
	GranularityWeek,
	GranularityMonth,
	GranularityQuarter,
	GranularityYear,
	GranularityMinuteOfHour,
	GranularityHourOfDay,
	GranularityDayOfWeek,
	GranularityDayOfMonth,
	GranularityDayOfYear,
	GranularityWeekOfYear,
	GranularityMonthOfYear,
	GranularityQuarterOfYear,
}

// ParseGranularity validates a granularity name as received from the backend
func ParseGranularity(name string) (Granularity, error) {
	for _, g := range Granularities {
		if string(g) == name {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, name)
}

// Filter is one filter descriptor. Kind selects which fields are meaningful:
//
//	FilterPositive, FilterNegative: Using, Values
//	FilterRelativeDate:             Using, Granularity, RelativeFrom, RelativeTo
//	FilterAbsoluteDate:             Using, AbsoluteFrom, AbsoluteTo (nil = default)
type Filter struct {
	Kind         FilterKind
	Using        string
	Values       []string
	Granularity  Granularity
	RelativeFrom int
	RelativeTo   int
	AbsoluteFrom *string
	AbsoluteTo   *string

	raw json.RawMessage
}

// NewPositiveFilter keeps only the listed values of the attribute label
func NewPositiveFilter(using string, include []string) Filter {
	return Filter{Kind: FilterPositive, Using: using, Values: include}
}

// NewNegativeFilter removes the listed values of the attribute label
func NewNegativeFilter(using string, exclude []string) Filter {
	return Filter{Kind: FilterNegative, Using: using, Values: exclude}
}

// NewRelativeDateFilter restricts a date data set to [from, to] periods relative to now
func NewRelativeDateFilter(using string, granularity Granularity, from, to int) Filter {
	return Filter{Kind: FilterRelativeDate, Using: using, Granularity: granularity, RelativeFrom: from, RelativeTo: to}
}

// NewAbsoluteDateFilter restricts a date data set to a literal range. Nil bounds are resolved
// when the filter is translated.
func NewAbsoluteDateFilter(using string, from, to *string) Filter {
	return Filter{Kind: FilterAbsoluteDate, Using: using, AbsoluteFrom: from, AbsoluteTo: to}
}

// Recognized reports whether the descriptor matched one of the known shapes
func (f Filter) Recognized() bool {
	return f.Kind != FilterUnrecognized
}

// ParseFilter classifies a raw filter descriptor by the fields it carries, in the order
// positive, negative, relative date, absolute date. Shapes that match none of them are
// returned as FilterUnrecognized without error. The only error is a granularity outside the
// supported enumeration.
func ParseFilter(raw json.RawMessage) (Filter, error) {
	unrecognized := Filter{Kind: FilterUnrecognized, raw: append(json.RawMessage(nil), raw...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return unrecognized, nil
	}

	var using string
	if v, ok := fields["using"]; !ok || json.Unmarshal(v, &using) != nil {
		return unrecognized, nil
	}

	if v, ok := fields["include"]; ok {
		var values []string
		if json.Unmarshal(v, &values) != nil {
			return unrecognized, nil
		}
		return NewPositiveFilter(using, values), nil
	}

	if v, ok := fields["exclude"]; ok {
		var values []string
		if json.Unmarshal(v, &values) != nil {
			return unrecognized, nil
		}
		return NewNegativeFilter(using, values), nil
	}

	if v, ok := fields["granularity"]; ok {
		var name string
		if json.Unmarshal(v, &name) != nil {
			return unrecognized, nil
		}
		granularity, err := ParseGranularity(name)
		if err != nil {
			return Filter{}, err
		}
		var from, to int
		if v, ok := fields["from"]; ok && json.Unmarshal(v, &from) != nil {
			return unrecognized, nil
		}
		if v, ok := fields["to"]; ok && json.Unmarshal(v, &to) != nil {
			return unrecognized, nil
		}
		return NewRelativeDateFilter(using, granularity, from, to), nil
	}

	rawFrom, hasFrom := fields["from"]
	rawTo, hasTo := fields["to"]
	if hasFrom || hasTo {
		var from, to *string
		if hasFrom && json.Unmarshal(rawFrom, &from) != nil {
			return unrecognized, nil
		}
		if hasTo && json.Unmarshal(rawTo, &to) != nil {
			return unrecognized, nil
		}
		return NewAbsoluteDateFilter(using, from, to), nil
	}

	return unrecognized, nil
}

// UnmarshalJSON decodes a filter with ParseFilter
func (f *Filter) UnmarshalJSON(data []byte) error {
	parsed, err := ParseFilter(data)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalJSON writes the filter back in the shape it was received in
func (f Filter) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FilterPositive:
		return json.Marshal(struct {
			Using   string   `json:"using"`
			Include []string `json:"include"`
		}{f.Using, nonNil(f.Values)})
	case FilterNegative:
		return json.Marshal(struct {
			Using   string   `json:"using"`
			Exclude []string `json:"exclude"`
		}{f.Using, nonNil(f.Values)})
	case FilterRelativeDate:
		return json.Marshal(struct {
			Using       string      `json:"using"`
			Granularity Granularity `json:"granularity"`
			From        int         `json:"from"`
			To          int         `json:"to"`
		}{f.Using, f.Granularity, f.RelativeFrom, f.RelativeTo})
	case FilterAbsoluteDate:
		return json.Marshal(struct {
			Using string  `json:"using"`
			From  *string `json:"from"`
			To    *string `json:"to"`
		}{f.Using, f.AbsoluteFrom, f.AbsoluteTo})
	}

	if len(f.raw) == 0 {
		return []byte("null"), nil
	}
	return f.raw, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
