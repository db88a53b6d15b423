package execution

import "encoding/json"

// ObjectType qualifies an identifier reference in the host query model
type ObjectType string

const (
	ObjectAttribute   ObjectType = "attribute"
	ObjectFact        ObjectType = "fact"
	ObjectMeasure     ObjectType = "measure"
	ObjectDisplayForm ObjectType = "displayForm"
	ObjectDataSet     ObjectType = "dataSet"
)

// ObjRef is an identifier reference qualified by its object type
type ObjRef struct {
	Identifier string     `json:"identifier"`
	Type       ObjectType `json:"type"`
}

// IDRef builds a reference to identifier of the given type
func IDRef(identifier string, t ObjectType) ObjRef {
	return ObjRef{Identifier: identifier, Type: t}
}

// Attribute is a categorical breakdown key
type Attribute struct {
	LocalIdentifier string `json:"localIdentifier"`
	DisplayForm     ObjRef `json:"displayForm"`
}

// Measure is an aggregated numeric value
type Measure struct {
	LocalIdentifier string `json:"localIdentifier"`
	Item            ObjRef `json:"item"`
	Title           string `json:"title,omitempty"`
	Aggregation     string `json:"aggregation,omitempty"`
}

// Filter is one of PositiveAttributeFilter, NegativeAttributeFilter, RelativeDateFilter or
// AbsoluteDateFilter.
type Filter interface {
	json.Marshaler
	isFilter()
}

// PositiveAttributeFilter keeps rows whose label value is listed
type PositiveAttributeFilter struct {
	DisplayForm ObjRef
	In          []string
}

// NegativeAttributeFilter drops rows whose label value is listed
type NegativeAttributeFilter struct {
	DisplayForm ObjRef
	NotIn       []string
}

// RelativeDateFilter keeps periods From..To relative to the current one
type RelativeDateFilter struct {
	DataSet     ObjRef
	Granularity string
	From        int
	To          int
}

// AbsoluteDateFilter keeps the literal range From..To
type AbsoluteDateFilter struct {
	DataSet ObjRef
	From    string
	To      string
}

func (PositiveAttributeFilter) isFilter() {}
func (NegativeAttributeFilter) isFilter() {}
func (RelativeDateFilter) isFilter()      {}
func (AbsoluteDateFilter) isFilter()      {}

func (f PositiveAttributeFilter) MarshalJSON() ([]byte, error) {
	type body struct {
		DisplayForm ObjRef `json:"displayForm"`
		In          struct {
			Values []string `json:"values"`
		} `json:"in"`
	}
	var b body
	b.DisplayForm = f.DisplayForm
	b.In.Values = orEmpty(f.In)
	return json.Marshal(map[string]body{"positiveAttributeFilter": b})
}

func (f NegativeAttributeFilter) MarshalJSON() ([]byte, error) {
	type body struct {
		DisplayForm ObjRef `json:"displayForm"`
		NotIn       struct {
			Values []string `json:"values"`
		} `json:"notIn"`
	}
	var b body
	b.DisplayForm = f.DisplayForm
	b.NotIn.Values = orEmpty(f.NotIn)
	return json.Marshal(map[string]body{"negativeAttributeFilter": b})
}

func (f RelativeDateFilter) MarshalJSON() ([]byte, error) {
	type body struct {
		DataSet     ObjRef `json:"dataSet"`
		Granularity string `json:"granularity"`
		From        int    `json:"from"`
		To          int    `json:"to"`
	}
	return json.Marshal(map[string]body{"relativeDateFilter": {f.DataSet, f.Granularity, f.From, f.To}})
}

func (f AbsoluteDateFilter) MarshalJSON() ([]byte, error) {
	type body struct {
		DataSet ObjRef `json:"dataSet"`
		From    string `json:"from"`
		To      string `json:"to"`
	}
	return json.Marshal(map[string]body{"absoluteDateFilter": {f.DataSet, f.From, f.To}})
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
