package dashboard

// Size is the grid allocation of an item at one breakpoint
type Size struct {
	GridWidth  int `json:"gridWidth"`
	GridHeight int `json:"gridHeight,omitempty"`
}

// Widget is a widget placed in the layout
type Widget struct {
	Type       string `json:"type"`
	Ref        string `json:"ref"`
	CustomType string `json:"customType,omitempty"`
}

// Item places one widget in a section
type Item struct {
	Widget Widget          `json:"widget"`
	Size   map[string]Size `json:"size"`
}

// Section is a titled row of items
type Section struct {
	Header string `json:"header,omitempty"`
	Items  []Item `json:"items"`
}

// Layout is a fluid dashboard layout
type Layout struct {
	Sections []Section `json:"sections"`
}

// NewCustomWidget creates a widget backed by a registered custom type
func NewCustomWidget(ref, customType string) Widget {
	return Widget{Type: "customWidget", Ref: ref, CustomType: customType}
}

// NewItem wraps a widget with its sizes
func NewItem(w Widget, size map[string]Size) Item {
	return Item{Widget: w, Size: size}
}

// NewSection creates a section holding items
func NewSection(header string, items ...Item) Section {
	return Section{Header: header, Items: items}
}

// AddSection returns a copy of l with s inserted at index. Out-of-range indexes append.
func (l Layout) AddSection(index int, s Section) Layout {
	if index < 0 || index > len(l.Sections) {
		index = len(l.Sections)
	}

	sections := make([]Section, 0, len(l.Sections)+1)
	sections = append(sections, l.Sections[:index]...)
	sections = append(sections, s)
	sections = append(sections, l.Sections[index:]...)
	return Layout{Sections: sections}
}
