// Package dashboard describes how the widget plugs into a dashboard: plugin metadata, the
// custom widget registry and the layout section the plugin appends.
package dashboard

import (
	"fmt"
	"sort"
	"sync"
)

const (
	// WidgetType is the custom widget type rendering AI visualizations
	WidgetType = "aiVisualization"
	// WidgetRef identifies the widget instance placed in the appended section
	WidgetRef = "myWidget1"
	// SectionHeader titles the appended section
	SectionHeader = "Ask AI Assistant"
	// DefaultDashboardID scopes conversations of dashboards that are not saved yet
	DefaultDashboardID = "new"
	// GridColumns is the width of the layout grid
	GridColumns = 12
)

// Metadata identifies the plugin to the dashboard host
type Metadata struct {
	Author           string `json:"author"`
	DisplayName      string `json:"displayName"`
	Version          string `json:"version"`
	MinEngineVersion string `json:"minEngineVersion"`
	MaxEngineVersion string `json:"maxEngineVersion"`
	Compatibility    string `json:"compatibility,omitempty"`
}

// DefaultMetadata describes this plugin
var DefaultMetadata = Metadata{
	Author:           "Sabio",
	DisplayName:      "AI Visualization",
	Version:          "1.0.0",
	MinEngineVersion: "10.4.0",
	MaxEngineVersion: "12.x",
	Compatibility:    ">=10.4.0",
}

// WidgetFactory builds the widget for a dashboard, returning its thread identifier
type WidgetFactory func(dashboardID string) string

// Registry holds the custom widget types a plugin provides
type Registry struct {
	mu      sync.RWMutex
	widgets map[string]WidgetFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{widgets: make(map[string]WidgetFactory)}
}

// AddCustomWidget registers a widget type. Registering the same type twice is an error.
func (r *Registry) AddCustomWidget(widgetType string, factory WidgetFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.widgets[widgetType]; exists {
		return fmt.Errorf("custom widget %q already registered", widgetType)
	}
	r.widgets[widgetType] = factory
	return nil
}

// Widget returns the factory of a registered type
func (r *Registry) Widget(widgetType string) (WidgetFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.widgets[widgetType]
	return f, ok
}

// Types lists registered widget types in name order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.widgets))
	for t := range r.widgets {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DashboardID returns the identifier scoping a dashboard's conversation
func DashboardID(identifier string) string {
	if identifier == "" {
		return DefaultDashboardID
	}
	return identifier
}

// Plugin registers the AI visualization widget and its layout section
type Plugin struct {
	Metadata Metadata
	Registry *Registry
}

// NewPlugin creates the plugin and registers its widget type
func NewPlugin(meta Metadata) *Plugin {
	p := &Plugin{Metadata: meta, Registry: NewRegistry()}
	// a fresh registry cannot already hold the type
	_ = p.Registry.AddCustomWidget(WidgetType, DashboardID)
	return p
}

// Customize appends the plugin section after the existing sections and returns the
// new layout. The input layout is not modified.
func (p *Plugin) Customize(layout Layout) Layout {
	return layout.AddSection(len(layout.Sections), NewSection(SectionHeader,
		NewItem(NewCustomWidget(WidgetRef, WidgetType), map[string]Size{
			"xl": {GridWidth: GridColumns, GridHeight: 1},
		}),
	))
}
