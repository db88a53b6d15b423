package main

import (
	"os"

	"github.com/grafana/grafana-plugin-sdk-go/backend"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/plugin"
)

// pluginID must match the id in plugin.json
const pluginID = "sabio-ai-visualization-app"

func main() {
	// Create plugin
	p := plugin.NewPlugin()

	// Serve plugin
	if err := backend.Manage(pluginID, backend.ServeOpts{
		CallResourceHandler: p,
		CheckHealthHandler:  p,
	}); err != nil {
		log.DefaultLogger.Error("Plugin exited with error", "error", err)
		os.Exit(1)
	}
}
