// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fera765/flui/pkg/agents/httpagent"
	"github.com/fera765/flui/pkg/registry"
	"github.com/fera765/flui/pkg/tools/httprequest"
	logtool "github.com/fera765/flui/pkg/tools/log"
	"github.com/fera765/flui/pkg/tools/transform"
	"github.com/fera765/flui/pkg/tools/trigger"
)

func registerNativeTools(reg *registry.Registry, client *http.Client) {
	reg.RegisterTool(trigger.NewManualFactory())
	reg.RegisterTool(trigger.NewWebhookFactory())
	reg.RegisterTool(trigger.NewScheduleFactory())
	reg.RegisterTool(logtool.NewFactory())
	reg.RegisterTool(transform.NewFactory())
	reg.RegisterTool(httprequest.NewFactory(client))
}

func registerNativeAgents(reg *registry.Registry, client *http.Client) {
	reg.RegisterAgent(httpagent.NewFactory(client))
}

// NewRegistry registers the native tools and agents, then the plugins found
// under pluginsPath. A plugin with the id of a native factory replaces it.
func NewRegistry(ctx context.Context, log *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)
	client := &http.Client{Timeout: 30 * time.Second}

	registerNativeTools(reg, client)
	registerNativeAgents(reg, client)

	if pluginsPath == "" {
		return reg, nil
	}

	tools, err := reg.LoadToolPlugins(ctx, pluginsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool plugins: %w", err)
	}

	for _, tool := range tools {
		reg.RegisterTool(tool)
	}

	agents, err := reg.LoadAgentPlugins(ctx, pluginsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent plugins: %w", err)
	}

	for _, agent := range agents {
		reg.RegisterAgent(agent)
	}

	return reg, nil
}
