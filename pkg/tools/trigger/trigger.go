// Package trigger provides the trigger system tools. A trigger passes the
// run's root input through as its output.
package trigger

import (
	"context"
	"log/slog"
	"maps"

	"github.com/fera765/flui/pkg/protocol"
)

const (
	TypeManual   = "trigger:manual"
	TypeWebhook  = "trigger:webhook"
	TypeSchedule = "trigger:schedule"
)

type Factory struct {
	id          string
	name        string
	description string
	schema      map[string]any
}

func NewManualFactory() *Factory {
	return &Factory{
		id:          TypeManual,
		name:        "Manual trigger",
		description: "Starts an automation from the execute or start endpoints.",
		schema:      map[string]any{"type": "object"},
	}
}

func NewWebhookFactory() *Factory {
	return &Factory{
		id:          TypeWebhook,
		name:        "Webhook trigger",
		description: "Starts an automation from a token-protected webhook call.",
		schema:      map[string]any{"type": "object"},
	}
}

func NewScheduleFactory() *Factory {
	return &Factory{
		id:          TypeSchedule,
		name:        "Schedule trigger",
		description: "Starts an automation on a cron schedule.",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"cron": map[string]any{
					"type":        "string",
					"description": "Standard five-field cron expression",
					"examples":    []string{"*/5 * * * *", "0 9 * * 1-5"},
				},
			},
			"required": []string{"cron"},
		},
	}
}

func (f *Factory) ID() string { return f.id }

func (f *Factory) Name() string { return f.name }

func (f *Factory) Description() string { return f.description }

func (f *Factory) Schema() map[string]any { return f.schema }

func (f *Factory) Create(_ context.Context, _ map[string]any) (protocol.ToolExecutor, error) {
	return protocol.ToolExecutorFunc(passthrough), nil
}

func passthrough(ctx context.Context, input map[string]any, logger *slog.Logger) (map[string]any, error) {
	logger.DebugContext(ctx, "Trigger fired", "keys", len(input))

	output := make(map[string]any, len(input))
	maps.Copy(output, input)

	return output, nil
}
