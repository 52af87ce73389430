// Package log provides the log system tool.
package log

import (
	"context"
	"fmt"
	"log/slog"

	flog "github.com/fera765/flui/pkg/log"
	"github.com/fera765/flui/pkg/protocol"
)

const Type = "log"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string { return Type }

func (*Factory) Name() string { return "Log" }

func (*Factory) Description() string {
	return "Writes a message and the node input to the server log."
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. A linked 'message' input overrides it.",
			},
			"level": map[string]any{
				"type":    "string",
				"default": "info",
				"enum":    []string{"debug", "info", "warn", "error"},
			},
		},
	}
}

func (*Factory) Create(_ context.Context, config map[string]any) (protocol.ToolExecutor, error) {
	tool := &Tool{level: "info"}

	if message, ok := config["message"].(string); ok {
		tool.message = message
	}

	if level, ok := config["level"].(string); ok {
		tool.level = level
	}

	return tool, nil
}

type Tool struct {
	message string
	level   string
}

func (t *Tool) Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (map[string]any, error) {
	message := t.message
	if value, ok := input["message"]; ok && value != nil {
		message = fmt.Sprint(value)
	}

	level := t.level
	if value, ok := input["level"].(string); ok {
		level = value
	}

	logger.With("tool_type", Type).Log(ctx, flog.Level(level), message, "input", input)

	return map[string]any{
		"message": message,
		"logged":  true,
	}, nil
}
