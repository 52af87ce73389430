// Package protocol defines the contracts for pluggable tools and agents.
package protocol

import (
	"context"
	"log/slog"
)

// ToolExecutor runs a system tool against a fully resolved input object.
type ToolExecutor interface {
	Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (map[string]any, error)
}

// ToolFactory creates tool executors of one type and describes that type.
type ToolFactory interface {
	// Create builds an executor for a tool instance with the given config.
	Create(ctx context.Context, config map[string]any) (ToolExecutor, error)

	// ID returns the tool type, e.g. "log" or "trigger:webhook".
	ID() string

	Name() string

	Description() string

	// Schema returns the JSON schema of the tool config.
	Schema() map[string]any
}

// ToolExecutorFunc adapts a function to ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, input map[string]any, logger *slog.Logger) (map[string]any, error)

func (f ToolExecutorFunc) Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (map[string]any, error) {
	return f(ctx, input, logger)
}
