package protocol

import (
	"context"
	"log/slog"
)

// AgentRequest is what an agent receives for one node invocation.
type AgentRequest struct {
	Instructions string
	Input        map[string]any
}

// Agent answers a request. The result may be any JSON value; non-object
// results are wrapped by the caller.
type Agent interface {
	Invoke(ctx context.Context, request AgentRequest, logger *slog.Logger) (any, error)
}

// AgentFactory creates agents for one provider.
type AgentFactory interface {
	Create(ctx context.Context, config map[string]any) (Agent, error)

	// ID returns the provider name.
	ID() string

	Description() string
}
