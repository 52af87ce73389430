package testutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence/memory"
	"github.com/fera765/flui/pkg/protocol"
	"github.com/fera765/flui/pkg/registry"
	"github.com/fera765/flui/pkg/tools/trigger"
)

const (
	// EchoTool outputs its input merged with config["output"].
	EchoTool = "test:echo"
	// FailTool always fails with config["message"].
	FailTool = "test:fail"
	// EchoAgent answers config["reply"] when set, otherwise its input.
	EchoAgent = "test:echo"
)

var ErrToolFailed = errors.New("tool failed")

// Env is an in-memory persistence plus a registry with the built-in
// triggers and the test tools above.
type Env struct {
	Persistence *memory.Persistence
	Registry    *registry.Registry
	Logger      *slog.Logger

	calls atomic.Int64
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	env := &Env{
		Persistence: memory.NewPersistence(),
		Logger:      slog.New(slog.DiscardHandler),
	}

	env.Registry = registry.NewRegistry(env.Logger)
	env.Registry.RegisterTool(trigger.NewManualFactory())
	env.Registry.RegisterTool(trigger.NewWebhookFactory())
	env.Registry.RegisterTool(trigger.NewScheduleFactory())
	env.Registry.RegisterTool(&toolFactory{id: EchoTool, env: env})
	env.Registry.RegisterTool(&toolFactory{id: FailTool, env: env})
	env.Registry.RegisterAgent(&agentFactory{env: env})

	return env
}

// Calls returns how many test tools and agents ran.
func (e *Env) Calls() int64 {
	return e.calls.Load()
}

func (e *Env) Tool(t *testing.T, id, toolType string, config map[string]any) *models.SystemTool {
	t.Helper()

	tool := &models.SystemTool{ID: id, Name: id, Type: toolType, Config: config}
	require.NoError(t, e.Persistence.Tools().Save(t.Context(), tool))

	return tool
}

func (e *Env) Agent(t *testing.T, id string, config map[string]any) *models.Agent {
	t.Helper()

	agent := &models.Agent{ID: id, Name: id, Provider: EchoAgent, Instructions: "answer", Config: config}
	require.NoError(t, e.Persistence.Agents().Save(t.Context(), agent))

	return agent
}

func (e *Env) ConditionTool(t *testing.T, id string, mode models.MatchMode, conditions ...*models.Condition) *models.ConditionTool {
	t.Helper()

	tool := &models.ConditionTool{
		ID:         id,
		Name:       id,
		Type:       models.ConditionToolType,
		MatchMode:  mode,
		Conditions: conditions,
	}
	require.NoError(t, e.Persistence.ConditionTools().Save(t.Context(), tool))

	return tool
}

func (e *Env) Automation(t *testing.T, automation *models.Automation) *models.Automation {
	t.Helper()

	require.NoError(t, e.Persistence.Automations().Save(t.Context(), automation))

	return automation
}

type toolFactory struct {
	id  string
	env *Env
}

func (f *toolFactory) ID() string { return f.id }

func (f *toolFactory) Name() string { return f.id }

func (f *toolFactory) Description() string { return "test tool" }

func (f *toolFactory) Schema() map[string]any { return map[string]any{"type": "object"} }

func (f *toolFactory) Create(_ context.Context, config map[string]any) (protocol.ToolExecutor, error) {
	return protocol.ToolExecutorFunc(func(ctx context.Context, input map[string]any, _ *slog.Logger) (map[string]any, error) {
		f.env.calls.Add(1)

		if delay, ok := config["delay"].(time.Duration); ok {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if f.id == FailTool {
			return nil, fmt.Errorf("%w: %v", ErrToolFailed, config["message"])
		}

		output := maps.Clone(input)
		if output == nil {
			output = map[string]any{}
		}

		if extra, ok := config["output"].(map[string]any); ok {
			maps.Copy(output, extra)
		}

		return output, nil
	}), nil
}

type agentFactory struct {
	env *Env
}

func (f *agentFactory) ID() string { return EchoAgent }

func (f *agentFactory) Description() string { return "test agent" }

func (f *agentFactory) Create(_ context.Context, config map[string]any) (protocol.Agent, error) {
	return agentFunc(func(_ context.Context, request protocol.AgentRequest, _ *slog.Logger) (any, error) {
		f.env.calls.Add(1)

		if reply, ok := config["reply"]; ok {
			return reply, nil
		}

		return request.Input, nil
	}), nil
}

type agentFunc func(ctx context.Context, request protocol.AgentRequest, logger *slog.Logger) (any, error)

func (f agentFunc) Invoke(ctx context.Context, request protocol.AgentRequest, logger *slog.Logger) (any, error) {
	return f(ctx, request, logger)
}
