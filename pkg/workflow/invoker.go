package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fera765/flui/pkg/conditions"
	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/protocol"
	"github.com/fera765/flui/pkg/registry"
)

// Outcome is what a node produced. Branch is only set by condition nodes and
// holds the node ids selected for activation.
type Outcome struct {
	Output map[string]any
	Branch []string
}

// Resolvable is a node bound to its collaborator.
type Resolvable interface {
	Resolve(ctx context.Context, input map[string]any) (Outcome, error)
}

// Brancher is implemented by targets that select downstream nodes.
type Brancher interface {
	// Targets returns every node id the target may activate.
	Targets() []string
}

// Invoker binds nodes to system tools, agents and condition tools.
type Invoker struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	logger      *slog.Logger
}

func NewInvoker(persistence persistence.Persistence, registry *registry.Registry, logger *slog.Logger) *Invoker {
	return &Invoker{
		persistence: persistence,
		registry:    registry,
		logger:      logger.With("module", "invoker"),
	}
}

// Bind looks up the collaborator referenced by node.
//
//nolint:ireturn
func (i *Invoker) Bind(ctx context.Context, node *models.Node) (Resolvable, error) {
	switch node.Type {
	case models.NodeTypeTrigger, models.NodeTypeTool:
		return i.bindTool(ctx, node)
	case models.NodeTypeAgent:
		return i.bindAgent(ctx, node)
	case models.NodeTypeCondition:
		return i.bindCondition(ctx, node)
	default:
		return nil, nodeError(node, fmt.Errorf("%w: %q", ErrUnknownNodeType, node.Type))
	}
}

func (i *Invoker) bindTool(ctx context.Context, node *models.Node) (*toolTarget, error) {
	tool, err := i.persistence.Tools().GetByID(ctx, node.ReferenceID)
	if err != nil {
		return nil, nodeError(node, err)
	}

	if tool == nil {
		return nil, nodeError(node, persistence.NewEntityError("Bind", persistence.KindTool, node.ReferenceID, persistence.ErrToolNotFound))
	}

	if node.IsTrigger() && !tool.IsTrigger() {
		i.logger.WarnContext(ctx, "trigger node references a non trigger tool", "node_id", node.ID, "tool_type", tool.Type)
	}

	executor, err := i.registry.CreateTool(ctx, tool.Type, tool.Config)
	if err != nil {
		return nil, nodeError(node, err)
	}

	return &toolTarget{
		tool:     tool,
		executor: executor,
		logger:   i.logger.With("node_id", node.ID, "tool_id", tool.ID),
	}, nil
}

func (i *Invoker) bindAgent(ctx context.Context, node *models.Node) (*agentTarget, error) {
	agent, err := i.persistence.Agents().GetByID(ctx, node.ReferenceID)
	if err != nil {
		return nil, nodeError(node, err)
	}

	if agent == nil {
		return nil, nodeError(node, persistence.NewEntityError("Bind", persistence.KindAgent, node.ReferenceID, persistence.ErrAgentNotFound))
	}

	invoker, err := i.registry.CreateAgent(ctx, agent.Provider, agent.Config)
	if err != nil {
		return nil, nodeError(node, err)
	}

	return &agentTarget{
		agent:   agent,
		invoker: invoker,
		logger:  i.logger.With("node_id", node.ID, "agent_id", agent.ID),
	}, nil
}

func (i *Invoker) bindCondition(ctx context.Context, node *models.Node) (*conditionTarget, error) {
	def, err := i.persistence.ConditionTools().GetByID(ctx, node.ReferenceID)
	if err != nil {
		return nil, nodeError(node, err)
	}

	if def == nil {
		return nil, nodeError(node, persistence.NewEntityError("Bind", persistence.KindConditionTool, node.ReferenceID, persistence.ErrConditionToolNotFound))
	}

	tool := conditions.NewTool(def)
	for _, err := range tool.Errors() {
		i.logger.WarnContext(ctx, "condition will never match", "node_id", node.ID, "condition_tool_id", def.ID, "error", err)
	}

	return &conditionTarget{tool: tool}, nil
}

type toolTarget struct {
	tool     *models.SystemTool
	executor protocol.ToolExecutor
	logger   *slog.Logger
}

func (t *toolTarget) Resolve(ctx context.Context, input map[string]any) (Outcome, error) {
	output, err := t.executor.Execute(ctx, input, t.logger)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Output: output}, nil
}

type agentTarget struct {
	agent   *models.Agent
	invoker protocol.Agent
	logger  *slog.Logger
}

func (t *agentTarget) Resolve(ctx context.Context, input map[string]any) (Outcome, error) {
	result, err := t.invoker.Invoke(ctx, protocol.AgentRequest{
		Instructions: t.agent.Instructions,
		Input:        input,
	}, t.logger)
	if err != nil {
		return Outcome{}, err
	}

	if output, ok := result.(map[string]any); ok {
		return Outcome{Output: output}, nil
	}

	return Outcome{Output: map[string]any{"response": result}}, nil
}

type conditionTarget struct {
	tool *conditions.Tool
}

func (t *conditionTarget) Resolve(_ context.Context, input map[string]any) (Outcome, error) {
	matches, selected := t.tool.Route(input)

	if t.tool.Mode() == models.MatchModeAll {
		return Outcome{
			Output: map[string]any{
				"satisfied":   len(matches) > 0,
				"matches":     matchOutputs(matches),
				"linkedNodes": selected,
			},
			Branch: selected,
		}, nil
	}

	match := conditions.Match{Satisfied: false, LinkedNodes: selected}
	if len(matches) > 0 {
		match = matches[0]
	}

	return Outcome{Output: matchOutput(match), Branch: selected}, nil
}

func (t *conditionTarget) Targets() []string {
	return t.tool.LinkedNodes()
}

func matchOutputs(matches []conditions.Match) []any {
	outputs := make([]any, 0, len(matches))
	for _, match := range matches {
		outputs = append(outputs, matchOutput(match))
	}

	return outputs
}

func matchOutput(match conditions.Match) map[string]any {
	output := map[string]any{
		"satisfied":   match.Satisfied,
		"linkedNodes": match.LinkedNodes,
	}

	if match.Satisfied {
		output["conditionId"] = match.ConditionID
		output["conditionName"] = match.ConditionName
	}

	return output
}

// failedTarget stands in for a node that could not be bound.
type failedTarget struct {
	err error
}

func (t failedTarget) Resolve(context.Context, map[string]any) (Outcome, error) {
	return Outcome{}, t.err
}
