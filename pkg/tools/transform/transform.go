// Package transform provides the transform system tool, which reshapes its
// input with a jq expression.
package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/itchyny/gojq"

	"github.com/fera765/flui/pkg/protocol"
)

const (
	Type = "transform"

	expressionKey = "expression"
)

var ErrMissingExpression = errors.New("missing required field 'expression'")

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string { return Type }

func (*Factory) Name() string { return "Transform" }

func (*Factory) Description() string {
	return "Transforms the node input with a jq expression."
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			expressionKey: map[string]any{
				"type":        "string",
				"description": "jq expression evaluated against the node input",
				"examples":    []string{".order.items | length", "{total: (.items | map(.price) | add)}"},
			},
		},
		"required": []string{expressionKey},
	}
}

// Create compiles the configured expression. A tool without one reads the
// expression from its input on every call.
func (*Factory) Create(_ context.Context, config map[string]any) (protocol.ToolExecutor, error) {
	tool := &Tool{}

	expression, _ := config[expressionKey].(string)
	if expression != "" {
		code, err := compile(expression)
		if err != nil {
			return nil, err
		}

		tool.code = code
	}

	return tool, nil
}

type Tool struct {
	code *gojq.Code
}

func (t *Tool) Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (map[string]any, error) {
	code := t.code

	if expression, ok := input[expressionKey].(string); ok && expression != "" {
		compiled, err := compile(expression)
		if err != nil {
			return nil, err
		}

		code = compiled
	}

	if code == nil {
		return nil, ErrMissingExpression
	}

	data, err := normalize(input)
	if err != nil {
		return nil, err
	}

	delete(data, expressionKey)

	var results []any

	iter := code.RunWithContext(ctx, data)

	for {
		value, ok := iter.Next()
		if !ok {
			break
		}

		if err, isErr := value.(error); isErr {
			return nil, fmt.Errorf("jq evaluation failed: %w", err)
		}

		results = append(results, value)
	}

	var result any

	switch len(results) {
	case 0:
	case 1:
		result = results[0]
	default:
		result = results
	}

	logger.DebugContext(ctx, "Transform evaluated", "outputs", len(results))

	output := map[string]any{}
	if object, ok := result.(map[string]any); ok {
		maps.Copy(output, object)
	}

	output["result"] = result

	return output, nil
}

func compile(expression string) (*gojq.Code, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("jq parse error in %q: %w", expression, err)
	}

	code, err := gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, fmt.Errorf("jq compile error in %q: %w", expression, err)
	}

	return code, nil
}

// normalize converts arbitrary Go values into the JSON shapes gojq accepts.
func normalize(input map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("transform input is not JSON serializable: %w", err)
	}

	data := map[string]any{}

	err = json.Unmarshal(raw, &data)
	if err != nil {
		return nil, err
	}

	return data, nil
}
