package transform

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTool_Execute(t *testing.T) {
	t.Parallel()

	input := map[string]any{
		"items": []any{
			map[string]any{"sku": "a", "price": 2},
			map[string]any{"sku": "b", "price": 3.5},
		},
		"customer": "ana",
	}

	tests := []struct {
		name       string
		expression string
		expected   any
	}{
		{"scalar", ".items | length", 2},
		{"object merged", "{total: (.items | map(.price) | add), customer}", map[string]any{"total": 5.5, "customer": "ana"}},
		{"multiple outputs", ".items[].sku", []any{"a", "b"}},
		{"no output", "empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tool, err := NewFactory().Create(t.Context(), map[string]any{"expression": tt.expression})
			require.NoError(t, err)

			output, err := tool.Execute(t.Context(), input, slog.New(slog.DiscardHandler))
			require.NoError(t, err)

			assert.EqualValues(t, tt.expected, output["result"])

			if object, ok := tt.expected.(map[string]any); ok {
				for key, value := range object {
					assert.Equal(t, value, output[key])
				}
			}
		})
	}
}

func TestTool_ExpressionFromInput(t *testing.T) {
	tool, err := NewFactory().Create(t.Context(), nil)
	require.NoError(t, err)

	output, err := tool.Execute(t.Context(), map[string]any{"expression": ".n * 2", "n": 21}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.EqualValues(t, 42, output["result"])

	_, err = tool.Execute(t.Context(), map[string]any{"n": 1}, slog.New(slog.DiscardHandler))
	assert.ErrorIs(t, err, ErrMissingExpression)
}

func TestFactory_InvalidExpression(t *testing.T) {
	_, err := NewFactory().Create(t.Context(), map[string]any{"expression": ".items | ]"})
	assert.Error(t, err)
}

func TestTool_RuntimeError(t *testing.T) {
	tool, err := NewFactory().Create(t.Context(), map[string]any{"expression": `error("boom")`})
	require.NoError(t, err)

	_, err = tool.Execute(t.Context(), map[string]any{}, slog.New(slog.DiscardHandler))
	assert.ErrorContains(t, err, "boom")
}

func TestTool_EnvironmentIsHidden(t *testing.T) {
	tool, err := NewFactory().Create(t.Context(), map[string]any{"expression": "$ENV | length"})
	require.NoError(t, err)

	output, err := tool.Execute(t.Context(), map[string]any{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.EqualValues(t, 0, output["result"])
}
