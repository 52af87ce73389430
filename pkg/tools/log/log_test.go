package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTool_Execute(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		input    map[string]any
		expected string
		level    string
	}{
		{"config message", map[string]any{"message": "from config"}, map[string]any{}, "from config", "INFO"},
		{"input overrides config", map[string]any{"message": "from config"}, map[string]any{"message": "from link"}, "from link", "INFO"},
		{"non string message", nil, map[string]any{"message": 42}, "42", "INFO"},
		{"level from config", map[string]any{"message": "careful", "level": "warn"}, map[string]any{}, "careful", "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			tool, err := NewFactory().Create(t.Context(), tt.config)
			require.NoError(t, err)

			output, err := tool.Execute(t.Context(), tt.input, logger)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, output["message"])
			assert.Equal(t, true, output["logged"])
			assert.Contains(t, buf.String(), "level="+tt.level)
			assert.Contains(t, buf.String(), "tool_type=log")
		})
	}
}
