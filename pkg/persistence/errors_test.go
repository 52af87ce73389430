package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fera765/flui/pkg/persistence"
)

func TestEntityError(t *testing.T) {
	t.Parallel()

	t.Run("wraps the sentinel", func(t *testing.T) {
		err := persistence.NewEntityError("Delete", persistence.KindAutomation, "a-1", persistence.ErrAutomationNotFound)

		assert.True(t, errors.Is(err, persistence.ErrAutomationNotFound))
		assert.True(t, persistence.IsNotFound(err))
		assert.False(t, persistence.IsAlreadyExists(err))
	})

	t.Run("message carries context", func(t *testing.T) {
		err := persistence.NewEntityError("Save", persistence.KindAutomation, "a-1", persistence.ErrAlreadyExists)

		assert.Contains(t, err.Error(), "Save")
		assert.Contains(t, err.Error(), "a-1")
		assert.Contains(t, err.Error(), "already exists")
		assert.True(t, persistence.IsAlreadyExists(fmt.Errorf("outer: %w", err)))
	})
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	kinds := map[string]error{
		persistence.KindAutomation:    persistence.ErrAutomationNotFound,
		persistence.KindTool:          persistence.ErrToolNotFound,
		persistence.KindAgent:         persistence.ErrAgentNotFound,
		persistence.KindConditionTool: persistence.ErrConditionToolNotFound,
		persistence.KindWebhook:       persistence.ErrWebhookNotFound,
		persistence.KindExecution:     persistence.ErrExecutionNotFound,
	}

	for kind, expected := range kinds {
		assert.ErrorIs(t, persistence.NotFound(kind), expected)
		assert.True(t, persistence.IsNotFound(persistence.NotFound(kind)))
	}

	assert.False(t, persistence.IsNotFound(persistence.NotFound("widget")))
}
