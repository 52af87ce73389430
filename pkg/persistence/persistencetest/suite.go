// Package persistencetest holds the behaviour every persistence adapter must
// share. Adapter tests call Run with a constructor for a fresh, empty store.
package persistencetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
)

func Automation(id, name string) *models.Automation {
	return &models.Automation{
		ID:          id,
		Name:        name,
		Description: "sample automation",
		Status:      models.AutomationStatusIdle,
		Nodes: []*models.Node{
			{ID: "trigger", Type: models.NodeTypeTrigger, ReferenceID: "tool-trigger", Config: map[string]any{"source": "test"}},
			{ID: "log", Type: models.NodeTypeTool, ReferenceID: "tool-log"},
		},
		Links: []*models.Link{
			{FromNodeID: "trigger", FromOutputKey: "message", ToNodeID: "log", ToInputKey: "message"},
		},
	}
}

func Run(t *testing.T, newPersistence func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("automations round trip", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		automation := Automation("a-1", "Order intake")
		require.NoError(t, p.Automations().Save(ctx, automation))
		assert.False(t, automation.CreatedAt.IsZero())

		loaded, err := p.Automations().GetByID(ctx, "a-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "Order intake", loaded.Name)
		require.Len(t, loaded.Nodes, 2)
		assert.Equal(t, models.NodeTypeTrigger, loaded.Nodes[0].Type)
		assert.Equal(t, "test", loaded.Nodes[0].Config["source"])
		require.Len(t, loaded.Links, 1)
		assert.Equal(t, "message", loaded.Links[0].ToInputKey)

		byName, err := p.Automations().GetByName(ctx, "order intake")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, "a-1", byName.ID)

		all, err := p.Automations().GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("missing automation is nil", func(t *testing.T) {
		p := newPersistence(t)

		loaded, err := p.Automations().GetByID(t.Context(), "nope")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		byName, err := p.Automations().GetByName(t.Context(), "nope")
		require.NoError(t, err)
		assert.Nil(t, byName)
	})

	t.Run("automation names are unique", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		require.NoError(t, p.Automations().Save(ctx, Automation("a-1", "Billing")))

		err := p.Automations().Save(ctx, Automation("a-2", "Billing"))
		assert.True(t, persistence.IsAlreadyExists(err))

		renamed := Automation("a-1", "Billing v2")
		require.NoError(t, p.Automations().Save(ctx, renamed))
	})

	t.Run("automation status updates", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		require.NoError(t, p.Automations().Save(ctx, Automation("a-1", "Status")))
		require.NoError(t, p.Automations().UpdateStatus(ctx, "a-1", models.AutomationStatusRunning))

		loaded, err := p.Automations().GetByID(ctx, "a-1")
		require.NoError(t, err)
		assert.Equal(t, models.AutomationStatusRunning, loaded.Status)

		err = p.Automations().UpdateStatus(ctx, "missing", models.AutomationStatusFailed)
		assert.ErrorIs(t, err, persistence.ErrAutomationNotFound)
	})

	t.Run("automation details update keeps status", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		require.NoError(t, p.Automations().Save(ctx, Automation("a-1", "Details")))
		require.NoError(t, p.Automations().Save(ctx, Automation("a-2", "Taken")))
		require.NoError(t, p.Automations().UpdateStatus(ctx, "a-1", models.AutomationStatusCompleted))

		require.NoError(t, p.Automations().UpdateDetails(ctx, "a-1", "Details v2", "renamed"))

		loaded, err := p.Automations().GetByID(ctx, "a-1")
		require.NoError(t, err)
		assert.Equal(t, "Details v2", loaded.Name)
		assert.Equal(t, "renamed", loaded.Description)
		assert.Equal(t, models.AutomationStatusCompleted, loaded.Status)
		assert.Len(t, loaded.Nodes, 2)

		err = p.Automations().UpdateDetails(ctx, "a-1", "taken", "")
		assert.True(t, persistence.IsAlreadyExists(err))

		err = p.Automations().UpdateDetails(ctx, "missing", "Other", "")
		assert.ErrorIs(t, err, persistence.ErrAutomationNotFound)
	})

	t.Run("automation delete", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		require.NoError(t, p.Automations().Save(ctx, Automation("a-1", "Delete me")))
		require.NoError(t, p.Automations().Delete(ctx, "a-1"))

		loaded, err := p.Automations().GetByID(ctx, "a-1")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		assert.ErrorIs(t, p.Automations().Delete(ctx, "a-1"), persistence.ErrAutomationNotFound)
	})

	t.Run("catalog repositories", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		tool := &models.SystemTool{ID: "tool-log", Name: "Logger", Type: "log", Config: map[string]any{"level": "info"}}
		require.NoError(t, p.Tools().Save(ctx, tool))

		loadedTool, err := p.Tools().GetByID(ctx, "tool-log")
		require.NoError(t, err)
		require.NotNil(t, loadedTool)
		assert.Equal(t, "log", loadedTool.Type)
		assert.Equal(t, "info", loadedTool.Config["level"])

		agent := &models.Agent{ID: "agent-1", Name: "Summarizer", Provider: "http", Instructions: "summarize"}
		require.NoError(t, p.Agents().Save(ctx, agent))

		agents, err := p.Agents().GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, agents, 1)
		assert.Equal(t, "summarize", agents[0].Instructions)

		conditionTool := &models.ConditionTool{
			ID:   "router",
			Name: "Router",
			Type: models.ConditionToolType,
			Conditions: []*models.Condition{
				{ID: "c1", Predicate: `input.action == "buy"`, LinkedNodes: []string{"buy"}},
			},
		}
		require.NoError(t, p.ConditionTools().Save(ctx, conditionTool))

		loadedCondition, err := p.ConditionTools().GetByID(ctx, "router")
		require.NoError(t, err)
		require.Len(t, loadedCondition.Conditions, 1)
		assert.Equal(t, []string{"buy"}, loadedCondition.Conditions[0].LinkedNodes)

		require.NoError(t, p.Tools().Delete(ctx, "tool-log"))
		assert.ErrorIs(t, p.Tools().Delete(ctx, "tool-log"), persistence.ErrToolNotFound)
		assert.ErrorIs(t, p.Agents().Delete(ctx, "missing"), persistence.ErrAgentNotFound)
	})

	t.Run("webhooks", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		webhook := &models.Webhook{
			ID:           "tool-trigger",
			AutomationID: "a-1",
			NodeID:       "trigger",
			URL:          "http://localhost/api/webhooks/tool-trigger",
			Token:        "whk_0123456789abcdef0123456789abcdef",
			Method:       "POST",
		}
		require.NoError(t, p.Webhooks().Save(ctx, webhook))

		loaded, err := p.Webhooks().GetByID(ctx, "tool-trigger")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, webhook.Token, loaded.Token)
		assert.Equal(t, "a-1", loaded.AutomationID)

		assert.ErrorIs(t, p.Webhooks().Delete(ctx, "other"), persistence.ErrWebhookNotFound)
	})

	t.Run("executions by automation", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		for i, id := range []string{"run-b", "run-a", "run-c"} {
			execution := models.NewExecutionContext(id, "a-1", base.Add(time.Duration(i)*time.Minute))
			execution.Status = models.ExecutionStatusCompleted
			execution.ExecutedNodes["trigger"] = &models.NodeResult{
				NodeID:    "trigger",
				Status:    models.NodeStatusSuccess,
				Output:    map[string]any{"ok": true},
				Timestamp: base,
			}

			require.NoError(t, p.Executions().Save(ctx, execution))
		}

		other := models.NewExecutionContext("run-x", "a-2", base)
		require.NoError(t, p.Executions().Save(ctx, other))

		executions, err := p.Executions().GetByAutomation(ctx, "a-1")
		require.NoError(t, err)
		require.Len(t, executions, 3)
		assert.Equal(t, "run-b", executions[0].ID)
		assert.Equal(t, "run-c", executions[2].ID)
		assert.Equal(t, true, executions[0].ExecutedNodes["trigger"].Output["ok"])

		loaded, err := p.Executions().GetByID(ctx, "run-x")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "a-2", loaded.AutomationID)

		missing, err := p.Executions().GetByID(ctx, "run-none")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}
