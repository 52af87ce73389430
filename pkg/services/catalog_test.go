package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/testutil"
	"github.com/fera765/flui/pkg/tools/trigger"
)

func TestCatalog_Tools(t *testing.T) {
	env := testutil.NewEnv(t)
	catalog := NewCatalog(env.Persistence, env.Registry, env.Logger)

	tool, err := catalog.CreateTool(t.Context(), CreateTool{ID: "manual", Name: "Manual", Type: trigger.TypeManual})
	require.NoError(t, err)
	assert.Equal(t, "manual", tool.ID)

	generated, err := catalog.CreateTool(t.Context(), CreateTool{Name: "Echo", Type: testutil.EchoTool})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)

	_, err = catalog.CreateTool(t.Context(), CreateTool{Name: "Robot", Type: "robot"})
	require.ErrorIs(t, err, ErrUnknownToolType)

	_, err = catalog.CreateTool(t.Context(), CreateTool{Type: trigger.TypeManual})
	require.ErrorIs(t, err, ErrInvalidRequest)

	tools, err := catalog.Tools(t.Context())
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	require.NoError(t, catalog.DeleteTool(t.Context(), "manual"))

	_, err = catalog.Tool(t.Context(), "manual")
	require.ErrorIs(t, err, persistence.ErrToolNotFound)

	err = catalog.DeleteTool(t.Context(), "manual")
	require.ErrorIs(t, err, persistence.ErrToolNotFound)

	assert.NotEmpty(t, catalog.ToolTypes())
}

func TestCatalog_Agents(t *testing.T) {
	env := testutil.NewEnv(t)
	catalog := NewCatalog(env.Persistence, env.Registry, env.Logger)

	agent, err := catalog.CreateAgent(t.Context(), CreateAgent{Name: "Helper", Provider: testutil.EchoAgent, Instructions: "help"})
	require.NoError(t, err)

	fetched, err := catalog.Agent(t.Context(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "help", fetched.Instructions)

	_, err = catalog.CreateAgent(t.Context(), CreateAgent{Name: "Ghost", Provider: "nobody"})
	require.ErrorIs(t, err, ErrUnknownProvider)

	require.NoError(t, catalog.DeleteAgent(t.Context(), agent.ID))

	agents, err := catalog.Agents(t.Context())
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestCatalog_ConditionTools(t *testing.T) {
	env := testutil.NewEnv(t)
	catalog := NewCatalog(env.Persistence, env.Registry, env.Logger)

	tool, err := catalog.CreateConditionTool(t.Context(), models.ConditionTool{
		Name: "Router",
		Type: "whatever",
		Conditions: []*models.Condition{
			{ID: "buy", Name: "Buy", Predicate: `input.action == "buy"`, LinkedNodes: []string{"A"}},
			{ID: "broken", Name: "Broken", Predicate: "input.==="},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, tool.ID)
	assert.Equal(t, models.ConditionToolType, tool.Type)
	assert.Equal(t, models.MatchModeFirst, tool.MatchMode)
	assert.Equal(t, []string{}, tool.Conditions[1].LinkedNodes)

	_, err = catalog.CreateConditionTool(t.Context(), models.ConditionTool{Name: "Empty"})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = catalog.CreateConditionTool(t.Context(), models.ConditionTool{
		Name:       "Null condition",
		Conditions: []*models.Condition{nil},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = catalog.CreateConditionTool(t.Context(), models.ConditionTool{
		Name:       "Bad mode",
		MatchMode:  "some",
		Conditions: []*models.Condition{{ID: "c", Predicate: "input.a"}},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)

	fetched, err := catalog.ConditionTool(t.Context(), tool.ID)
	require.NoError(t, err)
	assert.Equal(t, "Router", fetched.Name)

	require.NoError(t, catalog.DeleteConditionTool(t.Context(), tool.ID))

	_, err = catalog.ConditionTool(t.Context(), tool.ID)
	require.ErrorIs(t, err, persistence.ErrConditionToolNotFound)
}
