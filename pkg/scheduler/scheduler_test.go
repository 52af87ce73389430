package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/testutil"
	"github.com/fera765/flui/pkg/tools/trigger"
)

type mockStarter struct {
	mock.Mock
}

func (m *mockStarter) StartFrom(ctx context.Context, automationID, triggerNodeID string, input map[string]any) (string, error) {
	args := m.Called(ctx, automationID, triggerNodeID, input)

	return args.String(0), args.Error(1)
}

func newTestScheduler(t *testing.T) (*Scheduler, *mockStarter, *testutil.Env) {
	t.Helper()

	env := testutil.NewEnv(t)
	env.Tool(t, "every-minute", trigger.TypeSchedule, map[string]any{"cron": "* * * * *"})
	env.Tool(t, "no-cron", trigger.TypeSchedule, nil)
	env.Tool(t, "manual", trigger.TypeManual, nil)
	env.Tool(t, "echo", testutil.EchoTool, nil)

	starter := &mockStarter{}
	s := New(env.Persistence, starter, env.Logger)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC) }
	s.Start()

	t.Cleanup(func() {
		require.NoError(t, s.Stop(context.Background()))
	})

	return s, starter, env
}

func scheduled(id string, triggers ...*models.Node) *models.Automation {
	nodes := append(triggers, testutil.Node("X", "echo"))

	return testutil.Automation(id, nodes, testutil.Link(triggers[0].ID, "scheduledAt", "X", "at"))
}

func TestScheduler_Sync(t *testing.T) {
	s, _, env := newTestScheduler(t)
	env.Automation(t, scheduled("a1", testutil.Trigger("T", "every-minute")))
	env.Automation(t, scheduled("a2", testutil.Trigger("T", "manual")))
	env.Automation(t, scheduled("a3", testutil.Trigger("T", "no-cron")))
	env.Automation(t, scheduled("a4", testutil.Trigger("T", "no-cron", testutil.WithConfig(map[string]any{"cron": "not a cron"}))))

	require.NoError(t, s.Sync(t.Context()))

	next := s.Next("a1")
	require.Len(t, next, 1)
	assert.False(t, next[0].IsZero())
	assert.Zero(t, next[0].Second())

	assert.Empty(t, s.Next("a2"))
	assert.Empty(t, s.Next("a3"))
	assert.Empty(t, s.Next("a4"))
}

func TestScheduler_NodeConfigOverridesTool(t *testing.T) {
	s, _, env := newTestScheduler(t)
	automation := env.Automation(t, scheduled("a1",
		testutil.Trigger("T", "no-cron", testutil.WithConfig(map[string]any{"cron": "0 9 * * *", "timezone": "UTC"})),
		testutil.Trigger("U", "every-minute"),
	))

	s.AutomationSaved(t.Context(), automation)

	next := s.Next("a1")
	require.Len(t, next, 2)
	assert.Equal(t, 9, next[0].UTC().Hour())
	assert.Zero(t, next[0].Minute())
}

func TestScheduler_ListenerKeepsEntriesCurrent(t *testing.T) {
	s, _, env := newTestScheduler(t)
	automation := env.Automation(t, scheduled("a1", testutil.Trigger("T", "every-minute")))

	s.AutomationSaved(t.Context(), automation)
	s.AutomationSaved(t.Context(), automation)
	assert.Len(t, s.Next("a1"), 1)
	assert.Len(t, s.cron.Entries(), 1)

	s.AutomationDeleted(t.Context(), "a1")
	assert.Empty(t, s.Next("a1"))
	assert.Empty(t, s.cron.Entries())
}

func TestScheduler_JobStartsRun(t *testing.T) {
	s, starter, env := newTestScheduler(t)
	automation := env.Automation(t, scheduled("a1", testutil.Trigger("T", "every-minute")))

	starter.On("StartFrom", mock.Anything, "a1", "T", map[string]any{
		"scheduledAt": "2026-01-02T03:04:00Z",
		"cron":        "* * * * *",
		"nodeId":      "T",
	}).Return("run-1", nil).Once()
	starter.On("StartFrom", mock.Anything, "a1", "T", mock.Anything).Return("", errors.New("gone")).Once()

	s.AutomationSaved(t.Context(), automation)

	entries := s.cron.Entries()
	require.Len(t, entries, 1)

	entries[0].Job.Run()
	entries[0].Job.Run()

	starter.AssertExpectations(t)
}
