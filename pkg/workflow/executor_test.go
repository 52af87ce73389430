package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/testutil"
	"github.com/fera765/flui/pkg/tools/trigger"
)

func newTestExecutor(env *testutil.Env, opts ...Option) *Executor {
	return NewExecutor(NewInvoker(env.Persistence, env.Registry, env.Logger), env.Logger, opts...)
}

func tradeEnv(t *testing.T) *testutil.Env {
	t.Helper()

	env := testutil.NewEnv(t)
	env.Tool(t, "manual", trigger.TypeManual, nil)
	env.Tool(t, "echo", testutil.EchoTool, nil)
	env.Tool(t, "fail", testutil.FailTool, map[string]any{"message": "boom"})
	env.ConditionTool(t, "router", models.MatchModeFirst,
		&models.Condition{ID: "buy", Name: "Buy", Predicate: `input.action == "buy"`, LinkedNodes: []string{"A"}},
		&models.Condition{ID: "sell", Name: "Sell", Predicate: `input.action == "sell"`, LinkedNodes: []string{"B"}},
	)

	return env
}

func TestExecute_TriggersWithoutLinks(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "triggers")

		nodes := make([]*models.Node, 0, n)
		for i := range n {
			nodes = append(nodes, testutil.Trigger(fmt.Sprintf("t%d", i), "manual"))
		}

		execution, err := executor.Execute(context.Background(), Request{
			Automation: testutil.Automation("triggers", nodes),
			Input:      map[string]any{"x": 1},
		})
		require.NoError(rt, err)

		assert.Len(rt, execution.ExecutedNodes, n)
		assert.Equal(rt, models.ExecutionStatusCompleted, execution.Status)
	})
}

func TestExecute_LinkPropagation(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	rapid.Check(t, func(rt *rapid.T) {
		outputKey := rapid.StringMatching(`[a-zA-Z_][a-zA-Z0-9_]{0,8}`).Draw(rt, "outputKey")
		inputKey := rapid.StringMatching(`[a-zA-Z_][a-zA-Z0-9_]{0,8}`).Draw(rt, "inputKey")
		value := rapid.OneOf(
			rapid.Just[any](nil),
			rapid.Map(rapid.Bool(), func(b bool) any { return b }),
			rapid.Map(rapid.Int(), func(i int) any { return i }),
			rapid.Map(rapid.String(), func(s string) any { return s }),
			rapid.Map(rapid.SliceOf(rapid.String()), func(s []string) any { return s }),
		).Draw(rt, "value")

		automation := testutil.Automation("chain",
			[]*models.Node{testutil.Trigger("T", "manual"), testutil.Node("X", "echo")},
			testutil.Link("T", outputKey, "X", inputKey),
		)

		execution, err := executor.Execute(context.Background(), Request{
			Automation: automation,
			Input:      map[string]any{outputKey: value},
		})
		require.NoError(rt, err)

		result := execution.ExecutedNodes["X"]
		require.NotNil(rt, result)
		require.Equal(rt, models.NodeStatusSuccess, result.Status)
		assert.Equal(rt, execution.ExecutedNodes["T"].Output[outputKey], result.Output[inputKey])
	})
}

func tradeAutomation() *models.Automation {
	return testutil.Automation("trade",
		[]*models.Node{
			testutil.Trigger("T", "manual"),
			testutil.Node("C", "router", testutil.WithType(models.NodeTypeCondition)),
			testutil.Node("A", "echo"),
			testutil.Node("B", "echo"),
		},
		testutil.Link("T", "action", "C", "action"),
		testutil.Link("T", "action", "A", "action"),
		testutil.Link("T", "amount", "B", "amount"),
	)
}

func TestExecute_ExclusiveBranching(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	execution, err := executor.Execute(t.Context(), Request{
		Automation: tradeAutomation(),
		Input:      map[string]any{"action": "buy", "amount": 3},
	})
	require.NoError(t, err)

	assert.Contains(t, execution.ExecutedNodes, "A")
	assert.NotContains(t, execution.ExecutedNodes, "B")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	condition := execution.ExecutedNodes["C"]
	require.NotNil(t, condition)
	assert.Equal(t, true, condition.Output["satisfied"])
	assert.Equal(t, "buy", condition.Output["conditionId"])
	assert.Equal(t, []string{"A"}, condition.Output["linkedNodes"])

	execution, err = executor.Execute(t.Context(), Request{
		Automation: tradeAutomation(),
		Input:      map[string]any{"action": "sell", "amount": 3},
	})
	require.NoError(t, err)

	assert.NotContains(t, execution.ExecutedNodes, "A")
	require.Contains(t, execution.ExecutedNodes, "B")
	assert.Equal(t, 3, execution.ExecutedNodes["B"].Output["amount"])
}

func TestExecute_NoConditionMatched(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	execution, err := executor.Execute(t.Context(), Request{
		Automation: tradeAutomation(),
		Input:      map[string]any{"action": "hold"},
	})
	require.NoError(t, err)

	assert.Len(t, execution.ExecutedNodes, 2)
	assert.Equal(t, false, execution.ExecutedNodes["C"].Output["satisfied"])
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}

func TestExecute_BranchesMerge(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	automation := tradeAutomation()
	automation.Nodes = append(automation.Nodes, testutil.Node("M", "echo"))
	automation.Links = append(automation.Links,
		testutil.Link("A", "action", "M", "from_a"),
		testutil.Link("B", "amount", "M", "from_b"),
	)

	execution, err := executor.Execute(t.Context(), Request{
		Automation: automation,
		Input:      map[string]any{"action": "buy", "amount": 3},
	})
	require.NoError(t, err)

	merged := execution.ExecutedNodes["M"]
	require.NotNil(t, merged)
	assert.Equal(t, models.NodeStatusSuccess, merged.Status)
	assert.Equal(t, map[string]any{"from_a": "buy"}, merged.Output)
}

func TestExecute_AllMatchMode(t *testing.T) {
	env := tradeEnv(t)
	env.ConditionTool(t, "router", models.MatchModeAll,
		&models.Condition{ID: "big", Predicate: `input.amount > 10`, LinkedNodes: []string{"A"}},
		&models.Condition{ID: "any", Predicate: `exists(input.amount)`, LinkedNodes: []string{"B"}},
	)
	executor := newTestExecutor(env)

	automation := tradeAutomation()
	automation.Links = append(automation.Links, testutil.Link("T", "amount", "C", "amount"))

	execution, err := executor.Execute(t.Context(), Request{
		Automation: automation,
		Input:      map[string]any{"amount": 20},
	})
	require.NoError(t, err)

	assert.Contains(t, execution.ExecutedNodes, "A")
	assert.Contains(t, execution.ExecutedNodes, "B")
	assert.Len(t, execution.ExecutedNodes["C"].Output["matches"], 2)
}

func TestExecute_FailureSkipsDependents(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	automation := testutil.Automation("failing",
		[]*models.Node{
			testutil.Trigger("T", "manual"),
			testutil.Node("F", "fail"),
			testutil.Node("D", "echo"),
			testutil.Node("E", "echo"),
			testutil.Node("G", "echo"),
		},
		testutil.Link("T", "x", "F", "x"),
		testutil.Link("F", "y", "D", "y"),
		testutil.Link("D", "y", "G", "y"),
		testutil.Link("T", "x", "E", "x"),
	)

	execution, err := executor.Execute(t.Context(), Request{Automation: automation, Input: map[string]any{"x": 1}})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.NodeStatusError, execution.ExecutedNodes["F"].Status)
	assert.Contains(t, execution.ExecutedNodes["F"].Error, "boom")
	assert.Equal(t, models.NodeStatusSkipped, execution.ExecutedNodes["D"].Status)
	assert.Equal(t, models.NodeStatusSkipped, execution.ExecutedNodes["G"].Status)
	assert.Equal(t, models.NodeStatusSuccess, execution.ExecutedNodes["E"].Status)
	assert.NotNil(t, execution.FinishedAt)
}

func TestExecute_UnknownReference(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	automation := testutil.Automation("missing",
		[]*models.Node{testutil.Trigger("T", "manual"), testutil.Node("X", "nope")},
		testutil.Link("T", "x", "X", "x"),
	)

	execution, err := executor.Execute(t.Context(), Request{Automation: automation})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.NodeStatusError, execution.ExecutedNodes["X"].Status)
	assert.Contains(t, execution.ExecutedNodes["X"].Error, persistence.ErrToolNotFound.Error())
}

func TestExecute_AgentOutput(t *testing.T) {
	env := tradeEnv(t)
	env.Agent(t, "plain", map[string]any{"reply": "hello"})
	env.Agent(t, "structured", map[string]any{"reply": map[string]any{"answer": 42}})
	executor := newTestExecutor(env)

	automation := testutil.Automation("agents",
		[]*models.Node{
			testutil.Trigger("T", "manual"),
			testutil.Node("P", "plain", testutil.WithType(models.NodeTypeAgent)),
			testutil.Node("S", "structured", testutil.WithType(models.NodeTypeAgent)),
		},
		testutil.Link("T", "q", "P", "q"),
		testutil.Link("T", "q", "S", "q"),
	)

	execution, err := executor.Execute(t.Context(), Request{Automation: automation, Input: map[string]any{"q": "?"}})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"response": "hello"}, execution.ExecutedNodes["P"].Output)
	assert.Equal(t, map[string]any{"answer": 42}, execution.ExecutedNodes["S"].Output)
}

func TestExecute_ConfigAndTriggerSeeding(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	automation := testutil.Automation("seeding",
		[]*models.Node{
			testutil.Trigger("T", "manual", testutil.WithConfig(map[string]any{"source": "config", "kept": true})),
			testutil.Node("X", "echo", testutil.WithConfig(map[string]any{"source": "default", "static": 1})),
		},
		testutil.Link("T", "source", "X", "source"),
	)

	execution, err := executor.Execute(t.Context(), Request{Automation: automation, Input: map[string]any{"source": "root"}})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"source": "root", "kept": true}, execution.ExecutedNodes["T"].Output)
	assert.Equal(t, map[string]any{"source": "root", "static": 1}, execution.ExecutedNodes["X"].Output)
}

func TestExecute_UnreachableNodesAreNotRecorded(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	automation := testutil.Automation("island",
		[]*models.Node{testutil.Trigger("T", "manual"), testutil.Node("I", "echo")},
	)

	execution, err := executor.Execute(t.Context(), Request{Automation: automation})
	require.NoError(t, err)

	assert.Len(t, execution.ExecutedNodes, 1)
	assert.Zero(t, env.Calls())
}

func TestExecute_MaxParallel(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env, WithMaxParallel(1))

	nodes := []*models.Node{testutil.Trigger("T", "manual")}
	links := []*models.Link{}

	for i := range 5 {
		id := fmt.Sprintf("n%d", i)
		nodes = append(nodes, testutil.Node(id, "echo"))
		links = append(links, testutil.Link("T", "x", id, "x"))
	}

	execution, err := executor.Execute(t.Context(), Request{
		Automation: testutil.Automation("wide", nodes, links...),
		Input:      map[string]any{"x": "y"},
	})
	require.NoError(t, err)

	assert.Len(t, execution.ExecutedNodes, 6)
	assert.EqualValues(t, 5, env.Calls())
}

func TestExecute_SelectedTrigger(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	automation := testutil.Automation("two-entries",
		[]*models.Node{
			testutil.Trigger("T", "manual"),
			testutil.Trigger("U", "manual"),
			testutil.Node("X", "echo"),
			testutil.Node("Y", "echo"),
		},
		testutil.Link("T", "v", "X", "v"),
		testutil.Link("U", "v", "Y", "v"),
	)

	execution, err := executor.Execute(t.Context(), Request{
		Automation:    automation,
		TriggerNodeID: "U",
		Input:         map[string]any{"v": 1},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Len(t, execution.ExecutedNodes, 2)
	assert.Contains(t, execution.ExecutedNodes, "U")
	assert.Contains(t, execution.ExecutedNodes, "Y")
	assert.EqualValues(t, 1, env.Calls())

	for _, id := range []string{"ghost", "X"} {
		_, err := executor.Execute(t.Context(), Request{Automation: automation, TriggerNodeID: id})
		require.ErrorIs(t, err, ErrNoTriggerNode, id)
	}
}

func TestExecute_NoTrigger(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	_, err := executor.Execute(t.Context(), Request{
		Automation: testutil.Automation("headless", []*models.Node{testutil.Node("X", "echo")}),
	})

	require.ErrorIs(t, err, ErrNoTriggerNode)
}

func TestExecute_ControlCycle(t *testing.T) {
	env := tradeEnv(t)
	env.ConditionTool(t, "loop", models.MatchModeFirst,
		&models.Condition{ID: "again", Predicate: `exists(input.x)`, LinkedNodes: []string{"X"}},
	)
	executor := newTestExecutor(env)

	automation := testutil.Automation("cycle",
		[]*models.Node{
			testutil.Trigger("T", "manual"),
			testutil.Node("X", "echo"),
			testutil.Node("C", "loop", testutil.WithType(models.NodeTypeCondition)),
		},
		testutil.Link("T", "x", "X", "x"),
		testutil.Link("X", "x", "C", "x"),
	)

	_, err := executor.Execute(t.Context(), Request{Automation: automation})
	require.ErrorIs(t, err, ErrCycleDetected)
}

func TestExecute_CancelledContext(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	execution, err := executor.Execute(ctx, Request{Automation: tradeAutomation()})

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, execution)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Empty(t, execution.ExecutedNodes)
}

type recordingObserver struct {
	NopObserver

	events []string
}

func (o *recordingObserver) RunStarted(*models.ExecutionContext) {
	o.events = append(o.events, "run:started")
}

func (o *recordingObserver) NodeStarted(_ string, node *models.Node) {
	o.events = append(o.events, "started:"+node.ID)
}

func (o *recordingObserver) NodeCompleted(_ string, node *models.Node, _ *models.NodeResult) {
	o.events = append(o.events, "completed:"+node.ID)
}

func (o *recordingObserver) NodeFailed(_ string, node *models.Node, _ *models.NodeResult) {
	o.events = append(o.events, "failed:"+node.ID)
}

func (o *recordingObserver) NodeSkipped(_ string, node *models.Node, _ *models.NodeResult) {
	o.events = append(o.events, "skipped:"+node.ID)
}

func (o *recordingObserver) RunFinished(execution *models.ExecutionContext) {
	o.events = append(o.events, "run:"+string(execution.Status))
}

func TestExecute_Observer(t *testing.T) {
	env := tradeEnv(t)
	executor := newTestExecutor(env)
	observer := &recordingObserver{}

	automation := testutil.Automation("observed",
		[]*models.Node{testutil.Trigger("T", "manual"), testutil.Node("F", "fail"), testutil.Node("D", "echo")},
		testutil.Link("T", "x", "F", "x"),
		testutil.Link("F", "x", "D", "x"),
	)

	execution, err := executor.Execute(t.Context(), Request{
		RunID:      "run-1",
		Automation: automation,
		Observer:   observer,
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", execution.ID)
	assert.Equal(t, []string{
		"run:started",
		"started:T", "completed:T",
		"started:F", "failed:F",
		"skipped:D",
		"run:failed",
	}, observer.events)
}
