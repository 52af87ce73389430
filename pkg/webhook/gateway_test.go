package webhook

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/services"
	"github.com/fera765/flui/pkg/testutil"
	"github.com/fera765/flui/pkg/tools/trigger"
	"github.com/fera765/flui/pkg/tracker"
	"github.com/fera765/flui/pkg/workflow"
)

func newTestGateway(t *testing.T) (*Gateway, *testutil.Env) {
	t.Helper()

	env := testutil.NewEnv(t)
	env.Tool(t, "hook", trigger.TypeWebhook, nil)
	env.Tool(t, "echo", testutil.EchoTool, nil)
	env.Tool(t, "fail", testutil.FailTool, map[string]any{"message": "boom"})

	executor := workflow.NewExecutor(workflow.NewInvoker(env.Persistence, env.Registry, env.Logger), env.Logger)
	tr := tracker.New(env.Persistence, executor, nil, env.Logger)
	t.Cleanup(tr.Wait)

	return NewGateway(env.Persistence, tr, "http://localhost:9091/", env.Logger), env
}

func hooked(id, second string) *models.Automation {
	return testutil.Automation(id,
		[]*models.Node{testutil.Trigger("T", "hook"), testutil.Node("X", second)},
		testutil.Link("T", "amount", "X", "amount"),
	)
}

func TestGateway_Create(t *testing.T) {
	gateway, env := newTestGateway(t)
	env.Automation(t, hooked("a1", "echo"))

	webhook, err := gateway.Create(t.Context(), "a1", Config{})
	require.NoError(t, err)

	assert.Equal(t, "hook", webhook.ID)
	assert.Equal(t, "T", webhook.NodeID)
	assert.Equal(t, http.MethodPost, webhook.Method)
	assert.Equal(t, "http://localhost:9091/api/webhooks/hook", webhook.URL)
	assert.Regexp(t, `^whk_[0-9a-f]{32}$`, webhook.Token)

	_, err = gateway.Create(t.Context(), "a1", Config{Method: "get"})
	require.ErrorIs(t, err, services.ErrWebhookExists)
	assert.True(t, services.IsConflictError(err))
}

func TestGateway_CreateRejects(t *testing.T) {
	gateway, env := newTestGateway(t)
	env.Automation(t, hooked("a1", "echo"))

	_, err := gateway.Create(t.Context(), "ghost", Config{})
	require.ErrorIs(t, err, persistence.ErrAutomationNotFound)

	_, err = gateway.Create(t.Context(), "a1", Config{NodeID: "X"})
	require.ErrorIs(t, err, services.ErrInvalidRequest)

	_, err = gateway.Create(t.Context(), "a1", Config{Method: "DELETE"})
	require.ErrorIs(t, err, services.ErrInvalidRequest)

	_, err = gateway.Create(t.Context(), "a1", Config{Inputs: map[string]any{"type": 42}})
	require.ErrorIs(t, err, services.ErrInvalidRequest)
}

func TestGateway_UpdateConfigKeepsToken(t *testing.T) {
	gateway, env := newTestGateway(t)
	env.Automation(t, hooked("a1", "echo"))

	created, err := gateway.Create(t.Context(), "a1", Config{})
	require.NoError(t, err)

	method := "GET"
	updated, err := gateway.UpdateConfig(t.Context(), "hook", Update{Method: &method})
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, updated.Method)
	assert.Equal(t, created.Token, updated.Token)
	assert.Equal(t, created.URL, updated.URL)

	require.NoError(t, gateway.Delete(t.Context(), "hook"))
	require.ErrorIs(t, gateway.Delete(t.Context(), "hook"), persistence.ErrWebhookNotFound)
}

func TestGateway_Receive(t *testing.T) {
	gateway, env := newTestGateway(t)
	env.Automation(t, hooked("a1", "echo"))

	webhook, err := gateway.Create(t.Context(), "a1", Config{Inputs: map[string]any{
		"type":     "object",
		"required": []any{"amount"},
		"properties": map[string]any{
			"amount": map[string]any{"type": "number"},
		},
	}})
	require.NoError(t, err)

	auth := "Bearer " + webhook.Token
	payload := map[string]any{"amount": 10}

	t.Run("unknown webhook", func(t *testing.T) {
		_, err := gateway.Receive(t.Context(), Request{ToolID: "nope", Method: http.MethodPost, Authorization: auth})
		require.ErrorIs(t, err, persistence.ErrWebhookNotFound)
	})

	t.Run("wrong token", func(t *testing.T) {
		for _, header := range []string{"", "Bearer ", "Bearer whk_0", "Basic " + webhook.Token, webhook.Token} {
			_, err := gateway.Receive(t.Context(), Request{ToolID: "hook", Method: http.MethodPost, Authorization: header, Payload: payload})
			require.ErrorIs(t, err, ErrUnauthorized, header)
		}
	})

	t.Run("wrong method is checked after the token", func(t *testing.T) {
		_, err := gateway.Receive(t.Context(), Request{ToolID: "hook", Method: http.MethodGet, Authorization: "bad"})
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = gateway.Receive(t.Context(), Request{ToolID: "hook", Method: http.MethodGet, Authorization: auth})
		require.ErrorIs(t, err, ErrMethodNotAllowed)
	})

	t.Run("body is decoded only for authenticated calls", func(t *testing.T) {
		decoded := 0
		broken := func() (map[string]any, error) {
			decoded++
			return nil, errors.New("unexpected end of JSON input")
		}

		_, err := gateway.Receive(t.Context(), Request{ToolID: "hook", Method: http.MethodPost, Authorization: "Bearer whk_0", Decode: broken})
		require.ErrorIs(t, err, ErrUnauthorized)
		assert.Zero(t, decoded)

		_, err = gateway.Receive(t.Context(), Request{ToolID: "hook", Method: http.MethodPost, Authorization: auth, Decode: broken})
		require.ErrorIs(t, err, ErrInvalidPayload)
		assert.Equal(t, 1, decoded)

		receipt, err := gateway.Receive(t.Context(), Request{ToolID: "hook", Method: http.MethodPost, Authorization: auth,
			Decode: func() (map[string]any, error) { return payload, nil }})
		require.NoError(t, err)
		assert.Equal(t, payload, receipt.Payload)
	})

	t.Run("payload not matching inputs", func(t *testing.T) {
		_, err := gateway.Receive(t.Context(), Request{ToolID: "hook", Method: http.MethodPost, Authorization: auth,
			Payload: map[string]any{"amount": "ten"}})
		require.ErrorIs(t, err, ErrInvalidPayload)
		assert.True(t, strings.Contains(err.Error(), "amount"))
	})

	t.Run("runs the automation", func(t *testing.T) {
		receipt, err := gateway.Receive(t.Context(), Request{ToolID: "hook", Method: "post", Authorization: auth, Payload: payload})
		require.NoError(t, err)

		assert.Equal(t, "received", receipt.Status)
		assert.Equal(t, payload, receipt.Payload)
		assert.Equal(t, models.ExecutionStatusCompleted, receipt.ExecutionStatus)

		execution, err := env.Persistence.Executions().GetByID(t.Context(), receipt.RunID)
		require.NoError(t, err)
		require.NotNil(t, execution)
		assert.Equal(t, 10, execution.ExecutedNodes["X"].Output["amount"])
	})
}

func TestGateway_ReceiveSeedsOnlyItsTrigger(t *testing.T) {
	gateway, env := newTestGateway(t)
	env.Tool(t, "other-hook", trigger.TypeWebhook, nil)
	env.Automation(t, testutil.Automation("a1",
		[]*models.Node{
			testutil.Trigger("T", "hook"),
			testutil.Trigger("U", "other-hook"),
			testutil.Node("X", "echo"),
			testutil.Node("Y", "fail"),
		},
		testutil.Link("T", "amount", "X", "amount"),
		testutil.Link("U", "amount", "Y", "amount"),
	))

	webhook, err := gateway.Create(t.Context(), "a1", Config{NodeID: "T"})
	require.NoError(t, err)

	receipt, err := gateway.Receive(t.Context(), Request{ToolID: webhook.ID, Method: http.MethodPost,
		Authorization: "Bearer " + webhook.Token, Payload: map[string]any{"amount": 3}})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, receipt.ExecutionStatus)

	execution, err := env.Persistence.Executions().GetByID(t.Context(), receipt.RunID)
	require.NoError(t, err)
	require.NotNil(t, execution)
	assert.Contains(t, execution.ExecutedNodes, "X")
	assert.NotContains(t, execution.ExecutedNodes, "U")
	assert.NotContains(t, execution.ExecutedNodes, "Y")
}

func TestGateway_ReceiveReportsFailedRun(t *testing.T) {
	gateway, env := newTestGateway(t)
	env.Automation(t, hooked("a1", "fail"))

	webhook, err := gateway.Create(t.Context(), "a1", Config{})
	require.NoError(t, err)

	receipt, err := gateway.Receive(t.Context(), Request{ToolID: "hook", Method: http.MethodPost, Authorization: "Bearer " + webhook.Token})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, receipt.ExecutionStatus)
	assert.Equal(t, map[string]any{}, receipt.Payload)
}

func TestGateway_ReceiveForDeletedAutomation(t *testing.T) {
	gateway, env := newTestGateway(t)
	env.Automation(t, hooked("a1", "echo"))

	webhook, err := gateway.Create(t.Context(), "a1", Config{})
	require.NoError(t, err)
	require.NoError(t, env.Persistence.Automations().Delete(t.Context(), "a1"))

	_, err = gateway.Receive(t.Context(), Request{ToolID: "hook", Method: http.MethodPost, Authorization: "Bearer " + webhook.Token})
	require.ErrorIs(t, err, persistence.ErrAutomationNotFound)
}
