package httpagent

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fera765/flui/pkg/protocol"
)

func TestAgent_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		assert.Equal(t, "secret", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"summary": body.Instructions + ": " + body.Input["text"].(string),
		})
	}))
	defer server.Close()

	agent, err := NewFactory(server.Client()).Create(t.Context(), map[string]any{
		"endpoint": server.URL,
		"headers":  map[string]any{"Authorization": "secret"},
	})
	require.NoError(t, err)

	result, err := agent.Invoke(t.Context(), protocol.AgentRequest{
		Instructions: "summarize",
		Input:        map[string]any{"text": "long text"},
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"summary": "summarize: long text"}, result)
}

func TestAgent_PlainTextAndErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte("just words"))
	}))
	defer server.Close()

	agent, err := NewFactory(server.Client()).Create(t.Context(), map[string]any{"endpoint": server.URL})
	require.NoError(t, err)

	result, err := agent.Invoke(t.Context(), protocol.AgentRequest{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, "just words", result)

	status.Store(http.StatusBadGateway)

	_, err = agent.Invoke(t.Context(), protocol.AgentRequest{}, slog.New(slog.DiscardHandler))
	assert.ErrorIs(t, err, ErrAgentFailed)
}

func TestFactory_RequiresEndpoint(t *testing.T) {
	_, err := NewFactory(nil).Create(t.Context(), map[string]any{})
	assert.ErrorIs(t, err, ErrEndpointRequired)
}
