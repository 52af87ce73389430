package httprequest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTool_Execute(t *testing.T) {
	var received struct {
		method      string
		contentType string
		token       string
		body        map[string]any
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.method = r.Method
		received.contentType = r.Header.Get("Content-Type")
		received.token = r.Header.Get("X-Token")

		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &received.body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ord-1","accepted":true}`))
	}))
	defer server.Close()

	tool, err := NewFactory(server.Client()).Create(t.Context(), map[string]any{
		"url":     server.URL,
		"method":  "post",
		"headers": map[string]any{"X-Token": "abc"},
	})
	require.NoError(t, err)

	output, err := tool.Execute(t.Context(), map[string]any{"body": map[string]any{"qty": 2}}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, received.method)
	assert.Equal(t, "application/json", received.contentType)
	assert.Equal(t, "abc", received.token)
	assert.Equal(t, map[string]any{"qty": float64(2)}, received.body)

	assert.Equal(t, http.StatusOK, output["status_code"])
	assert.Equal(t, map[string]any{"id": "ord-1", "accepted": true}, output["body"])
	assert.Equal(t, "application/json", output["headers"].(map[string]any)["Content-Type"])
}

func TestTool_NonJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer server.Close()

	tool, err := NewFactory(server.Client()).Create(t.Context(), nil)
	require.NoError(t, err)

	output, err := tool.Execute(t.Context(), map[string]any{"url": server.URL}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, output["status_code"])
	assert.Equal(t, "short and stout", output["body"])

	_, err = tool.Execute(t.Context(), map[string]any{"url": server.URL, "fail_on_error": true}, slog.New(slog.DiscardHandler))
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestTool_MissingURL(t *testing.T) {
	tool, err := NewFactory(nil).Create(t.Context(), nil)
	require.NoError(t, err)

	_, err = tool.Execute(t.Context(), map[string]any{}, slog.New(slog.DiscardHandler))
	assert.ErrorIs(t, err, ErrURLRequired)
}
