// Package httpagent provides the "http" agent provider. The agent POSTs its
// instructions and input to an endpoint and returns the decoded JSON reply.
package httpagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fera765/flui/pkg/protocol"
)

const Provider = "http"

var (
	ErrEndpointRequired = errors.New("missing required field 'endpoint'")
	ErrAgentFailed      = errors.New("agent endpoint returned an error")
)

type Factory struct {
	client *http.Client
}

func NewFactory(client *http.Client) *Factory {
	if client == nil {
		client = http.DefaultClient
	}

	return &Factory{client: client}
}

func (*Factory) ID() string { return Provider }

func (*Factory) Description() string {
	return "Delegates to an HTTP endpoint that receives {instructions, input} and answers with JSON."
}

func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.Agent, error) {
	endpoint, _ := config["endpoint"].(string)
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	headers := map[string]string{}

	if configured, ok := config["headers"].(map[string]any); ok {
		for key, value := range configured {
			headers[key] = fmt.Sprint(value)
		}
	}

	return &Agent{client: f.client, endpoint: endpoint, headers: headers}, nil
}

type Agent struct {
	client   *http.Client
	endpoint string
	headers  map[string]string
}

type payload struct {
	Instructions string         `json:"instructions"`
	Input        map[string]any `json:"input"`
}

func (a *Agent) Invoke(ctx context.Context, request protocol.AgentRequest, logger *slog.Logger) (any, error) {
	body, err := json.Marshal(payload{Instructions: request.Instructions, Input: request.Input})
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create agent request: %w", err)
	}

	httpRequest.Header.Set("Content-Type", "application/json")

	for key, value := range a.headers {
		httpRequest.Header.Set(key, value)
	}

	logger.DebugContext(ctx, "Invoking agent", "provider", Provider, "endpoint", a.endpoint)

	resp, err := a.client.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("agent request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrAgentFailed, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var result any

	err = json.Unmarshal(raw, &result)
	if err != nil {
		return string(raw), nil
	}

	return result, nil
}
