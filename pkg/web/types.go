package web

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/fera765/flui/pkg/protocol"
)

var errInvalidJSON = errors.New("invalid JSON body")

// CreateWebhookRequest is the body of POST /api/automations/:id/webhook.
type CreateWebhookRequest struct {
	NodeID string         `json:"nodeId,omitempty"`
	Method string         `json:"method,omitempty" validate:"omitempty,oneof=GET POST get post"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

// UpdateWebhookRequest changes method and inputs. Token and URL are fixed.
type UpdateWebhookRequest struct {
	Method *string         `json:"method,omitempty" validate:"omitempty,oneof=GET POST get post"`
	Inputs *map[string]any `json:"inputs,omitempty"`
}

type StartExecutionResponse struct {
	Message      string `json:"message"`
	AutomationID string `json:"automationId"`
	RunID        string `json:"runId"`
}

type ToolTypeResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

func toolTypes(factories []protocol.ToolFactory) []ToolTypeResponse {
	types := make([]ToolTypeResponse, 0, len(factories))
	for _, f := range factories {
		types = append(types, ToolTypeResponse{
			ID:          f.ID(),
			Name:        f.Name(),
			Description: f.Description(),
			Schema:      f.Schema(),
		})
	}

	return types
}

// rootInput turns a request body into the root input of a run. An empty or
// null body is {}; a non-object value is wrapped as {"payload": value}.
func rootInput(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, errInvalidJSON
	}

	switch v := value.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	}

	return map[string]any{"payload": value}, nil
}
