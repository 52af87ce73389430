// Package webhook binds token protected public endpoints to trigger nodes.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/services"
)

const tokenPrefix = "whk_"

var (
	ErrUnauthorized     = errors.New("invalid webhook token")
	ErrMethodNotAllowed = errors.New("method not allowed for this webhook")
	ErrInvalidPayload   = errors.New("payload does not match the webhook inputs")
)

// Runner executes an automation from one trigger node and waits for the
// result.
type Runner interface {
	RunFrom(ctx context.Context, automationID, triggerNodeID string, input map[string]any) (*models.ExecutionContext, error)
}

type Gateway struct {
	persistence persistence.Persistence
	runner      Runner
	baseURL     string
	logger      *slog.Logger
}

// NewGateway creates a gateway whose webhook URLs start with baseURL.
func NewGateway(persistence persistence.Persistence, runner Runner, baseURL string, logger *slog.Logger) *Gateway {
	return &Gateway{
		persistence: persistence,
		runner:      runner,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger.With("module", "webhook_gateway"),
	}
}

// Config is the configurable part of a webhook. NodeID selects the trigger
// node on creation and defaults to the first trigger.
type Config struct {
	NodeID string         `json:"nodeId,omitempty"`
	Method string         `json:"method,omitempty"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

// Update changes method and inputs. Nil fields are left unchanged.
type Update struct {
	Method *string         `json:"method,omitempty"`
	Inputs *map[string]any `json:"inputs,omitempty"`
}

// Request is an inbound webhook call.
type Request struct {
	ToolID        string
	Method        string
	Authorization string
	Payload       map[string]any
	// Decode, when set, is called only after the call is authenticated and
	// its result replaces Payload.
	Decode func() (map[string]any, error)
}

// Receipt is returned to the webhook caller.
type Receipt struct {
	Status          string                 `json:"status"`
	Payload         map[string]any         `json:"payload"`
	RunID           string                 `json:"runId"`
	ExecutionStatus models.ExecutionStatus `json:"executionStatus"`
}

func (g *Gateway) Create(ctx context.Context, automationID string, cfg Config) (*models.Webhook, error) {
	automation, err := g.persistence.Automations().GetByID(ctx, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch automation %s: %w", automationID, err)
	}

	if automation == nil {
		return nil, persistence.NewEntityError("CreateWebhook", persistence.KindAutomation, automationID, persistence.ErrAutomationNotFound)
	}

	node, err := triggerNode(automation, cfg.NodeID)
	if err != nil {
		return nil, err
	}

	method, err := normalizeMethod(cfg.Method)
	if err != nil {
		return nil, err
	}

	if err := checkSchema(cfg.Inputs); err != nil {
		return nil, err
	}

	existing, err := g.persistence.Webhooks().GetByID(ctx, node.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch webhook %s: %w", node.ReferenceID, err)
	}

	if existing != nil {
		return nil, services.NewConflictError("CreateWebhook", "WEBHOOK_EXISTS",
			fmt.Sprintf("trigger tool %s already has a webhook", node.ReferenceID), services.ErrWebhookExists)
	}

	now := time.Now().UTC()
	webhook := &models.Webhook{
		ID:           node.ReferenceID,
		AutomationID: automation.ID,
		NodeID:       node.ID,
		URL:          g.baseURL + "/api/webhooks/" + node.ReferenceID,
		Token:        NewToken(),
		Method:       method,
		Inputs:       cfg.Inputs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := g.persistence.Webhooks().Save(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to save webhook: %w", err)
	}

	g.logger.InfoContext(ctx, "webhook created", "webhook_id", webhook.ID, "automation_id", automation.ID, "node_id", node.ID)

	return webhook, nil
}

func (g *Gateway) Get(ctx context.Context, toolID string) (*models.Webhook, error) {
	webhook, err := g.persistence.Webhooks().GetByID(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch webhook %s: %w", toolID, err)
	}

	if webhook == nil {
		return nil, persistence.NewEntityError("GetWebhook", persistence.KindWebhook, toolID, persistence.ErrWebhookNotFound)
	}

	return webhook, nil
}

// UpdateConfig changes method and inputs; the URL and token never change.
func (g *Gateway) UpdateConfig(ctx context.Context, toolID string, update Update) (*models.Webhook, error) {
	webhook, err := g.Get(ctx, toolID)
	if err != nil {
		return nil, err
	}

	if update.Method != nil {
		method, err := normalizeMethod(*update.Method)
		if err != nil {
			return nil, err
		}

		webhook.Method = method
	}

	if update.Inputs != nil {
		if err := checkSchema(*update.Inputs); err != nil {
			return nil, err
		}

		webhook.Inputs = *update.Inputs
	}

	webhook.UpdatedAt = time.Now().UTC()

	if err := g.persistence.Webhooks().Save(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to save webhook: %w", err)
	}

	return webhook, nil
}

func (g *Gateway) Delete(ctx context.Context, toolID string) error {
	if _, err := g.Get(ctx, toolID); err != nil {
		return err
	}

	if err := g.persistence.Webhooks().Delete(ctx, toolID); err != nil {
		return fmt.Errorf("failed to delete webhook %s: %w", toolID, err)
	}

	return nil
}

// Receive authenticates an inbound call and runs the bound automation with
// the payload as root input. A failed run is reported in the receipt, not
// as an error.
func (g *Gateway) Receive(ctx context.Context, req Request) (*Receipt, error) {
	webhook, err := g.Get(ctx, req.ToolID)
	if err != nil {
		return nil, err
	}

	token, ok := bearer(req.Authorization)
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(webhook.Token)) != 1 {
		g.logger.WarnContext(ctx, "rejected webhook call", "webhook_id", webhook.ID)

		return nil, ErrUnauthorized
	}

	if !strings.EqualFold(req.Method, webhook.Method) {
		return nil, fmt.Errorf("%w: expected %s", ErrMethodNotAllowed, webhook.Method)
	}

	payload := req.Payload
	if req.Decode != nil {
		payload, err = req.Decode()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	if payload == nil {
		payload = map[string]any{}
	}

	if err := validatePayload(webhook.Inputs, payload); err != nil {
		return nil, err
	}

	execution, err := g.runner.RunFrom(ctx, webhook.AutomationID, webhook.NodeID, payload)
	if execution == nil {
		return nil, err
	}

	if err != nil {
		g.logger.ErrorContext(ctx, "webhook run failed", "webhook_id", webhook.ID, "run_id", execution.ID, "error", err)
	}

	return &Receipt{
		Status:          "received",
		Payload:         payload,
		RunID:           execution.ID,
		ExecutionStatus: execution.Status,
	}, nil
}

// NewToken returns "whk_" followed by 32 lowercase hex characters.
func NewToken() string {
	id := uuid.New()

	return tokenPrefix + hex.EncodeToString(id[:])
}

func triggerNode(automation *models.Automation, nodeID string) (*models.Node, error) {
	if nodeID == "" {
		triggers := automation.TriggerNodes()
		if len(triggers) == 0 {
			return nil, services.NewValidationError("CreateWebhook", "TRIGGER_REQUIRED", "automation has no trigger node", services.ErrTriggerNodeRequired)
		}

		return triggers[0], nil
	}

	node := automation.Node(nodeID)
	if node == nil || !node.IsTrigger() {
		return nil, services.NewValidationError("CreateWebhook", "INVALID_NODE", fmt.Sprintf("node %s is not a trigger node of the automation", nodeID), services.ErrInvalidRequest)
	}

	return node, nil
}

func normalizeMethod(method string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case "", http.MethodPost:
		return http.MethodPost, nil
	case http.MethodGet:
		return http.MethodGet, nil
	default:
		return "", services.NewValidationError("Webhook", "INVALID_METHOD", fmt.Sprintf("method %q must be GET or POST", method), services.ErrInvalidRequest)
	}
}

func checkSchema(inputs map[string]any) error {
	if len(inputs) == 0 {
		return nil
	}

	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(inputs)); err != nil {
		return services.NewValidationError("Webhook", "INVALID_INPUTS", "inputs is not a valid JSON schema: "+err.Error(), services.ErrInvalidRequest)
	}

	return nil
}

func validatePayload(inputs map[string]any, payload map[string]any) error {
	if len(inputs) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(inputs), gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(problems, "; "))
	}

	return nil
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}
