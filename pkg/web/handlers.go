// Package web provides the HTTP handlers of the automation API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/services"
	"github.com/fera765/flui/pkg/tracker"
	"github.com/fera765/flui/pkg/webhook"
)

type APIHandlers struct {
	automations *services.Automation
	catalog     *services.Catalog
	tracker     *tracker.Tracker
	webhooks    *webhook.Gateway
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(
	automations *services.Automation,
	catalog *services.Catalog,
	tracker *tracker.Tracker,
	webhooks *webhook.Gateway,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		automations: automations,
		catalog:     catalog,
		tracker:     tracker,
		webhooks:    webhooks,
		validator:   validator,
		logger:      logger.With("module", "api"),
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.automations.HealthCheck(c.Context())

	registryCheck, regOk := "Registry has no tool types", false
	if len(h.catalog.ToolTypes()) > 0 {
		registryCheck, regOk = "Registry is healthy", true
	}

	status := "unhealthy"
	message := "Flui API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Flui API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetAutomations(c fiber.Ctx) error {
	automations, err := h.automations.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	if automations == nil {
		automations = []*models.Automation{}
	}

	return c.JSON(automations)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req services.CreateAutomation
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.automations.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	automation, err := h.automations.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	var req services.UpdateAutomation
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.automations.Update(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	if err := h.automations.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetAutomationExecutions(c fiber.Ctx) error {
	executions, err := h.automations.Executions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if executions == nil {
		executions = []*models.ExecutionContext{}
	}

	return c.JSON(executions)
}

// ExecuteAutomation runs the automation synchronously. A failed run answers
// 500 with the partial ExecutionContext as body.
func (h *APIHandlers) ExecuteAutomation(c fiber.Ctx) error {
	input, err := rootInput(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.tracker.Run(c.Context(), c.Params("id"), input)
	if execution == nil {
		return handleServiceError(c, err)
	}

	if execution.Status == models.ExecutionStatusFailed {
		return c.Status(fiber.StatusInternalServerError).JSON(execution)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	input, err := rootInput(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")

	runID, err := h.tracker.Start(detach(c), id, input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(StartExecutionResponse{
		Message:      "Execution started",
		AutomationID: id,
		RunID:        runID,
	})
}

func (h *APIHandlers) GetExecutionStatus(c fiber.Ctx) error {
	status, err := h.tracker.Status(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	logs, err := h.tracker.Logs(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if logs == nil {
		logs = []models.LogEntry{}
	}

	return c.JSON(logs)
}

func (h *APIHandlers) CreateWebhook(c fiber.Ctx) error {
	var req CreateWebhookRequest
	if err := h.decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.webhooks.Create(c.Context(), c.Params("id"), webhook.Config{
		NodeID: req.NodeID,
		Method: req.Method,
		Inputs: req.Inputs,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWebhookConfig(c fiber.Ctx) error {
	hook, err := h.webhooks.Get(c.Context(), c.Params("toolId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(hook)
}

func (h *APIHandlers) UpdateWebhookConfig(c fiber.Ctx) error {
	var req UpdateWebhookRequest
	if err := h.decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.webhooks.UpdateConfig(c.Context(), c.Params("toolId"), webhook.Update{
		Method: req.Method,
		Inputs: req.Inputs,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWebhook(c fiber.Ctx) error {
	if err := h.webhooks.Delete(c.Context(), c.Params("toolId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ReceiveWebhook is the public endpoint. GET calls take their payload from
// the query string.
func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	req := webhook.Request{
		ToolID:        c.Params("toolId"),
		Method:        c.Method(),
		Authorization: c.Get(fiber.HeaderAuthorization),
	}

	if c.Method() == fiber.MethodGet {
		req.Payload = map[string]any{}
		c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
			req.Payload[string(key)] = string(value)
		})
	} else {
		body := c.Body()
		req.Decode = func() (map[string]any, error) {
			return rootInput(body)
		}
	}

	receipt, err := h.webhooks.Receive(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(receipt)
}

// decode binds an optional JSON body and validates it.
func (h *APIHandlers) decode(c fiber.Ctx, out any) error {
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return errInvalidJSON
		}
	}

	return h.validator.Struct(out)
}

// detach keeps the trace of the request for work that outlives it.
func detach(c fiber.Ctx) context.Context {
	return trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(c.Context()))
}
