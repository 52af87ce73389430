package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/services"
)

func (h *APIHandlers) GetToolTypes(c fiber.Ctx) error {
	return c.JSON(toolTypes(h.catalog.ToolTypes()))
}

func (h *APIHandlers) GetTools(c fiber.Ctx) error {
	tools, err := h.catalog.Tools(c.Context())

	return list(c, tools, err)
}

func (h *APIHandlers) GetTool(c fiber.Ctx) error {
	tool, err := h.catalog.Tool(c.Context(), c.Params("id"))

	return respond(c, fiber.StatusOK, tool, err)
}

func (h *APIHandlers) CreateTool(c fiber.Ctx) error {
	var req services.CreateTool
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	tool, err := h.catalog.CreateTool(c.Context(), req)

	return respond(c, fiber.StatusCreated, tool, err)
}

func (h *APIHandlers) DeleteTool(c fiber.Ctx) error {
	return deleted(c, h.catalog.DeleteTool(c.Context(), c.Params("id")))
}

func (h *APIHandlers) GetAgents(c fiber.Ctx) error {
	agents, err := h.catalog.Agents(c.Context())

	return list(c, agents, err)
}

func (h *APIHandlers) GetAgent(c fiber.Ctx) error {
	agent, err := h.catalog.Agent(c.Context(), c.Params("id"))

	return respond(c, fiber.StatusOK, agent, err)
}

func (h *APIHandlers) CreateAgent(c fiber.Ctx) error {
	var req services.CreateAgent
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	agent, err := h.catalog.CreateAgent(c.Context(), req)

	return respond(c, fiber.StatusCreated, agent, err)
}

func (h *APIHandlers) DeleteAgent(c fiber.Ctx) error {
	return deleted(c, h.catalog.DeleteAgent(c.Context(), c.Params("id")))
}

func (h *APIHandlers) GetConditionTools(c fiber.Ctx) error {
	tools, err := h.catalog.ConditionTools(c.Context())

	return list(c, tools, err)
}

func (h *APIHandlers) GetConditionTool(c fiber.Ctx) error {
	tool, err := h.catalog.ConditionTool(c.Context(), c.Params("id"))

	return respond(c, fiber.StatusOK, tool, err)
}

func (h *APIHandlers) CreateConditionTool(c fiber.Ctx) error {
	var req models.ConditionTool
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	tool, err := h.catalog.CreateConditionTool(c.Context(), req)

	return respond(c, fiber.StatusCreated, tool, err)
}

func (h *APIHandlers) DeleteConditionTool(c fiber.Ctx) error {
	return deleted(c, h.catalog.DeleteConditionTool(c.Context(), c.Params("id")))
}

func list[T any](c fiber.Ctx, items []*T, err error) error {
	if err != nil {
		return handleServiceError(c, err)
	}

	if items == nil {
		items = []*T{}
	}

	return c.JSON(items)
}

func respond(c fiber.Ctx, status int, body any, err error) error {
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(status).JSON(body)
}

func deleted(c fiber.Ctx, err error) error {
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
