package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/services"
	"github.com/fera765/flui/pkg/webhook"
)

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func notFound(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusNotFound, "not_found", detail)
}

func internalError(c fiber.Ctx, err error) error {
	p := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(p)
}

func problem(c fiber.Ctx, status int, kind, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

// handleServiceError maps domain errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		return problem(c, fiber.StatusConflict, "conflict", err.Error())

	case persistence.IsAlreadyExists(err):
		return problem(c, fiber.StatusConflict, "conflict", err.Error())

	case errors.Is(err, persistence.ErrAutomationNotFound):
		return problem(c, fiber.StatusNotFound, "automation_not_found", "automation not found")

	case errors.Is(err, persistence.ErrWebhookNotFound):
		return problem(c, fiber.StatusNotFound, "webhook_not_found", "webhook not found")

	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	case errors.Is(err, webhook.ErrUnauthorized):
		return problem(c, fiber.StatusUnauthorized, "unauthorized", err.Error())

	case errors.Is(err, webhook.ErrMethodNotAllowed):
		return problem(c, fiber.StatusMethodNotAllowed, "method_not_allowed", err.Error())

	case errors.Is(err, webhook.ErrInvalidPayload):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
