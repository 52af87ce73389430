package web

import "github.com/gofiber/fiber/v3"

// Register mounts every API route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	api := router.Group("/api")

	a := api.Group("/automations")
	a.Get("/", h.GetAutomations)
	a.Post("/", h.CreateAutomation)
	a.Get("/:id", h.GetAutomation)
	a.Patch("/:id", h.UpdateAutomation)
	a.Delete("/:id", h.DeleteAutomation)
	a.Get("/:id/executions", h.GetAutomationExecutions)
	a.Post("/:id/execute", h.ExecuteAutomation)
	a.Post("/:id/webhook", h.CreateWebhook)

	e := api.Group("/execution")
	e.Post("/:id/start", h.StartExecution)
	e.Get("/:id/status", h.GetExecutionStatus)
	e.Get("/:id/logs", h.GetExecutionLogs)
	e.Get("/:id/events", h.StreamExecutionEvents)

	w := api.Group("/webhooks")
	w.Get("/:toolId/config", h.GetWebhookConfig)
	w.Patch("/:toolId/config", h.UpdateWebhookConfig)
	w.Delete("/:toolId/config", h.DeleteWebhook)
	w.Post("/:toolId", h.ReceiveWebhook)
	w.Get("/:toolId", h.ReceiveWebhook)

	t := api.Group("/tools")
	t.Get("/", h.GetTools)
	t.Post("/", h.CreateTool)
	t.Get("/types", h.GetToolTypes)
	t.Get("/:id", h.GetTool)
	t.Delete("/:id", h.DeleteTool)

	ag := api.Group("/agents")
	ag.Get("/", h.GetAgents)
	ag.Post("/", h.CreateAgent)
	ag.Get("/:id", h.GetAgent)
	ag.Delete("/:id", h.DeleteAgent)

	c := api.Group("/conditions")
	c.Get("/", h.GetConditionTools)
	c.Post("/", h.CreateConditionTool)
	c.Get("/:id", h.GetConditionTool)
	c.Delete("/:id", h.DeleteConditionTool)
}
