// Package main provides the flui API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.opentelemetry.io/otel/trace"

	"github.com/fera765/flui/pkg/eventbus"
	"github.com/fera765/flui/pkg/events"
	"github.com/fera765/flui/pkg/otelhelper"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/registry"
	"github.com/fera765/flui/pkg/scheduler"
	"github.com/fera765/flui/pkg/services"
	"github.com/fera765/flui/pkg/tracker"
	"github.com/fera765/flui/pkg/web"
	"github.com/fera765/flui/pkg/webhook"
	"github.com/fera765/flui/pkg/workflow"
)

type Config struct {
	BaseURL          string
	MaxParallelNodes int
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	config      Config

	tracker   *tracker.Tracker
	scheduler *scheduler.Scheduler
	app       *fiber.App
}

// NewAPI wires the engine. eventBus may be nil and tracer defaults to a
// no-op tracer.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	config Config,
) *API {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	a := &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		tracer:      tracer,
		config:      config,
	}

	executor := workflow.NewExecutor(
		workflow.NewInvoker(persistence, registry, logger),
		logger,
		workflow.WithMaxParallel(config.MaxParallelNodes),
		workflow.WithTracer(tracer),
	)

	var publisher eventbus.EventPublisher
	if eventBus != nil {
		publisher = eventBus
	}

	a.tracker = tracker.New(persistence, executor, publisher, logger)
	a.scheduler = scheduler.New(persistence, a.tracker, logger)

	automations := services.NewAutomation(persistence, logger)
	automations.AddListener(a.scheduler)

	handlers := web.NewAPIHandlers(
		automations,
		services.NewCatalog(persistence, registry, logger),
		a.tracker,
		webhook.NewGateway(persistence, a.tracker, config.BaseURL, logger),
		validator.New(validator.WithRequiredStructEnabled()),
		logger,
	)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flui API")
	})

	handlers.Register(app)

	a.app = app

	return a
}

func (a *API) App() *fiber.App {
	return a.app
}

// Start schedules the stored automations, subscribes to exported events and
// serves HTTP until Shutdown.
func (a *API) Start(ctx context.Context, port int) error {
	if err := a.scheduler.Sync(ctx); err != nil {
		return fmt.Errorf("failed to sync schedules: %w", err)
	}

	a.scheduler.Start()

	if a.eventBus != nil {
		if err := a.auditExecutions(ctx); err != nil {
			return err
		}
	}

	return a.app.Listen(":" + strconv.Itoa(port))
}

// Shutdown stops accepting requests, stops the scheduler and waits for
// background runs.
func (a *API) Shutdown(ctx context.Context) error {
	if err := a.app.ShutdownWithContext(ctx); err != nil {
		return err
	}

	if err := a.scheduler.Stop(ctx); err != nil {
		return err
	}

	a.tracker.Wait()

	return nil
}

func (a *API) auditExecutions(ctx context.Context) error {
	err := a.eventBus.Handle(events.ExecutionFinishedEvent, func(ctx context.Context, event any) error {
		finished, ok := event.(*events.ExecutionFinished)
		if !ok {
			return nil
		}

		a.logger.InfoContext(ctx, "Execution finished",
			"automation_id", finished.AutomationID,
			"run_id", finished.RunID,
			"status", finished.Status,
			"executed_nodes", finished.ExecutedNodes,
			"duration", finished.Duration,
		)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register execution handler: %w", err)
	}

	if err := a.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to execution events: %w", err)
	}

	return nil
}
