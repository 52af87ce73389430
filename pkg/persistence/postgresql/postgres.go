// Package postgresql provides the PostgreSQL persistence adapter.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/persistence/sqlbase"
)

const uniqueViolation = "23505"

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	automations    *AutomationRepository
	tools          *documentRepository[models.SystemTool]
	agents         *documentRepository[models.Agent]
	conditionTools *documentRepository[models.ConditionTool]
	webhooks       *documentRepository[models.Webhook]
	executions     *ExecutionRepository
}

// NewPersistence connects to databaseURL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		automations:    NewAutomationRepository(database, logger),
		tools:          newDocumentRepository(database, logger, "tools", persistence.KindTool, func(t *models.SystemTool) string { return t.ID }),
		agents:         newDocumentRepository(database, logger, "agents", persistence.KindAgent, func(a *models.Agent) string { return a.ID }),
		conditionTools: newDocumentRepository(database, logger, "condition_tools", persistence.KindConditionTool, func(c *models.ConditionTool) string { return c.ID }),
		webhooks:       newDocumentRepository(database, logger, "webhooks", persistence.KindWebhook, func(w *models.Webhook) string { return w.ID }),
		executions:     NewExecutionRepository(database, logger),
	}, nil
}

func (p *Persistence) Automations() persistence.AutomationRepository { return p.automations }

func (p *Persistence) Tools() persistence.Repository[models.SystemTool] { return p.tools }

func (p *Persistence) Agents() persistence.Repository[models.Agent] { return p.agents }

func (p *Persistence) ConditionTools() persistence.Repository[models.ConditionTool] {
	return p.conditionTools
}

func (p *Persistence) Webhooks() persistence.Repository[models.Webhook] { return p.webhooks }

func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
