// Package persistence defines the storage port used by the engine and its
// collaborators. Lookups return (nil, nil) when an entity does not exist.
package persistence

import (
	"context"

	"github.com/fera765/flui/pkg/models"
)

type Persistence interface {
	Automations() AutomationRepository
	Tools() Repository[models.SystemTool]
	Agents() Repository[models.Agent]
	ConditionTools() Repository[models.ConditionTool]
	Webhooks() Repository[models.Webhook]
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Repository stores one kind of catalog entity keyed by id.
type Repository[T any] interface {
	GetAll(ctx context.Context) ([]*T, error)
	GetByID(ctx context.Context, id string) (*T, error)
	Save(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id string) error
}

type AutomationRepository interface {
	Repository[models.Automation]

	GetByName(ctx context.Context, name string) (*models.Automation, error)
	UpdateStatus(ctx context.Context, id string, status models.AutomationStatus) error
	// UpdateDetails changes only name and description, leaving status and
	// structure as stored.
	UpdateDetails(ctx context.Context, id, name, description string) error
}

// ExecutionRepository keeps finished runs.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.ExecutionContext) error
	GetByID(ctx context.Context, id string) (*models.ExecutionContext, error)
	GetByAutomation(ctx context.Context, automationID string) ([]*models.ExecutionContext, error)
}
