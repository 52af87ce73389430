package file

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
)

type automationRepository struct {
	*repository[models.Automation]
}

func (r *automationRepository) Save(ctx context.Context, automation *models.Automation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.findByName(ctx, automation.Name)
	if err != nil {
		return err
	}

	if existing != nil && existing.ID != automation.ID {
		return persistence.NewEntityError("Save", persistence.KindAutomation, automation.ID, persistence.ErrAlreadyExists)
	}

	now := time.Now().UTC()
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	return r.write(automation)
}

func (r *automationRepository) GetByName(ctx context.Context, name string) (*models.Automation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.findByName(ctx, name)
}

func (r *automationRepository) findByName(ctx context.Context, name string) (*models.Automation, error) {
	automations, err := r.readAll(ctx)
	if err != nil {
		return nil, err
	}

	index := slices.IndexFunc(automations, func(a *models.Automation) bool {
		return strings.EqualFold(a.Name, name)
	})
	if index < 0 {
		return nil, nil
	}

	return automations[index], nil
}

func (r *automationRepository) UpdateStatus(_ context.Context, id string, status models.AutomationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	automation, err := r.read(id)
	if err != nil {
		return err
	}

	if automation == nil {
		return persistence.NewEntityError("UpdateStatus", persistence.KindAutomation, id, persistence.ErrAutomationNotFound)
	}

	automation.Status = status

	return r.write(automation)
}

func (r *automationRepository) UpdateDetails(ctx context.Context, id, name, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	automation, err := r.read(id)
	if err != nil {
		return err
	}

	if automation == nil {
		return persistence.NewEntityError("UpdateDetails", persistence.KindAutomation, id, persistence.ErrAutomationNotFound)
	}

	existing, err := r.findByName(ctx, name)
	if err != nil {
		return err
	}

	if existing != nil && existing.ID != id {
		return persistence.NewEntityError("UpdateDetails", persistence.KindAutomation, id, persistence.ErrAlreadyExists)
	}

	automation.Name = name
	automation.Description = description
	automation.UpdatedAt = time.Now().UTC()

	return r.write(automation)
}

type executionRepository struct {
	*repository[models.ExecutionContext]
}

func (r *executionRepository) GetByAutomation(ctx context.Context, automationID string) ([]*models.ExecutionContext, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	executions := []*models.ExecutionContext{}

	for _, execution := range all {
		if execution.AutomationID == automationID {
			executions = append(executions, execution)
		}
	}

	slices.SortFunc(executions, func(a, b *models.ExecutionContext) int {
		return a.StartedAt.Compare(b.StartedAt)
	})

	return executions, nil
}
