// Package memory provides an in-process persistence adapter, used by tests
// and by the "memory://" database URL.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
)

type Persistence struct {
	automations    *automationRepository
	tools          *store[models.SystemTool]
	agents         *store[models.Agent]
	conditionTools *store[models.ConditionTool]
	webhooks       *store[models.Webhook]
	executions     *executionRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		automations: &automationRepository{
			store: newStore(persistence.KindAutomation, func(a *models.Automation) string { return a.ID }),
		},
		tools:          newStore(persistence.KindTool, func(t *models.SystemTool) string { return t.ID }),
		agents:         newStore(persistence.KindAgent, func(a *models.Agent) string { return a.ID }),
		conditionTools: newStore(persistence.KindConditionTool, func(c *models.ConditionTool) string { return c.ID }),
		webhooks:       newStore(persistence.KindWebhook, func(w *models.Webhook) string { return w.ID }),
		executions: &executionRepository{
			store: newStore(persistence.KindExecution, func(e *models.ExecutionContext) string { return e.ID }),
		},
	}
}

func (p *Persistence) Automations() persistence.AutomationRepository { return p.automations }

func (p *Persistence) Tools() persistence.Repository[models.SystemTool] { return p.tools }

func (p *Persistence) Agents() persistence.Repository[models.Agent] { return p.agents }

func (p *Persistence) ConditionTools() persistence.Repository[models.ConditionTool] {
	return p.conditionTools
}

func (p *Persistence) Webhooks() persistence.Repository[models.Webhook] { return p.webhooks }

func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }

func (p *Persistence) Close(_ context.Context) error { return nil }

// store keeps shallow copies so callers never share a struct with the map.
type store[T any] struct {
	mu       sync.RWMutex
	kind     string
	idOf     func(*T) string
	entities map[string]*T
}

func newStore[T any](kind string, idOf func(*T) string) *store[T] {
	return &store[T]{kind: kind, idOf: idOf, entities: make(map[string]*T)}
}

func (s *store[T]) GetAll(_ context.Context) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	all := make([]*T, 0, len(ids))
	for _, id := range ids {
		entity := *s.entities[id]
		all = append(all, &entity)
	}

	return all, nil
}

func (s *store[T]) GetByID(_ context.Context, id string) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.entities[id]
	if !ok {
		return nil, nil
	}

	entity := *stored

	return &entity, nil
}

func (s *store[T]) Save(_ context.Context, entity *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entity
	s.entities[s.idOf(entity)] = &stored

	return nil
}

func (s *store[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[id]; !ok {
		return persistence.NewEntityError("Delete", s.kind, id, persistence.NotFound(s.kind))
	}

	delete(s.entities, id)

	return nil
}

type automationRepository struct {
	*store[models.Automation]
}

func (r *automationRepository) Save(_ context.Context, automation *models.Automation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.entities {
		if id != automation.ID && strings.EqualFold(existing.Name, automation.Name) {
			return persistence.NewEntityError("Save", persistence.KindAutomation, automation.ID, persistence.ErrAlreadyExists)
		}
	}

	now := time.Now().UTC()
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	stored := *automation
	r.entities[automation.ID] = &stored

	return nil
}

func (r *automationRepository) GetByName(_ context.Context, name string) (*models.Automation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, existing := range r.entities {
		if strings.EqualFold(existing.Name, name) {
			automation := *existing

			return &automation, nil
		}
	}

	return nil, nil
}

func (r *automationRepository) UpdateStatus(_ context.Context, id string, status models.AutomationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entities[id]
	if !ok {
		return persistence.NewEntityError("UpdateStatus", persistence.KindAutomation, id, persistence.ErrAutomationNotFound)
	}

	updated := *existing
	updated.Status = status
	r.entities[id] = &updated

	return nil
}

func (r *automationRepository) UpdateDetails(_ context.Context, id, name, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entities[id]
	if !ok {
		return persistence.NewEntityError("UpdateDetails", persistence.KindAutomation, id, persistence.ErrAutomationNotFound)
	}

	for otherID, other := range r.entities {
		if otherID != id && strings.EqualFold(other.Name, name) {
			return persistence.NewEntityError("UpdateDetails", persistence.KindAutomation, id, persistence.ErrAlreadyExists)
		}
	}

	updated := *existing
	updated.Name = name
	updated.Description = description
	updated.UpdatedAt = time.Now().UTC()
	r.entities[id] = &updated

	return nil
}

type executionRepository struct {
	*store[models.ExecutionContext]
}

func (r *executionRepository) GetByAutomation(_ context.Context, automationID string) ([]*models.ExecutionContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executions := []*models.ExecutionContext{}

	for _, stored := range r.entities {
		if stored.AutomationID == automationID {
			execution := *stored
			executions = append(executions, &execution)
		}
	}

	slices.SortFunc(executions, func(a, b *models.ExecutionContext) int {
		return a.StartedAt.Compare(b.StartedAt)
	})

	return executions, nil
}
