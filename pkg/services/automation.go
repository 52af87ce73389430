package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/workflow"
)

// AutomationListener is notified after automations are saved or deleted.
type AutomationListener interface {
	AutomationSaved(ctx context.Context, automation *models.Automation)
	AutomationDeleted(ctx context.Context, id string)
}

type Automation struct {
	persistence persistence.Persistence
	validate    *validator.Validate
	logger      *slog.Logger
	listeners   []AutomationListener
}

// NewAutomation creates a new automation service.
func NewAutomation(persistence persistence.Persistence, logger *slog.Logger) *Automation {
	return &Automation{
		persistence: persistence,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "automation_service"),
	}
}

// AddListener registers l. It is not safe to call concurrently with other methods.
func (a *Automation) AddListener(l AutomationListener) {
	a.listeners = append(a.listeners, l)
}

// HealthCheck checks the health of the persistence layer.
func (a *Automation) HealthCheck(ctx context.Context) (string, bool) {
	if a.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := a.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

type CreateAutomation struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Nodes       []*models.Node `json:"nodes"`
	Links       []*models.Link `json:"links"`
}

// UpdateAutomation changes name and description. Nodes and links are only
// present to reject structural changes.
type UpdateAutomation struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Nodes       []*models.Node `json:"nodes,omitempty"`
	Links       []*models.Link `json:"links,omitempty"`
}

func (a *Automation) Create(ctx context.Context, req CreateAutomation) (*models.Automation, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("Create", "NAME_REQUIRED", "name is required", ErrNameRequired)
	}

	automation := &models.Automation{
		ID:          uuid.NewString(),
		Name:        name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Links:       req.Links,
		Status:      models.AutomationStatusIdle,
	}

	if automation.Links == nil {
		automation.Links = []*models.Link{}
	}

	if err := a.validateStructure(automation); err != nil {
		return nil, err
	}

	if err := a.ensureNameAvailable(ctx, "Create", name, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	automation.CreatedAt = now
	automation.UpdatedAt = now

	if err := a.save(ctx, "Create", automation); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "automation created", "automation_id", automation.ID, "nodes", len(automation.Nodes))

	return automation, nil
}

func (a *Automation) FetchByID(ctx context.Context, id string) (*models.Automation, error) {
	automation, err := a.persistence.Automations().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch automation %s: %w", id, err)
	}

	if automation == nil {
		return nil, persistence.NewEntityError("FetchByID", persistence.KindAutomation, id, persistence.ErrAutomationNotFound)
	}

	return automation, nil
}

func (a *Automation) List(ctx context.Context) ([]*models.Automation, error) {
	automations, err := a.persistence.Automations().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}

	if automations == nil {
		automations = []*models.Automation{}
	}

	return automations, nil
}

func (a *Automation) Update(ctx context.Context, id string, req UpdateAutomation) (*models.Automation, error) {
	if req.Nodes != nil || req.Links != nil {
		return nil, NewValidationError("Update", "STRUCTURE_IMMUTABLE", "nodes and links cannot change after creation", ErrStructureImmutable)
	}

	automation, err := a.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name, description := automation.Name, automation.Description

	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewValidationError("Update", "NAME_REQUIRED", "name is required", ErrNameRequired)
		}

		if err := a.ensureNameAvailable(ctx, "Update", name, id); err != nil {
			return nil, err
		}
	}

	if req.Description != nil {
		description = *req.Description
	}

	// status is owned by the tracker
	err = a.persistence.Automations().UpdateDetails(ctx, id, name, description)
	if persistence.IsAlreadyExists(err) {
		return nil, NewConflictError("Update", "NAME_TAKEN", fmt.Sprintf("name %q is already taken", name), ErrNameTaken)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to update automation %s: %w", id, err)
	}

	updated, err := a.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, l := range a.listeners {
		l.AutomationSaved(ctx, updated)
	}

	return updated, nil
}

// Delete removes the automation. Webhooks bound to it are kept.
func (a *Automation) Delete(ctx context.Context, id string) error {
	if _, err := a.FetchByID(ctx, id); err != nil {
		return err
	}

	if err := a.persistence.Automations().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete automation %s: %w", id, err)
	}

	for _, l := range a.listeners {
		l.AutomationDeleted(ctx, id)
	}

	a.logger.InfoContext(ctx, "automation deleted", "automation_id", id)

	return nil
}

// Executions returns the recorded runs of the automation, oldest first.
func (a *Automation) Executions(ctx context.Context, id string) ([]*models.ExecutionContext, error) {
	if _, err := a.FetchByID(ctx, id); err != nil {
		return nil, err
	}

	executions, err := a.persistence.Executions().GetByAutomation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of %s: %w", id, err)
	}

	if executions == nil {
		executions = []*models.ExecutionContext{}
	}

	return executions, nil
}

func (a *Automation) save(ctx context.Context, op string, automation *models.Automation) error {
	err := a.persistence.Automations().Save(ctx, automation)
	if persistence.IsAlreadyExists(err) {
		return NewConflictError(op, "NAME_TAKEN", fmt.Sprintf("name %q is already taken", automation.Name), ErrNameTaken)
	}

	if err != nil {
		return fmt.Errorf("failed to save automation: %w", err)
	}

	for _, l := range a.listeners {
		l.AutomationSaved(ctx, automation)
	}

	return nil
}

func (a *Automation) ensureNameAvailable(ctx context.Context, op, name, selfID string) error {
	existing, err := a.persistence.Automations().GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to look up automation name: %w", err)
	}

	if existing != nil && existing.ID != selfID {
		return NewConflictError(op, "NAME_TAKEN", fmt.Sprintf("name %q is already taken", name), ErrNameTaken)
	}

	return nil
}

// validateStructure checks the node and link invariants of a new automation.
func (a *Automation) validateStructure(automation *models.Automation) error {
	if len(automation.Nodes) == 0 {
		return NewValidationError("Create", "NODES_REQUIRED", ErrNodesRequired.Error(), ErrNodesRequired)
	}

	if err := a.validate.Struct(automation); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError("Create", "INVALID_REQUEST", validationErrors.Error(), ErrInvalidRequest)
		}

		return NewValidationError("Create", "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
	}

	ids := make(map[string]*models.Node, len(automation.Nodes))
	triggers := 0

	for i, node := range automation.Nodes {
		if node == nil {
			return NewValidationError("Create", "INVALID_REQUEST", fmt.Sprintf("nodes[%d] is null", i), ErrInvalidRequest)
		}

		if !node.Type.Valid() {
			return NewValidationError("Create", "INVALID_NODE_TYPE", fmt.Sprintf("node %s has invalid type %q", node.ID, node.Type), ErrInvalidNodeType)
		}

		if _, ok := ids[node.ID]; ok {
			return NewValidationError("Create", "DUPLICATE_NODE_ID", fmt.Sprintf("node id %s is used more than once", node.ID), ErrDuplicateNodeID)
		}

		ids[node.ID] = node

		if node.IsTrigger() {
			triggers++
		}
	}

	if triggers == 0 {
		return NewValidationError("Create", "TRIGGER_REQUIRED", ErrTriggerNodeRequired.Error(), ErrTriggerNodeRequired)
	}

	for i, link := range automation.Links {
		if link == nil {
			return NewValidationError("Create", "INVALID_REQUEST", fmt.Sprintf("links[%d] is null", i), ErrInvalidRequest)
		}

		from, to := ids[link.FromNodeID], ids[link.ToNodeID]
		if from == nil || to == nil || link.FromNodeID == link.ToNodeID {
			return NewValidationError("Create", "INVALID_LINK",
				fmt.Sprintf("link %s.%s -> %s.%s must join two distinct nodes of the automation", link.FromNodeID, link.FromOutputKey, link.ToNodeID, link.ToInputKey),
				ErrInvalidLink)
		}

		if to.IsTrigger() {
			return NewValidationError("Create", "TRIGGER_HAS_INBOUND", fmt.Sprintf("trigger node %s cannot receive links", to.ID), ErrTriggerHasInbound)
		}
	}

	if _, err := workflow.Sort(automation); err != nil {
		return NewValidationError("Create", "CYCLE_DETECTED", err.Error(), ErrCycleDetected)
	}

	return nil
}
