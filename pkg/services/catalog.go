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

	"github.com/fera765/flui/pkg/conditions"
	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/protocol"
	"github.com/fera765/flui/pkg/registry"
)

// Catalog manages the system tools, agents and condition tools that nodes
// reference.
type Catalog struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewCatalog(persistence persistence.Persistence, registry *registry.Registry, logger *slog.Logger) *Catalog {
	return &Catalog{
		persistence: persistence,
		registry:    registry,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "catalog_service"),
	}
}

type CreateTool struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required"`
	Description string         `json:"description"`
	Type        string         `json:"type"        validate:"required"`
	Config      map[string]any `json:"config"`
}

type CreateAgent struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"         validate:"required"`
	Description  string         `json:"description"`
	Provider     string         `json:"provider"     validate:"required"`
	Instructions string         `json:"instructions"`
	Config       map[string]any `json:"config"`
}

// ToolTypes describes the registered tool factories.
func (c *Catalog) ToolTypes() []protocol.ToolFactory {
	return c.registry.ToolFactories()
}

func (c *Catalog) CreateTool(ctx context.Context, req CreateTool) (*models.SystemTool, error) {
	if err := c.check("CreateTool", req); err != nil {
		return nil, err
	}

	if !c.registry.HasTool(req.Type) {
		return nil, NewValidationError("CreateTool", "UNKNOWN_TOOL_TYPE", fmt.Sprintf("tool type %q is not registered", req.Type), ErrUnknownToolType)
	}

	tool := &models.SystemTool{
		ID:          idOrNew(req.ID),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Type:        req.Type,
		Config:      req.Config,
		CreatedAt:   time.Now().UTC(),
	}

	if err := c.persistence.Tools().Save(ctx, tool); err != nil {
		return nil, fmt.Errorf("failed to save tool: %w", err)
	}

	return tool, nil
}

func (c *Catalog) Tool(ctx context.Context, id string) (*models.SystemTool, error) {
	return get(ctx, c.persistence.Tools(), persistence.KindTool, id)
}

func (c *Catalog) Tools(ctx context.Context) ([]*models.SystemTool, error) {
	return list(ctx, c.persistence.Tools(), persistence.KindTool)
}

func (c *Catalog) DeleteTool(ctx context.Context, id string) error {
	return remove(ctx, c.persistence.Tools(), persistence.KindTool, id)
}

func (c *Catalog) CreateAgent(ctx context.Context, req CreateAgent) (*models.Agent, error) {
	if err := c.check("CreateAgent", req); err != nil {
		return nil, err
	}

	if !c.registry.HasAgent(req.Provider) {
		return nil, NewValidationError("CreateAgent", "UNKNOWN_PROVIDER", fmt.Sprintf("agent provider %q is not registered", req.Provider), ErrUnknownProvider)
	}

	agent := &models.Agent{
		ID:           idOrNew(req.ID),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Provider:     req.Provider,
		Instructions: req.Instructions,
		Config:       req.Config,
		CreatedAt:    time.Now().UTC(),
	}

	if err := c.persistence.Agents().Save(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to save agent: %w", err)
	}

	return agent, nil
}

func (c *Catalog) Agent(ctx context.Context, id string) (*models.Agent, error) {
	return get(ctx, c.persistence.Agents(), persistence.KindAgent, id)
}

func (c *Catalog) Agents(ctx context.Context) ([]*models.Agent, error) {
	return list(ctx, c.persistence.Agents(), persistence.KindAgent)
}

func (c *Catalog) DeleteAgent(ctx context.Context, id string) error {
	return remove(ctx, c.persistence.Agents(), persistence.KindAgent, id)
}

// CreateConditionTool stores a condition tool. Conditions whose predicate
// does not compile are accepted and never match; they are logged here.
func (c *Catalog) CreateConditionTool(ctx context.Context, req models.ConditionTool) (*models.ConditionTool, error) {
	if err := c.check("CreateConditionTool", req); err != nil {
		return nil, err
	}

	tool := req
	tool.ID = idOrNew(req.ID)
	tool.Type = models.ConditionToolType

	if tool.MatchMode == "" {
		tool.MatchMode = models.MatchModeFirst
	}

	for _, condition := range tool.Conditions {
		if condition.LinkedNodes == nil {
			condition.LinkedNodes = []string{}
		}
	}

	for _, err := range conditions.NewTool(&tool).Errors() {
		c.logger.WarnContext(ctx, "condition will never match", "condition_tool_id", tool.ID, "error", err)
	}

	if err := c.persistence.ConditionTools().Save(ctx, &tool); err != nil {
		return nil, fmt.Errorf("failed to save condition tool: %w", err)
	}

	return &tool, nil
}

func (c *Catalog) ConditionTool(ctx context.Context, id string) (*models.ConditionTool, error) {
	return get(ctx, c.persistence.ConditionTools(), persistence.KindConditionTool, id)
}

func (c *Catalog) ConditionTools(ctx context.Context) ([]*models.ConditionTool, error) {
	return list(ctx, c.persistence.ConditionTools(), persistence.KindConditionTool)
}

func (c *Catalog) DeleteConditionTool(ctx context.Context, id string) error {
	return remove(ctx, c.persistence.ConditionTools(), persistence.KindConditionTool, id)
}

func (c *Catalog) check(op string, req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return NewValidationError(op, "INVALID_REQUEST", validationErrors.Error(), ErrInvalidRequest)
	}

	return NewValidationError(op, "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
}

func get[T any](ctx context.Context, repo persistence.Repository[T], kind, id string) (*T, error) {
	entity, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %s: %w", kind, id, err)
	}

	if entity == nil {
		return nil, persistence.NewEntityError("Get", kind, id, persistence.NotFound(kind))
	}

	return entity, nil
}

func list[T any](ctx context.Context, repo persistence.Repository[T], kind string) ([]*T, error) {
	entities, err := repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %ss: %w", kind, err)
	}

	if entities == nil {
		entities = []*T{}
	}

	return entities, nil
}

func remove[T any](ctx context.Context, repo persistence.Repository[T], kind, id string) error {
	if _, err := get(ctx, repo, kind, id); err != nil {
		return err
	}

	if err := repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}

	return nil
}

func idOrNew(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}

	return uuid.NewString()
}
