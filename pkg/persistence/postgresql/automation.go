package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
)

const automationColumns = `
			id
		  , name
		  , description
		  , status
		  , nodes
		  , links
		  , created_at
		  , updated_at
`

// AutomationRepository handles automation database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

func (r *AutomationRepository) GetAll(ctx context.Context) ([]*models.Automation, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT"+automationColumns+"FROM automations ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+automationColumns+"FROM automations WHERE id = $1", id)

	return r.scanOne(row, "GetByID", id)
}

func (r *AutomationRepository) GetByName(ctx context.Context, name string) (*models.Automation, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+automationColumns+"FROM automations WHERE LOWER(name) = LOWER($1)", name)

	return r.scanOne(row, "GetByName", name)
}

func (r *AutomationRepository) scanOne(row *sql.Row, op, key string) (*models.Automation, error) {
	automation, err := scanAutomation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewEntityError(op, persistence.KindAutomation, key, err)
	}

	return automation, nil
}

func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	now := time.Now().UTC()

	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	nodes, err := json.Marshal(automation.Nodes)
	if err != nil {
		return persistence.NewEntityError("Save", persistence.KindAutomation, automation.ID, err)
	}

	links, err := json.Marshal(automation.Links)
	if err != nil {
		return persistence.NewEntityError("Save", persistence.KindAutomation, automation.ID, err)
	}

	query := `
		INSERT INTO automations (id, name, description, status, nodes, links, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , status = EXCLUDED.status
		  , nodes = EXCLUDED.nodes
		  , links = EXCLUDED.links
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID,
		automation.Name,
		automation.Description,
		string(automation.Status),
		nodes,
		links,
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewEntityError("Save", persistence.KindAutomation, automation.ID, persistence.ErrAlreadyExists)
		}

		return persistence.NewEntityError("Save", persistence.KindAutomation, automation.ID, err)
	}

	return nil
}

func (r *AutomationRepository) UpdateStatus(ctx context.Context, id string, status models.AutomationStatus) error {
	result, err := r.db.ExecContext(ctx, "UPDATE automations SET status = $2 WHERE id = $1", id, string(status))
	if err != nil {
		return persistence.NewEntityError("UpdateStatus", persistence.KindAutomation, id, err)
	}

	return requireAffected(result, "UpdateStatus", id)
}

func (r *AutomationRepository) UpdateDetails(ctx context.Context, id, name, description string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE automations SET name = $2, description = $3, updated_at = $4 WHERE id = $1",
		id, name, description, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewEntityError("UpdateDetails", persistence.KindAutomation, id, persistence.ErrAlreadyExists)
		}

		return persistence.NewEntityError("UpdateDetails", persistence.KindAutomation, id, err)
	}

	return requireAffected(result, "UpdateDetails", id)
}

func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automations WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", persistence.KindAutomation, id, err)
	}

	return requireAffected(result, "Delete", id)
}

func requireAffected(result sql.Result, op, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewEntityError(op, persistence.KindAutomation, id, err)
	}

	if affected == 0 {
		return persistence.NewEntityError(op, persistence.KindAutomation, id, persistence.ErrAutomationNotFound)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAutomation(row scanner) (*models.Automation, error) {
	var (
		automation   models.Automation
		status       string
		nodes, links []byte
	)

	err := row.Scan(
		&automation.ID,
		&automation.Name,
		&automation.Description,
		&status,
		&nodes,
		&links,
		&automation.CreatedAt,
		&automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	automation.Status = models.AutomationStatus(status)

	err = json.Unmarshal(nodes, &automation.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}

	err = json.Unmarshal(links, &automation.Links)
	if err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}

	return &automation, nil
}
