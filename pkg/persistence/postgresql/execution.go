package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
)

// ExecutionRepository stores finished runs.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.ExecutionContext) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewEntityError("Save", persistence.KindExecution, execution.ID, err)
	}

	query := `
		INSERT INTO executions (id, automation_id, status, data, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , data = EXCLUDED.data
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.AutomationID,
		string(execution.Status),
		data,
		execution.StartedAt,
	)
	if err != nil {
		return persistence.NewEntityError("Save", persistence.KindExecution, execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionContext, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, "SELECT data FROM executions WHERE id = $1", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewEntityError("GetByID", persistence.KindExecution, id, err)
	}

	var execution models.ExecutionContext

	err = json.Unmarshal(data, &execution)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", persistence.KindExecution, id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) GetByAutomation(ctx context.Context, automationID string) ([]*models.ExecutionContext, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT data FROM executions WHERE automation_id = $1 ORDER BY started_at", automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.ExecutionContext, 0)

	for rows.Next() {
		var data []byte

		err := rows.Scan(&data)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		var execution models.ExecutionContext

		err = json.Unmarshal(data, &execution)
		if err != nil {
			return nil, fmt.Errorf("failed to decode execution: %w", err)
		}

		executions = append(executions, &execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}
