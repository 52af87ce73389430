package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fera765/flui/pkg/persistence"
)

// documentRepository stores catalog entities as one JSONB column per row.
// table is always one of the constant names passed by NewPersistence.
type documentRepository[T any] struct {
	db     *sql.DB
	logger *slog.Logger
	table  string
	kind   string
	idOf   func(*T) string
}

func newDocumentRepository[T any](db *sql.DB, logger *slog.Logger, table, kind string, idOf func(*T) string) *documentRepository[T] {
	return &documentRepository[T]{db: db, logger: logger, table: table, kind: kind, idOf: idOf}
}

func (r *documentRepository[T]) GetAll(ctx context.Context) ([]*T, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT data FROM "+r.table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table, err)
	}

	defer closeRows(ctx, r.logger, rows)

	entities := make([]*T, 0)

	for rows.Next() {
		var data []byte

		err := rows.Scan(&data)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.kind, err)
		}

		var entity T

		err = json.Unmarshal(data, &entity)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", r.kind, err)
		}

		entities = append(entities, &entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", r.table, err)
	}

	return entities, nil
}

func (r *documentRepository[T]) GetByID(ctx context.Context, id string) (*T, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, "SELECT data FROM "+r.table+" WHERE id = $1", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewEntityError("GetByID", r.kind, id, err)
	}

	var entity T

	err = json.Unmarshal(data, &entity)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", r.kind, id, err)
	}

	return &entity, nil
}

func (r *documentRepository[T]) Save(ctx context.Context, entity *T) error {
	id := r.idOf(entity)

	data, err := json.Marshal(entity)
	if err != nil {
		return persistence.NewEntityError("Save", r.kind, id, err)
	}

	query := `
		INSERT INTO ` + r.table + ` (id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, id, data)
	if err != nil {
		return persistence.NewEntityError("Save", r.kind, id, err)
	}

	return nil
}

func (r *documentRepository[T]) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM "+r.table+" WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", r.kind, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewEntityError("Delete", r.kind, id, err)
	}

	if affected == 0 {
		return persistence.NewEntityError("Delete", r.kind, id, persistence.NotFound(r.kind))
	}

	return nil
}
