package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fera765/flui/pkg/persistence"
)

type repository[T any] struct {
	mu   sync.RWMutex
	dir  string
	kind string
	idOf func(*T) string
}

func newRepository[T any](root, kind string, idOf func(*T) string) *repository[T] {
	return &repository[T]{
		dir:  filepath.Join(root, kind+"s"),
		kind: kind,
		idOf: idOf,
	}
}

func (r *repository[T]) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *repository[T]) GetAll(ctx context.Context) ([]*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.readAll(ctx)
}

func (r *repository[T]) readAll(_ context.Context) ([]*T, error) {
	jsonFiles, err := fs.Glob(os.DirFS(r.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", r.kind, err)
	}

	sort.Strings(jsonFiles)

	entities := make([]*T, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		entity, err := r.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if entity != nil {
			entities = append(entities, entity)
		}
	}

	return entities, nil
}

func (r *repository[T]) GetByID(_ context.Context, id string) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.read(id)
}

func (r *repository[T]) read(id string) (*T, error) {
	body, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewEntityError("GetByID", r.kind, id, err)
	}

	var entity T

	err = json.Unmarshal(body, &entity)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", r.kind, id, err)
	}

	return &entity, nil
}

func (r *repository[T]) Save(_ context.Context, entity *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.write(entity)
}

func (r *repository[T]) write(entity *T) error {
	id := r.idOf(entity)

	err := os.MkdirAll(r.dir, 0o750)
	if err != nil {
		return persistence.NewEntityError("Save", r.kind, id, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return persistence.NewEntityError("Save", r.kind, id, err)
	}

	tmp := r.path(id) + ".tmp"

	err = os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return persistence.NewEntityError("Save", r.kind, id, err)
	}

	err = os.Rename(tmp, r.path(id))
	if err != nil {
		return persistence.NewEntityError("Save", r.kind, id, err)
	}

	return nil
}

func (r *repository[T]) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewEntityError("Delete", r.kind, id, persistence.NotFound(r.kind))
		}

		return persistence.NewEntityError("Delete", r.kind, id, err)
	}

	return nil
}
