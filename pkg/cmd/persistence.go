package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/persistence/file"
	"github.com/fera765/flui/pkg/persistence/memory"
	"github.com/fera765/flui/pkg/persistence/postgresql"
)

// NewPersistence selects the storage adapter from the database URL scheme.
// A URL without a scheme is a directory for the file adapter.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		provider, rest = "file", databaseURL
	}

	switch provider {
	case "memory":
		return memory.NewPersistence(), nil
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	case "file":
		return file.NewPersistence(rest), nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
