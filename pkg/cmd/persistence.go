package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ojmachado/leadflow/pkg/persistence"
	"github.com/ojmachado/leadflow/pkg/persistence/file"
	"github.com/ojmachado/leadflow/pkg/persistence/postgresql"
)

// NewPersistence picks a storage backend from the database URL scheme.
// A postgres:// URL opens PostgreSQL; anything else is treated as a
// filesystem root for the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	scheme, _, found := strings.Cut(databaseURL, "://")

	if found && (scheme == "postgres" || scheme == "postgresql") {
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgresql persistence: %w", err)
		}

		return store, nil
	}

	root := strings.TrimPrefix(databaseURL, "file://")

	return file.NewPersistence(root), nil
}
