package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

// FunnelRepository handles funnel-related database operations.
type FunnelRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFunnelRepository creates a new funnel repository.
func NewFunnelRepository(db *sql.DB, logger *slog.Logger) *FunnelRepository {
	return &FunnelRepository{db: db, logger: logger}
}

// GetAll returns all funnel definitions.
func (r *FunnelRepository) GetAll(ctx context.Context) ([]*models.Funnel, error) {
	query := `
		SELECT
			id
		  , name
		  , trigger
		  , is_active
		  , nodes
		  , start_node_id
		FROM funnels
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnels: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	funnels := make([]*models.Funnel, 0)

	for rows.Next() {
		funnel, err := scanFunnel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan funnel: %w", err)
		}

		funnels = append(funnels, funnel)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating funnels: %w", err)
	}

	return funnels, nil
}

// GetByID returns one funnel definition.
func (r *FunnelRepository) GetByID(ctx context.Context, id string) (*models.Funnel, error) {
	query := `
		SELECT
			id
		  , name
		  , trigger
		  , is_active
		  , nodes
		  , start_node_id
		FROM funnels
		WHERE id = $1
	`

	funnel, err := scanFunnel(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFunnelError("GetByID", id, persistence.ErrFunnelNotFound)
		}

		return nil, persistence.NewFunnelError("GetByID", id, err)
	}

	return funnel, nil
}

// Save upserts a funnel definition.
func (r *FunnelRepository) Save(ctx context.Context, funnel *models.Funnel) error {
	nodes, err := json.Marshal(funnel.Nodes)
	if err != nil {
		return persistence.NewFunnelError("Save", funnel.ID, err)
	}

	query := `
		INSERT INTO funnels (id, name, trigger, is_active, nodes, start_node_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , trigger = EXCLUDED.trigger
		  , is_active = EXCLUDED.is_active
		  , nodes = EXCLUDED.nodes
		  , start_node_id = EXCLUDED.start_node_id
	`

	_, err = r.db.ExecContext(ctx, query,
		funnel.ID, funnel.Name, funnel.Trigger, funnel.IsActive, nodes, funnel.StartNodeID)
	if err != nil {
		return persistence.NewFunnelError("Save", funnel.ID, err)
	}

	return nil
}

// Delete removes a funnel definition.
func (r *FunnelRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM funnels WHERE id = $1", id)
	if err != nil {
		return persistence.NewFunnelError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFunnelError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewFunnelError("Delete", id, persistence.ErrFunnelNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFunnel(row rowScanner) (*models.Funnel, error) {
	var (
		funnel    models.Funnel
		nodesJSON []byte
	)

	err := row.Scan(
		&funnel.ID,
		&funnel.Name,
		&funnel.Trigger,
		&funnel.IsActive,
		&nodesJSON,
		&funnel.StartNodeID,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(nodesJSON, &funnel.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nodes of funnel %s: %w", funnel.ID, err)
	}

	return &funnel, nil
}
