package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

// ExecutionRepository handles funnel execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// GetAll returns all funnel executions.
func (r *ExecutionRepository) GetAll(ctx context.Context) ([]*models.FunnelExecution, error) {
	query := `
		SELECT
			id
		  , funnel_id
		  , lead_id
		  , current_node_id
		  , status
		  , next_run_at
		  , history
		  , context
		FROM funnel_executions
		ORDER BY next_run_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.FunnelExecution, 0)

	for rows.Next() {
		var (
			execution   models.FunnelExecution
			historyJSON []byte
			contextJSON []byte
		)

		err := rows.Scan(
			&execution.ID,
			&execution.FunnelID,
			&execution.LeadID,
			&execution.CurrentNodeID,
			&execution.Status,
			&execution.NextRunAt,
			&historyJSON,
			&contextJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		err = json.Unmarshal(historyJSON, &execution.History)
		if err != nil {
			return nil, persistence.NewExecutionError("GetAll", execution.ID, err)
		}

		err = json.Unmarshal(contextJSON, &execution.Context)
		if err != nil {
			return nil, persistence.NewExecutionError("GetAll", execution.ID, err)
		}

		executions = append(executions, &execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

// Create stores a new funnel execution.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.FunnelExecution) error {
	history, err := json.Marshal(executionHistory(execution.History))
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	contextData, err := json.Marshal(executionContext(execution.Context))
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	query := `
		INSERT INTO funnel_executions
			(id, funnel_id, lead_id, current_node_id, status, next_run_at, history, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.FunnelID, execution.LeadID, execution.CurrentNodeID,
		execution.Status, execution.NextRunAt, history, contextData)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// Update applies a partial patch to one execution record. Only supplied fields
// are mutated.
func (r *ExecutionRepository) Update(ctx context.Context, id string, patch persistence.ExecutionPatch) error {
	assignments := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		assignments = append(assignments, fmt.Sprintf("status = $%d", len(args)))
	}

	if patch.SetCurrentNode {
		args = append(args, patch.CurrentNodeID)
		assignments = append(assignments, fmt.Sprintf("current_node_id = $%d", len(args)))
	}

	if patch.NextRunAt != nil {
		args = append(args, *patch.NextRunAt)
		assignments = append(assignments, fmt.Sprintf("next_run_at = $%d", len(args)))
	}

	if patch.History != nil {
		history, err := json.Marshal(patch.History)
		if err != nil {
			return persistence.NewExecutionError("Update", id, err)
		}

		args = append(args, history)
		assignments = append(assignments, fmt.Sprintf("history = $%d", len(args)))
	}

	if len(assignments) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE funnel_executions SET %s WHERE id = $%d",
		strings.Join(assignments, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewExecutionError("Update", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Update", id, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Update", id, persistence.ErrExecutionNotFound)
	}

	return nil
}

// executionHistory coerces a nil history to an empty JSON array.
func executionHistory(history []models.HistoryEntry) []models.HistoryEntry {
	if history == nil {
		return []models.HistoryEntry{}
	}

	return history
}

// executionContext coerces a nil context to an empty JSON object.
func executionContext(contextData map[string]string) map[string]string {
	if contextData == nil {
		return map[string]string{}
	}

	return contextData
}
