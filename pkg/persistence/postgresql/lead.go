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

// LeadRepository handles lead database operations.
type LeadRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(db *sql.DB, logger *slog.Logger) *LeadRepository {
	return &LeadRepository{db: db, logger: logger}
}

const leadColumns = `
	id
  , email
  , name
  , phone
  , external_id
  , source
  , status
  , pipeline_stage
  , tags
  , created_at
`

// GetAll returns all leads.
func (r *LeadRepository) GetAll(ctx context.Context) ([]*models.Lead, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+leadColumns+" FROM leads ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	leads := make([]*models.Lead, 0)

	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		leads = append(leads, lead)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

// GetByID returns one lead.
func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	lead, err := scanLead(r.db.QueryRowContext(ctx,
		"SELECT "+leadColumns+" FROM leads WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrLeadNotFound
		}

		return nil, fmt.Errorf("failed to scan lead %s: %w", id, err)
	}

	return lead, nil
}

// Save upserts a lead; email conflicts resolve to an update of the existing
// record so subscribing twice with the same address stays idempotent.
func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	tags, err := json.Marshal(lead.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags of lead %s: %w", lead.ID, err)
	}

	query := `
		INSERT INTO leads
			(id, email, name, phone, external_id, source, status, pipeline_stage, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name
		  , phone = EXCLUDED.phone
		  , status = EXCLUDED.status
		  , pipeline_stage = EXCLUDED.pipeline_stage
		  , tags = EXCLUDED.tags
	`

	_, err = r.db.ExecContext(ctx, query,
		lead.ID, lead.Email, lead.Name, lead.Phone, nullable(lead.ExternalID),
		nullable(lead.Source), lead.Status, nullable(lead.PipelineStage), tags, lead.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save lead %s: %w", lead.ID, err)
	}

	return nil
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var (
		lead          models.Lead
		externalID    sql.NullString
		source        sql.NullString
		pipelineStage sql.NullString
		tagsJSON      []byte
	)

	err := row.Scan(
		&lead.ID,
		&lead.Email,
		&lead.Name,
		&lead.Phone,
		&externalID,
		&source,
		&lead.Status,
		&pipelineStage,
		&tagsJSON,
		&lead.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.ExternalID = externalID.String
	lead.Source = source.String
	lead.PipelineStage = pipelineStage.String

	err = json.Unmarshal(tagsJSON, &lead.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tags of lead %s: %w", lead.ID, err)
	}

	return &lead, nil
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
