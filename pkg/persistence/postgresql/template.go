package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

// TemplateRepository handles WhatsApp message template database operations.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

// GetByID returns one message template.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.MessageTemplate, error) {
	var template models.MessageTemplate

	err := r.db.QueryRowContext(ctx,
		"SELECT id, title, content, type FROM message_templates WHERE id = $1", id).
		Scan(&template.ID, &template.Title, &template.Content, &template.Type)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan template %s: %w", id, err)
	}

	return &template, nil
}

// Save upserts a message template.
func (r *TemplateRepository) Save(ctx context.Context, template *models.MessageTemplate) error {
	query := `
		INSERT INTO message_templates (id, title, content, type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title
		  , content = EXCLUDED.content
		  , type = EXCLUDED.type
	`

	_, err := r.db.ExecContext(ctx, query, template.ID, template.Title, template.Content, template.Type)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}

	return nil
}
