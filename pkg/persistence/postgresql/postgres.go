// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	funnelRepo    *FunnelRepository
	executionRepo *ExecutionRepository
	leadRepo      *LeadRepository
	templateRepo  *TemplateRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	postgres := &Persistence{
		db:            database,
		logger:        logger,
		funnelRepo:    NewFunnelRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
		leadRepo:      NewLeadRepository(database, logger),
		templateRepo:  NewTemplateRepository(database, logger),
	}

	migrationManager := NewMigrationManagerForPersistence(logger, database)

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Funnels(ctx context.Context) ([]*models.Funnel, error) {
	return p.funnelRepo.GetAll(ctx)
}

func (p *Persistence) FunnelByID(ctx context.Context, id string) (*models.Funnel, error) {
	return p.funnelRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveFunnel(ctx context.Context, funnel *models.Funnel) error {
	return p.funnelRepo.Save(ctx, funnel)
}

func (p *Persistence) DeleteFunnel(ctx context.Context, id string) error {
	return p.funnelRepo.Delete(ctx, id)
}

func (p *Persistence) Executions(ctx context.Context) ([]*models.FunnelExecution, error) {
	return p.executionRepo.GetAll(ctx)
}

func (p *Persistence) CreateExecution(ctx context.Context, execution *models.FunnelExecution) error {
	return p.executionRepo.Create(ctx, execution)
}

func (p *Persistence) UpdateExecution(ctx context.Context, id string, patch persistence.ExecutionPatch) error {
	return p.executionRepo.Update(ctx, id, patch)
}

func (p *Persistence) Leads(ctx context.Context) ([]*models.Lead, error) {
	return p.leadRepo.GetAll(ctx)
}

func (p *Persistence) LeadByID(ctx context.Context, id string) (*models.Lead, error) {
	return p.leadRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveLead(ctx context.Context, lead *models.Lead) error {
	return p.leadRepo.Save(ctx, lead)
}

func (p *Persistence) TemplateByID(ctx context.Context, id string) (*models.MessageTemplate, error) {
	return p.templateRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveTemplate(ctx context.Context, template *models.MessageTemplate) error {
	return p.templateRepo.Save(ctx, template)
}
