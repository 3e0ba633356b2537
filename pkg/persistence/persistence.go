// Package persistence provides the data storage abstraction for funnels,
// funnel executions, leads and message templates.
package persistence

import (
	"context"
	"time"

	"github.com/ojmachado/leadflow/pkg/models"
)

// ExecutionPatch is a partial update of a funnel execution. Nil pointer fields
// are left untouched. SetCurrentNode must be true for CurrentNodeID to be
// applied, so the node pointer can be set to nil (terminal) explicitly.
type ExecutionPatch struct {
	Status         *models.ExecutionStatus
	SetCurrentNode bool
	CurrentNodeID  *string
	NextRunAt      *time.Time
	History        []models.HistoryEntry
}

// FunnelRepository stores funnel definitions.
type FunnelRepository interface {
	Funnels(ctx context.Context) ([]*models.Funnel, error)
	FunnelByID(ctx context.Context, id string) (*models.Funnel, error)
	SaveFunnel(ctx context.Context, funnel *models.Funnel) error
	DeleteFunnel(ctx context.Context, id string) error
}

// ExecutionRepository stores running funnel executions. UpdateExecution applies
// partial field patches; each call is a single-record operation with no
// multi-row transactional guarantee.
type ExecutionRepository interface {
	Executions(ctx context.Context) ([]*models.FunnelExecution, error)
	CreateExecution(ctx context.Context, execution *models.FunnelExecution) error
	UpdateExecution(ctx context.Context, id string, patch ExecutionPatch) error
}

// LeadRepository stores leads. SaveLead upserts by id.
type LeadRepository interface {
	Leads(ctx context.Context) ([]*models.Lead, error)
	LeadByID(ctx context.Context, id string) (*models.Lead, error)
	SaveLead(ctx context.Context, lead *models.Lead) error
}

// TemplateRepository stores internal WhatsApp message templates.
type TemplateRepository interface {
	TemplateByID(ctx context.Context, id string) (*models.MessageTemplate, error)
	SaveTemplate(ctx context.Context, template *models.MessageTemplate) error
}

// Persistence aggregates every repository the engine touches.
type Persistence interface {
	FunnelRepository
	ExecutionRepository
	LeadRepository
	TemplateRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
