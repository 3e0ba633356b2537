// Package file provides a file-based persistence implementation. Every record
// is one JSON document under a per-collection directory, which keeps local
// development and tests free of external dependencies.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

const (
	funnelsDir    = "funnels"
	executionsDir = "executions"
	leadsDir      = "leads"
	templatesDir  = "templates"
)

// Persistence implements persistence.Persistence on top of the file system.
type Persistence struct {
	root string

	// Guards read-modify-write cycles on single records (execution patches,
	// lead upserts). The file system offers no atomic partial update.
	mu sync.Mutex
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix on the root is accepted and stripped.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.TrimPrefix(root, "file://")}
}

// Close performs any necessary cleanup. There is nothing to clean up for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) collectionPath(collection string) string {
	return filepath.Join(p.root, collection)
}

func (p *Persistence) recordPath(collection, id string) string {
	return filepath.Join(p.root, collection, id+".json")
}

func (p *Persistence) writeRecord(collection, id string, record any) error {
	dir := p.collectionPath(collection)

	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s record %s: %w", collection, id, err)
	}

	err = os.WriteFile(p.recordPath(collection, id), payload, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write %s record %s: %w", collection, id, err)
	}

	return nil
}

func (p *Persistence) readRecord(collection, id string, record any) error {
	payload, err := os.ReadFile(p.recordPath(collection, id))
	if err != nil {
		return err
	}

	return json.Unmarshal(payload, record)
}

// listIDs returns the record ids of a collection. A missing collection
// directory is an empty collection.
func (p *Persistence) listIDs(collection string) ([]string, error) {
	entries, err := fs.Glob(os.DirFS(p.collectionPath(collection)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", collection, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, strings.TrimSuffix(entry, ".json"))
	}

	return ids, nil
}

// Funnels returns all stored funnel definitions.
func (p *Persistence) Funnels(ctx context.Context) ([]*models.Funnel, error) {
	ids, err := p.listIDs(funnelsDir)
	if err != nil {
		return nil, err
	}

	funnels := make([]*models.Funnel, 0, len(ids))

	for _, id := range ids {
		funnel, err := p.FunnelByID(ctx, id)
		if err != nil {
			return nil, err
		}

		funnels = append(funnels, funnel)
	}

	return funnels, nil
}

// FunnelByID loads one funnel definition.
func (p *Persistence) FunnelByID(_ context.Context, id string) (*models.Funnel, error) {
	var funnel models.Funnel

	err := p.readRecord(funnelsDir, id, &funnel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewFunnelError("GetByID", id, persistence.ErrFunnelNotFound)
		}

		return nil, persistence.NewFunnelError("GetByID", id, err)
	}

	return &funnel, nil
}

// SaveFunnel upserts a funnel definition.
func (p *Persistence) SaveFunnel(_ context.Context, funnel *models.Funnel) error {
	err := p.writeRecord(funnelsDir, funnel.ID, funnel)
	if err != nil {
		return persistence.NewFunnelError("Save", funnel.ID, err)
	}

	return nil
}

// DeleteFunnel removes a funnel definition.
func (p *Persistence) DeleteFunnel(_ context.Context, id string) error {
	err := os.Remove(p.recordPath(funnelsDir, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return persistence.NewFunnelError("Delete", id, persistence.ErrFunnelNotFound)
		}

		return persistence.NewFunnelError("Delete", id, err)
	}

	return nil
}

// Executions returns all funnel executions, completed ones included.
func (p *Persistence) Executions(_ context.Context) ([]*models.FunnelExecution, error) {
	ids, err := p.listIDs(executionsDir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.FunnelExecution, 0, len(ids))

	for _, id := range ids {
		var execution models.FunnelExecution

		err := p.readRecord(executionsDir, id, &execution)
		if err != nil {
			return nil, persistence.NewExecutionError("GetAll", id, err)
		}

		executions = append(executions, &execution)
	}

	return executions, nil
}

// CreateExecution stores a new funnel execution.
func (p *Persistence) CreateExecution(_ context.Context, execution *models.FunnelExecution) error {
	err := p.writeRecord(executionsDir, execution.ID, execution)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// UpdateExecution applies a partial patch to one execution record.
func (p *Persistence) UpdateExecution(_ context.Context, id string, patch persistence.ExecutionPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var execution models.FunnelExecution

	err := p.readRecord(executionsDir, id, &execution)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return persistence.NewExecutionError("Update", id, persistence.ErrExecutionNotFound)
		}

		return persistence.NewExecutionError("Update", id, err)
	}

	if patch.Status != nil {
		execution.Status = *patch.Status
	}

	if patch.SetCurrentNode {
		execution.CurrentNodeID = patch.CurrentNodeID
	}

	if patch.NextRunAt != nil {
		execution.NextRunAt = *patch.NextRunAt
	}

	if patch.History != nil {
		execution.History = patch.History
	}

	err = p.writeRecord(executionsDir, id, &execution)
	if err != nil {
		return persistence.NewExecutionError("Update", id, err)
	}

	return nil
}

// Leads returns all leads.
func (p *Persistence) Leads(_ context.Context) ([]*models.Lead, error) {
	ids, err := p.listIDs(leadsDir)
	if err != nil {
		return nil, err
	}

	leads := make([]*models.Lead, 0, len(ids))

	for _, id := range ids {
		var lead models.Lead

		err := p.readRecord(leadsDir, id, &lead)
		if err != nil {
			return nil, fmt.Errorf("failed to load lead %s: %w", id, err)
		}

		leads = append(leads, &lead)
	}

	return leads, nil
}

// LeadByID loads one lead.
func (p *Persistence) LeadByID(_ context.Context, id string) (*models.Lead, error) {
	var lead models.Lead

	err := p.readRecord(leadsDir, id, &lead)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrLeadNotFound
		}

		return nil, fmt.Errorf("failed to load lead %s: %w", id, err)
	}

	return &lead, nil
}

// SaveLead upserts a lead by id.
func (p *Persistence) SaveLead(_ context.Context, lead *models.Lead) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.writeRecord(leadsDir, lead.ID, lead)
	if err != nil {
		return fmt.Errorf("failed to save lead %s: %w", lead.ID, err)
	}

	return nil
}

// TemplateByID loads one internal WhatsApp message template.
func (p *Persistence) TemplateByID(_ context.Context, id string) (*models.MessageTemplate, error) {
	var template models.MessageTemplate

	err := p.readRecord(templatesDir, id, &template)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to load template %s: %w", id, err)
	}

	return &template, nil
}

// SaveTemplate upserts an internal WhatsApp message template.
func (p *Persistence) SaveTemplate(_ context.Context, template *models.MessageTemplate) error {
	err := p.writeRecord(templatesDir, template.ID, template)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}

	return nil
}
