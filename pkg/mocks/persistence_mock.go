// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

// MockPersistence is a mock implementation of the persistence.Persistence
// interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Funnels(ctx context.Context) ([]*models.Funnel, error) {
	args := m.Called(ctx)

	funnels, _ := args.Get(0).([]*models.Funnel)

	return funnels, args.Error(1)
}

func (m *MockPersistence) FunnelByID(ctx context.Context, id string) (*models.Funnel, error) {
	args := m.Called(ctx, id)

	funnel, _ := args.Get(0).(*models.Funnel)

	return funnel, args.Error(1)
}

func (m *MockPersistence) SaveFunnel(ctx context.Context, funnel *models.Funnel) error {
	args := m.Called(ctx, funnel)

	return args.Error(0)
}

func (m *MockPersistence) DeleteFunnel(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) Executions(ctx context.Context) ([]*models.FunnelExecution, error) {
	args := m.Called(ctx)

	executions, _ := args.Get(0).([]*models.FunnelExecution)

	return executions, args.Error(1)
}

func (m *MockPersistence) CreateExecution(ctx context.Context, execution *models.FunnelExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockPersistence) UpdateExecution(ctx context.Context, id string, patch persistence.ExecutionPatch) error {
	args := m.Called(ctx, id, patch)

	return args.Error(0)
}

func (m *MockPersistence) Leads(ctx context.Context) ([]*models.Lead, error) {
	args := m.Called(ctx)

	leads, _ := args.Get(0).([]*models.Lead)

	return leads, args.Error(1)
}

func (m *MockPersistence) LeadByID(ctx context.Context, id string) (*models.Lead, error) {
	args := m.Called(ctx, id)

	lead, _ := args.Get(0).(*models.Lead)

	return lead, args.Error(1)
}

func (m *MockPersistence) SaveLead(ctx context.Context, lead *models.Lead) error {
	args := m.Called(ctx, lead)

	return args.Error(0)
}

func (m *MockPersistence) TemplateByID(ctx context.Context, id string) (*models.MessageTemplate, error) {
	args := m.Called(ctx, id)

	template, _ := args.Get(0).(*models.MessageTemplate)

	return template, args.Error(1)
}

func (m *MockPersistence) SaveTemplate(ctx context.Context, template *models.MessageTemplate) error {
	args := m.Called(ctx, template)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
