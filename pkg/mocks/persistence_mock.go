package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/persistence/memory"
)

// MockAutomationRepository is a mock implementation of persistence.AutomationRepository.
type MockAutomationRepository struct {
	mock.Mock
}

func (m *MockAutomationRepository) GetAll(ctx context.Context) ([]*models.Automation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Automation), args.Error(1)
}

func (m *MockAutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Automation), args.Error(1)
}

func (m *MockAutomationRepository) GetByName(ctx context.Context, name string) (*models.Automation, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Automation), args.Error(1)
}

func (m *MockAutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	args := m.Called(ctx, automation)

	return args.Error(0)
}

func (m *MockAutomationRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockAutomationRepository) UpdateStatus(ctx context.Context, id string, status models.AutomationStatus) error {
	args := m.Called(ctx, id, status)

	return args.Error(0)
}

func (m *MockAutomationRepository) UpdateDetails(ctx context.Context, id, name, description string) error {
	args := m.Called(ctx, id, name, description)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Save(ctx context.Context, execution *models.ExecutionContext) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionContext, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionContext), args.Error(1)
}

func (m *MockExecutionRepository) GetByAutomation(ctx context.Context, automationID string) ([]*models.ExecutionContext, error) {
	args := m.Called(ctx, automationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionContext), args.Error(1)
}

// MockPersistence mocks automations and executions and keeps the catalog in memory.
type MockPersistence struct {
	*memory.Persistence

	AutomationRepository *MockAutomationRepository
	ExecutionRepository  *MockExecutionRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Persistence:          memory.NewPersistence(),
		AutomationRepository: &MockAutomationRepository{},
		ExecutionRepository:  &MockExecutionRepository{},
	}
}

func (m *MockPersistence) Automations() persistence.AutomationRepository {
	return m.AutomationRepository
}

func (m *MockPersistence) Executions() persistence.ExecutionRepository {
	return m.ExecutionRepository
}
