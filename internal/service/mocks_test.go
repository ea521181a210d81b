package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/bi-assistant/internal/domain"
)

// MockPlanner mocks the QueryPlanner interface
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Plan(ctx context.Context, req domain.PlanRequest) (*domain.PlanResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlanResponse), args.Error(1)
}

// MockArchive mocks the SessionArchive interface
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Save(ctx context.Context, snapshot *domain.SessionSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockArchive) Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionSnapshot), args.Error(1)
}

func (m *MockArchive) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockArchive) ListByUser(ctx context.Context, userID string, limit int) ([]string, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockArchive) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockArchive) Close() error {
	args := m.Called()
	return args.Error(0)
}
