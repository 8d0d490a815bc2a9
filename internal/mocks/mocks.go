package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"portal-service/internal/models"
)

// MockSocialSource mocks the social API as seen by the connection reconciler.
type MockSocialSource struct {
	mock.Mock
}

func (m *MockSocialSource) ListConnections(ctx context.Context) ([]models.Connection, error) {
	args := m.Called(ctx)
	var conns []models.Connection
	if val := args.Get(0); val != nil {
		conns = val.([]models.Connection)
	}
	return conns, args.Error(1)
}

func (m *MockSocialSource) ListReceivedRequests(ctx context.Context) ([]models.ConnectionRequest, error) {
	args := m.Called(ctx)
	var reqs []models.ConnectionRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.ConnectionRequest)
	}
	return reqs, args.Error(1)
}

func (m *MockSocialSource) ListSentRequests(ctx context.Context) ([]models.ConnectionRequest, error) {
	args := m.Called(ctx)
	var reqs []models.ConnectionRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.ConnectionRequest)
	}
	return reqs, args.Error(1)
}

func (m *MockSocialSource) ListSuggestions(ctx context.Context, page models.Page) ([]models.User, error) {
	args := m.Called(ctx, page)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *MockSocialSource) ListUsers(ctx context.Context, page models.Page) ([]models.User, error) {
	args := m.Called(ctx, page)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *MockSocialSource) SendConnectionRequest(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSocialSource) AcceptRequest(ctx context.Context, requestID string) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

func (m *MockSocialSource) DeclineRequest(ctx context.Context, requestID string) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

func (m *MockSocialSource) RemoveConnection(ctx context.Context, connectionID string) error {
	args := m.Called(ctx, connectionID)
	return args.Error(0)
}

// MockPublisher mocks rabbitmq.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
