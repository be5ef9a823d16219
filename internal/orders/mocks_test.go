package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateOrder(ctx context.Context, o Order, rec OutboxRecord) error {
	args := m.Called(ctx, o, rec)
	return args.Error(0)
}

func (m *MockStore) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Order), args.Error(1)
}

func (m *MockStore) ListOrdersByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

func (m *MockStore) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status Status, updatedAt time.Time) (Order, error) {
	args := m.Called(ctx, id, status, updatedAt)
	return args.Get(0).(Order), args.Error(1)
}

func (m *MockStore) GetOutbox(ctx context.Context, orderID uuid.UUID) (OutboxRecord, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(OutboxRecord), args.Error(1)
}

func (m *MockStore) UpdateOutboxState(ctx context.Context, upd OutboxUpdate) error {
	args := m.Called(ctx, upd)
	return args.Error(0)
}

func (m *MockStore) DueOutbox(ctx context.Context, limit, maxAttempts int, now time.Time) ([]OutboxRecord, error) {
	args := m.Called(ctx, limit, maxAttempts, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]OutboxRecord), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}
