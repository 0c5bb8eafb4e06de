package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockCardStorage struct {
	mock.Mock
}

func (m *MockCardStorage) List(ctx context.Context, memberID uuid.UUID) ([]StoredCard, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StoredCard), args.Error(1)
}

func (m *MockCardStorage) Create(ctx context.Context, memberID uuid.UUID, reg CardRegistration) (*StoredCard, error) {
	args := m.Called(ctx, memberID, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StoredCard), args.Error(1)
}

func (m *MockCardStorage) SetDefault(ctx context.Context, memberID, cardID uuid.UUID) error {
	args := m.Called(ctx, memberID, cardID)
	return args.Error(0)
}

type MockBilling struct {
	mock.Mock
}

func (m *MockBilling) Submit(ctx context.Context, snapshot SessionSnapshot) (*ChargeResult, error) {
	args := m.Called(ctx, snapshot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChargeResult), args.Error(1)
}
