package payment

import (
	"context"
	"sync"
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStoredCardRepository is a mock implementation of finance.StoredCardRepository
type MockStoredCardRepository struct {
	mock.Mock
}

func (m *MockStoredCardRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]finance.StoredCard, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.StoredCard), args.Error(1)
}

func (m *MockStoredCardRepository) Create(ctx context.Context, card *finance.StoredCard) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockStoredCardRepository) SetDefault(ctx context.Context, memberID, cardID uuid.UUID) error {
	args := m.Called(ctx, memberID, cardID)
	return args.Error(0)
}

func (m *MockStoredCardRepository) Delete(ctx context.Context, memberID, cardID uuid.UUID) error {
	args := m.Called(ctx, memberID, cardID)
	return args.Error(0)
}

// MockCardTokenizer is a mock implementation of CardTokenizer
type MockCardTokenizer struct {
	mock.Mock
}

func (m *MockCardTokenizer) Tokenize(ctx context.Context, reg finance.CardRegistration) (string, error) {
	args := m.Called(ctx, reg)
	return args.String(0), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// memoryDedupe is a minimal idempotency store for adapter tests
type memoryDedupe struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemoryDedupe() *memoryDedupe {
	return &memoryDedupe{keys: make(map[string]struct{})}
}

func (d *memoryDedupe) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.keys[key]; ok {
		return false, nil
	}
	d.keys[key] = struct{}{}
	return true, nil
}

func (d *memoryDedupe) IsProcessed(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.keys[key]
	return ok, nil
}

func (d *memoryDedupe) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

func (d *memoryDedupe) Close() error { return nil }

// recordingHandler collects gateway callbacks on channels
type recordingHandler struct {
	results  chan finance.GatewayResult
	timeouts chan struct{}

	mu   sync.Mutex
	errs []error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		results:  make(chan finance.GatewayResult, 8),
		timeouts: make(chan struct{}, 8),
	}
}

// failNext makes the following deliveries return errs in order
func (h *recordingHandler) failNext(errs ...error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, errs...)
}

func (h *recordingHandler) OnGatewayResult(_ context.Context, result finance.GatewayResult) error {
	h.mu.Lock()
	var err error
	if len(h.errs) > 0 {
		err, h.errs = h.errs[0], h.errs[1:]
	}
	h.mu.Unlock()

	h.results <- result
	return err
}

func (h *recordingHandler) OnGatewayTimeout(context.Context) {
	h.timeouts <- struct{}{}
}
