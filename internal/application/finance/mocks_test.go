package finance

import (
	"context"
	"sync"
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCardStorage is a mock implementation of finance.CardStorage
type MockCardStorage struct {
	mock.Mock
}

func (m *MockCardStorage) List(ctx context.Context, memberID uuid.UUID) ([]finance.StoredCard, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.StoredCard), args.Error(1)
}

func (m *MockCardStorage) Create(ctx context.Context, memberID uuid.UUID, reg finance.CardRegistration) (*finance.StoredCard, error) {
	args := m.Called(ctx, memberID, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.StoredCard), args.Error(1)
}

func (m *MockCardStorage) SetDefault(ctx context.Context, memberID, cardID uuid.UUID) error {
	args := m.Called(ctx, memberID, cardID)
	return args.Error(0)
}

// MockCardRemover is a mock implementation of finance.CardRemover
type MockCardRemover struct {
	mock.Mock
}

func (m *MockCardRemover) Delete(ctx context.Context, memberID, cardID uuid.UUID) error {
	args := m.Called(ctx, memberID, cardID)
	return args.Error(0)
}

// MockBilling is a mock implementation of finance.Billing
type MockBilling struct {
	mock.Mock
}

func (m *MockBilling) Submit(ctx context.Context, snapshot finance.SessionSnapshot) (*finance.ChargeResult, error) {
	args := m.Called(ctx, snapshot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.ChargeResult), args.Error(1)
}

// MockMemberLookup is a mock implementation of finance.MemberLookup
type MockMemberLookup struct {
	mock.Mock
}

func (m *MockMemberLookup) Resolve(ctx context.Context, memberID uuid.UUID) (*finance.MemberProfile, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.MemberProfile), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockGatewayFrame is a mock implementation of finance.GatewayFrame
type MockGatewayFrame struct {
	mock.Mock
}

func (m *MockGatewayFrame) FrameURL(req finance.FrameRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

// fakeGateway records subscriptions and lets tests deliver results
// synchronously through the registered handler
type fakeGateway struct {
	mu            sync.Mutex
	subscriptions []*fakeSubscription
	published     []finance.GatewayMessage
}

type fakeSubscription struct {
	mu        sync.Mutex
	sessionID uuid.UUID
	handler   finance.GatewayResultHandler
	closed    bool
}

func (s *fakeSubscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (g *fakeGateway) Subscribe(ctx context.Context, sessionID uuid.UUID, handler finance.GatewayResultHandler) (finance.GatewaySubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub := &fakeSubscription{sessionID: sessionID, handler: handler}
	g.subscriptions = append(g.subscriptions, sub)
	return sub, nil
}

func (g *fakeGateway) Publish(ctx context.Context, sessionID uuid.UUID, msg finance.GatewayMessage) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published = append(g.published, msg)
	for _, sub := range g.subscriptions {
		if sub.sessionID == sessionID && !sub.isClosed() {
			return true
		}
	}
	return false
}

func (g *fakeGateway) last() *fakeSubscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.subscriptions) == 0 {
		return nil
	}
	return g.subscriptions[len(g.subscriptions)-1]
}

// recordingMetrics counts recorded measurements by name
type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counts: make(map[string]int)}
}

func (r *recordingMetrics) inc(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name]++
}

func (r *recordingMetrics) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

func (r *recordingMetrics) RecordSessionStarted(context.Context) { r.inc("started") }
func (r *recordingMetrics) RecordSessionClosed(_ context.Context, reason string) {
	r.inc("closed:" + reason)
}
func (r *recordingMetrics) RecordTokenization(_ context.Context, source, result string) {
	r.inc("tokenize:" + source + ":" + result)
}
func (r *recordingMetrics) RecordGatewayTimeout(context.Context) { r.inc("gateway_timeout") }
func (r *recordingMetrics) RecordSubmission(_ context.Context, outcome string, _ time.Duration) {
	r.inc("submit:" + outcome)
}
