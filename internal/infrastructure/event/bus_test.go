package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// testEvent implements DomainEvent for testing
type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, finance.AggregateTypePaymentSession, uuid.New()),
	}
}

// testHandler implements EventHandler for testing
type testHandler struct {
	eventTypes []string
	err        error
	panics     bool

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("handler exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	submitted := newTestHandler(finance.EventTypePaymentSessionSubmitted)
	cancelled := newTestHandler(finance.EventTypePaymentSessionCancelled)
	all := newTestHandler()
	bus.Subscribe(submitted)
	bus.Subscribe(cancelled)
	bus.Subscribe(all)

	err := bus.Publish(context.Background(),
		newTestEvent(finance.EventTypePaymentSessionSubmitted),
		newTestEvent(finance.EventTypeCardTokenized),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, submitted.count())
	assert.Equal(t, 0, cancelled.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_SubscribeOverridesEventTypes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := newTestHandler(finance.EventTypePaymentSessionSubmitted)
	bus.Subscribe(h, finance.EventTypeCardTokenized)

	bus.Publish(context.Background(), newTestEvent(finance.EventTypePaymentSessionSubmitted))
	bus.Publish(context.Background(), newTestEvent(finance.EventTypeCardTokenized))

	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_FailingHandlersAreIsolated(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := newTestHandler(finance.EventTypePaymentSessionSubmitted)
	failing.err = errors.New("purge failed")
	panicking := newTestHandler(finance.EventTypePaymentSessionSubmitted)
	panicking.panics = true
	healthy := newTestHandler(finance.EventTypePaymentSessionSubmitted)

	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent(finance.EventTypePaymentSessionSubmitted))
	require.NoError(t, err)

	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 2, recorded.FilterMessage("handler failed to process event").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := newTestHandler()
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	bus.Publish(context.Background(), newTestEvent(finance.EventTypePaymentSessionCancelled))
	assert.Equal(t, 0, h.count())
}

func TestAuditLogHandler(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	bus := NewInMemoryEventBus(nil)
	bus.Subscribe(NewAuditLogHandler(zap.New(core)))

	event := newTestEvent(finance.EventTypePaymentSessionSubmitted)
	bus.Publish(context.Background(), event)

	logs := recorded.FilterMessage("domain event").All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, finance.EventTypePaymentSessionSubmitted, fields["event_type"])
	assert.Equal(t, event.AggregateID().String(), fields["aggregate_id"])
}
