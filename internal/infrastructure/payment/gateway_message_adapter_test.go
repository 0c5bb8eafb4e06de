package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testGatewayOrigin = "https://direct.tranzila.com"
	testConsoleOrigin = "https://console.example.org"
	waitFor           = time.Second
)

func newTestAdapter(t *testing.T, config GatewayMessageAdapterConfig) *GatewayMessageAdapter {
	t.Helper()
	if config.Normalizer == nil {
		config.Normalizer = finance.NewGatewayMessageNormalizer("tranzila.com", testConsoleOrigin)
	}
	a := NewGatewayMessageAdapter(config)
	t.Cleanup(a.Close)
	return a
}

func approvedMessage(token string) finance.GatewayMessage {
	return finance.GatewayMessage{
		Origin: testGatewayOrigin,
		Data:   map[string]any{"Response": "000", "TranzilaTK": token},
	}
}

func TestGatewayMessageAdapter_DeliversResult(t *testing.T) {
	a := newTestAdapter(t, GatewayMessageAdapterConfig{})
	sessionID := uuid.New()
	h := newRecordingHandler()

	sub, err := a.Subscribe(context.Background(), sessionID, h)
	require.NoError(t, err)
	defer sub.Close()

	assert.True(t, a.Publish(context.Background(), sessionID, approvedMessage("abc123")))

	select {
	case result := <-h.results:
		assert.True(t, result.Success)
		assert.Equal(t, "abc123", result.Token)
	case <-time.After(waitFor):
		t.Fatal("result not delivered")
	}
}

func TestGatewayMessageAdapter_DropsNoise(t *testing.T) {
	a := newTestAdapter(t, GatewayMessageAdapterConfig{})
	sessionID := uuid.New()
	h := newRecordingHandler()

	sub, err := a.Subscribe(context.Background(), sessionID, h)
	require.NoError(t, err)
	defer sub.Close()

	a.Publish(context.Background(), sessionID, finance.GatewayMessage{
		Origin: testGatewayOrigin,
		Data:   map[string]any{"type": "analytics", "data": map[string]any{"page": "/checkout"}},
	})
	a.Publish(context.Background(), sessionID, finance.GatewayMessage{
		Origin: "https://evil.example",
		Data:   map[string]any{"Response": "000", "TranzilaTK": "forged"},
	})
	a.Publish(context.Background(), sessionID, approvedMessage("real"))

	select {
	case result := <-h.results:
		assert.Equal(t, "real", result.Token)
	case <-time.After(waitFor):
		t.Fatal("result not delivered")
	}
	assert.Empty(t, h.results)
}

func TestGatewayMessageAdapter_Dedupe(t *testing.T) {
	a := newTestAdapter(t, GatewayMessageAdapterConfig{Dedupe: newMemoryDedupe()})
	sessionID := uuid.New()
	h := newRecordingHandler()

	sub, err := a.Subscribe(context.Background(), sessionID, h)
	require.NoError(t, err)
	defer sub.Close()

	a.Publish(context.Background(), sessionID, approvedMessage("dup"))
	a.Publish(context.Background(), sessionID, approvedMessage("dup"))
	a.Publish(context.Background(), sessionID, approvedMessage("other"))

	var tokens []string
	for range 2 {
		select {
		case result := <-h.results:
			tokens = append(tokens, result.Token)
		case <-time.After(waitFor):
			t.Fatal("result not delivered")
		}
	}
	assert.Equal(t, []string{"dup", "other"}, tokens)
	assert.Empty(t, h.results)
}

func TestGatewayMessageAdapter_FailedDeliveryAcceptsRepost(t *testing.T) {
	a := newTestAdapter(t, GatewayMessageAdapterConfig{Dedupe: newMemoryDedupe()})
	sessionID := uuid.New()
	h := newRecordingHandler()
	h.failNext(finance.NewNetworkError("create card", errors.New("connection refused")))

	sub, err := a.Subscribe(context.Background(), sessionID, h)
	require.NoError(t, err)
	defer sub.Close()

	receive := func() string {
		select {
		case result := <-h.results:
			return result.Token
		case <-time.After(waitFor):
			t.Fatal("result not delivered")
			return ""
		}
	}

	a.Publish(context.Background(), sessionID, approvedMessage("retry"))
	assert.Equal(t, "retry", receive())

	a.Publish(context.Background(), sessionID, approvedMessage("retry"))
	assert.Equal(t, "retry", receive(), "repost after a failed delivery")

	a.Publish(context.Background(), sessionID, approvedMessage("retry"))
	a.Publish(context.Background(), sessionID, approvedMessage("next"))
	assert.Equal(t, "next", receive(), "repost after success is a duplicate")
	assert.Empty(t, h.results)
}

func TestGatewayMessageAdapter_DedupeFailureDelivers(t *testing.T) {
	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.Anything, defaultDedupeTTL).Return(false, errors.New("redis down"))
	a := newTestAdapter(t, GatewayMessageAdapterConfig{Dedupe: store})
	sessionID := uuid.New()
	h := newRecordingHandler()

	sub, err := a.Subscribe(context.Background(), sessionID, h)
	require.NoError(t, err)
	defer sub.Close()

	a.Publish(context.Background(), sessionID, approvedMessage("abc"))

	select {
	case result := <-h.results:
		assert.Equal(t, "abc", result.Token)
	case <-time.After(waitFor):
		t.Fatal("result not delivered")
	}
}

func TestGatewayMessageAdapter_PublishWithoutSubscription(t *testing.T) {
	a := newTestAdapter(t, GatewayMessageAdapterConfig{})
	assert.False(t, a.Publish(context.Background(), uuid.New(), approvedMessage("abc")))
}

func TestGatewayMessageAdapter_Close(t *testing.T) {
	a := newTestAdapter(t, GatewayMessageAdapterConfig{})
	sessionID := uuid.New()
	h := newRecordingHandler()

	sub, err := a.Subscribe(context.Background(), sessionID, h)
	require.NoError(t, err)
	assert.Equal(t, 1, a.OpenSubscriptions())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, a.OpenSubscriptions())
	assert.False(t, a.Publish(context.Background(), sessionID, approvedMessage("late")))
	assert.Empty(t, h.results)
}

func TestGatewayMessageAdapter_Timeout(t *testing.T) {
	a := newTestAdapter(t, GatewayMessageAdapterConfig{Timeout: 20 * time.Millisecond})
	sessionID := uuid.New()
	h := newRecordingHandler()

	sub, err := a.Subscribe(context.Background(), sessionID, h)
	require.NoError(t, err)

	select {
	case <-h.timeouts:
	case <-time.After(waitFor):
		t.Fatal("timeout not reported")
	}

	sub.Close()
	assert.Equal(t, 0, a.OpenSubscriptions())
	assert.Empty(t, h.timeouts)
	assert.False(t, a.Publish(context.Background(), sessionID, approvedMessage("late")))
}

func TestGatewayMessageAdapter_ClosedAdapter(t *testing.T) {
	a := newTestAdapter(t, GatewayMessageAdapterConfig{})
	sub, err := a.Subscribe(context.Background(), uuid.New(), newRecordingHandler())
	require.NoError(t, err)

	a.Close()
	sub.Close()

	_, err = a.Subscribe(context.Background(), uuid.New(), newRecordingHandler())
	assert.ErrorIs(t, err, ErrGatewayAdapterClosed)
}

func TestGatewayMessageAdapter_SessionsAreIsolated(t *testing.T) {
	a := newTestAdapter(t, GatewayMessageAdapterConfig{})
	first, second := newRecordingHandler(), newRecordingHandler()
	firstID, secondID := uuid.New(), uuid.New()

	s1, err := a.Subscribe(context.Background(), firstID, first)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := a.Subscribe(context.Background(), secondID, second)
	require.NoError(t, err)
	defer s2.Close()

	a.Publish(context.Background(), secondID, approvedMessage("second"))

	select {
	case result := <-second.results:
		assert.Equal(t, "second", result.Token)
	case <-time.After(waitFor):
		t.Fatal("result not delivered")
	}
	assert.Empty(t, first.results)
}
