package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSubscriptionTimeout = 10 * time.Minute
	defaultDedupeTTL           = time.Hour
	defaultInboxSize           = 16
	dedupeKeyPrefix            = "gateway:result:"
)

var ErrGatewayAdapterClosed = errors.New("payment: gateway message adapter is closed")

// GatewayMessageAdapterConfig configures the adapter
type GatewayMessageAdapterConfig struct {
	// Normalizer decides which frame messages are results. Required.
	Normalizer *finance.GatewayMessageNormalizer
	// Dedupe drops repeated results. Optional.
	Dedupe shared.IdempotencyStore
	// Timeout is how long a subscription waits for a result
	Timeout time.Duration
	// DedupeTTL is how long a delivered result is remembered
	DedupeTTL time.Duration
	// InboxSize bounds the messages queued per subscription
	InboxSize int
	Logger    *zap.Logger
}

// GatewayMessageAdapter connects the frame message channel to session
// handlers. Raw messages relayed by the console are queued per
// subscription and normalized on the subscription's own goroutine, so
// handler calls for one subscription never overlap.
type GatewayMessageAdapter struct {
	normalizer *finance.GatewayMessageNormalizer
	dedupe     shared.IdempotencyStore
	timeout    time.Duration
	dedupeTTL  time.Duration
	inboxSize  int
	logger     *zap.Logger

	mu     sync.Mutex
	subs   map[uuid.UUID]map[*gatewaySubscription]struct{}
	closed bool
}

// NewGatewayMessageAdapter creates an adapter
func NewGatewayMessageAdapter(config GatewayMessageAdapterConfig) *GatewayMessageAdapter {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultSubscriptionTimeout
	}
	ttl := config.DedupeTTL
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	inbox := config.InboxSize
	if inbox <= 0 {
		inbox = defaultInboxSize
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizer := config.Normalizer
	if normalizer == nil {
		normalizer = finance.NewGatewayMessageNormalizer(defaultTranzilaDomain)
	}
	return &GatewayMessageAdapter{
		normalizer: normalizer,
		dedupe:     config.Dedupe,
		timeout:    timeout,
		dedupeTTL:  ttl,
		inboxSize:  inbox,
		logger:     logger,
		subs:       make(map[uuid.UUID]map[*gatewaySubscription]struct{}),
	}
}

// Subscribe implements finance.GatewayResultSource. ctx is passed to the
// handler callbacks and must outlive the request that opened the frame.
func (a *GatewayMessageAdapter) Subscribe(ctx context.Context, sessionID uuid.UUID, handler finance.GatewayResultHandler) (finance.GatewaySubscription, error) {
	if handler == nil {
		return nil, errors.New("payment: gateway result handler is required")
	}

	sub := &gatewaySubscription{
		adapter:   a,
		ctx:       ctx,
		sessionID: sessionID,
		handler:   handler,
		inbox:     make(chan finance.GatewayMessage, a.inboxSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrGatewayAdapterClosed
	}
	set, ok := a.subs[sessionID]
	if !ok {
		set = make(map[*gatewaySubscription]struct{})
		a.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	a.mu.Unlock()

	go sub.run(a.timeout)

	a.logger.Debug("gateway subscription opened",
		zap.String("session_id", sessionID.String()),
		zap.Duration("timeout", a.timeout))
	return sub, nil
}

// Publish implements finance.GatewayMessageRelay. The message is queued
// for every open subscription of the session; a full inbox drops it.
func (a *GatewayMessageAdapter) Publish(ctx context.Context, sessionID uuid.UUID, msg finance.GatewayMessage) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	accepted := false
	for sub := range a.subs[sessionID] {
		select {
		case sub.inbox <- msg:
			accepted = true
		default:
			a.logger.Warn("gateway inbox full, message dropped",
				zap.String("session_id", sessionID.String()),
				zap.String("origin", msg.Origin))
		}
	}
	return accepted
}

// OpenSubscriptions returns the number of open subscriptions
func (a *GatewayMessageAdapter) OpenSubscriptions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, set := range a.subs {
		n += len(set)
	}
	return n
}

// Close releases every subscription. Later Subscribe calls fail.
func (a *GatewayMessageAdapter) Close() {
	a.mu.Lock()
	a.closed = true
	var all []*gatewaySubscription
	for _, set := range a.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	a.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

// remove unregisters sub and reports whether it was still registered
func (a *GatewayMessageAdapter) remove(sub *gatewaySubscription) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.subs[sub.sessionID]
	if !ok {
		return false
	}
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(a.subs, sub.sessionID)
	}
	return true
}

// interpret normalizes a message and applies dedupe. A nil result means
// drop. The returned key is set when the result was marked processed.
func (a *GatewayMessageAdapter) interpret(ctx context.Context, sessionID uuid.UUID, msg finance.GatewayMessage) (*finance.GatewayResult, string) {
	result, err := a.normalizer.Normalize(msg)
	if err != nil {
		a.logger.Debug("gateway message dropped",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		return nil, ""
	}

	key := result.DedupeKey()
	if a.dedupe == nil || key == "" {
		return result, ""
	}
	key = dedupeKeyPrefix + sessionID.String() + ":" + key
	fresh, err := a.dedupe.MarkProcessed(ctx, key, a.dedupeTTL)
	if err != nil {
		a.logger.Warn("gateway result dedupe failed, delivering anyway",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		return result, ""
	}
	if !fresh {
		a.logger.Debug("duplicate gateway result ignored",
			zap.String("session_id", sessionID.String()),
			zap.String("key", key))
		return nil, ""
	}
	return result, key
}

// deliver hands result to the handler. When the handler fails the dedupe
// key is released so the gateway can post the result again.
func (a *GatewayMessageAdapter) deliver(ctx context.Context, sub *gatewaySubscription, result finance.GatewayResult, key string) {
	err := sub.handler.OnGatewayResult(ctx, result)
	if err == nil || key == "" {
		return
	}
	a.logger.Warn("gateway result not applied, accepting a repost",
		zap.String("session_id", sub.sessionID.String()),
		zap.Error(err))
	if err := a.dedupe.Release(ctx, key); err != nil {
		a.logger.Warn("failed to release gateway result key",
			zap.String("session_id", sub.sessionID.String()),
			zap.Error(err))
	}
}

// gatewaySubscription is one session's listen on the message channel
type gatewaySubscription struct {
	adapter   *GatewayMessageAdapter
	ctx       context.Context
	sessionID uuid.UUID
	handler   finance.GatewayResultHandler
	inbox     chan finance.GatewayMessage
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *gatewaySubscription) run(timeout time.Duration) {
	defer close(s.done)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case msg := <-s.inbox:
			select {
			case <-s.stop:
				return
			default:
			}
			if result, key := s.adapter.interpret(s.ctx, s.sessionID, msg); result != nil {
				s.adapter.deliver(s.ctx, s, *result, key)
			}
		case <-timer.C:
			if s.adapter.remove(s) {
				s.adapter.logger.Info("gateway subscription timed out",
					zap.String("session_id", s.sessionID.String()))
				s.handler.OnGatewayTimeout(s.ctx)
			}
			return
		}
	}
}

// Close implements finance.GatewaySubscription. It waits for an in-flight
// delivery to finish, so it must not be called from a handler callback.
func (s *gatewaySubscription) Close() {
	s.closeOnce.Do(func() {
		s.adapter.remove(s)
		close(s.stop)
	})
	<-s.done
}

var (
	_ finance.GatewayResultSource = (*GatewayMessageAdapter)(nil)
	_ finance.GatewayMessageRelay = (*GatewayMessageAdapter)(nil)
)
