package finance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/community/console/internal/domain/finance"
	"go.uber.org/zap"
)

// sessionEntry is a hosted session plus what the service tracks around it
type sessionEntry struct {
	session    *finance.PaymentSession
	cardsError string

	mu              sync.Mutex
	member          *finance.MemberProfile
	lastSeen        time.Time
	subscription    finance.GatewaySubscription
	handler         *gatewayHandler
	gatewayDeadline time.Time
	gatewayError    string
}

func (e *sessionEntry) touch(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now.After(e.lastSeen) {
		e.lastSeen = now
	}
}

func (e *sessionEntry) idleSince(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.lastSeen)
}

func (e *sessionEntry) memberProfile() *finance.MemberProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.member
}

func (e *sessionEntry) setMemberProfile(p *finance.MemberProfile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.member = p
}

func (e *sessionEntry) setGatewayError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gatewayError = msg
}

// attachGateway stores sub if handler is still the current one
func (e *sessionEntry) attachGateway(handler *gatewayHandler, sub finance.GatewaySubscription, deadline time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handler != handler {
		return false
	}
	e.subscription = sub
	e.gatewayDeadline = deadline
	return true
}

// detachGateway clears the subscription and returns it for closing. With a
// non-nil handler nothing happens unless that handler is the current one.
func (e *sessionEntry) detachGateway(handler *gatewayHandler) finance.GatewaySubscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if handler != nil && e.handler != handler {
		return nil
	}
	sub := e.subscription
	e.subscription = nil
	e.handler = nil
	e.gatewayDeadline = time.Time{}
	return sub
}

func (e *sessionEntry) isCurrentHandler(handler *gatewayHandler) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handler == handler
}

// gatewayHandler applies results from one gateway subscription to its session
type gatewayHandler struct {
	svc   *PaymentSessionService
	entry *sessionEntry
}

// OnGatewayResult applies a frame result to the session. Only failures that
// a repost can fix are returned: storage outages and a busy tokenization.
func (h *gatewayHandler) OnGatewayResult(ctx context.Context, result finance.GatewayResult) error {
	session := h.entry.session
	logger := h.svc.logger.With(zap.String("session_id", session.ID.String()))

	if !h.entry.isCurrentHandler(h) {
		logger.Debug("gateway result for a released subscription ignored")
		return nil
	}
	if session.RequireStep(finance.StepPayment) != nil || session.Selector().Mode() != finance.PaymentModeNewCard {
		logger.Debug("gateway result ignored, session is not taking a new card")
		return nil
	}
	h.entry.touch(h.svc.clock())

	card, err := session.Selector().ApplyGatewayResult(ctx, result)
	if err != nil {
		h.entry.setGatewayError(userMessage(err))
		h.svc.metrics.RecordTokenization(ctx, "frame", tokenizationResult(err))
		logger.Warn("gateway card not accepted",
			zap.String("code", result.Code),
			zap.Error(err))
		if retryableGatewayFailure(err) {
			return err
		}
		return nil
	}

	h.entry.setGatewayError("")
	h.svc.metrics.RecordTokenization(ctx, "frame", "success")
	h.svc.publish(ctx, finance.NewCardTokenizedEvent(session.ID, *card, true))
	logger.Info("card tokenized through gateway frame",
		zap.String("card_id", card.ID.String()),
		zap.String("transaction_id", result.TransactionID))

	h.svc.releaseGatewayAsync(h.entry, h)
	return nil
}

func retryableGatewayFailure(err error) bool {
	var netErr *finance.NetworkError
	return errors.As(err, &netErr) || errors.Is(err, finance.ErrTokenizationInProgress)
}

func (h *gatewayHandler) OnGatewayTimeout(ctx context.Context) {
	// The subscription has already released itself.
	if h.entry.detachGateway(h) == nil {
		return
	}
	h.entry.setGatewayError(gatewayExpiredMessage)
	h.entry.session.Selector().RecordGatewayFailure(gatewayExpiredMessage)
	h.svc.metrics.RecordGatewayTimeout(ctx)
	h.svc.logger.Info("gateway frame expired without a result",
		zap.String("session_id", h.entry.session.ID.String()))
}
