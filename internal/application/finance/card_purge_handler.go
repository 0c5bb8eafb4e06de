package finance

import (
	"context"
	"fmt"

	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/domain/shared"
	"go.uber.org/zap"
)

// UnrememberedCardPurgeHandler handles PaymentSessionSubmittedEvent and
// deletes a card the payer did not ask to remember once it was charged.
// It is only subscribed when payment.purge_unremembered_cards is enabled.
// Pending outcomes (standing orders) keep the card.
type UnrememberedCardPurgeHandler struct {
	cards  finance.CardRemover
	logger *zap.Logger
}

// NewUnrememberedCardPurgeHandler creates a new purge handler
func NewUnrememberedCardPurgeHandler(cards finance.CardRemover, logger *zap.Logger) *UnrememberedCardPurgeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnrememberedCardPurgeHandler{
		cards:  cards,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *UnrememberedCardPurgeHandler) EventTypes() []string {
	return []string{finance.EventTypePaymentSessionSubmitted}
}

// Handle deletes the charged card when it was not remembered
func (h *UnrememberedCardPurgeHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	submitted, ok := event.(*finance.PaymentSessionSubmittedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", finance.EventTypePaymentSessionSubmitted),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			finance.EventTypePaymentSessionSubmitted, event.EventType())
	}

	if submitted.Outcome != finance.ChargeOutcomeSuccess || submitted.CardID == nil || submitted.CardRemembered {
		return nil
	}

	if err := h.cards.Delete(ctx, submitted.MemberID, *submitted.CardID); err != nil {
		h.logger.Error("failed to purge unremembered card",
			zap.String("session_id", submitted.AggregateID().String()),
			zap.String("card_id", submitted.CardID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to purge card %s: %w", submitted.CardID, err)
	}

	h.logger.Info("purged unremembered card after charge",
		zap.String("session_id", submitted.AggregateID().String()),
		zap.String("member_id", submitted.MemberID.String()),
		zap.String("card_id", submitted.CardID.String()),
	)
	return nil
}
