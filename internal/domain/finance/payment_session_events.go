package finance

import (
	"github.com/community/console/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AggregateTypePaymentSession = "PaymentSession"

	EventTypePaymentSessionSubmitted = "PaymentSessionSubmitted"
	EventTypePaymentSessionCancelled = "PaymentSessionCancelled"
	EventTypeCardTokenized           = "CardTokenized"
)

// PaymentSessionSubmittedEvent is raised when billing accepts a session,
// either charged or queued as a standing order
type PaymentSessionSubmittedEvent struct {
	shared.BaseDomainEvent
	MemberID         uuid.UUID       `json:"member_id"`
	Outcome          ChargeOutcome   `json:"outcome"`
	TransactionID    string          `json:"transaction_id,omitempty"`
	InvoiceReference string          `json:"invoice_reference,omitempty"`
	Mode             PaymentMode     `json:"mode"`
	CardID           *uuid.UUID      `json:"card_id,omitempty"`
	CardRemembered   bool            `json:"card_remembered"`
	Total            decimal.Decimal `json:"total"`
	Installments     int             `json:"installments"`
}

// NewPaymentSessionSubmittedEvent creates the event from the submitted snapshot
func NewPaymentSessionSubmittedEvent(sessionID uuid.UUID, snapshot SessionSnapshot, result ChargeResult) *PaymentSessionSubmittedEvent {
	e := &PaymentSessionSubmittedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePaymentSessionSubmitted, AggregateTypePaymentSession, sessionID),
		MemberID:         snapshot.MemberID,
		Outcome:          result.Outcome,
		TransactionID:    result.TransactionID,
		InvoiceReference: result.InvoiceReference,
		Mode:             snapshot.PaymentMethod.Mode,
		Total:            snapshot.Transaction.Total,
		Installments:     snapshot.Transaction.Installments,
	}
	if snapshot.Card != nil {
		id := snapshot.Card.ID
		e.CardID = &id
		e.CardRemembered = snapshot.Card.Remember
	}
	return e
}

// PaymentSessionCancelledEvent is raised when the operator abandons a session
type PaymentSessionCancelledEvent struct {
	shared.BaseDomainEvent
	MemberID uuid.UUID   `json:"member_id"`
	Step     SessionStep `json:"step"`
}

// NewPaymentSessionCancelledEvent creates a new cancellation event
func NewPaymentSessionCancelledEvent(sessionID, memberID uuid.UUID, step SessionStep) *PaymentSessionCancelledEvent {
	return &PaymentSessionCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentSessionCancelled, AggregateTypePaymentSession, sessionID),
		MemberID:        memberID,
		Step:            step,
	}
}

// CardTokenizedEvent is raised when a new card lands in card storage
type CardTokenizedEvent struct {
	shared.BaseDomainEvent
	MemberID uuid.UUID   `json:"member_id"`
	CardID   uuid.UUID   `json:"card_id"`
	Network  CardNetwork `json:"network"`
	Last4    string      `json:"last4"`
	Remember bool        `json:"remember"`
	ViaFrame bool        `json:"via_frame"`
}

// NewCardTokenizedEvent creates a new tokenization event
func NewCardTokenizedEvent(sessionID uuid.UUID, card StoredCard, viaFrame bool) *CardTokenizedEvent {
	return &CardTokenizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCardTokenized, AggregateTypePaymentSession, sessionID),
		MemberID:        card.MemberID,
		CardID:          card.ID,
		Network:         card.Network,
		Last4:           card.Last4,
		Remember:        card.Remember,
		ViaFrame:        viaFrame,
	}
}
