package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeOutcome is the billing collaborator's verdict on a submitted session
type ChargeOutcome string

const (
	ChargeOutcomeSuccess ChargeOutcome = "success"
	ChargeOutcomeDecline ChargeOutcome = "decline"
	ChargeOutcomePending ChargeOutcome = "pending"
)

// IsValid returns true if the outcome is valid
func (o ChargeOutcome) IsValid() bool {
	switch o {
	case ChargeOutcomeSuccess, ChargeOutcomeDecline, ChargeOutcomePending:
		return true
	default:
		return false
	}
}

// String returns the string representation of ChargeOutcome
func (o ChargeOutcome) String() string {
	return string(o)
}

// IsFinal reports whether the outcome ends the session
func (o ChargeOutcome) IsFinal() bool {
	return o == ChargeOutcomeSuccess || o == ChargeOutcomePending
}

// ChargeResult is returned by Billing.Submit
type ChargeResult struct {
	Outcome          ChargeOutcome `json:"outcome"`
	TransactionID    string        `json:"transaction_id,omitempty"`
	InvoiceReference string        `json:"invoice_reference,omitempty"`
	Message          string        `json:"message,omitempty"`
}

// Billing charges a submitted session. Settlement happens inside the provider.
type Billing interface {
	// Submit charges the snapshot. Transport failures are returned as errors;
	// a processed but refused charge is a ChargeResult with ChargeOutcomeDecline.
	Submit(ctx context.Context, snapshot SessionSnapshot) (*ChargeResult, error)
}

// FrameRequest describes the embedded gateway frame opened in step 2
type FrameRequest struct {
	SessionID    uuid.UUID
	Amount       decimal.Decimal
	Installments int
	Description  string
	Payer        PayerDetails
}

// GatewayFrame builds the URL of the embedded payment frame. The URL must
// make the gateway report the result to the parent window through the
// message channel instead of redirecting the frame.
type GatewayFrame interface {
	FrameURL(req FrameRequest) (string, error)
}

// GatewayResultHandler receives the outcome of a gateway subscription.
// Calls for one subscription are never concurrent.
type GatewayResultHandler interface {
	// OnGatewayResult applies a result. A non-nil error means the result
	// was not applied and a repeated post of it should be delivered again.
	OnGatewayResult(ctx context.Context, result GatewayResult) error
	// OnGatewayTimeout runs at most once, when the subscription deadline
	// passes before it is closed.
	OnGatewayTimeout(ctx context.Context)
}

// GatewaySubscription is a scoped listen on the gateway message channel
type GatewaySubscription interface {
	// Close releases the subscription. No result is delivered after Close
	// returns. Close must not be called from inside a handler callback.
	Close()
}

// GatewayResultSource opens subscriptions on the frame message channel for a session
type GatewayResultSource interface {
	Subscribe(ctx context.Context, sessionID uuid.UUID, handler GatewayResultHandler) (GatewaySubscription, error)
}

// GatewayMessageRelay accepts raw frame messages forwarded by the console
// page. Publish reports whether a subscription for the session was open.
type GatewayMessageRelay interface {
	Publish(ctx context.Context, sessionID uuid.UUID, msg GatewayMessage) bool
}
