package finance

import (
	"errors"
	"fmt"

	"github.com/community/console/internal/domain/shared"
)

var (
	// Session errors
	ErrSessionNotFound      = shared.NewDomainError("NOT_FOUND", "payment session not found")
	ErrSessionClosed        = shared.NewDomainError("INVALID_STATE", "payment session is no longer active")
	ErrSubmissionInProgress = shared.NewDomainError("INVALID_STATE", "a charge for this session is already in progress")
	ErrStepNotActive        = shared.NewDomainError("INVALID_STATE", "operation not available in the current step")

	// Selector errors
	ErrCardNotFound           = shared.NewDomainError("NOT_FOUND", "card is not among the member's stored cards")
	ErrInvalidCardDraft       = shared.NewDomainError("INVALID_INPUT", "card details are incomplete or malformed")
	ErrInvalidPaymentMode     = shared.NewDomainError("INVALID_INPUT", "unknown payment mode")
	ErrTokenizationInProgress = shared.NewDomainError("INVALID_STATE", "a card tokenization is already in progress")

	// Calculator / details errors
	ErrInvalidAmount       = shared.NewDomainError("INVALID_INPUT", "amount must be a non-negative number")
	ErrInvalidInstallments = shared.NewDomainError("INVALID_INPUT", "installments must be a non-negative whole number")
	ErrInvalidVATPercent   = shared.NewDomainError("INVALID_INPUT", "VAT percent must be between 0 and 100")

	// Member lookup
	ErrMemberNotFound           = shared.NewDomainError("NOT_FOUND", "member not found")
	ErrMemberDetailsUnavailable = shared.NewDomainError("INVALID_STATE", "member details are not available for this session")

	// Gateway errors
	ErrGatewayTokenMissing = errors.New("payment: gateway approved the card without issuing a token")
)

// NetworkError wraps a failed call to an external collaborator
// (card listing, card creation, charge submission).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("payment: %s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps err unless it already is a NetworkError or a decline
func NewNetworkError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return err
	}
	var de *GatewayDeclineError
	if errors.As(err, &de) {
		return err
	}
	return &NetworkError{Op: op, Err: err}
}

// GatewayDeclineError is an explicit failure reported by the gateway.
// Its message is shown to the user as is.
type GatewayDeclineError struct {
	Code    string
	Message string
}

func (e *GatewayDeclineError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment declined (%s): %s", e.Code, e.Message)
	}
	return "payment declined: " + e.Message
}

// UserMessage returns the text surfaced to the operator
func (e *GatewayDeclineError) UserMessage() string {
	return e.Message
}

// GatewayProtocolError describes an inbound frame message that could not be
// turned into a result. It is only ever logged.
type GatewayProtocolError struct {
	Origin string
	Reason string
}

func (e *GatewayProtocolError) Error() string {
	return fmt.Sprintf("gateway message from %q dropped: %s", e.Origin, e.Reason)
}

// FieldIssue is a step-local validation failure shown next to a field
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
