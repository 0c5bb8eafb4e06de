package finance

import (
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StartSessionInput starts a payment session for a member
type StartSessionInput struct {
	MemberID uuid.UUID
}

// SessionView is what callers see of a session after every operation
type SessionView struct {
	finance.SessionState
	MemberProfile *finance.MemberProfile `json:"member_profile,omitempty"`
	GatewayOpen   bool                   `json:"gateway_open"`
	GatewayError  string                 `json:"gateway_error,omitempty"`
	CardsError    string                 `json:"cards_error,omitempty"`
	ExpiresAt     time.Time              `json:"expires_at"`
}

// AdvanceResult reports the outcome of an advance request
type AdvanceResult struct {
	Moved   bool         `json:"moved"`
	Session *SessionView `json:"session"`
}

// GatewayFrameInput carries the options applied to a card entered in the gateway frame
type GatewayFrameInput struct {
	HolderName string
	Remember   bool
}

// GatewayFrameView is returned when the gateway frame is opened
type GatewayFrameView struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InstallmentPreviewInput is the stateless calculator input
type InstallmentPreviewInput struct {
	Amount       decimal.Decimal
	VATPercent   decimal.Decimal
	Installments int
	MethodLabel  string
}

// InstallmentPreview is the stateless calculator output
type InstallmentPreview struct {
	Amount        decimal.Decimal                    `json:"amount"`
	VATPercent    decimal.Decimal                    `json:"vat_percent"`
	VATAmount     decimal.Decimal                    `json:"vat_amount"`
	Total         decimal.Decimal                    `json:"total"`
	Schedule      []finance.InstallmentScheduleEntry `json:"schedule"`
	ScheduleTotal decimal.Decimal                    `json:"schedule_total"`
}

// CardClassification is the result of classifying an account number
type CardClassification struct {
	Network     finance.CardNetwork `json:"network"`
	DisplayName string              `json:"display_name"`
}
