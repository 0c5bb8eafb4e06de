package dto

import (
	"github.com/community/console/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// StartSessionRequest opens a payment session for a member
type StartSessionRequest struct {
	MemberID string `json:"member_id" binding:"required,uuid"`
}

// PayerDetailsRequest replaces the payer fields of step 1. Lengths and
// email format are checked on binding; the remaining field rules are
// reported as step issues, not request errors.
type PayerDetailsRequest struct {
	FirstName   string `json:"first_name" binding:"max=100"`
	LastName    string `json:"last_name" binding:"max=100"`
	Mobile      string `json:"mobile" binding:"max=32"`
	Address     string `json:"address" binding:"max=255"`
	Email       string `json:"email" binding:"omitempty,email,max=255"`
	CompanyName string `json:"company_name" binding:"max=255"`
	TaxID       string `json:"tax_id" binding:"max=32"`
}

// ToDomain converts the request to payer details
func (r PayerDetailsRequest) ToDomain() finance.PayerDetails {
	return finance.PayerDetails{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Mobile:      r.Mobile,
		Address:     r.Address,
		Email:       r.Email,
		CompanyName: r.CompanyName,
		TaxID:       r.TaxID,
	}
}

// MemberDetailsRequest toggles prefilling the payer from the member record
type MemberDetailsRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// PaymentDetailsRequest sets the transaction inputs of step 2.
// A missing vat_percent keeps the session's current rate.
type PaymentDetailsRequest struct {
	Description  string           `json:"description" binding:"max=255"`
	Amount       decimal.Decimal  `json:"amount"`
	Installments int              `json:"installments" binding:"min=0"`
	VATPercent   *decimal.Decimal `json:"vat_percent"`
}

// ToDomain converts the request, falling back to currentVAT
func (r PaymentDetailsRequest) ToDomain(currentVAT decimal.Decimal) finance.PaymentDetails {
	vat := currentVAT
	if r.VATPercent != nil {
		vat = *r.VATPercent
	}
	return finance.PaymentDetails{
		Description:  r.Description,
		Amount:       r.Amount,
		Installments: r.Installments,
		VATPercent:   vat,
	}
}

// PaymentMethodRequest switches the payment mode
type PaymentMethodRequest struct {
	Mode string `json:"mode" binding:"required,oneof=savedCard newCard standingOrder"`
}

// NewCardRequest is a card typed into the console
type NewCardRequest struct {
	Number     string `json:"number" binding:"required"`
	Expiry     string `json:"expiry" binding:"required,card_expiry"`
	CVV        string `json:"cvv" binding:"required"`
	HolderName string `json:"holder_name" binding:"max=100"`
	Remember   bool   `json:"remember"`
}

// ToDomain converts the request to a card draft
func (r NewCardRequest) ToDomain() finance.NewCardDraft {
	return finance.NewCardDraft{
		Number:     r.Number,
		Expiry:     r.Expiry,
		CVV:        r.CVV,
		HolderName: r.HolderName,
		Remember:   r.Remember,
	}
}

// GatewayFrameRequest carries the options applied to the card entered in the frame
type GatewayFrameRequest struct {
	HolderName string `json:"holder_name" binding:"max=100"`
	Remember   bool   `json:"remember"`
}

// GatewayMessageRequest is a raw postMessage relayed by the console page
type GatewayMessageRequest struct {
	Origin string `json:"origin" binding:"required"`
	Data   any    `json:"data" binding:"required"`
}

// ToDomain converts the request to a gateway message
func (r GatewayMessageRequest) ToDomain() finance.GatewayMessage {
	return finance.GatewayMessage{Origin: r.Origin, Data: r.Data}
}

// GatewayRelayResponse reports whether a subscription took the message
type GatewayRelayResponse struct {
	Delivered bool `json:"delivered"`
}

// InstallmentPreviewQuery is the query of the stateless calculator
type InstallmentPreviewQuery struct {
	Amount       string `form:"amount" binding:"required"`
	VATPercent   string `form:"vat_percent"`
	Installments int    `form:"installments" binding:"required,min=1"`
	Method       string `form:"method" binding:"max=64"`
}

// ClassifyCardQuery is the query of the card network classifier
type ClassifyCardQuery struct {
	PAN string `form:"pan" binding:"required,max=32"`
}

