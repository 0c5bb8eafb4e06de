package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoicePreview is the read-only invoice shown at steps 3 and 4
type InvoicePreview struct {
	SessionID    uuid.UUID                  `json:"session_id"`
	Payer        PayerDetails               `json:"payer"`
	Description  string                     `json:"description"`
	Amount       decimal.Decimal            `json:"amount"`
	VATPercent   decimal.Decimal            `json:"vat_percent"`
	VATAmount    decimal.Decimal            `json:"vat_amount"`
	Total        decimal.Decimal            `json:"total"`
	Installments int                        `json:"installments"`
	Schedule     []InstallmentScheduleEntry `json:"schedule"`
	MethodLabel  string                     `json:"method_label"`
	IssuedAt     time.Time                  `json:"issued_at"`
}

func newInvoicePreview(sessionID uuid.UUID, payer PayerDetails, summary TransactionSummary, schedule []InstallmentScheduleEntry, methodLabel string, now time.Time) *InvoicePreview {
	return &InvoicePreview{
		SessionID:    sessionID,
		Payer:        payer,
		Description:  summary.Description,
		Amount:       summary.Amount,
		VATPercent:   summary.VATPercent,
		VATAmount:    summary.VATAmount,
		Total:        summary.Total,
		Installments: summary.Installments,
		Schedule:     schedule,
		MethodLabel:  methodLabel,
		IssuedAt:     now,
	}
}
