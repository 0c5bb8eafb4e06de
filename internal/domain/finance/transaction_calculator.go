package finance

import (
	"time"

	"github.com/community/console/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

const (
	// MinInstallments and MaxInstallments bound the installment count accepted at step 2
	MinInstallments = 1
	MaxInstallments = 32
)

var hundred = decimal.NewFromInt(100)

// TransactionSummary is derived from the payment details. It is rebuilt by
// NewTransactionSummary on every change and never edited field by field.
type TransactionSummary struct {
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
	VATPercent   decimal.Decimal `json:"vat_percent"`
	VATAmount    decimal.Decimal `json:"vat_amount"`
	Total        decimal.Decimal `json:"total"`
}

// PaymentDetails are the operator-entered inputs of step 2
type PaymentDetails struct {
	Description  string
	Amount       decimal.Decimal
	Installments int
	VATPercent   decimal.Decimal
}

// Validate checks the inputs are well formed. Range gating for advancing
// (positive amount, installment bounds) is done by the session, not here.
func (d PaymentDetails) Validate() error {
	if d.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if d.Installments < 0 {
		return ErrInvalidInstallments
	}
	if d.VATPercent.IsNegative() || d.VATPercent.GreaterThan(hundred) {
		return ErrInvalidVATPercent
	}
	return nil
}

// NewTransactionSummary computes the derived totals for the given details
func NewTransactionSummary(d PaymentDetails) TransactionSummary {
	vat, total := ComputeSummary(d.Amount, d.VATPercent)
	return TransactionSummary{
		Description:  d.Description,
		Amount:       d.Amount,
		Installments: d.Installments,
		VATPercent:   d.VATPercent,
		VATAmount:    vat,
		Total:        total,
	}
}

// ComputeSummary returns the VAT and gross total for a net amount.
// Each result is rounded half away from zero to 2 places once, at the end
// of its own formula.
func ComputeSummary(amount, vatPercent decimal.Decimal) (vat, total decimal.Decimal) {
	net := valueobject.NewMoneyILS(amount)
	vatMoney := net.Percent(vatPercent).Round()
	totalMoney, _ := net.Add(vatMoney)
	return vatMoney.Amount(), totalMoney.Round().Amount()
}

// InstallmentScheduleEntry is one dated sub-payment of the total
type InstallmentScheduleEntry struct {
	Number      int             `json:"number"`
	DueDate     time.Time       `json:"due_date"`
	Amount      decimal.Decimal `json:"amount"`
	MethodLabel string          `json:"method_label"`
}

// ComputeInstallments splits total into count equal entries of
// round2(total/count), due monthly from startDate.
//
// The entries are not reconciled against total: 100.00 over 3 yields
// 3 x 33.33 = 99.99.
func ComputeInstallments(total decimal.Decimal, count int, startDate time.Time, methodLabel string) []InstallmentScheduleEntry {
	if count <= 0 {
		return nil
	}
	share, err := valueobject.NewMoneyILS(total).Split(count)
	if err != nil {
		return nil
	}
	amount := share.Round().Amount()

	entries := make([]InstallmentScheduleEntry, count)
	for i := range count {
		entries[i] = InstallmentScheduleEntry{
			Number:      i + 1,
			DueDate:     addMonths(startDate, i),
			Amount:      amount,
			MethodLabel: methodLabel,
		}
	}
	return entries
}

// addMonths moves t forward n calendar months, clamping the day to the
// last day of the target month so a 31st start stays one date per month
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(t.Day(), lastDay)-1)
}

// ScheduleTotal sums the entry amounts
func ScheduleTotal(entries []InstallmentScheduleEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}
