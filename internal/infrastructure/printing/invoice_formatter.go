// Package printing renders invoice previews for the payment console:
// localized amounts through golang.org/x/text and an HTML page through
// html/template.
package printing

import (
	"fmt"
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultDateLayout is day/month/year as used on the console's invoices
const DefaultDateLayout = "02/01/2006"

var currencySymbols = map[currency.Unit]string{
	currency.MustParseISO("ILS"): "₪",
	currency.USD:                 "$",
	currency.EUR:                 "€",
	currency.GBP:                 "£",
}

// InvoiceFormatter turns decimal amounts and dates into display strings
// for one locale and currency
type InvoiceFormatter struct {
	tag        language.Tag
	unit       currency.Unit
	printer    *message.Printer
	scale      int
	dateLayout string
}

// FormatterOption configures an InvoiceFormatter
type FormatterOption func(*InvoiceFormatter)

// WithDateLayout overrides DefaultDateLayout
func WithDateLayout(layout string) FormatterOption {
	return func(f *InvoiceFormatter) {
		if layout != "" {
			f.dateLayout = layout
		}
	}
}

// NewInvoiceFormatter creates a formatter. lang is a BCP 47 tag such as
// "he" or "en-US"; currencyCode is an ISO 4217 code such as "ILS".
func NewInvoiceFormatter(lang, currencyCode string, opts ...FormatterOption) (*InvoiceFormatter, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("printing: invalid language %q: %w", lang, err)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("printing: invalid currency %q: %w", currencyCode, err)
	}
	scale, _ := currency.Standard.Rounding(unit)

	f := &InvoiceFormatter{
		tag:        tag,
		unit:       unit,
		printer:    message.NewPrinter(tag),
		scale:      scale,
		dateLayout: DefaultDateLayout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Language returns the formatter's locale
func (f *InvoiceFormatter) Language() language.Tag {
	return f.tag
}

// Currency returns the ISO code of the formatter's currency
func (f *InvoiceFormatter) Currency() string {
	return f.unit.String()
}

// Number formats d with the currency's decimal places and the locale's
// grouping and decimal separators
func (f *InvoiceFormatter) Number(d decimal.Decimal) string {
	rounded := d.Round(int32(f.scale))
	return f.printer.Sprintf(fmt.Sprintf("%%.%df", f.scale), rounded.InexactFloat64())
}

// Money formats d prefixed with the currency symbol, or the ISO code when
// the currency has no known symbol
func (f *InvoiceFormatter) Money(d decimal.Decimal) string {
	symbol, ok := currencySymbols[f.unit]
	if !ok {
		return f.unit.String() + " " + f.Number(d)
	}
	return symbol + f.Number(d)
}

// Percent formats a percentage such as 18 or 17.5
func (f *InvoiceFormatter) Percent(d decimal.Decimal) string {
	return f.printer.Sprintf("%v%%", d.InexactFloat64())
}

// Date formats t with the date layout
func (f *InvoiceFormatter) Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(f.dateLayout)
}

// FormattedInvoice is an invoice preview with every amount and date
// rendered for display
type FormattedInvoice struct {
	*finance.InvoicePreview
	Language       string                 `json:"language"`
	Currency       string                 `json:"currency"`
	AmountText     string                 `json:"amount_text"`
	VATPercentText string                 `json:"vat_percent_text"`
	VATAmountText  string                 `json:"vat_amount_text"`
	TotalText      string                 `json:"total_text"`
	IssuedAtText   string                 `json:"issued_at_text"`
	ScheduleText   []FormattedInstallment `json:"schedule_text"`
}

// FormattedInstallment is one schedule row rendered for display
type FormattedInstallment struct {
	Number      int    `json:"number"`
	DueDate     string `json:"due_date"`
	Amount      string `json:"amount"`
	MethodLabel string `json:"method_label"`
}

// Format renders every amount and date of preview
func (f *InvoiceFormatter) Format(preview *finance.InvoicePreview) *FormattedInvoice {
	rows := make([]FormattedInstallment, 0, len(preview.Schedule))
	for _, entry := range preview.Schedule {
		rows = append(rows, FormattedInstallment{
			Number:      entry.Number,
			DueDate:     f.Date(entry.DueDate),
			Amount:      f.Money(entry.Amount),
			MethodLabel: entry.MethodLabel,
		})
	}
	return &FormattedInvoice{
		InvoicePreview: preview,
		Language:       f.tag.String(),
		Currency:       f.unit.String(),
		AmountText:     f.Money(preview.Amount),
		VATPercentText: f.Percent(preview.VATPercent),
		VATAmountText:  f.Money(preview.VATAmount),
		TotalText:      f.Money(preview.Total),
		IssuedAtText:   f.Date(preview.IssuedAt),
		ScheduleText:   rows,
	}
}
