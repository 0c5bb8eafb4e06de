package printing

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed templates/invoice.html
var templateFS embed.FS

// InvoiceLabels are the fixed captions of the invoice page
type InvoiceLabels struct {
	Title    string
	Payer    string
	TaxID    string
	VAT      string
	Total    string
	Schedule string
	DueDate  string
	Amount   string
	Method   string
}

var (
	hebrewLabels = InvoiceLabels{
		Title:    "תצוגה מקדימה של חשבונית",
		Payer:    "פרטי המשלם",
		TaxID:    "ח.פ / ע.מ",
		VAT:      "מע\"מ",
		Total:    "סה\"כ לתשלום",
		Schedule: "פריסת תשלומים",
		DueDate:  "מועד חיוב",
		Amount:   "סכום",
		Method:   "אמצעי תשלום",
	}
	englishLabels = InvoiceLabels{
		Title:    "Invoice preview",
		Payer:    "Payer",
		TaxID:    "Tax ID",
		VAT:      "VAT",
		Total:    "Total",
		Schedule: "Installments",
		DueDate:  "Due date",
		Amount:   "Amount",
		Method:   "Method",
	}
)

var labelMatcher = language.NewMatcher([]language.Tag{language.English, language.Hebrew})

// LabelsFor picks the caption set closest to tag
func LabelsFor(tag language.Tag) (InvoiceLabels, bool) {
	_, index, _ := labelMatcher.Match(tag)
	if index == 1 {
		return hebrewLabels, true
	}
	return englishLabels, false
}

// RenderedInvoice is the HTML invoice page
type RenderedInvoice struct {
	HTML           string
	RenderDuration time.Duration
}

// InvoiceRenderer renders invoice previews to HTML
type InvoiceRenderer struct {
	formatter *InvoiceFormatter
	tmpl      *template.Template
	logger    *zap.Logger
}

// NewInvoiceRenderer parses the embedded invoice template
func NewInvoiceRenderer(formatter *InvoiceFormatter, logger *zap.Logger) (*InvoiceRenderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.New("invoice.html").Funcs(template.FuncMap{
		"shortID": shortID,
	}).ParseFS(templateFS, "templates/invoice.html")
	if err != nil {
		return nil, fmt.Errorf("printing: parse invoice template: %w", err)
	}
	return &InvoiceRenderer{formatter: formatter, tmpl: tmpl, logger: logger}, nil
}

// Formatter returns the renderer's formatter
func (r *InvoiceRenderer) Formatter() *InvoiceFormatter {
	return r.formatter
}

// Render renders preview as a standalone HTML page
func (r *InvoiceRenderer) Render(ctx context.Context, preview *finance.InvoicePreview) (*RenderedInvoice, error) {
	if preview == nil {
		return nil, errors.New("printing: invoice preview is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	labels, rtl := LabelsFor(r.formatter.Language())
	data := struct {
		Title    string
		Language string
		RTL      bool
		Labels   InvoiceLabels
		Invoice  *FormattedInvoice
	}{
		Title:    labels.Title,
		Language: r.formatter.Language().String(),
		RTL:      rtl,
		Labels:   labels,
		Invoice:  r.formatter.Format(preview),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("printing: render invoice: %w", err)
	}

	elapsed := time.Since(start)
	r.logger.Debug("invoice rendered",
		zap.String("session_id", preview.SessionID.String()),
		zap.Duration("duration", elapsed))
	return &RenderedInvoice{HTML: buf.String(), RenderDuration: elapsed}, nil
}

// shortID returns the first eight characters of id
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
