package handler

import (
	"context"
	"net/http"

	appfinance "github.com/community/console/internal/application/finance"
	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/infrastructure/logger"
	"github.com/community/console/internal/infrastructure/printing"
	"github.com/community/console/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Route parameter names
const (
	SessionIDParam = "sessionId"
	CardIDParam    = "cardId"
)

// PaymentSessionUseCase is the payment session service as seen by the handler
type PaymentSessionUseCase interface {
	StartSession(ctx context.Context, input appfinance.StartSessionInput) (*appfinance.SessionView, error)
	GetSession(ctx context.Context, id uuid.UUID) (*appfinance.SessionView, error)
	UpdatePayer(ctx context.Context, id uuid.UUID, details finance.PayerDetails) (*appfinance.SessionView, error)
	SetUseMemberDetails(ctx context.Context, id uuid.UUID, enabled bool) (*appfinance.SessionView, error)
	UpdatePaymentDetails(ctx context.Context, id uuid.UUID, details finance.PaymentDetails) (*appfinance.SessionView, error)
	SetPaymentMode(ctx context.Context, id uuid.UUID, mode finance.PaymentMode) (*appfinance.SessionView, error)
	SelectCard(ctx context.Context, id, cardID uuid.UUID) (*appfinance.SessionView, error)
	SetDefaultCard(ctx context.Context, id, cardID uuid.UUID) (*appfinance.SessionView, error)
	TokenizeCard(ctx context.Context, id uuid.UUID, draft finance.NewCardDraft) (*appfinance.SessionView, error)
	OpenGatewayFrame(ctx context.Context, id uuid.UUID, input appfinance.GatewayFrameInput) (*appfinance.GatewayFrameView, error)
	RelayGatewayMessage(ctx context.Context, id uuid.UUID, msg finance.GatewayMessage) (bool, error)
	InvoicePreview(ctx context.Context, id uuid.UUID) (*finance.InvoicePreview, error)
	Advance(ctx context.Context, id uuid.UUID) (*appfinance.AdvanceResult, error)
	Back(ctx context.Context, id uuid.UUID) (*appfinance.AdvanceResult, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	PreviewInstallments(input appfinance.InstallmentPreviewInput) (*appfinance.InstallmentPreview, error)
	ClassifyCard(pan string) appfinance.CardClassification
}

// PaymentSessionHandler serves the payment capture workflow
type PaymentSessionHandler struct {
	BaseHandler
	service  PaymentSessionUseCase
	renderer *printing.InvoiceRenderer
}

// NewPaymentSessionHandler creates a new PaymentSessionHandler
func NewPaymentSessionHandler(service PaymentSessionUseCase, renderer *printing.InvoiceRenderer) *PaymentSessionHandler {
	return &PaymentSessionHandler{service: service, renderer: renderer}
}

// sessionID parses the session route parameter, writing a 400 on failure
func (h *PaymentSessionHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(SessionIDParam))
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *PaymentSessionHandler) cardID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(CardIDParam))
	if err != nil {
		h.BadRequest(c, "Invalid card ID format")
		return uuid.Nil, false
	}
	return id, true
}

// respond writes view or the error from the service call that produced it
func (h *PaymentSessionHandler) respond(c *gin.Context, view any, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// StartSession opens a session for a member and loads their cards
func (h *PaymentSessionHandler) StartSession(c *gin.Context) {
	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	view, err := h.service.StartSession(c.Request.Context(), appfinance.StartSessionInput{
		MemberID: uuid.MustParse(req.MemberID),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	operatorID, _ := getOperatorID(c)
	logger.L(c.Request.Context()).Info("payment session started",
		zap.String("session_id", view.ID.String()),
		zap.String("member_id", req.MemberID),
		zap.String("operator_id", operatorID.String()))
	h.Created(c, view)
}

// GetSession returns the session view
func (h *PaymentSessionHandler) GetSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	view, err := h.service.GetSession(c.Request.Context(), id)
	h.respond(c, view, err)
}

// UpdatePayer replaces the payer details
func (h *PaymentSessionHandler) UpdatePayer(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req dto.PayerDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	view, err := h.service.UpdatePayer(c.Request.Context(), id, req.ToDomain())
	h.respond(c, view, err)
}

// SetUseMemberDetails toggles prefilling the payer from the member record
func (h *PaymentSessionHandler) SetUseMemberDetails(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req dto.MemberDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	view, err := h.service.SetUseMemberDetails(c.Request.Context(), id, *req.Enabled)
	h.respond(c, view, err)
}

// UpdatePaymentDetails sets description, amount, installments and VAT
func (h *PaymentSessionHandler) UpdatePaymentDetails(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req dto.PaymentDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	ctx := c.Request.Context()
	vat := decimal.Zero
	if req.VATPercent == nil {
		current, err := h.service.GetSession(ctx, id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		vat = current.Transaction.VATPercent
	}

	view, err := h.service.UpdatePaymentDetails(ctx, id, req.ToDomain(vat))
	h.respond(c, view, err)
}

// SetPaymentMode switches between saved card, new card and standing order
func (h *PaymentSessionHandler) SetPaymentMode(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req dto.PaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	view, err := h.service.SetPaymentMode(c.Request.Context(), id, finance.PaymentMode(req.Mode))
	h.respond(c, view, err)
}

// SelectCard selects one of the member's stored cards
func (h *PaymentSessionHandler) SelectCard(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	cardID, ok := h.cardID(c)
	if !ok {
		return
	}
	view, err := h.service.SelectCard(c.Request.Context(), id, cardID)
	h.respond(c, view, err)
}

// SetDefaultCard marks a stored card as the member's default
func (h *PaymentSessionHandler) SetDefaultCard(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	cardID, ok := h.cardID(c)
	if !ok {
		return
	}
	view, err := h.service.SetDefaultCard(c.Request.Context(), id, cardID)
	h.respond(c, view, err)
}

// TokenizeCard stores a card typed into the console
func (h *PaymentSessionHandler) TokenizeCard(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req dto.NewCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	view, err := h.service.TokenizeCard(c.Request.Context(), id, req.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// OpenGatewayFrame opens the gateway subscription and returns the frame URL
func (h *PaymentSessionHandler) OpenGatewayFrame(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req dto.GatewayFrameRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}
	frame, err := h.service.OpenGatewayFrame(c.Request.Context(), id, appfinance.GatewayFrameInput{
		HolderName: req.HolderName,
		Remember:   req.Remember,
	})
	h.respond(c, frame, err)
}

// RelayGatewayMessage forwards a postMessage from the gateway frame
func (h *PaymentSessionHandler) RelayGatewayMessage(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req dto.GatewayMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	delivered, err := h.service.RelayGatewayMessage(c.Request.Context(), id, req.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.GatewayRelayResponse{Delivered: delivered})
}

// Invoice returns the invoice preview with localized amounts, or the
// printable page when format=html
func (h *PaymentSessionHandler) Invoice(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	preview, err := h.service.InvoicePreview(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if c.Query("format") == "html" {
		rendered, err := h.renderer.Render(ctx, preview)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(rendered.HTML))
		return
	}
	h.Success(c, h.renderer.Formatter().Format(preview))
}

// Advance moves the session forward, submitting the charge from confirm
func (h *PaymentSessionHandler) Advance(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	result, err := h.service.Advance(c.Request.Context(), id)
	h.respond(c, result, err)
}

// Back returns to the previous step
func (h *PaymentSessionHandler) Back(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	result, err := h.service.Back(c.Request.Context(), id)
	h.respond(c, result, err)
}

// Cancel abandons the session
func (h *PaymentSessionHandler) Cancel(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// PreviewInstallments computes a summary and schedule without a session
func (h *PaymentSessionHandler) PreviewInstallments(c *gin.Context) {
	var query dto.InstallmentPreviewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.ValidationError(c, err)
		return
	}

	amount, err := decimal.NewFromString(query.Amount)
	if err != nil {
		h.BadRequest(c, "amount must be a number")
		return
	}
	vat := decimal.Zero
	if query.VATPercent != "" {
		if vat, err = decimal.NewFromString(query.VATPercent); err != nil {
			h.BadRequest(c, "vat_percent must be a number")
			return
		}
	}

	preview, err := h.service.PreviewInstallments(appfinance.InstallmentPreviewInput{
		Amount:       amount,
		VATPercent:   vat,
		Installments: query.Installments,
		MethodLabel:  query.Method,
	})
	h.respond(c, preview, err)
}

// ClassifyCard reports the card network of an account number
func (h *PaymentSessionHandler) ClassifyCard(c *gin.Context) {
	var query dto.ClassifyCardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.ValidationError(c, err)
		return
	}
	h.Success(c, h.service.ClassifyCard(query.PAN))
}
