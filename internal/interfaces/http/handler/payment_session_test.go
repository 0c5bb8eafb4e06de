package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appfinance "github.com/community/console/internal/application/finance"
	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/infrastructure/printing"
	"github.com/community/console/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPaymentSessionService implements PaymentSessionUseCase for testing
type MockPaymentSessionService struct {
	mock.Mock
}

func (m *MockPaymentSessionService) view(args mock.Arguments) (*appfinance.SessionView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appfinance.SessionView), args.Error(1)
}

func (m *MockPaymentSessionService) StartSession(ctx context.Context, input appfinance.StartSessionInput) (*appfinance.SessionView, error) {
	return m.view(m.Called(ctx, input))
}

func (m *MockPaymentSessionService) GetSession(ctx context.Context, id uuid.UUID) (*appfinance.SessionView, error) {
	return m.view(m.Called(ctx, id))
}

func (m *MockPaymentSessionService) UpdatePayer(ctx context.Context, id uuid.UUID, details finance.PayerDetails) (*appfinance.SessionView, error) {
	return m.view(m.Called(ctx, id, details))
}

func (m *MockPaymentSessionService) SetUseMemberDetails(ctx context.Context, id uuid.UUID, enabled bool) (*appfinance.SessionView, error) {
	return m.view(m.Called(ctx, id, enabled))
}

func (m *MockPaymentSessionService) UpdatePaymentDetails(ctx context.Context, id uuid.UUID, details finance.PaymentDetails) (*appfinance.SessionView, error) {
	return m.view(m.Called(ctx, id, details))
}

func (m *MockPaymentSessionService) SetPaymentMode(ctx context.Context, id uuid.UUID, mode finance.PaymentMode) (*appfinance.SessionView, error) {
	return m.view(m.Called(ctx, id, mode))
}

func (m *MockPaymentSessionService) SelectCard(ctx context.Context, id, cardID uuid.UUID) (*appfinance.SessionView, error) {
	return m.view(m.Called(ctx, id, cardID))
}

func (m *MockPaymentSessionService) SetDefaultCard(ctx context.Context, id, cardID uuid.UUID) (*appfinance.SessionView, error) {
	return m.view(m.Called(ctx, id, cardID))
}

func (m *MockPaymentSessionService) TokenizeCard(ctx context.Context, id uuid.UUID, draft finance.NewCardDraft) (*appfinance.SessionView, error) {
	return m.view(m.Called(ctx, id, draft))
}

func (m *MockPaymentSessionService) OpenGatewayFrame(ctx context.Context, id uuid.UUID, input appfinance.GatewayFrameInput) (*appfinance.GatewayFrameView, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appfinance.GatewayFrameView), args.Error(1)
}

func (m *MockPaymentSessionService) RelayGatewayMessage(ctx context.Context, id uuid.UUID, msg finance.GatewayMessage) (bool, error) {
	args := m.Called(ctx, id, msg)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentSessionService) InvoicePreview(ctx context.Context, id uuid.UUID) (*finance.InvoicePreview, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.InvoicePreview), args.Error(1)
}

func (m *MockPaymentSessionService) Advance(ctx context.Context, id uuid.UUID) (*appfinance.AdvanceResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appfinance.AdvanceResult), args.Error(1)
}

func (m *MockPaymentSessionService) Back(ctx context.Context, id uuid.UUID) (*appfinance.AdvanceResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appfinance.AdvanceResult), args.Error(1)
}

func (m *MockPaymentSessionService) Cancel(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPaymentSessionService) PreviewInstallments(input appfinance.InstallmentPreviewInput) (*appfinance.InstallmentPreview, error) {
	args := m.Called(input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appfinance.InstallmentPreview), args.Error(1)
}

func (m *MockPaymentSessionService) ClassifyCard(pan string) appfinance.CardClassification {
	return m.Called(pan).Get(0).(appfinance.CardClassification)
}

func newTestRenderer(t *testing.T) *printing.InvoiceRenderer {
	t.Helper()
	formatter, err := printing.NewInvoiceFormatter("en", "ILS")
	require.NoError(t, err)
	renderer, err := printing.NewInvoiceRenderer(formatter, zap.NewNop())
	require.NoError(t, err)
	return renderer
}

func newPaymentRouter(t *testing.T, svc *MockPaymentSessionService) *gin.Engine {
	t.Helper()
	h := NewPaymentSessionHandler(svc, newTestRenderer(t))

	r := gin.New()
	g := r.Group("/payments")
	g.POST("/sessions", h.StartSession)
	g.GET("/sessions/:sessionId", h.GetSession)
	g.DELETE("/sessions/:sessionId", h.Cancel)
	g.PUT("/sessions/:sessionId/payer", h.UpdatePayer)
	g.PUT("/sessions/:sessionId/payer/member-details", h.SetUseMemberDetails)
	g.PUT("/sessions/:sessionId/details", h.UpdatePaymentDetails)
	g.PUT("/sessions/:sessionId/method", h.SetPaymentMode)
	g.PUT("/sessions/:sessionId/cards/:cardId/select", h.SelectCard)
	g.POST("/sessions/:sessionId/cards", h.TokenizeCard)
	g.POST("/sessions/:sessionId/gateway/frame", h.OpenGatewayFrame)
	g.POST("/sessions/:sessionId/gateway/messages", h.RelayGatewayMessage)
	g.GET("/sessions/:sessionId/invoice", h.Invoice)
	g.POST("/sessions/:sessionId/advance", h.Advance)
	g.GET("/installments/preview", h.PreviewInstallments)
	g.GET("/cards/classify", h.ClassifyCard)
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionView(id uuid.UUID) *appfinance.SessionView {
	return &appfinance.SessionView{
		SessionState: finance.SessionState{
			ID:       id,
			MemberID: uuid.New(),
			Step:     finance.StepPayer,
			Transaction: finance.TransactionSummary{
				VATPercent: decimal.NewFromInt(18),
			},
		},
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
}

func TestPaymentSessionHandler_StartSession(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)

	t.Run("creates a session", func(t *testing.T) {
		memberID := uuid.New()
		view := sessionView(uuid.New())
		svc.On("StartSession", mock.Anything, appfinance.StartSessionInput{MemberID: memberID}).Return(view, nil).Once()

		w := doRequest(r, http.MethodPost, "/payments/sessions", map[string]string{"member_id": memberID.String()})

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, view.ID.String(), data["id"])
	})

	t.Run("rejects a malformed member id", func(t *testing.T) {
		w := doRequest(r, http.MethodPost, "/payments/sessions", map[string]string{"member_id": "42"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "member_id", resp.Error.Details[0].Field)
	})

	t.Run("unknown member", func(t *testing.T) {
		memberID := uuid.New()
		svc.On("StartSession", mock.Anything, appfinance.StartSessionInput{MemberID: memberID}).Return(nil, finance.ErrMemberNotFound).Once()

		w := doRequest(r, http.MethodPost, "/payments/sessions", map[string]string{"member_id": memberID.String()})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_GetSession(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)

	t.Run("invalid id", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/payments/sessions/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		svc.On("GetSession", mock.Anything, id).Return(nil, finance.ErrSessionNotFound).Once()

		w := doRequest(r, http.MethodGet, "/payments/sessions/"+id.String(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_UpdatePayer(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)
	id := uuid.New()

	payer := finance.PayerDetails{FirstName: "Dana", LastName: "Levi", Mobile: "0501234567", Email: "dana@example.org"}
	svc.On("UpdatePayer", mock.Anything, id, payer).Return(sessionView(id), nil).Once()

	w := doRequest(r, http.MethodPut, "/payments/sessions/"+id.String()+"/payer", map[string]string{
		"first_name": "Dana",
		"last_name":  "Levi",
		"mobile":     "0501234567",
		"email":      "dana@example.org",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPut, "/payments/sessions/"+id.String()+"/payer", map[string]string{
		"first_name": "Dana",
		"email":      "not-an-address",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_SetUseMemberDetails(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)
	id := uuid.New()
	path := "/payments/sessions/" + id.String() + "/payer/member-details"

	svc.On("SetUseMemberDetails", mock.Anything, id, false).Return(sessionView(id), nil).Once()

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPut, path, map[string]bool{"enabled": false}).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodPut, path, map[string]string{}).Code)
	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_UpdatePaymentDetails(t *testing.T) {
	t.Run("explicit VAT", func(t *testing.T) {
		svc := new(MockPaymentSessionService)
		r := newPaymentRouter(t, svc)
		id := uuid.New()

		svc.On("UpdatePaymentDetails", mock.Anything, id, mock.MatchedBy(func(d finance.PaymentDetails) bool {
			return d.Amount.Equal(decimal.NewFromInt(300)) && d.Installments == 3 && d.VATPercent.Equal(decimal.NewFromInt(17))
		})).Return(sessionView(id), nil).Once()

		w := doRequest(r, http.MethodPut, "/payments/sessions/"+id.String()+"/details",
			json.RawMessage(`{"description":"Membership","amount":"300","installments":3,"vat_percent":"17"}`))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing VAT keeps the session rate", func(t *testing.T) {
		svc := new(MockPaymentSessionService)
		r := newPaymentRouter(t, svc)
		id := uuid.New()

		svc.On("GetSession", mock.Anything, id).Return(sessionView(id), nil).Once()
		svc.On("UpdatePaymentDetails", mock.Anything, id, mock.MatchedBy(func(d finance.PaymentDetails) bool {
			return d.VATPercent.Equal(decimal.NewFromInt(18))
		})).Return(sessionView(id), nil).Once()

		w := doRequest(r, http.MethodPut, "/payments/sessions/"+id.String()+"/details",
			json.RawMessage(`{"amount":"100","installments":1}`))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("invalid VAT from service", func(t *testing.T) {
		svc := new(MockPaymentSessionService)
		r := newPaymentRouter(t, svc)
		id := uuid.New()

		svc.On("UpdatePaymentDetails", mock.Anything, id, mock.Anything).Return(nil, finance.ErrInvalidVATPercent).Once()

		w := doRequest(r, http.MethodPut, "/payments/sessions/"+id.String()+"/details",
			json.RawMessage(`{"amount":"100","installments":1,"vat_percent":"120"}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
	})
}

func TestPaymentSessionHandler_SetPaymentMode(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)
	id := uuid.New()
	path := "/payments/sessions/" + id.String() + "/method"

	svc.On("SetPaymentMode", mock.Anything, id, finance.PaymentModeNewCard).Return(sessionView(id), nil).Once()

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPut, path, map[string]string{"mode": "newCard"}).Code)

	w := doRequest(r, http.MethodPut, path, map[string]string{"mode": "cash"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "mode", decodeResponse(t, w).Error.Details[0].Field)
	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_SelectCard(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)
	id, cardID := uuid.New(), uuid.New()

	svc.On("SelectCard", mock.Anything, id, cardID).Return(nil, finance.ErrCardNotFound).Once()

	w := doRequest(r, http.MethodPut, "/payments/sessions/"+id.String()+"/cards/"+cardID.String()+"/select", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPut, "/payments/sessions/"+id.String()+"/cards/bad/select", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_TokenizeCard(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)
	id := uuid.New()
	path := "/payments/sessions/" + id.String() + "/cards"

	t.Run("stores the card", func(t *testing.T) {
		draft := finance.NewCardDraft{Number: "4580 0000 0000 0000", Expiry: "12/29", CVV: "123", Remember: true}
		svc.On("TokenizeCard", mock.Anything, id, draft).Return(sessionView(id), nil).Once()

		w := doRequest(r, http.MethodPost, path, map[string]any{
			"number": "4580 0000 0000 0000", "expiry": "12/29", "cvv": "123", "remember": true,
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("bad expiry never reaches the service", func(t *testing.T) {
		w := doRequest(r, http.MethodPost, path, map[string]any{
			"number": "4580000000000000", "expiry": "13/29", "cvv": "123",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Must be a valid MM/YY expiry", decodeResponse(t, w).Error.Details[0].Message)
	})

	t.Run("upstream failure", func(t *testing.T) {
		svc.On("TokenizeCard", mock.Anything, id, mock.Anything).
			Return(nil, &finance.NetworkError{Op: "create card", Err: context.DeadlineExceeded}).Once()

		w := doRequest(r, http.MethodPost, path, map[string]any{
			"number": "4580000000000000", "expiry": "12/29", "cvv": "123",
		})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, dto.ErrCodeUpstream, decodeResponse(t, w).Error.Code)
	})

	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_Gateway(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)
	id := uuid.New()

	t.Run("frame without body", func(t *testing.T) {
		frame := &appfinance.GatewayFrameView{URL: "https://direct.tranzila.com/console/iframenew.php", ExpiresAt: time.Now()}
		svc.On("OpenGatewayFrame", mock.Anything, id, appfinance.GatewayFrameInput{}).Return(frame, nil).Once()

		w := doRequest(r, http.MethodPost, "/payments/sessions/"+id.String()+"/gateway/frame", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, frame.URL, data["url"])
	})

	t.Run("gateway not configured", func(t *testing.T) {
		svc.On("OpenGatewayFrame", mock.Anything, id, appfinance.GatewayFrameInput{HolderName: "Dana", Remember: true}).
			Return(nil, appfinance.ErrGatewayUnavailable).Once()

		w := doRequest(r, http.MethodPost, "/payments/sessions/"+id.String()+"/gateway/frame",
			map[string]any{"holder_name": "Dana", "remember": true})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("relay message", func(t *testing.T) {
		svc.On("RelayGatewayMessage", mock.Anything, id, mock.MatchedBy(func(m finance.GatewayMessage) bool {
			return m.Origin == "https://direct.tranzila.com"
		})).Return(true, nil).Once()

		w := doRequest(r, http.MethodPost, "/payments/sessions/"+id.String()+"/gateway/messages",
			map[string]any{"origin": "https://direct.tranzila.com", "data": map[string]string{"Response": "000"}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{"delivered": true}, decodeResponse(t, w).Data)
	})

	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_Invoice(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)
	id := uuid.New()

	preview := &finance.InvoicePreview{
		SessionID:    id,
		Payer:        finance.PayerDetails{FirstName: "Dana", LastName: "Levi"},
		Description:  "Membership",
		Amount:       decimal.NewFromInt(100),
		VATPercent:   decimal.NewFromInt(18),
		VATAmount:    decimal.NewFromInt(18),
		Total:        decimal.NewFromInt(118),
		Installments: 1,
		IssuedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	svc.On("InvoicePreview", mock.Anything, id).Return(preview, nil).Twice()

	t.Run("json", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/payments/sessions/"+id.String()+"/invoice", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "ILS", data["currency"])
		assert.NotEmpty(t, data["total_text"])
	})

	t.Run("html", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/payments/sessions/"+id.String()+"/invoice?format=html", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
		assert.Contains(t, w.Body.String(), "Membership")
	})

	t.Run("before the invoice step", func(t *testing.T) {
		other := uuid.New()
		svc.On("InvoicePreview", mock.Anything, other).Return(nil, finance.ErrStepNotActive).Once()

		w := doRequest(r, http.MethodGet, "/payments/sessions/"+other.String()+"/invoice", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_Advance(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)

	t.Run("moves forward", func(t *testing.T) {
		id := uuid.New()
		svc.On("Advance", mock.Anything, id).Return(&appfinance.AdvanceResult{Moved: true, Session: sessionView(id)}, nil).Once()

		w := doRequest(r, http.MethodPost, "/payments/sessions/"+id.String()+"/advance", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeResponse(t, w).Data.(map[string]any)["moved"])
	})

	t.Run("declined charge", func(t *testing.T) {
		id := uuid.New()
		svc.On("Advance", mock.Anything, id).Return(nil, &finance.GatewayDeclineError{Code: "033", Message: "Card expired"}).Once()

		w := doRequest(r, http.MethodPost, "/payments/sessions/"+id.String()+"/advance", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodePaymentDeclined, resp.Error.Code)
		assert.Equal(t, "Card expired", resp.Error.Message)
	})

	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_Cancel(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)
	id := uuid.New()

	svc.On("Cancel", mock.Anything, id).Return(nil).Once()
	svc.On("Cancel", mock.Anything, id).Return(finance.ErrSessionClosed).Once()

	assert.Equal(t, http.StatusNoContent, doRequest(r, http.MethodDelete, "/payments/sessions/"+id.String(), nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, doRequest(r, http.MethodDelete, "/payments/sessions/"+id.String(), nil).Code)
	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_PreviewInstallments(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)

	svc.On("PreviewInstallments", mock.MatchedBy(func(in appfinance.InstallmentPreviewInput) bool {
		return in.Amount.Equal(decimal.NewFromInt(100)) && in.VATPercent.Equal(decimal.NewFromInt(17)) &&
			in.Installments == 3 && in.MethodLabel == "Visa 4242"
	})).Return(&appfinance.InstallmentPreview{Total: decimal.NewFromInt(117)}, nil).Once()

	w := doRequest(r, http.MethodGet, "/payments/installments/preview?amount=100&vat_percent=17&installments=3&method=Visa%204242", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/payments/installments/preview?amount=abc&installments=3", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/payments/installments/preview?amount=100", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}

func TestPaymentSessionHandler_ClassifyCard(t *testing.T) {
	svc := new(MockPaymentSessionService)
	r := newPaymentRouter(t, svc)

	svc.On("ClassifyCard", "4111111111111111").
		Return(appfinance.CardClassification{Network: finance.CardNetworkVisa, DisplayName: "Visa"}).Once()

	w := doRequest(r, http.MethodGet, "/payments/cards/classify?pan=4111111111111111", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "visa", data["network"])

	w = doRequest(r, http.MethodGet, "/payments/cards/classify", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}
