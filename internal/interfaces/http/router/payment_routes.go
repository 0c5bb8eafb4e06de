package router

import (
	"github.com/community/console/internal/infrastructure/auth"
	"github.com/community/console/internal/interfaces/http/handler"
	"github.com/community/console/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentRoutes maps the payment capture workflow onto /payments.
// limiter bounds card tokenization per operator and may be nil.
func PaymentRoutes(h *handler.PaymentSessionHandler, limiter *middleware.RateLimiter, logger *zap.Logger) *DomainGroup {
	read := middleware.RequirePermission(auth.PermissionPaymentsRead, logger)
	capture := middleware.RequirePermission(auth.PermissionPaymentsCapture, logger)
	cards := middleware.RequirePermission(auth.PermissionCardsManage, logger)

	tokenize := []gin.HandlerFunc{capture, cards}
	if limiter != nil {
		tokenize = append(tokenize, middleware.RateLimitByKey(limiter, middleware.OperatorKey))
	}
	tokenize = append(tokenize, h.TokenizeCard)

	const session = "/sessions/:" + handler.SessionIDParam
	const card = session + "/cards/:" + handler.CardIDParam

	return NewDomainGroup("payments", "/payments").
		POST("/sessions", capture, h.StartSession).
		GET(session, read, h.GetSession).
		DELETE(session, capture, h.Cancel).
		PUT(session+"/payer", capture, h.UpdatePayer).
		PUT(session+"/payer/member-details", capture, h.SetUseMemberDetails).
		PUT(session+"/details", capture, h.UpdatePaymentDetails).
		PUT(session+"/method", capture, h.SetPaymentMode).
		PUT(card+"/select", capture, h.SelectCard).
		PUT(card+"/default", capture, cards, h.SetDefaultCard).
		POST(session+"/cards", tokenize...).
		POST(session+"/gateway/frame", capture, h.OpenGatewayFrame).
		POST(session+"/gateway/messages", capture, h.RelayGatewayMessage).
		GET(session+"/invoice", read, h.Invoice).
		POST(session+"/advance", capture, h.Advance).
		POST(session+"/back", capture, h.Back).
		GET("/installments/preview", read, h.PreviewInstallments).
		GET("/cards/classify", read, h.ClassifyCard)
}

// HealthRoutes exposes the health check under the API prefix
func HealthRoutes(h *handler.HealthHandler) *DomainGroup {
	return NewDomainGroup("health", "").GET("/health", h.Check)
}
