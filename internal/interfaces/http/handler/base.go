package handler

import (
	"errors"
	"net/http"

	appfinance "github.com/community/console/internal/application/finance"
	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/domain/shared"
	"github.com/community/console/internal/infrastructure/logger"
	"github.com/community/console/internal/interfaces/http/dto"
	"github.com/community/console/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getOperatorID returns the authenticated operator's user ID
func getOperatorID(c *gin.Context) (uuid.UUID, error) {
	id := middleware.GetJWTUserID(c)
	if id == "" {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return uuid.Parse(id)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response, deriving the status from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// ValidationError sends a 400 with per-field details
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError converts service errors to HTTP responses. Gateway declines
// carry their own message; upstream failures are reported without detail.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var declineErr *finance.GatewayDeclineError
	if errors.As(err, &declineErr) {
		h.Error(c, dto.ErrCodePaymentDeclined, declineErr.UserMessage())
		return
	}

	var networkErr *finance.NetworkError
	if errors.As(err, &networkErr) {
		logger.L(c.Request.Context()).Warn("upstream call failed",
			zap.String("op", networkErr.Op),
			zap.Error(networkErr.Err))
		h.Error(c, dto.ErrCodeUpstream, "The payment service is temporarily unavailable")
		return
	}

	if errors.Is(err, appfinance.ErrGatewayUnavailable) {
		h.Error(c, dto.ErrCodeGatewayUnavailable, "Card entry through the gateway is not available")
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	logger.L(c.Request.Context()).Error("unhandled request error", zap.Error(err))
	h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
}
