package middleware

import (
	"github.com/community/console/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequirePermission requires the operator to hold permission
func RequirePermission(permission string, logger *zap.Logger) gin.HandlerFunc {
	return RequireAnyPermission(logger, permission)
}

// RequireAnyPermission requires at least one of permissions. It must run
// after the JWT middleware.
func RequireAnyPermission(logger *zap.Logger, permissions ...string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			abortWithError(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		if !claims.HasAnyPermission(permissions...) {
			logger.Warn("Permission denied",
				zap.String("user_id", claims.UserID),
				zap.Strings("required_any", permissions),
				zap.String("path", c.FullPath()),
				zap.String("request_id", GetRequestID(c)))
			abortWithError(c, dto.ErrCodeForbidden, "You do not have permission to perform this action")
			return
		}
		c.Next()
	}
}
