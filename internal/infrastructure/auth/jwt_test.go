package auth

import (
	"testing"
	"time"

	"github.com/community/console/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{Secret: testSecret, Issuer: "community-console"})
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	token, err := svc.Issue(IssueInput{
		UserID:      userID,
		Username:    "treasurer",
		Permissions: []string{PermissionPaymentsRead, PermissionPaymentsCapture},
	})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "treasurer", claims.Username)
	assert.Equal(t, "community-console", claims.Issuer)

	got, err := claims.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestValidateAccessToken_Failures(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now()

	sign := func(claims *Claims, secret string, method jwt.SigningMethod) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}
	valid := func() *Claims {
		return &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "community-console",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			},
			UserID:    uuid.New().String(),
			TokenType: TokenTypeAccess,
		}
	}

	tests := []struct {
		name  string
		token func() string
		want  error
	}{
		{"garbage", func() string { return "not-a-jwt" }, ErrInvalidToken},
		{"wrong secret", func() string { return sign(valid(), "another-secret", jwt.SigningMethodHS256) }, ErrInvalidToken},
		{"wrong algorithm", func() string { return sign(valid(), testSecret, jwt.SigningMethodHS512) }, ErrInvalidToken},
		{"wrong issuer", func() string {
			c := valid()
			c.Issuer = "someone-else"
			return sign(c, testSecret, jwt.SigningMethodHS256)
		}, ErrInvalidToken},
		{"expired", func() string {
			c := valid()
			c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
			return sign(c, testSecret, jwt.SigningMethodHS256)
		}, ErrExpiredToken},
		{"not yet valid", func() string {
			c := valid()
			c.NotBefore = jwt.NewNumericDate(now.Add(time.Hour))
			return sign(c, testSecret, jwt.SigningMethodHS256)
		}, ErrTokenNotYetValid},
		{"refresh token", func() string {
			c := valid()
			c.TokenType = TokenTypeRefresh
			return sign(c, testSecret, jwt.SigningMethodHS256)
		}, ErrInvalidTokenType},
		{"missing user", func() string {
			c := valid()
			c.UserID = ""
			return sign(c, testSecret, jwt.SigningMethodHS256)
		}, ErrMissingUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateAccessToken_Leeway(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: testSecret, Leeway: time.Minute})
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Second))},
		UserID:           uuid.New().String(),
		TokenType:        TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.NoError(t, err)
}

func TestClaims_Permissions(t *testing.T) {
	c := &Claims{Permissions: []string{PermissionPaymentsRead}}

	assert.True(t, c.HasPermission(PermissionPaymentsRead))
	assert.False(t, c.HasPermission(PermissionPaymentsCapture))
	assert.True(t, c.HasAnyPermission(PermissionCardsManage, PermissionPaymentsRead))
	assert.False(t, c.HasAnyPermission(PermissionCardsManage))
}
