package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/vexpense/vexpense/internal/auth"
	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/internal/policy"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/logger"
	"github.com/vexpense/vexpense/pkg/response"
)

const (
	CtxClaimsKey      = "authClaims"
	CtxUserIDKey      = "userID"
	CtxSessionIDKey   = "sessionID"
	CtxUserKey        = "authUser"
	CtxPrincipalKey   = "principal"
	CtxAccessTokenKey = "accessToken"
)

// SessionValidator resolves an access token to its live session.
type SessionValidator interface {
	Validate(ctx context.Context, accessToken string) (*iauth.AuthenticatedSession, error)
}

// Auth requires a bearer token bound to an active session.
func Auth(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, apperrors.ErrUnauthorized.WithMessage("No token provided"))
			c.Abort()
			return
		}

		authenticated, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, authError(err))
			c.Abort()
			return
		}

		user := authenticated.User
		c.Set(CtxAccessTokenKey, token)
		c.Set(CtxClaimsKey, authenticated.Claims)
		c.Set(CtxUserKey, user)
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxSessionIDKey, authenticated.Session.ID)
		c.Set(CtxPrincipalKey, policy.Principal{UserID: user.ID, Role: user.Role})

		c.Next()
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[7:])
	return token, token != ""
}

// PrincipalFromContext returns the caller stored by Auth.
func PrincipalFromContext(c *gin.Context) (policy.Principal, bool) {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return policy.Principal{}, false
	}
	principal, ok := v.(policy.Principal)
	return principal, ok
}

// UserFromContext returns the user stored by Auth.
func UserFromContext(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// authError maps session failures to client errors. Messages stay generic.
func authError(err error) error {
	switch {
	case errors.Is(err, iauth.ErrAccountDeactivated):
		return apperrors.ErrAccountDeactivated
	case errors.Is(err, iauth.ErrUserNotFound):
		return apperrors.ErrUserNotFound
	case errors.Is(err, iauth.ErrInvalidSession):
		return apperrors.ErrInvalidSession
	default:
		logger.WithModule("http").Error("session validation failed", zap.Error(err))
		return apperrors.ErrInternalServer.WithInternal(err)
	}
}
