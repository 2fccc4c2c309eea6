package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/policy"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/logger"
	"github.com/vexpense/vexpense/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// principal returns the authenticated caller, writing a 401 when absent.
func principal(c *gin.Context) (policy.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok || p.UserID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return policy.Principal{}, false
	}
	return p, true
}

// respondError writes err and logs it when it is not a client error.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr.StatusCode >= 500 {
		logger.WithModule("http").Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	response.Error(c, appErr)
}
