package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/internal/policy"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/response"
)

// RequireRole allows the request only when the authenticated caller holds one
// of roles. It must run after Auth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if err := policy.RequireRole(principal, roles...); err != nil {
			response.Error(c, apperrors.ErrForbidden.WithInternal(err))
			c.Abort()
			return
		}
		c.Next()
	}
}
