package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/handlers"
)

type authRouteDeps struct {
	Handler     *handlers.AuthHandler
	RequireAuth gin.HandlerFunc
	RateLimit   gin.HandlerFunc
}

func registerAuthRoutes(api *gin.RouterGroup, deps authRouteDeps) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", deps.RateLimit, deps.Handler.Register)
		auth.POST("/login", deps.RateLimit, deps.Handler.Login)
		auth.POST("/refresh-token", deps.RateLimit, deps.Handler.Refresh)
		// Logout answers 200 even for unknown or expired tokens.
		auth.POST("/logout", deps.Handler.Logout)
	}

	authed := auth.Group("")
	authed.Use(deps.RequireAuth)
	{
		authed.POST("/logout-all", deps.Handler.LogoutAll)
		authed.GET("/profile", deps.Handler.Profile)
		authed.GET("/sessions", deps.Handler.Sessions)
	}
}
